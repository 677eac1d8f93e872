package htmlutil

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var contactWords = []string{"contact", "about", "get in touch", "book", "connect", "work with me"}

var contactPaths = []string{"/contact", "/about", "/connect", "/book", "/work-with-me"}

// ContactLinks returns same-host links that look like contact or about pages,
// in document order.
func ContactLinks(doc *goquery.Document, baseURL string) []string {
	var links []string
	seen := map[string]bool{normalizeForDedup(baseURL): true}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if title, ok := s.Attr("title"); ok {
			text += " " + strings.ToLower(title)
		}
		hrefLower := strings.ToLower(href)

		isContact := false
		for _, kw := range contactWords {
			if strings.Contains(text, kw) {
				isContact = true
				break
			}
		}
		for _, p := range contactPaths {
			if strings.Contains(hrefLower, p) {
				isContact = true
				break
			}
		}
		if !isContact {
			return
		}

		resolved := Resolve(href, baseURL)
		if resolved == "" || !SameHost(resolved, baseURL) {
			return
		}
		if key := normalizeForDedup(resolved); !seen[key] {
			seen[key] = true
			links = append(links, resolved)
		}
	})
	return links
}

var socialHosts = []string{
	"instagram.com", "facebook.com", "tiktok.com", "youtube.com", "linkedin.com", "pinterest.com",
}

// SocialLinks returns outbound links to well-known social platforms.
func SocialLinks(doc *goquery.Document) []string {
	var out []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Host == "" {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		for _, h := range socialHosts {
			if host != h && !strings.HasSuffix(host, "."+h) {
				continue
			}
			// A bare platform homepage or share intent is not a profile.
			if strings.Trim(u.Path, "/") == "" || strings.Contains(u.Path, "sharer") {
				return
			}
			if key := normalizeForDedup(u.String()); !seen[key] {
				seen[key] = true
				out = append(out, u.String())
			}
			return
		}
	})
	return out
}

// MailtoAddresses returns addresses from mailto: links.
func MailtoAddresses(doc *goquery.Document) []string {
	var out []string
	doc.Find(`a[href^="mailto:"], a[href^="MAILTO:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := href[len("mailto:"):]
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if addr, err := url.PathUnescape(addr); err == nil && addr != "" {
			out = append(out, strings.TrimSpace(addr))
		}
	})
	return out
}

// Resolve makes href absolute against baseURL. Non-navigational links
// (javascript:, mailto:, tel:, fragments) resolve to "".
func Resolve(href, baseURL string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "#") {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// SameHost reports whether two URLs share a host, ignoring a www. prefix.
func SameHost(a, b string) bool {
	ha, hb := Host(a), Host(b)
	return ha != "" && ha == hb
}

// Host returns the lower-cased host of rawURL without a www. prefix.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func normalizeForDedup(u string) string {
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.ToLower(u)
}
