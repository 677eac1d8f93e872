// Package linktree reads link-in-bio pages, which practitioners often list
// instead of their own website.
package linktree

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/healerscout/pkg/htmlutil"
)

// Match returns true if the URL is a Linktree profile URL.
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, "linktr.ee/") || strings.Contains(lower, "linktree.com/")
}

// Page is what a link-in-bio page reveals.
type Page struct {
	Name    string
	Bio     string
	Website string   // the practitioner's own site, if one is listed
	Emails  []string // mailto targets
	Links   []string // every other outbound link, in page order
}

type nextData struct {
	Props struct {
		PageProps struct {
			Account struct {
				Username     string `json:"username"`
				ProfileTitle string `json:"profileTitle"`
				PageTitle    string `json:"pageTitle"`
				Description  string `json:"description"`
			} `json:"account"`
			Links       []link `json:"links"`
			SocialLinks []link `json:"socialLinks"`
		} `json:"pageProps"`
	} `json:"props"`
}

type link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Parse reads the embedded page data, falling back to meta tags and anchors.
func Parse(htmlContent string) (Page, error) {
	doc, err := htmlutil.Parse(htmlContent)
	if err != nil {
		return Page{}, err
	}

	var p Page
	var links []link
	if raw := doc.Find(`script#__NEXT_DATA__`).First().Text(); raw != "" {
		var nd nextData
		if err := json.Unmarshal([]byte(raw), &nd); err == nil {
			acct := nd.Props.PageProps.Account
			p.Name = acct.ProfileTitle
			if p.Name == "" {
				p.Name = strings.TrimPrefix(acct.PageTitle, "@")
			}
			p.Bio = acct.Description
			links = append(links, nd.Props.PageProps.Links...)
			links = append(links, nd.Props.PageProps.SocialLinks...)
		}
	}

	if p.Name == "" {
		p.Name = htmlutil.MetaTag(doc, "og:title")
		if idx := strings.Index(p.Name, " | "); idx > 0 {
			p.Name = strings.TrimSpace(p.Name[:idx])
		}
	}
	if p.Bio == "" {
		p.Bio = htmlutil.MetaTag(doc, "og:description")
	}
	if len(links) == 0 {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			links = append(links, link{URL: href, Title: strings.TrimSpace(a.Text())})
		})
	}

	for _, l := range links {
		p.add(l)
	}
	return p, nil
}

func (p *Page) add(l link) {
	u := strings.TrimSpace(l.URL)
	if u == "" {
		return
	}
	if addr, ok := strings.CutPrefix(u, "mailto:"); ok {
		if addr, _, _ = strings.Cut(addr, "?"); addr != "" {
			p.Emails = append(p.Emails, addr)
		}
		return
	}
	if !strings.HasPrefix(u, "http") || Match(u) {
		return
	}
	lowerTitle := strings.ToLower(l.Title)
	if p.Website == "" && !isSocial(u) && strings.Contains(lowerTitle, "site") {
		p.Website = u
		return
	}
	p.Links = append(p.Links, u)
}

// Site returns the listed website, or else the first link that is not a
// social profile.
func (p *Page) Site() string {
	if p.Website != "" {
		return p.Website
	}
	for _, l := range p.Links {
		if !isSocial(l) {
			return l
		}
	}
	return ""
}

var socialHosts = []string{
	"twitter.com", "x.com", "linkedin.com", "github.com", "instagram.com", "youtube.com",
	"youtu.be", "tiktok.com", "facebook.com", "pinterest.com", "threads.net", "spotify.com",
	"keybase.io", "matrix.to", "patreon.com",
}

func isSocial(rawURL string) bool {
	host := htmlutil.Host(rawURL)
	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return isMastodonURL(strings.ToLower(rawURL))
}

// isMastodonURL checks if a URL is likely a Mastodon instance.
func isMastodonURL(lowerURL string) bool {
	for _, pattern := range []string{
		"mastodon.", ".social/@", "infosec.exchange", "hachyderm.io",
		"fosstodon.org", "mstdn.social", "mas.to", "toot.", "masto.",
	} {
		if strings.Contains(lowerURL, pattern) {
			return true
		}
	}
	return strings.Contains(lowerURL, "/@")
}
