package htmlutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RedirectURL returns the target of a meta refresh or a simple JavaScript
// location redirect, or "".
func RedirectURL(htmlContent string) string {
	if doc, err := Parse(htmlContent); err == nil {
		if u := metaRefresh(doc); u != "" {
			return u
		}
	}
	return jsRedirect(htmlContent)
}

var refreshContent = regexp.MustCompile(`(?i)^\s*\d+\s*;\s*url\s*=\s*['"]?([^'"\s>]+)`)

func metaRefresh(doc *goquery.Document) string {
	var out string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		if m := refreshContent.FindStringSubmatch(content); len(m) > 1 {
			out = m[1]
			return false
		}
		return true
	})
	return out
}

var jsRedirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)(?:^|[^\w.])location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)document\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)(?:window\.)?location\.(?:replace|assign)\s*\(\s*["']([^"']+)["']\s*\)`),
}

func jsRedirect(content string) string {
	for _, p := range jsRedirectPatterns {
		m := p.FindStringSubmatch(content)
		if len(m) < 2 {
			continue
		}
		u := strings.TrimSpace(m[1])
		if u != "" && !strings.HasPrefix(u, "#") && u != "." && u != "./" {
			return u
		}
	}
	return ""
}
