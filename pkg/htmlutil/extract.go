// Package htmlutil extracts text, metadata and links from practitioner pages.
package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse builds a goquery document from raw HTML.
func Parse(htmlContent string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
}

// skipText lists elements whose contents are never visible text.
var skipText = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true,
}

// Text returns the visible text of an HTML fragment with whitespace collapsed.
// Block boundaries become spaces so adjacent cells do not run together.
func Text(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(htmlContent))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipText[string(name)] {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipText[string(name)] && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		default:
		}
	}
}

// Title returns the document title, falling back to og:title and the first h1.
func Title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := MetaTag(doc, "og:title"); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// Description returns the meta description, falling back to og:description.
func Description(doc *goquery.Document) string {
	if d := MetaTag(doc, "description"); d != "" {
		return d
	}
	return MetaTag(doc, "og:description")
}

// MetaTag returns the content of the first meta tag whose name or property
// matches key.
func MetaTag(doc *goquery.Document, key string) string {
	var out string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")
		if !strings.EqualFold(name, key) && !strings.EqualFold(prop, key) {
			return true
		}
		content, _ := s.Attr("content")
		out = strings.TrimSpace(content)
		return out == ""
	})
	return out
}

// SelectText returns the trimmed text of the first element matching any of the
// comma-separated selectors, or "".
func SelectText(s *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

// SelectAttr returns an attribute of the first element matching selector.
func SelectAttr(s *goquery.Selection, selector, attr string) string {
	v, _ := s.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

var notFoundPhrases = []string{
	"404 not found",
	"page not found",
	"error 404",
	"the page you requested cannot be found",
	"sorry, this page isn't available",
	"this account has been suspended",
	"profile not found",
	"this page doesn't exist",
}

// IsNotFound detects common "page not found" wording in page text.
func IsNotFound(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range notFoundPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var challengePhrases = []string{
	"unusual traffic",
	"are you a robot",
	"verify you are human",
	"please wait while we verify",
	"captcha",
}

// IsChallenge detects bot-check interstitials that stand in for real content.
func IsChallenge(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range challengePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
