package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var titleSuffixPattern = regexp.MustCompile(`(?:\s+[-–—]\s+|\s*\|\s*).*$`)

// genericTitles are page titles that say nothing about the business.
var genericTitles = map[string]bool{
	"home": true, "homepage": true, "home page": true, "welcome": true,
	"about": true, "about us": true, "about me": true, "contact": true,
	"contact us": true, "index": true, "untitled": true, "blog": true,
}

var bodyNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)welcome to ([^.!?\n<|]{4,49})`),
	regexp.MustCompile(`\b(?i:about) ([A-Z][^.!?\n<|]{3,48})`),
	regexp.MustCompile(`(?m)^\s*([A-Z][^.!?\n<|]{3,48}?) is an? `),
}

// BusinessName derives a display name for a website.
// It tries, in order: the page title with any " - tagline" suffix removed,
// the capitalized first label of the domain, phrases such as "Welcome to X"
// in the body, and finally the bare domain.
func BusinessName(title, body, rawURL string) string {
	if name := cleanTitle(title); utf8.RuneCountInString(name) > 3 && !genericTitles[strings.ToLower(name)] {
		return name
	}

	domain := Domain(rawURL)
	if token, _, _ := strings.Cut(domain, "."); utf8.RuneCountInString(token) > 3 {
		return capitalize(token)
	}

	for _, re := range bodyNamePatterns {
		if m := re.FindStringSubmatch(body); len(m) > 1 {
			name := strings.TrimSpace(m[1])
			if n := utf8.RuneCountInString(name); n >= 4 && n <= 49 {
				return name
			}
		}
	}

	return domain
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	return strings.TrimSpace(titleSuffixPattern.ReplaceAllString(title, ""))
}

// Domain returns the host of rawURL without a leading "www.", or "".
func Domain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
