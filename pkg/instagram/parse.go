package instagram

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/htmlutil"
)

// Match returns true if the URL is an Instagram profile URL.
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	if !strings.Contains(lower, "instagram.com/") {
		return false
	}
	return extractUsername(urlStr) != ""
}

var usernamePattern = regexp.MustCompile(`(?i)instagram\.com/([a-zA-Z0-9_.]+)`)

// systemPaths are top-level paths that never name an account.
var systemPaths = map[string]bool{
	"p": true, "reel": true, "reels": true, "stories": true,
	"explore": true, "direct": true, "accounts": true,
	"about": true, "legal": true, "privacy": true,
	"terms": true, "api": true, "developer": true,
}

func extractUsername(urlStr string) string {
	matches := usernamePattern.FindStringSubmatch(urlStr)
	if len(matches) < 2 {
		return ""
	}
	username := matches[1]
	if systemPaths[strings.ToLower(username)] {
		return ""
	}
	return username
}

// ProfileURL returns the canonical profile URL for username.
func ProfileURL(base, username string) string {
	return strings.TrimRight(base, "/") + "/" + username + "/"
}

// ProfileLinks returns de-duplicated profile URLs from a hashtag page. Only
// the first limit post links are considered; each contributes the first
// account link found in its article.
func ProfileLinks(body, base string, limit int) ([]string, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse hashtag page: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	doc.Find(`article a[href*="/p/"]`).EachWithBreak(func(i int, post *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		post.Closest("article").Find(`a[href^="/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if strings.Contains(href, "/p/") || strings.Contains(href, "/reel/") {
				return true
			}
			user := extractUsername("instagram.com" + href)
			if user == "" {
				return true
			}
			key := strings.ToLower(user)
			if !seen[key] {
				seen[key] = true
				out = append(out, ProfileURL(base, user))
			}
			return false
		})
		return true
	})
	return out, nil
}

// Account is what a profile page shows about its owner.
type Account struct {
	Name      string
	Bio       string
	Website   string
	Followers *int
	Posts     *int
}

var (
	metaFollowers = regexp.MustCompile(`(?i)([\d.,]+\s*[km]?)\s+followers`)
	metaPosts     = regexp.MustCompile(`(?i)([\d.,]+\s*[km]?)\s+posts`)
)

// ParseProfile reads an account header. Counts missing from the header are
// taken from the og:description summary when present.
func ParseProfile(body string) (Account, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return Account{}, fmt.Errorf("parse profile: %w", err)
	}
	header := doc.Find("header").First()

	var a Account
	a.Name = htmlutil.SelectText(header, "h2")
	if a.Name == "" {
		a.Name = htmlutil.SelectText(header, "h1")
	}
	a.Bio = htmlutil.SelectText(header, `div[data-testid="user-name"] + div`)
	if a.Bio == "" {
		a.Bio = htmlutil.SelectText(header, "section div span")
	}
	a.Website = unwrapLink(htmlutil.SelectAttr(header, `a[href^="http"]`, "href"))

	followers := htmlutil.SelectAttr(header, `a[href*="/followers/"] span[title]`, "title")
	if followers == "" {
		followers = htmlutil.SelectText(header, `a[href*="/followers/"] span`)
	}
	if followers == "" {
		followers = htmlutil.SelectAttr(header, "section ul li span[title]", "title")
	}
	a.Followers = count(followers)
	a.Posts = count(htmlutil.SelectText(header, "section ul li span"))

	desc := htmlutil.MetaTag(doc, "og:description")
	if a.Followers == nil {
		a.Followers = countMatch(metaFollowers, desc)
	}
	if a.Posts == nil {
		a.Posts = countMatch(metaPosts, desc)
	}
	return a, nil
}

func count(text string) *int {
	n, ok := extract.Count(text)
	if !ok {
		return nil
	}
	return &n
}

func countMatch(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	return count(m[1])
}

// unwrapLink strips the outbound-link redirector the site wraps external
// URLs in.
func unwrapLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Host, "l.instagram.com") {
		if target := u.Query().Get("u"); target != "" {
			return target
		}
	}
	return href
}
