// Package extract pulls contact and profile details out of free text.
//
// Every function is total: malformed or empty input yields an empty result,
// never a panic or an error.
package extract

import (
	"regexp"
	"slices"
	"strings"
)

// Blocklist describes addresses that are never worth contacting.
type Blocklist struct {
	Mailboxes  []string // exact local parts, e.g. "noreply"
	Domains    []string // exact domains, e.g. "example.com"
	Substrings []string // matched anywhere in the address
}

// DefaultBlocklist rejects automated mailboxes, generic role accounts and placeholder domains.
var DefaultBlocklist = Blocklist{
	Mailboxes: []string{
		"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon",
		"admin", "webmaster", "postmaster", "support",
		"example", "test", "sample", "demo", "user", "name", "email",
	},
	Domains: []string{
		"example.com", "example.org", "example.net", "test.com", "sample.com", "demo.com",
		"domain.com", "yourdomain.com", "yoursite.com", "yourwebsite.com", "placeholder.com",
		"sentry.io", "wixpress.com",
	},
	Substrings: []string{"noreply", "no-reply", "donotreply"},
}

// Blocked reports whether a normalized address matches the blocklist.
func (b Blocklist) Blocked(addr string) bool {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return true
	}
	if slices.Contains(b.Mailboxes, local) || slices.Contains(b.Domains, domain) {
		return true
	}
	for _, s := range b.Substrings {
		if strings.Contains(addr, s) {
			return true
		}
	}
	return false
}

type emailPattern struct {
	re        *regexp.Regexp
	normalize func(match []string) string
}

const emailBody = `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`

// emailPatterns are tried in order; results keep first-seen order.
var emailPatterns = []emailPattern{
	{
		re:        regexp.MustCompile(`(?i)mailto:(` + emailBody + `)`),
		normalize: func(m []string) string { return m[1] },
	},
	{
		re:        regexp.MustCompile(`(?i)(?:e-?mail|contact)\s*:\s*(` + emailBody + `)`),
		normalize: func(m []string) string { return m[1] },
	},
	{
		re:        regexp.MustCompile(emailBody),
		normalize: func(m []string) string { return m[0] },
	},
	{
		// "jane (at) healing (dot) com" and "jane [at] healing [dot] com"
		re: regexp.MustCompile(`(?i)([a-z0-9._%+\-]+)\s*[\[(]\s*at\s*[\])]\s*([a-z0-9\-]+(?:\s*[\[(]\s*dot\s*[\])]\s*[a-z0-9\-]+)+)`),
		normalize: func(m []string) string {
			return m[1] + "@" + obfuscatedDot.ReplaceAllString(m[2], ".")
		},
	},
}

var obfuscatedDot = regexp.MustCompile(`(?i)\s*[\[(]\s*dot\s*[\])]\s*`)

var fileSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".css", ".js"}

// Emails returns the valid, de-duplicated email addresses found in text
// using DefaultBlocklist.
func Emails(text string) []string {
	return EmailsWithBlocklist(text, DefaultBlocklist)
}

// EmailsWithBlocklist returns the valid, de-duplicated email addresses found in text.
// Addresses are lower-cased and trimmed.
func EmailsWithBlocklist(text string, blocklist Blocklist) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range emailPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			addr := normalizeEmail(p.normalize(m))
			if seen[addr] || !ValidEmail(addr) || blocklist.Blocked(addr) {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

// ValidEmail reports whether a normalized address is structurally plausible.
func ValidEmail(addr string) bool {
	if len(addr) <= 5 || strings.Count(addr, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(addr, "@")
	if local == "" || !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.Contains(domain, "..") {
		return false
	}
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(addr, suffix) {
			return false
		}
	}
	return true
}

func normalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".")
}

// freeMailProviders are consumer mailbox domains; anything else is treated as a business domain.
var freeMailProviders = map[string]bool{
	"gmail.com": true, "googlemail.com": true,
	"outlook.com": true, "hotmail.com": true, "live.com": true, "msn.com": true,
	"proton.me": true, "protonmail.com": true, "pm.me": true,
	"yahoo.com": true, "ymail.com": true, "rocketmail.com": true,
	"icloud.com": true, "me.com": true, "mac.com": true,
	"aol.com": true, "zoho.com": true, "gmx.com": true, "gmx.net": true,
	"mail.com": true, "fastmail.com": true, "comcast.net": true,
}

// BusinessEmail reports whether the address is hosted on the practitioner's own domain.
func BusinessEmail(addr string) bool {
	_, domain, ok := strings.Cut(strings.ToLower(addr), "@")
	if !ok || domain == "" {
		return false
	}
	return !freeMailProviders[domain]
}
