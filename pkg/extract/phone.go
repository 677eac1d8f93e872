package extract

import (
	"regexp"
	"strings"

	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// phonePatterns are tried in order. Only North American numbers are recognized.
var phonePatterns = []*regexp.Regexp{
	// +1 (555) 123-4567, 1-555-123-4567
	regexp.MustCompile(`\+?1[\s.\-]?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}`),
	// (555) 123-4567, 555.123.4567, 5551234567
	regexp.MustCompile(`(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}`),
}

// Phones returns phone numbers found in text, keeping their original formatting.
// A match is kept only when its digits form a 10-digit number or an 11-digit
// number with a leading country code of 1. Numbers embedded in longer digit
// runs are ignored.
func Phones(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, re := range phonePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if !isolated(text, loc[0], loc[1]) {
				continue
			}
			raw := strings.TrimSpace(text[loc[0]:loc[1]])
			d := profile.Digits(raw)
			if !ValidPhoneDigits(d) {
				continue
			}
			key := profile.PhoneKey(d)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, raw)
		}
	}
	return out
}

// ValidPhoneDigits reports whether a digits-only string is a plausible phone number.
func ValidPhoneDigits(d string) bool {
	switch len(d) {
	case 10:
		return true
	case 11:
		return d[0] == '1'
	default:
		return false
	}
}

func isolated(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) {
		return false
	}
	if end < len(text) && isDigit(text[end]) {
		return false
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
