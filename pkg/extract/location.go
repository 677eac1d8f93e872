package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
}

const stateNames = `Alabama|Alaska|Arizona|Arkansas|California|Colorado|Connecticut|Delaware|Florida|Georgia|` +
	`Hawaii|Idaho|Illinois|Indiana|Iowa|Kansas|Kentucky|Louisiana|Maine|Maryland|Massachusetts|` +
	`Michigan|Minnesota|Mississippi|Missouri|Montana|Nebraska|Nevada|New Hampshire|New Jersey|` +
	`New Mexico|New York|North Carolina|North Dakota|Ohio|Oklahoma|Oregon|Pennsylvania|` +
	`Rhode Island|South Carolina|South Dakota|Tennessee|Texas|Utah|Vermont|Virginia|Washington|` +
	`West Virginia|Wisconsin|Wyoming`

const (
	cityWords  = `[A-Z][a-zA-Z'.]+(?:\s[A-Z][a-zA-Z'.]+){0,3}`
	connectors = `(?i:located in|based in|serving|offices? in)\s+(?:the\s+)?`
)

type locationPattern struct {
	re        *regexp.Regexp
	stateCode int // submatch index holding a two-letter state code, or 0
}

// locationPatterns are tried in order; the first acceptable match wins.
var locationPatterns = []locationPattern{
	{re: regexp.MustCompile(connectors + `(` + cityWords + `,\s*([A-Z]{2}))\b`), stateCode: 2},
	{re: regexp.MustCompile(connectors + `(` + cityWords + `,\s*(?:` + stateNames + `))\b`)},
	{re: regexp.MustCompile(connectors + `(` + cityWords + `)`)},
	{re: regexp.MustCompile(`\b(` + cityWords + `,\s*([A-Z]{2}))\b`), stateCode: 2},
	{re: regexp.MustCompile(`\b(` + cityWords + `,\s*(?:` + stateNames + `))\b`)},
}

// Location returns the first plausible place name in text, or "".
// Results are between 4 and 50 characters long.
func Location(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range locationPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if p.stateCode > 0 && !stateCodes[m[p.stateCode]] {
				continue
			}
			loc := strings.TrimSpace(m[1])
			if n := utf8.RuneCountInString(loc); n >= 4 && n <= 50 {
				return loc
			}
		}
	}
	return ""
}
