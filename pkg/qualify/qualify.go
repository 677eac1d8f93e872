// Package qualify decides which discovered profiles are worth keeping.
//
// Filters are independent of confidence: a high score never rescues a
// profile that fails a hard gate.
package qualify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// Verdict is the outcome of a qualification check.
type Verdict struct {
	Admitted bool
	Reason   string // set when rejected
}

func admit() Verdict { return Verdict{Admitted: true} }

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Filter checks a profile against admission rules. text is the free text
// the profile was built from and is used for keyword gates.
type Filter interface {
	Check(p *profile.Profile, text string) Verdict
}

// DefaultKeywords gate social profiles on healing-related vocabulary.
var DefaultKeywords = []string{
	"reiki", "crystal", "energy", "healing", "healer", "spiritual", "chakra",
	"meditation", "mindfulness", "holistic", "wellness", "light", "soul",
	"aura", "manifestation", "coach", "guide", "teacher", "tarot", "astrology", "sound",
}

// Social admits social-network profiles that look like small, active practitioners.
type Social struct {
	MinNameLen   int
	MinFollowers int
	MaxFollowers int
	Keywords     []string
}

// DefaultSocial mirrors the follower band used for outreach.
var DefaultSocial = Social{
	MinNameLen:   2,
	MinFollowers: 100,
	MaxFollowers: 50_000,
	Keywords:     DefaultKeywords,
}

// Check implements Filter.
func (f Social) Check(p *profile.Profile, text string) Verdict {
	name := strings.TrimSpace(p.Name)
	if utf8.RuneCountInString(name) < f.MinNameLen {
		return reject("name %q shorter than %d", name, f.MinNameLen)
	}
	if p.Followers == nil {
		return reject("follower count unknown")
	}
	if n := *p.Followers; n < f.MinFollowers || n > f.MaxFollowers {
		return reject("followers %d outside [%d, %d]", n, f.MinFollowers, f.MaxFollowers)
	}
	if len(f.Keywords) > 0 && !extract.ContainsAny(name+" "+text, f.Keywords...) {
		return reject("no healing keywords")
	}
	return admit()
}

// Directory admits any directory profile that can be contacted.
type Directory struct{}

// Check implements Filter.
func (Directory) Check(p *profile.Profile, _ string) Verdict {
	if !p.HasContact() {
		return reject("no email or phone")
	}
	return admit()
}

// For returns the filter used for profiles from src.
func For(src profile.Source) Filter {
	if src.Kind() == profile.KindSocial {
		return DefaultSocial
	}
	return Directory{}
}
