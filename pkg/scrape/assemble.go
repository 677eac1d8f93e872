package scrape

import (
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/qualify"
	"github.com/codeGROOVE-dev/healerscout/pkg/score"
)

// Candidate is everything scraped about one practitioner before assembly.
type Candidate struct {
	Listing profile.Listing
	Detail  *profile.Detail // nil when the detail page was not fetched or failed

	Followers *int
	Posts     *int

	// Contacts found elsewhere, such as the practitioner's own website.
	ExtraEmails  []string
	ExtraPhones  []string
	ExtraSocials []string
}

// Assembler turns candidates into scored, qualified profiles.
type Assembler struct {
	logger    *slog.Logger
	now       func() time.Time
	filterFor func(profile.Source) qualify.Filter
	blocklist extract.Blocklist
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// WithFilters overrides the qualification filter chosen per source.
func WithFilters(f func(profile.Source) qualify.Filter) AssemblerOption {
	return func(a *Assembler) { a.filterFor = f }
}

// WithNow sets the clock stamped into DiscoveredAt.
func WithNow(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler returns an Assembler using qualify.For and the default blocklist.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		logger:    slog.Default(),
		now:       time.Now,
		filterFor: qualify.For,
		blocklist: extract.DefaultBlocklist,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Basic builds a profile from a result card alone.
func (a *Assembler) Basic(l profile.Listing) *profile.Profile {
	p, _ := a.Assemble(Candidate{Listing: l})
	return p
}

// Enriched builds a profile from a result card and its detail page.
func (a *Assembler) Enriched(l profile.Listing, d profile.Detail) *profile.Profile {
	p, _ := a.Assemble(Candidate{Listing: l, Detail: &d})
	return p
}

// Assemble extracts, qualifies and scores a candidate. It returns nil and a
// reason when the candidate has no contact signal or fails qualification.
func (a *Assembler) Assemble(c Candidate) (*profile.Profile, string) {
	l := c.Listing
	p := &profile.Profile{
		Source:       l.Source,
		URL:          l.URL,
		DiscoveredAt: a.now(),
		Name:         strings.TrimSpace(l.Name),
		Bio:          strings.TrimSpace(l.Summary),
		Location:     strings.TrimSpace(l.Location),
		Website:      strings.TrimSpace(l.Website),
		Followers:    c.Followers,
		Posts:        c.Posts,
	}
	var notes []string
	if l.Rating != "" {
		notes = append(notes, "rating "+l.Rating)
	}
	if links := otherLinks(c.ExtraSocials, l.URL); len(links) > 0 {
		notes = append(notes, "social "+strings.Join(links, " "))
	}
	p.Notes = strings.Join(notes, "; ")

	text := l.Text()
	phoneFields := []string{l.Phone}
	if d := c.Detail; d != nil {
		if b := strings.TrimSpace(d.Bio); b != "" {
			p.Bio = b
		}
		if p.Website == "" {
			p.Website = strings.TrimSpace(d.Website)
		}
		phoneFields = append(phoneFields, d.Phone)
		for _, cred := range strings.FieldsFunc(d.Credentials, func(r rune) bool { return r == ',' || r == ';' }) {
			if cred = strings.TrimSpace(cred); cred != "" {
				p.Credentials = append(p.Credentials, cred)
			}
		}
		p.YearsExperience = extract.YearsExperience(d.Experience)
		text = strings.Join([]string{text, d.Bio, d.Experience, d.Credentials, d.Text}, " ")
	}
	if p.YearsExperience == 0 {
		p.YearsExperience = extract.YearsExperience(text)
	}
	if p.Location == "" {
		p.Location = extract.Location(text)
	}
	if p.Name == "" && p.Website != "" {
		p.Name = extract.BusinessName("", text, p.Website)
	}

	p.AddEmails(extract.EmailsWithBlocklist(text, a.blocklist)...)
	p.AddEmails(c.ExtraEmails...)
	for _, f := range phoneFields {
		p.AddPhones(extract.Phones(f)...)
	}
	p.AddPhones(extract.Phones(text)...)
	p.AddPhones(c.ExtraPhones...)
	p.AddSpecialties(extract.Specialties(l.Specialties + " " + text)...)

	if !p.HasContact() {
		a.logger.Debug("candidate has no contact", "source", p.Source, "name", p.Name)
		return nil, "no email or phone"
	}
	if v := a.filterFor(p.Source).Check(p, text); !v.Admitted {
		a.logger.Debug("candidate rejected", "source", p.Source, "name", p.Name, "reason", v.Reason)
		return nil, v.Reason
	}
	score.Profile(p, text)
	return p, ""
}

// otherLinks returns links in first-seen order without duplicates or self.
func otherLinks(links []string, self string) []string {
	key := func(u string) string { return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(u), "/")) }
	seen := map[string]bool{key(self): true}
	var out []string
	for _, l := range links {
		k := key(l)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}
