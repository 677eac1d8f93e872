package discovery

import (
	"encoding/json"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// Summary reports what one discovery pass found.
type Summary struct {
	Total         int                    `json:"total"`
	BySource      map[profile.Source]int `json:"by_source"`
	WithEmail     int                    `json:"with_email"`
	WithoutEmail  int                    `json:"without_email"`
	WithPhone     int                    `json:"with_phone"`
	WithoutPhone  int                    `json:"without_phone"`
	Saved         int                    `json:"saved"`
	Duplicates    int                    `json:"duplicates"`
	RateLimitHits int                    `json:"rate_limit_hits"`
	FailedUnits   int                    `json:"failed_units"`
	Warnings      []string               `json:"warnings,omitempty"`
	DryRun        bool                   `json:"dry_run,omitempty"`
	Duration      time.Duration          `json:"-"`

	// Profiles holds every profile found, only in dry-run mode.
	Profiles []*profile.Profile `json:"profiles,omitempty"`
}

func newSummary(dryRun bool) *Summary {
	return &Summary{BySource: map[profile.Source]int{}, DryRun: dryRun}
}

func (s *Summary) add(p *profile.Profile) {
	s.Total++
	s.BySource[p.Source]++
	if len(p.Emails) > 0 {
		s.WithEmail++
	} else {
		s.WithoutEmail++
	}
	if len(p.Phones) > 0 {
		s.WithPhone++
	} else {
		s.WithoutPhone++
	}
	if s.DryRun {
		s.Profiles = append(s.Profiles, p)
	}
}

// MarshalJSON renders Duration as a rounded string.
func (s *Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		*plain
		Duration string `json:"duration"`
	}{plain: (*plain)(s), Duration: s.Duration.Round(time.Millisecond).String()})
}
