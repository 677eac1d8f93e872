// Package profile defines the common types for healer discovery.
package profile

import (
	"errors"
	"strings"
	"time"
)

// Common errors returned by discovery packages.
var (
	ErrRateLimited   = errors.New("rate limited")
	ErrDuplicate     = errors.New("duplicate profile")
	ErrNoResults     = errors.New("no results")
	ErrSessionFailed = errors.New("browser session failed")
)

// Profile represents a practitioner discovered on one source.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	// Metadata
	Source       Source    `json:"source"`
	URL          string    `json:"url,omitempty"` // Listing or profile URL the data came from
	DiscoveredAt time.Time `json:"discovered_at"`
	Confidence   float64   `json:"confidence"` // 0-100

	// Core profile data
	Name     string `json:"name"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`

	// Contact data, ordered sets
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`

	Specialties     []string `json:"specialties,omitempty"`
	Credentials     []string `json:"credentials,omitempty"`
	YearsExperience int      `json:"years_experience,omitempty"`

	// Social only
	Followers *int `json:"followers,omitempty"`
	Posts     *int `json:"posts,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// AddEmails appends emails not already present, comparing case-insensitively.
// Emails are stored lower-cased.
func (p *Profile) AddEmails(emails ...string) {
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || containsFold(p.Emails, e) {
			continue
		}
		p.Emails = append(p.Emails, e)
	}
}

// AddPhones appends phones whose PhoneKey is not already present.
// The original formatting of each phone is kept.
func (p *Profile) AddPhones(phones ...string) {
	for _, ph := range phones {
		ph = strings.TrimSpace(ph)
		k := PhoneKey(ph)
		if k == "" {
			continue
		}
		dup := false
		for _, existing := range p.Phones {
			if PhoneKey(existing) == k {
				dup = true
				break
			}
		}
		if !dup {
			p.Phones = append(p.Phones, ph)
		}
	}
}

// AddSpecialties appends specialty labels not already present.
func (p *Profile) AddSpecialties(labels ...string) {
	for _, l := range labels {
		if l == "" || containsFold(p.Specialties, l) {
			continue
		}
		p.Specialties = append(p.Specialties, l)
	}
}

// HasEmail reports whether at least one email was found.
func (p *Profile) HasEmail() bool { return len(p.Emails) > 0 }

// HasPhone reports whether at least one phone was found.
func (p *Profile) HasPhone() bool { return len(p.Phones) > 0 }

// HasContact reports whether the profile carries any way to reach the practitioner.
func (p *Profile) HasContact() bool { return p.HasEmail() || p.HasPhone() }

// PrimaryEmail returns the first email, or "".
func (p *Profile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneKey returns the digits of a phone number with a leading country code
// of 1 dropped from 11-digit numbers, so both forms compare equal.
func PhoneKey(s string) string {
	d := Digits(s)
	if len(d) == 11 && d[0] == '1' {
		return d[1:]
	}
	return d
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
