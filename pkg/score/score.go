// Package score assigns a 0-100 confidence to discovered profiles.
//
// Scores are additive over independent signals. Every weight is non-negative,
// so adding a corroborating signal never lowers a score.
package score

import (
	"fmt"

	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// Max is the upper bound of any confidence score.
const Max = 100.0

// Weights holds the points awarded per signal.
type Weights struct {
	Email         float64
	Phone         float64
	BusinessEmail float64 // extra when the email is on the practitioner's own domain
	Website       float64
	PerSpecialty  float64
	SpecialtyCap  float64
	Appointments  float64
	Credentials   float64
	Experience    float64
	Location      float64
	Source        float64 // trust placed in the source itself
}

// DefaultWeights rank contact data above specialties, and specialties above
// professional language.
var DefaultWeights = Weights{
	Email:         40,
	Phone:         20,
	BusinessEmail: 15,
	Website:       3,
	PerSpecialty:  5,
	SpecialtyCap:  15,
	Appointments:  5,
	Credentials:   5,
	Experience:    3,
	Location:      2,
}

// sourceTrust is added per source; curated directories vet their members.
var sourceTrust = map[profile.Source]float64{
	profile.SourceTherapistDirectory: 10,
	profile.SourceBusinessListings:   5,
	profile.SourceInstagram:          0,
}

// WeightsFor returns the weights used for profiles from src.
func WeightsFor(src profile.Source) Weights {
	w := DefaultWeights
	w.Source = sourceTrust[src]
	return w
}

// Signals are the observable facts a score is computed from.
type Signals struct {
	HasEmail      bool
	HasPhone      bool
	BusinessEmail bool
	HasWebsite    bool
	HasLocation   bool
	Specialties   int
	Markers       extract.Markers
}

// SignalsFor collects signals from a profile and the free text it was built from.
func SignalsFor(p *profile.Profile, text string) Signals {
	s := Signals{
		HasEmail:    p.HasEmail(),
		HasPhone:    p.HasPhone(),
		HasWebsite:  p.Website != "",
		HasLocation: p.Location != "",
		Specialties: len(p.Specialties),
		Markers:     extract.ProfessionalMarkers(text),
	}
	for _, e := range p.Emails {
		if extract.BusinessEmail(e) {
			s.BusinessEmail = true
			break
		}
	}
	return s
}

// Score computes a confidence in [0, Max] and the reasons that contributed to it.
func Score(s Signals, w Weights) (confidence float64, reasons []string) {
	var total float64
	add := func(ok bool, points float64, reason string) {
		if ok && points > 0 {
			total += points
			reasons = append(reasons, reason)
		}
	}

	add(s.HasEmail, w.Email, "email")
	add(s.HasEmail && s.BusinessEmail, w.BusinessEmail, "email:business")
	add(s.HasPhone, w.Phone, "phone")
	add(s.HasWebsite, w.Website, "website")
	add(s.HasLocation, w.Location, "location")
	if s.Specialties > 0 {
		add(true, min(float64(s.Specialties)*w.PerSpecialty, w.SpecialtyCap), fmt.Sprintf("specialties:%d", s.Specialties))
	}
	add(s.Markers.Appointments, w.Appointments, "appointments")
	add(s.Markers.Credentials, w.Credentials, "credentials")
	add(s.Markers.Experience, w.Experience, "experience")
	add(w.Source > 0, w.Source, "source")

	return clamp(total), reasons
}

// Profile scores p with the weights for its source and stores the result on it.
func Profile(p *profile.Profile, text string) float64 {
	c, _ := Score(SignalsFor(p, text), WeightsFor(p.Source))
	p.Confidence = c
	return c
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > Max:
		return Max
	default:
		return v
	}
}
