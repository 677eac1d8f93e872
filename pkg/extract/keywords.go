package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// specialty maps trigger phrases to a controlled vocabulary label.
type specialty struct {
	label    string
	triggers []string
}

// specialtyTable is ordered; Specialties reports labels in this order.
var specialtyTable = []specialty{
	{"Reiki", []string{"reiki"}},
	{"Crystal Healing", []string{"crystal"}},
	{"Energy Healing", []string{"energy healing", "energy healer", "energy work", "energy medicine"}},
	{"Spiritual Coaching", []string{"spiritual coach", "spiritual guid", "spiritual counsel", "spiritual mentor"}},
	{"Meditation", []string{"meditation"}},
	{"Chakra Healing", []string{"chakra"}},
	{"Sound Therapy", []string{"sound healing", "sound therapy", "sound bath", "singing bowl"}},
	{"Tarot", []string{"tarot"}},
	{"Astrology", []string{"astrolog"}},
	{"Holistic Therapy", []string{"holistic"}},
	{"Mindfulness", []string{"mindfulness"}},
	{"Alternative Healing", []string{"alternative healing", "alternative medicine", "alternative therap"}},
	{"Wellness Coaching", []string{"wellness coach"}},
}

// Specialties returns the vocabulary labels whose trigger phrases appear in text.
func Specialties(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	for _, s := range specialtyTable {
		if ContainsAny(lower, s.triggers...) {
			out = append(out, s.label)
		}
	}
	return out
}

// SpecialtyLabels returns the full controlled vocabulary.
func SpecialtyLabels() []string {
	out := make([]string, len(specialtyTable))
	for i, s := range specialtyTable {
		out[i] = s.label
	}
	return out
}

// ContainsAny reports whether text contains any of the words, case-insensitively.
func ContainsAny(text string, words ...string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Markers are professional-language signals found in a profile's text.
type Markers struct {
	Appointments bool // mentions sessions or booking
	Credentials  bool // mentions certification or licensing
	Experience   bool // mentions experience or years of practice
}

var (
	appointmentPattern = regexp.MustCompile(`(?i)\b(?:appointments?|sessions?|book(?:ing)?\s+(?:a|your|now))\b`)
	credentialPattern  = regexp.MustCompile(`(?i)\b(?:certified|licensed|accredited|registered)\b`)
	experiencePattern  = regexp.MustCompile(`(?i)\b(?:experience|experienced|years)\b`)
)

// ProfessionalMarkers scans text for professional-language signals.
func ProfessionalMarkers(text string) Markers {
	return Markers{
		Appointments: appointmentPattern.MatchString(text),
		Credentials:  credentialPattern.MatchString(text),
		Experience:   experiencePattern.MatchString(text),
	}
}

var yearsPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\+?\s*(?:years?|yrs?)\b`)

// YearsExperience returns the first "N years" figure in text, or 0.
func YearsExperience(text string) int {
	m := yearsPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

var countPattern = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*([km])?\b`)

// Count parses the first human-formatted count in text, such as
// "1,234", "12.5K" or "3m". The second result is false when no count is present.
func Count(text string) (int, bool) {
	m := countPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		f *= 1_000
	case "m":
		f *= 1_000_000
	}
	return int(f + 0.5), true
}
