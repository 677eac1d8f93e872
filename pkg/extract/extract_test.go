package extract

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmails(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"plain", "Reach me at Jane@Healing.com today", []string{"jane@healing.com"}},
		{"mailto first", `<a href="mailto:info@luna.co">x</a> or jane@luna.co`, []string{"info@luna.co", "jane@luna.co"}},
		{"labelled", "Email: hello@sedonareiki.com", []string{"hello@sedonareiki.com"}},
		{"dedup case", "a.b@heal.org A.B@HEAL.ORG", []string{"a.b@heal.org"}},
		{"obfuscated", "write to jane (at) healing (dot) com", []string{"jane@healing.com"}},
		{"noreply", "noreply@healing.com", nil},
		{"no-reply substring", "my-no-reply-box@healing.com", nil},
		{"admin", "admin@healing.com", nil},
		{"support", "support@healing.com", nil},
		{"placeholder domain", "jane@example.com", nil},
		{"image asset", "logo@2x.png", nil},
		{"trailing period", "Contact jane@healing.com.", []string{"jane@healing.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Emails(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Emails(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestEmailsWithBlocklist(t *testing.T) {
	bl := Blocklist{Domains: []string{"spam.io"}}
	got := EmailsWithBlocklist("a@spam.io support@heal.com", bl)
	want := []string{"support@heal.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EmailsWithBlocklist mismatch (-want +got):\n%s", diff)
	}
}

func TestEmailsAreValid(t *testing.T) {
	text := `x@y noreply@a.com "jane@heal.com" two@@at.com j@k.io mary@site.studio`
	for _, e := range Emails(text) {
		if len(e) <= 5 || strings.Count(e, "@") != 1 || e != strings.ToLower(e) {
			t.Errorf("Emails returned invalid address %q", e)
		}
		if DefaultBlocklist.Blocked(e) {
			t.Errorf("Emails returned blocked address %q", e)
		}
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"jane@heal.com", true},
		{"a@b.c", false},
		{"jane@heal", false},
		{"jane@@heal.com", false},
		{"@heal.com", false},
		{"jane@.heal.com", false},
		{"icon@site.svg", false},
	}
	for _, tt := range tests {
		if got := ValidEmail(tt.in); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBusinessEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"jane@lunareiki.com", true},
		{"jane@gmail.com", false},
		{"JANE@Yahoo.com", false},
		{"not-an-email", false},
	}
	for _, tt := range tests {
		if got := BusinessEmail(tt.in); got != tt.want {
			t.Errorf("BusinessEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPhones(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"parens", "Call (555) 123-4567 now", []string{"(555) 123-4567"}},
		{"dots", "555.123.4567", []string{"555.123.4567"}},
		{"bare", "tel 5551234567", []string{"5551234567"}},
		{"country code", "+1 555-123-4567", []string{"+1 555-123-4567"}},
		{"dedup across formats", "555-123-4567 or (555) 123-4567", []string{"555-123-4567"}},
		{"too short", "123-4567", nil},
		{"embedded in long id", "order 123456789012345", nil},
		{"two numbers", "555-123-4567 / 555-987-6543", []string{"555-123-4567", "555-987-6543"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Phones(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Phones(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestValidPhoneDigits(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"5551234567", true},
		{"15551234567", true},
		{"25551234567", false},
		{"555123456", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidPhoneDigits(tt.in); got != tt.want {
			t.Errorf("ValidPhoneDigits(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBusinessName(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		url   string
		want  string
	}{
		{"title with tagline", "Luna Healing Arts - Reiki in Sedona", "", "https://lunahealing.com", "Luna Healing Arts"},
		{"title with pipe", "Sacred Sound | Home", "", "", "Sacred Sound"},
		{"hyphenated title kept", "Star-Light Reiki", "", "", "Star-Light Reiki"},
		{"short title falls to domain", "Hi", "", "https://www.lunahealing.com/about", "Lunahealing"},
		{"generic title falls to domain", "Home", "", "https://lunahealing.com", "Lunahealing"},
		{"short domain falls to body", "", "Welcome to Radiant Path Wellness. We offer", "https://rpw.com", "Radiant Path Wellness"},
		{"is a pattern", "", "Blue Lotus Studio is a sanctuary", "https://blu.io", "Blue Lotus Studio"},
		{"raw domain last", "", "", "https://abc.com", "abc.com"},
		{"nothing", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BusinessName(tt.title, tt.body, tt.url)
			if got != tt.want {
				t.Errorf("BusinessName(%q, %q, %q) = %q, want %q", tt.title, tt.body, tt.url, got, tt.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.LunaHealing.com/contact", "lunahealing.com"},
		{"lunahealing.com", "lunahealing.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"based in city state", "I am based in Sedona, AZ and travel.", "Sedona, AZ"},
		{"located in full state", "Studio located in Santa Fe, New Mexico.", "Santa Fe, New Mexico"},
		{"serving city only", "Serving Boulder and nearby towns", "Boulder"},
		{"bare city state", "Reiki sessions. Portland, OR 97201", "Portland, OR"},
		{"invalid state code", "Jane Doe, XY", ""},
		{"lowercase connector target", "serving clients worldwide", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Location(tt.text); got != tt.want {
				t.Errorf("Location(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSpecialties(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"I offer Reiki and crystal healing sessions", []string{"Reiki", "Crystal Healing"}},
		{"Certified in chakra balancing and sound bath meditation", []string{"Meditation", "Chakra Healing", "Sound Therapy"}},
		{"Holistic, mindfulness-based therapy", []string{"Holistic Therapy", "Mindfulness"}},
		{"licensed accountant", nil},
	}
	for _, tt := range tests {
		got := Specialties(tt.text)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Specialties(%q) mismatch (-want +got):\n%s", tt.text, diff)
		}
	}
}

func TestSpecialtiesWithinVocabulary(t *testing.T) {
	vocab := make(map[string]bool)
	for _, l := range SpecialtyLabels() {
		vocab[l] = true
	}
	text := "reiki crystal energy healing spiritual coach meditation chakra sound healing tarot astrology holistic mindfulness alternative healing wellness coach"
	got := Specialties(text)
	if len(got) != len(vocab) {
		t.Errorf("Specialties matched %d labels, want %d", len(got), len(vocab))
	}
	for _, l := range got {
		if !vocab[l] {
			t.Errorf("Specialties returned %q outside vocabulary", l)
		}
	}
}

func TestProfessionalMarkers(t *testing.T) {
	got := ProfessionalMarkers("Certified Reiki master with 12 years of experience. Book a session.")
	want := Markers{Appointments: true, Credentials: true, Experience: true}
	if got != want {
		t.Errorf("ProfessionalMarkers() = %+v, want %+v", got, want)
	}
	if got := ProfessionalMarkers("crystals and vibes"); got != (Markers{}) {
		t.Errorf("ProfessionalMarkers() = %+v, want zero", got)
	}
}

func TestYearsExperience(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"15 years in practice", 15},
		{"Over 20+ yrs experience", 20},
		{"many years", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := YearsExperience(tt.in); got != tt.want {
			t.Errorf("YearsExperience(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"1,234 followers", 1234, true},
		{"12.5K followers", 12500, true},
		{"3m", 3_000_000, true},
		{"980", 980, true},
		{"no followers yet", 0, false},
	}
	for _, tt := range tests {
		got, ok := Count(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Count(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// Placeholder domains are blocked by default, so the example runs with an
// empty blocklist to show the extraction chain itself.
func TestEndToEndExtraction(t *testing.T) {
	text := "contact: info@example.com, call (212) 555-1234, I offer reiki and crystal healing sessions in Boulder, CO"

	if diff := cmp.Diff([]string{"info@example.com"}, EmailsWithBlocklist(text, Blocklist{})); diff != "" {
		t.Errorf("emails mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"(212) 555-1234"}, Phones(text)); diff != "" {
		t.Errorf("phones mismatch (-want +got):\n%s", diff)
	}
	specs := Specialties(text)
	for _, want := range []string{"Reiki", "Crystal Healing"} {
		if !slices.Contains(specs, want) {
			t.Errorf("Specialties() = %v, missing %q", specs, want)
		}
	}
	if got := Location(text); got != "Boulder, CO" {
		t.Errorf("Location() = %q, want %q", got, "Boulder, CO")
	}
	if got := Emails(text); got != nil {
		t.Errorf("Emails() with default blocklist = %v, want placeholder domain rejected", got)
	}
}
