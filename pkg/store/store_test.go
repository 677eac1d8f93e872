package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

var testNow = time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("OpenMemory() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
	return s
}

func testIntPtr(n int) *int { return &n }

func TestAddHealerRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := &profile.Profile{
		Source:       profile.SourceInstagram,
		URL:          "https://www.instagram.com/luna.heals/",
		Name:         "Luna Rose",
		Bio:          "Reiki master",
		Location:     "Sedona, AZ",
		Website:      "https://lunaheals.com",
		Emails:       []string{"luna@lunaheals.com"},
		Phones:       []string{"(555) 123-4567"},
		Specialties:  []string{"Reiki"},
		Followers:    testIntPtr(1500),
		Confidence:   72,
		DiscoveredAt: testNow,
	}
	id, err := s.AddHealer(ctx, p)
	if err != nil {
		t.Fatalf("AddHealer() failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("AddHealer() id = %d, want > 0", id)
	}

	got, err := s.Healers(ctx, Filter{})
	if err != nil {
		t.Fatalf("Healers() failed: %v", err)
	}
	if diff := cmp.Diff([]*profile.Profile{p}, got); diff != "" {
		t.Errorf("Healers() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddHealerIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := &profile.Profile{Source: profile.SourceTherapistDirectory, Name: "A", Emails: []string{"a@heal.com"}, Confidence: 50}

	if _, err := s.AddHealer(ctx, p); err != nil {
		t.Fatalf("first AddHealer() failed: %v", err)
	}
	changed := *p
	changed.Name = "Different Name"
	changed.Confidence = 99
	if _, err := s.AddHealer(ctx, &changed); !errors.Is(err, profile.ErrDuplicate) {
		t.Fatalf("second AddHealer() error = %v, want ErrDuplicate", err)
	}

	got, err := s.Healers(ctx, Filter{})
	if err != nil {
		t.Fatalf("Healers() failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "A" || got[0].Confidence != 50 {
		t.Errorf("Healers() = %+v, want the original row unchanged", got)
	}
}

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name string
		p    profile.Profile
		want string
	}{
		{"email wins", profile.Profile{Name: "A", Emails: []string{"a@x.com", "b@x.com"}}, "email:a@x.com"},
		{"name and location", profile.Profile{Name: " Luna Rose ", Location: "Sedona, AZ"}, "name:luna rose|sedona, az"},
		{"url when nameless", profile.Profile{URL: "https://X.com/p"}, "url:https://x.com/p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupKey(&tt.p); got != tt.want {
				t.Errorf("DedupKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealersFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i, p := range []*profile.Profile{
		{Source: profile.SourceInstagram, Name: "Low", Phones: []string{"5550000001"}, Confidence: 20},
		{Source: profile.SourceInstagram, Name: "High", Phones: []string{"5550000002"}, Confidence: 80},
		{Source: profile.SourceBusinessListings, Name: "Maps", Phones: []string{"5550000003"}, Confidence: 60},
	} {
		if _, err := s.AddHealer(ctx, p); err != nil {
			t.Fatalf("AddHealer(%d) failed: %v", i, err)
		}
	}

	got, err := s.Healers(ctx, Filter{Source: profile.SourceInstagram, MinConfidence: 10, Limit: 5})
	if err != nil {
		t.Fatalf("Healers() failed: %v", err)
	}
	var names []string
	for _, p := range got {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"High", "Low"}, names); diff != "" {
		t.Errorf("Healers() names mismatch (-want +got):\n%s", diff)
	}
}

func TestStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for _, p := range []*profile.Profile{
		{Source: profile.SourceInstagram, Name: "A", Emails: []string{"a@x.com"}},
		{Source: profile.SourceInstagram, Name: "B", Phones: []string{"5551234567"}},
		{Source: profile.SourceTherapistDirectory, Name: "C", Emails: []string{"c@x.com"}, Phones: []string{"5557654321"}},
	} {
		if _, err := s.AddHealer(ctx, p); err != nil {
			t.Fatalf("AddHealer() failed: %v", err)
		}
	}
	if err := s.AppendAction(ctx, budget.Action{Platform: "instagram", Action: "discovery", At: testNow}); err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	if err := s.AppendAction(ctx, budget.Action{Platform: "instagram", Action: "discovery", At: testNow.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}

	got, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	want := &Stats{
		Total:        3,
		WithEmail:    2,
		WithPhone:    2,
		BySource:     map[string]int{"instagram": 2, "psychology_today": 1},
		ByStatus:     map[string]int{StatusDiscovered: 3},
		ActionsToday: map[string]int{"instagram/discovery": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestActions(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	old := budget.Action{Platform: "p", Action: "a", At: testNow.Add(-2 * time.Hour)}
	recent := budget.Action{Platform: "p", Action: "a", At: testNow.Add(-time.Minute)}
	for _, a := range []budget.Action{old, recent} {
		if err := s.AppendAction(ctx, a); err != nil {
			t.Fatalf("AppendAction() failed: %v", err)
		}
	}

	got, err := s.LoadActions(ctx, testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("LoadActions() failed: %v", err)
	}
	if len(got) != 1 || !got[0].At.Equal(recent.At) {
		t.Errorf("LoadActions() = %+v, want only the recent action", got)
	}

	n, err := s.PruneActions(ctx, testNow.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Errorf("PruneActions() = %d, %v, want 1, nil", n, err)
	}
}

func TestSettings(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	v, ok, err := s.Setting(ctx, budget.SettingCurrentWeek)
	if err != nil || !ok || v != "1" {
		t.Errorf("Setting(current_week) = %q, %v, %v, want default 1", v, ok, err)
	}
	if _, ok, _ := s.Setting(ctx, "missing"); ok {
		t.Error("Setting(missing) reported present")
	}

	if err := s.SetSetting(ctx, budget.SettingCurrentWeek, "4"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	if v, _, _ := s.Setting(ctx, budget.SettingCurrentWeek); v != "4" {
		t.Errorf("Setting(current_week) = %q, want 4", v)
	}
}

// The store drives a real budget controller across a simulated restart.
func TestBudgetIntegration(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	rules := budget.Rules{"p": {"a": {{Window: time.Hour, Max: 1}}}}
	clock := func() time.Time { return testNow }

	c := budget.New(rules, budget.WithActionLog(s), budget.WithSettings(s), budget.WithClock(clock))
	c.Record(ctx, "p", "a")

	restarted := budget.New(rules, budget.WithActionLog(s), budget.WithSettings(s), budget.WithClock(clock))
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if d := restarted.CanPerform(ctx, "p", "a"); d.Allowed {
		t.Error("CanPerform() allowed after restart, want persisted history")
	}
}
