package budget

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memSettings map[string]string

func (m memSettings) Setting(_ context.Context, k string) (string, bool, error) {
	v, ok := m[k]
	return v, ok, nil
}

func (m memSettings) SetSetting(_ context.Context, k, v string) error {
	m[k] = v
	return nil
}

type memLog struct {
	actions []Action
	err     error
}

func (l *memLog) LoadActions(_ context.Context, since time.Time) ([]Action, error) {
	var out []Action
	for _, a := range l.actions {
		if a.At.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *memLog) AppendAction(_ context.Context, a Action) error {
	if l.err != nil {
		return l.err
	}
	l.actions = append(l.actions, a)
	return nil
}

// wednesday noon, never a weekend
var midweek = time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC)

func newTestController(rules Rules, opts ...Option) (*Controller, *fakeClock) {
	clk := &fakeClock{now: midweek}
	opts = append([]Option{WithClock(clk.Now), WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return New(rules, opts...), clk
}

func TestUnknownPlatformDenied(t *testing.T) {
	c, _ := newTestController(DefaultRules())
	d := c.CanPerform(context.Background(), "myspace", ActionDiscovery)
	if d.Allowed {
		t.Fatal("CanPerform(unknown platform) allowed, want denied")
	}
	if !strings.Contains(d.Reason, "unknown platform") {
		t.Errorf("Reason = %q, want unknown platform", d.Reason)
	}
}

func TestUnlimitedActionAllowed(t *testing.T) {
	c, _ := newTestController(DefaultRules())
	if d := c.CanPerform(context.Background(), "psychology_today", ActionSearch); !d.Allowed {
		t.Errorf("CanPerform(search) = %+v, want allowed", d)
	}
}

func TestCanPerformDoesNotConsume(t *testing.T) {
	c, _ := newTestController(Rules{"p": {"a": {{Window: time.Hour, Max: 1}}}})
	ctx := context.Background()
	for range 5 {
		if d := c.CanPerform(ctx, "p", "a"); !d.Allowed {
			t.Fatalf("CanPerform() denied before any Record: %+v", d)
		}
	}
}

func TestWindowLimitAndReset(t *testing.T) {
	c, clk := newTestController(Rules{"p": {"a": {{Window: time.Hour, Max: 2}}}})
	ctx := context.Background()

	first := clk.Now()
	c.Record(ctx, "p", "a")
	clk.Advance(10 * time.Minute)
	c.Record(ctx, "p", "a")

	d := c.CanPerform(ctx, "p", "a")
	if d.Allowed {
		t.Fatal("CanPerform() allowed after reaching limit")
	}
	if want := first.Add(time.Hour); !d.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", d.ResetTime, want)
	}

	clk.Advance(50 * time.Minute) // exactly one hour after the first action
	if d := c.CanPerform(ctx, "p", "a"); !d.Allowed {
		t.Errorf("CanPerform() after window = %+v, want allowed", d)
	}
}

func TestResetWhenOverCeiling(t *testing.T) {
	// The ramp caps the ceiling at 1 while three actions sit in the window.
	c, clk := newTestController(Rules{"p": {"a": {{Window: time.Hour, Max: 3, Ramped: true}}}},
		WithRamp(Ramp{Start: 1, Max: 1}))
	ctx := context.Background()

	var stamps []time.Time
	for range 3 {
		stamps = append(stamps, clk.Now())
		c.Record(ctx, "p", "a")
		clk.Advance(10 * time.Minute)
	}

	d := c.CanPerform(ctx, "p", "a")
	if d.Allowed {
		t.Fatal("CanPerform() allowed over the ceiling")
	}
	if want := stamps[2].Add(time.Hour); !d.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v (newest stamp expiring)", d.ResetTime, want)
	}

	clk.Advance(d.ResetTime.Sub(clk.Now()) - time.Second)
	if d := c.CanPerform(ctx, "p", "a"); d.Allowed {
		t.Error("CanPerform() allowed before ResetTime")
	}
	clk.Advance(time.Second)
	if d := c.CanPerform(ctx, "p", "a"); !d.Allowed {
		t.Errorf("CanPerform() at ResetTime = %+v, want allowed", d)
	}
}

func TestMultipleWindowsLatestReset(t *testing.T) {
	c, clk := newTestController(Rules{"p": {"a": {
		{Window: time.Hour, Max: 1},
		{Window: 24 * time.Hour, Max: 1},
	}}})
	ctx := context.Background()
	start := clk.Now()
	c.Record(ctx, "p", "a")

	d := c.CanPerform(ctx, "p", "a")
	if d.Allowed {
		t.Fatal("CanPerform() allowed, want denied")
	}
	if want := start.Add(24 * time.Hour); !d.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", d.ResetTime, want)
	}
}

func TestAnyActionCountsWholePlatform(t *testing.T) {
	c, _ := newTestController(Rules{"instagram": {AnyAction: {{Window: time.Hour, Max: 3}}}})
	ctx := context.Background()
	c.Record(ctx, "instagram", ActionHashtagSearch)
	c.Record(ctx, "instagram", ActionProfileExtraction)
	c.Record(ctx, "instagram", ActionProfileExtraction)

	if d := c.CanPerform(ctx, "instagram", ActionDiscovery); d.Allowed {
		t.Error("CanPerform() allowed although platform-wide limit is spent")
	}
	if d := c.CanPerform(ctx, "instagram", AnyAction); d.Allowed {
		t.Error("CanPerform(*) allowed although platform-wide limit is spent")
	}
}

func TestProgressiveRamp(t *testing.T) {
	tests := []struct {
		week int
		want int
	}{
		{0, 5}, {1, 5}, {2, 8}, {5, 17}, {7, 23}, {8, 25}, {50, 25},
	}
	for _, tt := range tests {
		if got := DefaultRamp.LimitForWeek(tt.week); got != tt.want {
			t.Errorf("LimitForWeek(%d) = %d, want %d", tt.week, got, tt.want)
		}
	}
}

func TestRampCapsDailyLimits(t *testing.T) {
	settings := memSettings{SettingCurrentWeek: "1"}
	rules := Rules{"p": {"a": {{Window: 24 * time.Hour, Max: 12, Ramped: true}}}}
	c, _ := newTestController(rules, WithRamp(DefaultRamp), WithSettings(settings))
	ctx := context.Background()

	for range 5 {
		c.Record(ctx, "p", "a")
	}
	if d := c.CanPerform(ctx, "p", "a"); d.Allowed {
		t.Error("CanPerform() allowed past week-1 ramp of 5")
	}

	settings[SettingCurrentWeek] = "2"
	if d := c.CanPerform(ctx, "p", "a"); !d.Allowed {
		t.Errorf("CanPerform() in week 2 = %+v, want allowed", d)
	}
}

func TestWeekendMode(t *testing.T) {
	settings := memSettings{SettingWeekendMode: "true"}
	c, clk := newTestController(DefaultRules(), WithSettings(settings))
	ctx := context.Background()

	clk.now = time.Date(2025, time.June, 14, 10, 0, 0, 0, time.UTC) // Saturday
	d := c.CanPerform(ctx, "google_maps", ActionDiscovery)
	if d.Allowed {
		t.Fatal("CanPerform() allowed on Saturday with weekend mode")
	}
	if want := time.Date(2025, time.June, 16, 9, 0, 0, 0, time.UTC); !d.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", d.ResetTime, want)
	}

	settings[SettingWeekendMode] = "false"
	if d := c.CanPerform(ctx, "google_maps", ActionDiscovery); !d.Allowed {
		t.Errorf("CanPerform() with weekend mode off = %+v, want allowed", d)
	}
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2025, time.June, 13, 17, 59, 0, 0, time.UTC), false}, // Fri
		{time.Date(2025, time.June, 13, 18, 0, 0, 0, time.UTC), true},
		{time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC), true}, // Sun
		{time.Date(2025, time.June, 16, 8, 59, 0, 0, time.UTC), true}, // Mon
		{time.Date(2025, time.June, 16, 9, 0, 0, 0, time.UTC), false},
		{midweek, false},
	}
	for _, tt := range tests {
		if got := IsWeekend(tt.t); got != tt.want {
			t.Errorf("IsWeekend(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestWeekendEnd(t *testing.T) {
	mon := time.Date(2025, time.June, 16, 9, 0, 0, 0, time.UTC)
	for _, start := range []time.Time{
		time.Date(2025, time.June, 13, 19, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 15, 23, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 16, 7, 0, 0, 0, time.UTC),
	} {
		if got := WeekendEnd(start); !got.Equal(mon) {
			t.Errorf("WeekendEnd(%v) = %v, want %v", start, got, mon)
		}
	}
}

func TestEmergencyStop(t *testing.T) {
	settings := memSettings{}
	c, _ := newTestController(DefaultRules(), WithSettings(settings))
	ctx := context.Background()

	if err := c.EmergencyStop(ctx, "account warning"); err != nil {
		t.Fatalf("EmergencyStop() failed: %v", err)
	}
	d := c.CanPerform(ctx, "psychology_today", ActionSearch)
	if d.Allowed || !strings.Contains(d.Reason, "account warning") {
		t.Errorf("CanPerform() during stop = %+v, want denied with reason", d)
	}
	if s := c.Status(ctx); !s.EmergencyStop || s.Reason != "account warning" {
		t.Errorf("Status() = %+v, want emergency stop", s)
	}

	if err := c.ClearEmergencyStop(ctx); err != nil {
		t.Fatalf("ClearEmergencyStop() failed: %v", err)
	}
	if d := c.CanPerform(ctx, "psychology_today", ActionSearch); !d.Allowed {
		t.Errorf("CanPerform() after clear = %+v, want allowed", d)
	}
}

func TestEmergencyStopWithoutSettings(t *testing.T) {
	c, _ := newTestController(DefaultRules())
	if err := c.EmergencyStop(context.Background(), "x"); err == nil {
		t.Error("EmergencyStop() without settings succeeded, want error")
	}
}

func TestSetWeek(t *testing.T) {
	settings := memSettings{}
	c, _ := newTestController(DefaultRules(), WithSettings(settings), WithRamp(DefaultRamp))
	ctx := context.Background()
	if err := c.SetWeek(ctx, 0); err == nil {
		t.Error("SetWeek(0) succeeded, want error")
	}
	if err := c.SetWeek(ctx, 3); err != nil {
		t.Fatalf("SetWeek(3) failed: %v", err)
	}
	if s := c.Status(ctx); s.Week != 3 || s.RampLimit != 11 {
		t.Errorf("Status() = %+v, want week 3 ramp 11", s)
	}
}

func TestActionLogPersistence(t *testing.T) {
	log := &memLog{}
	rules := Rules{"p": {"a": {{Window: 24 * time.Hour, Max: 2}}}}
	ctx := context.Background()

	first, clk := newTestController(rules, WithActionLog(log))
	first.Record(ctx, "p", "a")
	clk.Advance(time.Minute)
	first.Record(ctx, "p", "a")
	if len(log.actions) != 2 {
		t.Fatalf("action log has %d entries, want 2", len(log.actions))
	}

	second, clk2 := newTestController(rules, WithActionLog(log))
	clk2.Advance(time.Hour)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if d := second.CanPerform(ctx, "p", "a"); d.Allowed {
		t.Error("CanPerform() allowed after reload, want history restored")
	}
}

func TestRecordSurvivesLogFailure(t *testing.T) {
	log := &memLog{err: errors.New("disk full")}
	c, _ := newTestController(Rules{"p": {"a": {{Window: time.Hour, Max: 1}}}}, WithActionLog(log))
	ctx := context.Background()
	c.Record(ctx, "p", "a")
	if d := c.CanPerform(ctx, "p", "a"); d.Allowed {
		t.Error("in-memory record lost when the action log failed")
	}
}

func TestDelays(t *testing.T) {
	c, _ := newTestController(DefaultRules())
	for range 100 {
		if d := c.RandomDelay(); d < DefaultDelays.Min || d > DefaultDelays.Max {
			t.Fatalf("RandomDelay() = %v, want within [%v, %v]", d, DefaultDelays.Min, DefaultDelays.Max)
		}
		lo := DefaultDelays.BetweenPlatforms
		hi := lo + DefaultDelays.BetweenPlatformsJitter
		if d := c.BetweenPlatformDelay(); d < lo || d > hi {
			t.Fatalf("BetweenPlatformDelay() = %v, want within [%v, %v]", d, lo, hi)
		}
	}
}

func TestConcurrentRecord(t *testing.T) {
	c, _ := newTestController(Rules{"p": {"a": {{Window: time.Hour, Max: 100}}}})
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CanPerform(ctx, "p", "a")
			c.Record(ctx, "p", "a")
		}()
	}
	wg.Wait()
	c.mu.Lock()
	n := len(c.history[key("p", "a")])
	c.mu.Unlock()
	if n != 50 {
		t.Errorf("history has %d entries, want 50", n)
	}
}

func TestStubs(t *testing.T) {
	ctx := context.Background()
	if d := (AllowAll{}).CanPerform(ctx, "x", "y"); !d.Allowed {
		t.Error("AllowAll denied")
	}
	if d := (DenyAll{}).CanPerform(ctx, "x", "y"); d.Allowed || d.Reason == "" {
		t.Errorf("DenyAll = %+v, want denied with reason", d)
	}
}
