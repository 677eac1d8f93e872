package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limit caps the number of actions inside a sliding window.
type Limit struct {
	Window time.Duration
	Max    int
	// Ramped limits are further capped by the progressive weekly ramp.
	Ramped bool
}

// Rules maps platform to action to limits. Limits under AnyAction count
// every action on the platform and apply to every check on it.
type Rules map[string]map[string][]Limit

// DefaultRules are deliberately conservative.
func DefaultRules() Rules {
	const day = 24 * time.Hour
	return Rules{
		"psychology_today": {
			ActionDiscovery:         {{Window: day, Max: 8, Ramped: true}},
			ActionProfileEnrichment: {{Window: time.Hour, Max: 12}, {Window: day, Max: 40}},
		},
		"google_maps": {
			ActionDiscovery: {{Window: day, Max: 7, Ramped: true}},
		},
		"instagram": {
			AnyAction:               {{Window: time.Hour, Max: 8}},
			ActionProfileExtraction: {{Window: day, Max: 12, Ramped: true}},
		},
		PlatformWebsite: {
			ActionScraping: {{Window: time.Hour, Max: 30}, {Window: day, Max: 150}},
		},
	}
}

// Delays configures the pauses a Controller hands out.
type Delays struct {
	Min                    time.Duration
	Max                    time.Duration
	BetweenPlatforms       time.Duration
	BetweenPlatformsJitter time.Duration
}

// DefaultDelays pause one to three minutes between units and about five
// minutes between dimensions.
var DefaultDelays = Delays{
	Min:                    60 * time.Second,
	Max:                    180 * time.Second,
	BetweenPlatforms:       300 * time.Second,
	BetweenPlatformsJitter: 60 * time.Second,
}

// Ramp raises ramped daily limits week by week.
type Ramp struct {
	Start          int
	WeeklyIncrease int
	Max            int
}

// DefaultRamp starts at 5 actions per day and adds 3 per week up to 25.
var DefaultRamp = Ramp{Start: 5, WeeklyIncrease: 3, Max: 25}

// LimitForWeek returns the ramp ceiling for a 1-based week number.
func (r Ramp) LimitForWeek(week int) int {
	if week < 1 {
		week = 1
	}
	return min(r.Start+(week-1)*r.WeeklyIncrease, r.Max)
}

// Controller is the production Governor. It keeps recent action timestamps
// per platform and action in memory, optionally backed by an ActionLog.
type Controller struct {
	rules     Rules
	delays    Delays
	ramp      *Ramp
	settings  Settings
	actionLog ActionLog
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	history   map[string][]time.Time // key: platform + "\x00" + action
	rng       *rand.Rand
	maxWindow time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithDelays sets the pause configuration.
func WithDelays(d Delays) Option {
	return func(c *Controller) { c.delays = d }
}

// WithRamp enables the progressive weekly ramp.
func WithRamp(r Ramp) Option {
	return func(c *Controller) { c.ramp = &r }
}

// WithSettings sets the store for weekend mode, emergency stop and week number.
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithActionLog persists recorded actions.
func WithActionLog(l ActionLog) Option {
	return func(c *Controller) { c.actionLog = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRand sets the random source used for delays.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// New creates a Controller enforcing rules.
func New(rules Rules, opts ...Option) *Controller {
	c := &Controller{
		rules:   rules,
		delays:  DefaultDelays,
		logger:  slog.Default(),
		now:     time.Now,
		history: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // jitter, not security
	}
	for _, actions := range rules {
		for _, limits := range actions {
			for _, l := range limits {
				c.maxWindow = max(c.maxWindow, l.Window)
			}
		}
	}
	return c
}

// Load seeds in-memory history from the action log.
func (c *Controller) Load(ctx context.Context) error {
	if c.actionLog == nil {
		return nil
	}
	actions, err := c.actionLog.LoadActions(ctx, c.now().Add(-c.maxWindow))
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range actions {
		k := key(a.Platform, a.Action)
		c.history[k] = append(c.history[k], a.At)
	}
	c.logger.DebugContext(ctx, "budget history loaded", "actions", len(actions))
	return nil
}

// CanPerform implements Governor.
func (c *Controller) CanPerform(ctx context.Context, platform, action string) Decision {
	now := c.now()

	if c.flag(ctx, SettingEmergencyStop) {
		reason, _, _ := c.setting(ctx, SettingEmergencyStopReason)
		if reason == "" {
			reason = "no reason given"
		}
		return Decision{Reason: "emergency stop: " + reason}
	}

	if c.flag(ctx, SettingWeekendMode) && IsWeekend(now) {
		return Decision{Reason: "weekend mode is active", ResetTime: WeekendEnd(now)}
	}

	actions, ok := c.rules[platform]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown platform %q", platform)}
	}

	rampCap := -1
	if c.ramp != nil {
		rampCap = c.ramp.LimitForWeek(c.week(ctx))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var d Decision
	d.Allowed = true
	check := func(limits []Limit, stamps []time.Time, scope string) {
		for _, l := range limits {
			ceiling := l.Max
			if l.Ramped && rampCap >= 0 {
				ceiling = min(ceiling, rampCap)
			}
			in := inWindow(stamps, now.Add(-l.Window), now)
			n := len(in)
			if n < ceiling {
				continue
			}
			// Allowed again once all but ceiling-1 of the stamps have expired.
			reset := now.Add(l.Window)
			if ceiling > 0 {
				reset = in[n-ceiling].Add(l.Window)
			}
			if d.Allowed || reset.After(d.ResetTime) {
				d.ResetTime = reset
			}
			if d.Allowed {
				d.Reason = fmt.Sprintf("%s %s limit reached (%d per %s)", platform, scope, ceiling, l.Window)
			}
			d.Allowed = false
		}
	}

	if action != AnyAction {
		check(actions[action], c.history[key(platform, action)], action)
	}
	if limits := actions[AnyAction]; len(limits) > 0 {
		check(limits, c.platformHistory(platform), "overall")
	}
	return d
}

// Record implements Governor.
func (c *Controller) Record(ctx context.Context, platform, action string) {
	now := c.now()

	c.mu.Lock()
	k := key(platform, action)
	c.history[k] = append(prune(c.history[k], now.Add(-c.maxWindow)), now)
	c.mu.Unlock()

	if c.actionLog != nil {
		if err := c.actionLog.AppendAction(ctx, Action{Platform: platform, Action: action, At: now}); err != nil {
			c.logger.WarnContext(ctx, "failed to persist budget action", "platform", platform, "action", action, "error", err)
		}
	}
}

// RandomDelay implements Governor.
func (c *Controller) RandomDelay() time.Duration {
	return c.delays.Min + c.jitter(c.delays.Max-c.delays.Min)
}

// BetweenPlatformDelay implements Governor.
func (c *Controller) BetweenPlatformDelay() time.Duration {
	return c.delays.BetweenPlatforms + c.jitter(c.delays.BetweenPlatformsJitter)
}

func (c *Controller) jitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rng.Int64N(int64(span) + 1))
}

// Status summarizes the controller's switches.
type Status struct {
	Week          int    `json:"week"`
	RampLimit     int    `json:"ramp_limit,omitempty"`
	WeekendMode   bool   `json:"weekend_mode"`
	WeekendActive bool   `json:"weekend_active"`
	EmergencyStop bool   `json:"emergency_stop"`
	Reason        string `json:"emergency_stop_reason,omitempty"`
}

// Status reports the current week, ramp ceiling and operator switches.
func (c *Controller) Status(ctx context.Context) Status {
	s := Status{
		Week:          c.week(ctx),
		WeekendMode:   c.flag(ctx, SettingWeekendMode),
		EmergencyStop: c.flag(ctx, SettingEmergencyStop),
	}
	s.WeekendActive = s.WeekendMode && IsWeekend(c.now())
	if c.ramp != nil {
		s.RampLimit = c.ramp.LimitForWeek(s.Week)
	}
	if s.EmergencyStop {
		s.Reason, _, _ = c.setting(ctx, SettingEmergencyStopReason)
	}
	return s
}

// EmergencyStop denies every action until ClearEmergencyStop is called.
func (c *Controller) EmergencyStop(ctx context.Context, reason string) error {
	if c.settings == nil {
		return fmt.Errorf("emergency stop: no settings store")
	}
	if err := c.settings.SetSetting(ctx, SettingEmergencyStop, "true"); err != nil {
		return fmt.Errorf("emergency stop: %w", err)
	}
	if err := c.settings.SetSetting(ctx, SettingEmergencyStopReason, reason); err != nil {
		return fmt.Errorf("emergency stop reason: %w", err)
	}
	c.logger.WarnContext(ctx, "emergency stop activated", "reason", reason)
	return nil
}

// ClearEmergencyStop lifts a previous EmergencyStop.
func (c *Controller) ClearEmergencyStop(ctx context.Context) error {
	if c.settings == nil {
		return fmt.Errorf("clear emergency stop: no settings store")
	}
	if err := c.settings.SetSetting(ctx, SettingEmergencyStop, "false"); err != nil {
		return fmt.Errorf("clear emergency stop: %w", err)
	}
	return c.settings.SetSetting(ctx, SettingEmergencyStopReason, "")
}

// SetWeek sets the ramp week number.
func (c *Controller) SetWeek(ctx context.Context, week int) error {
	if c.settings == nil {
		return fmt.Errorf("set week: no settings store")
	}
	if week < 1 {
		return fmt.Errorf("set week: week must be >= 1, got %d", week)
	}
	return c.settings.SetSetting(ctx, SettingCurrentWeek, strconv.Itoa(week))
}

func (c *Controller) week(ctx context.Context) int {
	v, ok, _ := c.setting(ctx, SettingCurrentWeek)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (c *Controller) flag(ctx context.Context, k string) bool {
	v, ok, _ := c.setting(ctx, k)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (c *Controller) setting(ctx context.Context, k string) (string, bool, error) {
	if c.settings == nil {
		return "", false, nil
	}
	v, ok, err := c.settings.Setting(ctx, k)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read setting", "key", k, "error", err)
		return "", false, err
	}
	return v, ok, nil
}

// platformHistory merges the timestamps of every action on platform.
// Caller must hold c.mu.
func (c *Controller) platformHistory(platform string) []time.Time {
	prefix := platform + "\x00"
	var out []time.Time
	for k, stamps := range c.history {
		if strings.HasPrefix(k, prefix) {
			out = append(out, stamps...)
		}
	}
	return out
}

func key(platform, action string) string { return platform + "\x00" + action }

// inWindow returns the stamps in (since, now], oldest first.
func inWindow(stamps []time.Time, since, now time.Time) []time.Time {
	var out []time.Time
	for _, t := range stamps {
		if t.After(since) && !t.After(now) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

func prune(stamps []time.Time, before time.Time) []time.Time {
	out := stamps[:0]
	for _, t := range stamps {
		if t.After(before) {
			out = append(out, t)
		}
	}
	return out
}

// IsWeekend reports whether t falls between Friday 18:00 and Monday 09:00 in t's location.
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	case time.Friday:
		return t.Hour() >= 18
	case time.Monday:
		return t.Hour() < 9
	default:
		return false
	}
}

// WeekendEnd returns the Monday 09:00 that ends the weekend containing t.
func WeekendEnd(t time.Time) time.Time {
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	if t.Weekday() == time.Monday && t.Hour() >= 9 {
		days = 7
	}
	d := t.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, t.Location())
}
