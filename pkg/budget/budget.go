// Package budget governs how often each platform may be touched.
//
// A Governor answers "may I do this now?" without side effects and is told
// separately, after the work succeeded, that the action happened. Keeping
// the two calls apart means a failed unit never consumes budget.
package budget

import (
	"context"
	"time"
)

// Action names used across discovery.
const (
	ActionDiscovery         = "discovery"
	ActionSearch            = "search"
	ActionProfileEnrichment = "profile_enrichment"
	ActionHashtagSearch     = "hashtag_search"
	ActionProfileExtraction = "profile_extraction"
	ActionScraping          = "scraping"

	// AnyAction keys limits that count every action on a platform.
	AnyAction = "*"
)

// PlatformWebsite is the pseudo-platform for practitioners' own websites.
const PlatformWebsite = "website"

// Decision is the answer to a permission check.
type Decision struct {
	Allowed   bool
	Reason    string    // set when denied
	ResetTime time.Time // earliest time the denial may lift; zero if unknown
}

// Governor decides whether platform actions may proceed.
type Governor interface {
	// CanPerform reports whether action on platform is currently allowed.
	// It never consumes budget.
	CanPerform(ctx context.Context, platform, action string) Decision
	// Record notes that action on platform was performed once.
	Record(ctx context.Context, platform, action string)
	// RandomDelay returns a jittered pause for use between units.
	RandomDelay() time.Duration
	// BetweenPlatformDelay returns the longer pause used between dimensions.
	BetweenPlatformDelay() time.Duration
}

// AllowAll is a Governor that permits everything and never waits.
type AllowAll struct{}

func (AllowAll) CanPerform(context.Context, string, string) Decision { return Decision{Allowed: true} }
func (AllowAll) Record(context.Context, string, string)              {}
func (AllowAll) RandomDelay() time.Duration                          { return 0 }
func (AllowAll) BetweenPlatformDelay() time.Duration                 { return 0 }

// DenyAll is a Governor that refuses everything.
type DenyAll struct {
	Reason string
}

func (d DenyAll) CanPerform(context.Context, string, string) Decision {
	reason := d.Reason
	if reason == "" {
		reason = "denied"
	}
	return Decision{Reason: reason}
}
func (DenyAll) Record(context.Context, string, string) {}
func (DenyAll) RandomDelay() time.Duration             { return 0 }
func (DenyAll) BetweenPlatformDelay() time.Duration    { return 0 }

// Action is one recorded platform action.
type Action struct {
	Platform string
	Action   string
	At       time.Time
}

// ActionLog persists recorded actions so budgets survive restarts.
type ActionLog interface {
	LoadActions(ctx context.Context, since time.Time) ([]Action, error)
	AppendAction(ctx context.Context, a Action) error
}

// Settings stores operator-controlled switches.
type Settings interface {
	// Setting returns the value for key and whether it was set.
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Setting keys.
const (
	SettingCurrentWeek         = "current_week"
	SettingWeekendMode         = "weekend_mode"
	SettingEmergencyStop       = "emergency_stop"
	SettingEmergencyStopReason = "emergency_stop_reason"
)
