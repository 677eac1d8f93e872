// Package scrape holds the pieces every platform scraper shares: the unit
// lifecycle, profile assembly and cancellable sleeps.
package scrape

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// State is a unit's lifecycle stage.
type State int

// Unit states.
const (
	Pending State = iota
	Fetching
	Extracting
	Enriching
	Accepted
	Rejected
	Failed
)

var stateNames = [...]string{"pending", "fetching", "extracting", "enriching", "accepted", "rejected", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Accepted || s == Rejected || s == Failed }

var transitions = map[State][]State{
	Pending:    {Fetching, Failed},
	Fetching:   {Extracting, Accepted, Rejected, Failed},
	Extracting: {Enriching, Accepted, Rejected, Failed},
	Enriching:  {Accepted, Rejected, Failed},
}

// Unit tracks one search unit (a term and location, or a hashtag).
type Unit struct {
	Source  profile.Source
	Query   string
	Started time.Time

	state  State
	err    error
	logger *slog.Logger
	found  int
}

// NewUnit returns a Pending unit.
func NewUnit(src profile.Source, query string, logger *slog.Logger) *Unit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unit{Source: src, Query: query, Started: time.Now(), logger: logger}
}

// State returns the current state.
func (u *Unit) State() State { return u.state }

// Err returns the failure cause of a Failed unit.
func (u *Unit) Err() error { return u.err }

// Found returns how many profiles the unit produced.
func (u *Unit) Found() int { return u.found }

// To moves the unit to next. Illegal transitions are logged and ignored.
func (u *Unit) To(next State) bool {
	if !slices.Contains(transitions[u.state], next) {
		u.logger.Warn("ignoring illegal unit transition",
			"source", u.Source, "query", u.Query, "from", u.state, "to", next)
		return false
	}
	u.state = next
	return true
}

// Fail moves the unit to Failed and remembers err.
func (u *Unit) Fail(err error) error {
	if u.To(Failed) {
		u.err = err
	}
	return err
}

// Finish moves the unit to Accepted when it produced profiles and Rejected
// otherwise.
func (u *Unit) Finish(found int) {
	u.found = found
	if found > 0 {
		u.To(Accepted)
		return
	}
	u.To(Rejected)
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
