// Package runlog adds discovery-specific events on top of slog.
package runlog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// Logger is a slog.Logger with named discovery events.
type Logger struct {
	*slog.Logger
}

// New wraps l; a nil l uses slog.Default().
func New(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l}
}

// DiscoveryStart marks the start of one search unit.
func (l *Logger) DiscoveryStart(ctx context.Context, source profile.Source, query string) {
	l.InfoContext(ctx, "discovery started", "source", source, "query", query)
}

// DiscoveryComplete marks the end of one search unit.
func (l *Logger) DiscoveryComplete(ctx context.Context, source profile.Source, found int, took time.Duration) {
	l.InfoContext(ctx, "discovery complete", "source", source, "found", found, "duration", took.Round(time.Millisecond))
}

// RateLimitHit records a budget denial.
func (l *Logger) RateLimitHit(ctx context.Context, platform, action, reason string, reset time.Time) {
	attrs := []any{"platform", platform, "action", action, "reason", reason}
	if !reset.IsZero() {
		attrs = append(attrs, "reset", reset.Format(time.RFC3339))
	}
	l.WarnContext(ctx, "rate limit hit", attrs...)
}

// HealerDiscovered records an admitted profile. Email addresses are redacted.
func (l *Logger) HealerDiscovered(ctx context.Context, p *profile.Profile) {
	l.InfoContext(ctx, "healer discovered",
		"source", p.Source,
		"name", p.Name,
		"email", RedactEmail(p.PrimaryEmail()),
		"phones", len(p.Phones),
		"confidence", p.Confidence)
}

// RedactEmail keeps the first character of the mailbox and the domain.
func RedactEmail(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return ""
	}
	return local[:1] + "***@" + domain
}
