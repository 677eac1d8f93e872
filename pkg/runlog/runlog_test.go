package runlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane@healing.com", "j***@healing.com"},
		{"", ""},
		{"not-an-email", ""},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHealerDiscoveredRedacts(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, nil)))
	l.HealerDiscovered(context.Background(), &profile.Profile{
		Source: profile.SourceInstagram,
		Name:   "Luna",
		Emails: []string{"luna@lunahealing.com"},
	})
	out := buf.String()
	if strings.Contains(out, "luna@lunahealing.com") {
		t.Errorf("log output leaked email: %s", out)
	}
	if !strings.Contains(out, "l***@lunahealing.com") {
		t.Errorf("log output missing redacted email: %s", out)
	}
}

func TestRateLimitHit(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, nil)))
	reset := time.Date(2025, time.June, 16, 9, 0, 0, 0, time.UTC)
	l.RateLimitHit(context.Background(), "instagram", "discovery", "weekend", reset)
	out := buf.String()
	for _, want := range []string{"level=WARN", "platform=instagram", "reset=2025-06-16T09:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestNewNil(t *testing.T) {
	if New(nil).Logger == nil {
		t.Error("New(nil) has nil logger")
	}
}
