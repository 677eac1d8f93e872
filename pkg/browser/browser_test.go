package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/go-rod/rod"
	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/healerscout/pkg/auth"
)

func TestShouldBlock(t *testing.T) {
	blockSet := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Media", false},
		{"Stylesheet", false},
		{"Document", false},
		{"XHR", true},
	}
	for _, tt := range tests {
		if got := shouldBlock(blockSet, tt.resType); got != tt.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestCookieParams(t *testing.T) {
	got := cookieParams([]auth.Cookie{{Name: "sessionid", Value: "s", Domain: ".instagram.com"}})
	if len(got) != 1 {
		t.Fatalf("cookieParams() returned %d params, want 1", len(got))
	}
	p := got[0]
	if diff := cmp.Diff([]string{"sessionid", "s", ".instagram.com", "/"}, []string{p.Name, p.Value, p.Domain, p.Path}); diff != "" {
		t.Errorf("cookieParams() mismatch (-want +got):\n%s", diff)
	}
	if !p.Secure || !p.HTTPOnly {
		t.Error("cookieParams() should mark cookies Secure and HTTPOnly")
	}
}

func TestWaitError(t *testing.T) {
	ctx := context.Background()
	if err := waitError(ctx, "x", nil); err != nil {
		t.Errorf("waitError(nil) = %v", err)
	}
	if err := waitError(ctx, "article", context.DeadlineExceeded); !errors.Is(err, ErrNoMatch) {
		t.Errorf("waitError(deadline) = %v, want ErrNoMatch", err)
	}
	if err := waitError(ctx, "article", &rod.ElementNotFoundError{}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("waitError(not found) = %v, want ErrNoMatch", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := waitError(canceled, "article", context.DeadlineExceeded); !errors.Is(err, context.Canceled) {
		t.Errorf("waitError(canceled ctx) = %v, want context.Canceled", err)
	}

	other := errors.New("cdp closed")
	if err := waitError(ctx, "article", other); !errors.Is(err, other) || errors.Is(err, ErrNoMatch) {
		t.Errorf("waitError(other) = %v, want passthrough", err)
	}
}
