package browsertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
)

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := New(map[string]string{"https://a.test/": `<article><a href="/p/1">x</a></article>`})
	boom := errors.New("boom")
	f.NavErrors["https://b.test/"] = boom

	p, err := f.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage() failed: %v", err)
	}
	if err := p.Navigate(ctx, "https://a.test/"); err != nil {
		t.Fatalf("Navigate() failed: %v", err)
	}
	if err := p.WaitFor(ctx, "article a", time.Second); err != nil {
		t.Errorf("WaitFor(article a) = %v", err)
	}
	if err := p.WaitFor(ctx, "h1", time.Second); !errors.Is(err, browser.ErrNoMatch) {
		t.Errorf("WaitFor(h1) = %v, want ErrNoMatch", err)
	}
	if err := p.Navigate(ctx, "https://b.test/"); !errors.Is(err, boom) {
		t.Errorf("Navigate(b) = %v, want boom", err)
	}
	if p.URL() != "https://a.test/" {
		t.Errorf("URL() = %q after failed navigation", p.URL())
	}
	if f.Open() != 1 {
		t.Errorf("Open() = %d, want 1", f.Open())
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if f.Open() != 0 {
		t.Errorf("Open() = %d after double close, want 0", f.Open())
	}
	if got := f.Visited(); len(got) != 2 {
		t.Errorf("Visited() = %v, want 2 entries", got)
	}
}
