// Package browsertest provides an in-memory browser for scraper tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
)

// Fake serves canned HTML keyed by URL.
type Fake struct {
	// Pages maps a URL to the HTML served for it. Unknown URLs serve an empty document.
	Pages map[string]string
	// NavErrors maps a URL to the error Navigate returns for it.
	NavErrors map[string]error
	// OpenErr, when set, fails every NewPage call.
	OpenErr error

	mu      sync.Mutex
	visited []string
	open    int
}

// New returns a Fake serving pages.
func New(pages map[string]string) *Fake {
	return &Fake{Pages: pages, NavErrors: map[string]error{}}
}

// NewPage implements browser.Opener.
func (f *Fake) NewPage(context.Context) (browser.Page, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.mu.Lock()
	f.open++
	f.mu.Unlock()
	return &page{fake: f}, nil
}

// Visited returns every URL navigated to, in order.
func (f *Fake) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

// Open returns how many pages are open.
func (f *Fake) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

type page struct {
	fake   *Fake
	url    string
	html   string
	closed bool
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.fake.mu.Lock()
	p.fake.visited = append(p.fake.visited, url)
	err := p.fake.NavErrors[url]
	html, ok := p.fake.Pages[url]
	p.fake.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		html = "<html><body></body></html>"
	}
	p.url, p.html = url, html
	return nil
}

func (p *page) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNoMatch, selector)
	}
	return nil
}

func (p *page) HTML(context.Context) (string, error) { return p.html, nil }

func (p *page) URL() string { return p.url }

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.fake.mu.Lock()
	p.fake.open--
	p.fake.mu.Unlock()
	return nil
}
