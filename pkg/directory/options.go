// Package directory scrapes the therapist directory and the business-listings
// map for practitioners.
package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/runlog"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
	"github.com/codeGROOVE-dev/healerscout/pkg/website"
)

type config struct {
	logger      *runlog.Logger
	assembler   *scrape.Assembler
	enricher    *website.Enricher
	baseURL     string
	maxResults  int
	maxEnrich   int
	waitTimeout time.Duration
	sleep       func(context.Context, time.Duration) error
}

// Option configures a scraper.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = runlog.New(l) }
}

// WithAssembler sets the profile assembler.
func WithAssembler(a *scrape.Assembler) Option {
	return func(c *config) { c.assembler = a }
}

// WithWebsiteEnricher enables contact enrichment from listed websites.
func WithWebsiteEnricher(e *website.Enricher) Option {
	return func(c *config) { c.enricher = e }
}

// WithBaseURL overrides the site root, for tests and mirrors.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithMaxResults caps the result cards parsed per search.
func WithMaxResults(n int) Option {
	return func(c *config) { c.maxResults = n }
}

// WithMaxEnrich caps detail or website visits per search.
func WithMaxEnrich(n int) Option {
	return func(c *config) { c.maxEnrich = n }
}

// WithWaitTimeout sets how long to wait for result cards.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *config) { c.waitTimeout = d }
}

// WithSleep replaces the pause between enrichments.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(c *config) { c.sleep = f }
}

func newConfig(baseURL string, opts []Option) config {
	c := config{
		logger:      runlog.New(nil),
		baseURL:     baseURL,
		maxResults:  20,
		maxEnrich:   3,
		waitTimeout: 10 * time.Second,
		sleep:       scrape.Sleep,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.assembler == nil {
		c.assembler = scrape.NewAssembler(scrape.WithAssemblerLogger(c.logger.Logger))
	}
	return c
}
