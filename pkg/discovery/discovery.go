// Package discovery runs one discovery pass across every enabled source:
// it walks the search space, persists what the scrapers find and keeps a
// summary of the run.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/runlog"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
)

// DirectoryScraper searches a directory by term and location.
type DirectoryScraper interface {
	Source() profile.Source
	Search(ctx context.Context, page browser.Page, term, location string) ([]*profile.Profile, error)
}

// HashtagScraper searches a social network by hashtag.
type HashtagScraper interface {
	Source() profile.Source
	SearchHashtag(ctx context.Context, page browser.Page, tag string) ([]*profile.Profile, error)
}

// Store persists discovered profiles. AddHealer returns profile.ErrDuplicate
// when the profile is already stored.
type Store interface {
	AddHealer(ctx context.Context, p *profile.Profile) (int64, error)
}

// Dimension caps how much of the search space one source covers per run.
type Dimension struct {
	MaxLocations int
	MaxTerms     int // search terms, or hashtags for social sources
}

// Config is the search space of a run.
type Config struct {
	Locations   []string
	SearchTerms map[profile.Source][]string
	Hashtags    []string
	Dimensions  map[profile.Source]Dimension
	DryRun      bool
}

// Pause divisors applied to BetweenPlatformDelay after each dimension.
const (
	directoryPauseDivisor = 2
	hashtagPauseDivisor   = 3
)

// Orchestrator drives the scrapers over the search space.
type Orchestrator struct {
	cfg         Config
	opener      browser.Opener
	gov         budget.Governor
	store       Store
	social      []HashtagScraper
	directories []DirectoryScraper
	logger      *runlog.Logger
	rng         *rand.Rand
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = runlog.New(l) }
}

// WithRand sets the source used to shuffle the search space.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = r }
}

// WithSleep replaces the pause between dimensions.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = f }
}

// WithClock sets the clock used for the run duration.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithHashtagScrapers adds social sources. They run before directories.
func WithHashtagScrapers(s ...HashtagScraper) Option {
	return func(o *Orchestrator) { o.social = append(o.social, s...) }
}

// WithDirectoryScrapers adds directory sources.
func WithDirectoryScrapers(s ...DirectoryScraper) Option {
	return func(o *Orchestrator) { o.directories = append(o.directories, s...) }
}

// New returns an Orchestrator. store may be nil only in dry-run mode.
func New(cfg Config, opener browser.Opener, gov budget.Governor, store Store, opts ...Option) *Orchestrator {
	if gov == nil {
		gov = budget.AllowAll{}
	}
	o := &Orchestrator{
		cfg:    cfg,
		opener: opener,
		gov:    gov,
		store:  store,
		logger: runlog.New(nil),
		sleep:  scrape.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // shuffling, not security
	}
	return o
}

// Run performs one discovery pass. The returned Summary is non-nil even when
// an error is returned; the error is either a session failure or the
// context's error.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()
	sum := newSummary(o.cfg.DryRun)
	defer func() { sum.Duration = o.now().Sub(start) }()

	if o.cfg.DryRun {
		o.logger.InfoContext(ctx, "dry run: nothing will be saved")
	}
	if len(o.social) == 0 && len(o.directories) == 0 {
		o.logger.WarnContext(ctx, "no sources enabled")
		return sum, nil
	}

	page, err := o.opener.NewPage(ctx)
	if err != nil {
		if !errors.Is(err, profile.ErrSessionFailed) {
			err = fmt.Errorf("%w: %w", profile.ErrSessionFailed, err)
		}
		return sum, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			o.logger.DebugContext(ctx, "close page", "error", err)
		}
	}()

	for _, s := range o.social {
		if err := o.runHashtags(ctx, page, s, sum); err != nil {
			return sum, err
		}
	}
	for _, s := range o.directories {
		if err := o.runDirectory(ctx, page, s, sum); err != nil {
			return sum, err
		}
	}

	o.logger.InfoContext(ctx, "discovery pass complete",
		"total", sum.Total, "saved", sum.Saved, "duplicates", sum.Duplicates,
		"rate_limit_hits", sum.RateLimitHits, "duration", o.now().Sub(start).Round(time.Second))
	return sum, nil
}

func (o *Orchestrator) runHashtags(ctx context.Context, page browser.Page, s HashtagScraper, sum *Summary) error {
	src := s.Source()
	tags := capped(o.shuffled(o.cfg.Hashtags), o.cfg.Dimensions[src].MaxTerms)
	for _, tag := range tags {
		stop, err := o.dimension(ctx, src, hashtagPauseDivisor, sum, func() ([]*profile.Profile, error) {
			return s.SearchHashtag(ctx, page, tag)
		})
		if err != nil || stop {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runDirectory(ctx context.Context, page browser.Page, s DirectoryScraper, sum *Summary) error {
	src := s.Source()
	dim := o.cfg.Dimensions[src]
	locations := capped(o.shuffled(o.cfg.Locations), dim.MaxLocations)
	terms := capped(o.shuffled(o.cfg.SearchTerms[src]), dim.MaxTerms)
	for _, loc := range locations {
		for _, term := range terms {
			stop, err := o.dimension(ctx, src, directoryPauseDivisor, sum, func() ([]*profile.Profile, error) {
				return s.Search(ctx, page, term, loc)
			})
			if err != nil || stop {
				return err
			}
		}
	}
	return nil
}

// dimension runs one unit of work for src. stop reports that the platform's
// discovery budget is spent; err is fatal to the whole run.
func (o *Orchestrator) dimension(ctx context.Context, src profile.Source, divisor time.Duration, sum *Summary,
	search func() ([]*profile.Profile, error),
) (stop bool, err error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}
	platform := src.String()
	if dec := o.gov.CanPerform(ctx, platform, budget.ActionDiscovery); !dec.Allowed {
		o.logger.RateLimitHit(ctx, platform, budget.ActionDiscovery, dec.Reason, dec.ResetTime)
		sum.RateLimitHits++
		return true, nil
	}

	found, err := search()
	switch {
	case errors.Is(err, profile.ErrSessionFailed):
		return true, err
	case ctx.Err() != nil:
		return true, ctx.Err()
	case errors.Is(err, profile.ErrRateLimited):
		sum.RateLimitHits++
		return false, nil
	case errors.Is(err, profile.ErrNoResults):
		o.logger.DebugContext(ctx, "search unit empty", "source", src, "error", err)
	case err != nil:
		o.logger.WarnContext(ctx, "search unit failed", "source", src, "error", err)
		sum.FailedUnits++
		return false, nil
	}

	o.persist(ctx, found, sum)
	o.gov.Record(ctx, platform, budget.ActionDiscovery)
	if err := o.sleep(ctx, o.gov.BetweenPlatformDelay()/divisor); err != nil {
		return true, err
	}
	return false, nil
}

func (o *Orchestrator) persist(ctx context.Context, found []*profile.Profile, sum *Summary) {
	for _, p := range found {
		sum.add(p)
		if o.cfg.DryRun || o.store == nil {
			continue
		}
		_, err := o.store.AddHealer(ctx, p)
		switch {
		case errors.Is(err, profile.ErrDuplicate):
			o.logger.DebugContext(ctx, "already stored", "source", p.Source, "name", p.Name)
			sum.Duplicates++
		case err != nil:
			o.logger.ErrorContext(ctx, "save healer", "source", p.Source, "name", p.Name, "error", err)
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("save %s (%s): %v", p.Name, p.Source, err))
		default:
			sum.Saved++
		}
	}
}

func (o *Orchestrator) shuffled(in []string) []string {
	out := slices.Clone(in)
	o.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func capped(in []string, n int) []string {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}
