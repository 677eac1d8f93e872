// Package instagram discovers practitioners through hashtag pages on the
// photo-sharing network.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/runlog"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
	"github.com/codeGROOVE-dev/healerscout/pkg/website"
)

const platform = "instagram"

// BaseURL is the site root.
const BaseURL = "https://www.instagram.com"

// ErrLoginRequired is returned when the site redirects to its login wall.
var ErrLoginRequired = errors.New("instagram login required")

// Scraper visits hashtag pages and the profiles posting under them.
type Scraper struct {
	gov         budget.Governor
	logger      *runlog.Logger
	assembler   *scrape.Assembler
	enricher    *website.Enricher
	baseURL     string
	scanLimit   int
	maxProfiles int
	waitTimeout time.Duration
	sleep       func(context.Context, time.Duration) error
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) { s.logger = runlog.New(logger) }
}

// WithAssembler sets the profile assembler.
func WithAssembler(a *scrape.Assembler) Option {
	return func(s *Scraper) { s.assembler = a }
}

// WithWebsiteEnricher enables contact enrichment from profile websites.
func WithWebsiteEnricher(e *website.Enricher) Option {
	return func(s *Scraper) { s.enricher = e }
}

// WithBaseURL overrides the site root.
func WithBaseURL(u string) Option {
	return func(s *Scraper) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithScanLimit caps how many post links a hashtag page contributes.
func WithScanLimit(n int) Option {
	return func(s *Scraper) { s.scanLimit = n }
}

// WithMaxProfiles caps profile visits per hashtag.
func WithMaxProfiles(n int) Option {
	return func(s *Scraper) { s.maxProfiles = n }
}

// WithWaitTimeout sets how long to wait for page content.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.waitTimeout = d }
}

// WithSleep replaces the pause between profile visits.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(s *Scraper) { s.sleep = f }
}

// New returns a Scraper gated by gov.
func New(gov budget.Governor, opts ...Option) *Scraper {
	if gov == nil {
		gov = budget.AllowAll{}
	}
	s := &Scraper{
		gov:         gov,
		logger:      runlog.New(nil),
		baseURL:     BaseURL,
		scanLimit:   20,
		maxProfiles: 3,
		waitTimeout: 10 * time.Second,
		sleep:       scrape.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assembler == nil {
		s.assembler = scrape.NewAssembler(scrape.WithAssemblerLogger(s.logger.Logger))
	}
	return s
}

// Source implements discovery.HashtagScraper.
func (*Scraper) Source() profile.Source { return profile.SourceInstagram }

// HashtagURL returns the explore page for tag.
func HashtagURL(base, tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	return fmt.Sprintf("%s/explore/tags/%s/", strings.TrimRight(base, "/"), url.PathEscape(tag))
}

// SearchHashtag runs one hashtag unit on page.
func (s *Scraper) SearchHashtag(ctx context.Context, page browser.Page, tag string) ([]*profile.Profile, error) {
	src := s.Source()
	if dec := s.gov.CanPerform(ctx, platform, budget.ActionHashtagSearch); !dec.Allowed {
		s.logger.RateLimitHit(ctx, platform, budget.ActionHashtagSearch, dec.Reason, dec.ResetTime)
		return nil, fmt.Errorf("%w: %s", profile.ErrRateLimited, dec.Reason)
	}

	u := scrape.NewUnit(src, "#"+tag, s.logger.Logger)
	s.logger.DiscoveryStart(ctx, src, "#"+tag)
	u.To(scrape.Fetching)

	tagURL := HashtagURL(s.baseURL, tag)
	if err := page.Navigate(ctx, tagURL); err != nil {
		return nil, u.Fail(fmt.Errorf("load %s: %w", tagURL, err))
	}
	if loginWall(page.URL()) {
		return nil, u.Fail(ErrLoginRequired)
	}
	if err := page.WaitFor(ctx, "article", s.waitTimeout); err != nil {
		if !errors.Is(err, browser.ErrNoMatch) {
			return nil, u.Fail(err)
		}
		s.logger.InfoContext(ctx, "no posts for hashtag", "hashtag", tag)
		u.Finish(0)
		s.gov.Record(ctx, platform, budget.ActionHashtagSearch)
		return nil, fmt.Errorf("%w: #%s", profile.ErrNoResults, tag)
	}
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, u.Fail(err)
	}

	u.To(scrape.Extracting)
	links, err := ProfileLinks(body, s.baseURL, s.scanLimit)
	if err != nil {
		return nil, u.Fail(err)
	}
	s.logger.InfoContext(ctx, "found profile links", "hashtag", tag, "count", len(links))

	if len(links) > s.maxProfiles {
		links = links[:s.maxProfiles]
	}
	if len(links) > 0 {
		u.To(scrape.Enriching)
	}

	var out []*profile.Profile
	for i, link := range links {
		if dec := s.gov.CanPerform(ctx, platform, budget.ActionProfileExtraction); !dec.Allowed {
			s.logger.RateLimitHit(ctx, platform, budget.ActionProfileExtraction, dec.Reason, dec.ResetTime)
			break
		}
		if i > 0 {
			if err := s.sleep(ctx, s.gov.RandomDelay()); err != nil {
				return nil, u.Fail(err)
			}
		}
		p, err := s.visit(ctx, page, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, u.Fail(ctx.Err())
			}
			s.logger.WarnContext(ctx, "profile visit failed", "url", link, "error", err)
			continue
		}
		if p == nil {
			continue
		}
		s.logger.HealerDiscovered(ctx, p)
		out = append(out, p)
	}

	u.Finish(len(out))
	s.gov.Record(ctx, platform, budget.ActionHashtagSearch)
	s.logger.DiscoveryComplete(ctx, src, len(out), time.Since(u.Started))
	return out, nil
}

// visit loads one profile and assembles it. A nil profile with a nil error
// means the profile was read but did not qualify.
func (s *Scraper) visit(ctx context.Context, page browser.Page, link string) (*profile.Profile, error) {
	if err := page.Navigate(ctx, link); err != nil {
		return nil, err
	}
	if loginWall(page.URL()) {
		return nil, ErrLoginRequired
	}
	if err := page.WaitFor(ctx, "header", s.waitTimeout); err != nil {
		return nil, err
	}
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	s.gov.Record(ctx, platform, budget.ActionProfileExtraction)

	acct, err := ParseProfile(body)
	if err != nil {
		return nil, err
	}
	if acct.Name == "" {
		s.logger.DebugContext(ctx, "profile has no name", "url", link)
		return nil, nil //nolint:nilnil // unnamed profiles are skipped, not failures
	}

	c := scrape.Candidate{
		Listing: profile.Listing{
			Source:  profile.SourceInstagram,
			Name:    acct.Name,
			URL:     link,
			Summary: acct.Bio,
			Website: acct.Website,
		},
		Followers: acct.Followers,
		Posts:     acct.Posts,
	}
	if s.enricher != nil && acct.Website != "" {
		res := s.enricher.Enrich(ctx, acct.Website)
		if res.Empty() {
			s.logger.DebugContext(ctx, "website yielded no contacts", "url", link, "website", acct.Website)
		}
		res.Fill(&c)
	}
	p, reason := s.assembler.Assemble(c)
	if p == nil {
		s.logger.DebugContext(ctx, "profile not qualified", "url", link, "reason", reason)
		return nil, nil //nolint:nilnil // rejection is reported through the log
	}
	return p, nil
}

func loginWall(current string) bool {
	return strings.Contains(current, "/accounts/login")
}
