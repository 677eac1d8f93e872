package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/htmlutil"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
)

// TherapistBaseURL is the therapist directory root.
const TherapistBaseURL = "https://www.psychologytoday.com"

const (
	therapistCard        = `[data-testid="therapist-card"]`
	therapistName        = `h2 a, .therapist-name a, [data-testid="therapist-name"]`
	therapistLocation    = `.therapist-location, [data-testid="therapist-location"]`
	therapistSpecialties = `.therapist-specialties, .specialties`
	therapistBio         = `.therapist-bio, .bio-preview`

	detailBio         = `.therapist-bio, .bio-content, [data-testid="bio-content"]`
	detailPhone       = `.therapist-phone, [data-testid="phone"]`
	detailWebsite     = `.therapist-website a, [data-testid="website"] a`
	detailExperience  = `.years-experience`
	detailCredentials = `.credentials`
)

// relevanceWords pre-filter cards before any detail page is visited.
var relevanceWords = []string{"spiritual", "holistic", "energy", "mindfulness"}

// TherapistDirectory searches the therapist directory by specialty term and
// location slug.
type TherapistDirectory struct {
	cfg config
	gov budget.Governor
}

// NewTherapistDirectory returns a scraper gated by gov.
func NewTherapistDirectory(gov budget.Governor, opts ...Option) *TherapistDirectory {
	if gov == nil {
		gov = budget.AllowAll{}
	}
	return &TherapistDirectory{cfg: newConfig(TherapistBaseURL, opts), gov: gov}
}

// Source implements discovery.DirectoryScraper.
func (*TherapistDirectory) Source() profile.Source { return profile.SourceTherapistDirectory }

// TherapistSearchURL returns the directory search page for term in location.
func TherapistSearchURL(base, term, location string) string {
	return fmt.Sprintf("%s/us/therapists/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(term), url.PathEscape(location))
}

// Search runs one term and location unit on page.
func (d *TherapistDirectory) Search(ctx context.Context, page browser.Page, term, location string) ([]*profile.Profile, error) {
	src := d.Source()
	platform := src.String()
	if dec := d.gov.CanPerform(ctx, platform, budget.ActionSearch); !dec.Allowed {
		d.cfg.logger.RateLimitHit(ctx, platform, budget.ActionSearch, dec.Reason, dec.ResetTime)
		return nil, fmt.Errorf("%w: %s", profile.ErrRateLimited, dec.Reason)
	}

	query := term + " in " + location
	u := scrape.NewUnit(src, query, d.cfg.logger.Logger)
	d.cfg.logger.DiscoveryStart(ctx, src, query)
	u.To(scrape.Fetching)

	searchURL := TherapistSearchURL(d.cfg.baseURL, term, location)
	if err := page.Navigate(ctx, searchURL); err != nil {
		return nil, u.Fail(fmt.Errorf("load %s: %w", searchURL, err))
	}
	if err := page.WaitFor(ctx, therapistCard, d.cfg.waitTimeout); err != nil {
		if !errors.Is(err, browser.ErrNoMatch) {
			return nil, u.Fail(err)
		}
		d.cfg.logger.InfoContext(ctx, "no therapist cards", "term", term, "location", location)
		u.Finish(0)
		d.gov.Record(ctx, platform, budget.ActionSearch)
		return nil, nil
	}
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, u.Fail(err)
	}

	u.To(scrape.Extracting)
	listings, err := parseTherapistCards(body, d.cfg.baseURL, d.cfg.maxResults)
	if err != nil {
		return nil, u.Fail(err)
	}

	if len(listings) > 0 {
		u.To(scrape.Enriching)
	}
	var out []*profile.Profile
	enriched := 0
	for _, l := range listings {
		var p *profile.Profile
		if enriched < d.cfg.maxEnrich && l.URL != "" {
			if enriched > 0 {
				if err := d.cfg.sleep(ctx, d.gov.RandomDelay()); err != nil {
					return nil, u.Fail(err)
				}
			}
			enriched++
			p = d.enrich(ctx, page, l)
		} else {
			p = d.cfg.assembler.Basic(l)
		}
		if p == nil {
			continue
		}
		d.cfg.logger.HealerDiscovered(ctx, p)
		out = append(out, p)
	}

	u.Finish(len(out))
	d.gov.Record(ctx, platform, budget.ActionSearch)
	d.cfg.logger.DiscoveryComplete(ctx, src, len(out), time.Since(u.Started))
	return out, nil
}

// enrich visits a listing's detail page. Any failure falls back to the
// basic profile built from the card.
func (d *TherapistDirectory) enrich(ctx context.Context, page browser.Page, l profile.Listing) *profile.Profile {
	platform := d.Source().String()
	if dec := d.gov.CanPerform(ctx, platform, budget.ActionProfileEnrichment); !dec.Allowed {
		d.cfg.logger.RateLimitHit(ctx, platform, budget.ActionProfileEnrichment, dec.Reason, dec.ResetTime)
		return d.cfg.assembler.Basic(l)
	}
	if err := page.Navigate(ctx, l.URL); err != nil {
		d.cfg.logger.DebugContext(ctx, "detail page failed", "url", l.URL, "error", err)
		return d.cfg.assembler.Basic(l)
	}
	body, err := page.HTML(ctx)
	if err != nil {
		d.cfg.logger.DebugContext(ctx, "detail page unreadable", "url", l.URL, "error", err)
		return d.cfg.assembler.Basic(l)
	}
	det, err := parseTherapistDetail(body)
	if err != nil {
		return d.cfg.assembler.Basic(l)
	}
	d.gov.Record(ctx, platform, budget.ActionProfileEnrichment)
	return d.cfg.assembler.Enriched(l, det)
}

// parseTherapistCards returns up to limit relevant listings from a results page.
func parseTherapistCards(body, base string, limit int) ([]profile.Listing, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	var out []profile.Listing
	doc.Find(therapistCard).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		l := profile.Listing{
			Source:      profile.SourceTherapistDirectory,
			Name:        htmlutil.SelectText(card, therapistName),
			Location:    htmlutil.SelectText(card, therapistLocation),
			Specialties: htmlutil.SelectText(card, therapistSpecialties),
			Summary:     htmlutil.SelectText(card, therapistBio),
		}
		if href := htmlutil.SelectAttr(card, therapistName, "href"); href != "" {
			l.URL = htmlutil.Resolve(href, base)
		}
		if l.Name == "" {
			return true
		}
		if !extract.ContainsAny(l.Summary+" "+l.Specialties, relevanceWords...) {
			return true
		}
		out = append(out, l)
		return true
	})
	return out, nil
}

// parseTherapistDetail reads the fields of a therapist's detail page.
func parseTherapistDetail(body string) (profile.Detail, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return profile.Detail{}, fmt.Errorf("parse detail: %w", err)
	}
	sel := doc.Selection
	return profile.Detail{
		Bio:         htmlutil.SelectText(sel, detailBio),
		Phone:       htmlutil.SelectText(sel, detailPhone),
		Website:     htmlutil.SelectAttr(sel, detailWebsite, "href"),
		Experience:  htmlutil.SelectText(sel, detailExperience),
		Credentials: htmlutil.SelectText(sel, detailCredentials),
		Text:        htmlutil.Text(body),
	}, nil
}
