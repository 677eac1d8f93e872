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

// ListingsBaseURL is the business-listings map root.
const ListingsBaseURL = "https://www.google.com"

// DefaultSpecialty labels listings whose text names no known practice.
const DefaultSpecialty = "Alternative Healing"

const listingCard = `[data-result-index]`

// nameWords keep only listings whose business name looks like a practice.
var nameWords = []string{"healing", "wellness", "spiritual", "reiki"}

// BusinessListings searches the business-listings map for "term location".
type BusinessListings struct {
	cfg config
	gov budget.Governor
}

// NewBusinessListings returns a scraper gated by gov.
func NewBusinessListings(gov budget.Governor, opts ...Option) *BusinessListings {
	if gov == nil {
		gov = budget.AllowAll{}
	}
	return &BusinessListings{cfg: newConfig(ListingsBaseURL, opts), gov: gov}
}

// Source implements discovery.DirectoryScraper.
func (*BusinessListings) Source() profile.Source { return profile.SourceBusinessListings }

// ListingsSearchURL returns the map search page for term near location.
func ListingsSearchURL(base, term, location string) string {
	q := strings.TrimSpace(term + " " + location)
	return strings.TrimRight(base, "/") + "/maps/search/" + url.PathEscape(q)
}

// Search runs one term and location unit on page.
func (b *BusinessListings) Search(ctx context.Context, page browser.Page, term, location string) ([]*profile.Profile, error) {
	src := b.Source()
	platform := src.String()
	if dec := b.gov.CanPerform(ctx, platform, budget.ActionSearch); !dec.Allowed {
		b.cfg.logger.RateLimitHit(ctx, platform, budget.ActionSearch, dec.Reason, dec.ResetTime)
		return nil, fmt.Errorf("%w: %s", profile.ErrRateLimited, dec.Reason)
	}

	query := term + " " + location
	u := scrape.NewUnit(src, query, b.cfg.logger.Logger)
	b.cfg.logger.DiscoveryStart(ctx, src, query)
	u.To(scrape.Fetching)

	searchURL := ListingsSearchURL(b.cfg.baseURL, term, location)
	if err := page.Navigate(ctx, searchURL); err != nil {
		return nil, u.Fail(fmt.Errorf("load %s: %w", searchURL, err))
	}
	if err := page.WaitFor(ctx, listingCard, b.cfg.waitTimeout); err != nil {
		if !errors.Is(err, browser.ErrNoMatch) {
			return nil, u.Fail(err)
		}
		b.cfg.logger.InfoContext(ctx, "no listings", "query", query)
		u.Finish(0)
		b.gov.Record(ctx, platform, budget.ActionSearch)
		return nil, nil
	}
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, u.Fail(err)
	}
	if htmlutil.IsChallenge(htmlutil.Text(body)) {
		return nil, u.Fail(fmt.Errorf("bot check on %s", searchURL))
	}

	u.To(scrape.Extracting)
	listings, err := parseListingCards(body, b.cfg.maxResults)
	if err != nil {
		return nil, u.Fail(err)
	}

	if len(listings) > 0 && b.cfg.enricher != nil {
		u.To(scrape.Enriching)
	}
	var out []*profile.Profile
	enriched := 0
	for _, l := range listings {
		c := scrape.Candidate{Listing: l}
		if b.cfg.enricher != nil && l.Website != "" && enriched < b.cfg.maxEnrich {
			if enriched > 0 {
				if err := b.cfg.sleep(ctx, b.gov.RandomDelay()); err != nil {
					return nil, u.Fail(err)
				}
			}
			enriched++
			res := b.cfg.enricher.Enrich(ctx, l.Website)
			if res.Empty() {
				b.cfg.logger.DebugContext(ctx, "website yielded no contacts", "name", l.Name, "website", l.Website)
			}
			res.Fill(&c)
		}
		p, reason := b.cfg.assembler.Assemble(c)
		if p == nil {
			b.cfg.logger.DebugContext(ctx, "listing skipped", "name", l.Name, "reason", reason)
			continue
		}
		b.cfg.logger.HealerDiscovered(ctx, p)
		out = append(out, p)
	}

	u.Finish(len(out))
	b.gov.Record(ctx, platform, budget.ActionSearch)
	b.cfg.logger.DiscoveryComplete(ctx, src, len(out), time.Since(u.Started))
	return out, nil
}

func dataValue(card *goquery.Selection, field string) string {
	return htmlutil.SelectText(card, `[data-value="`+field+`"]`)
}

// parseListingCards returns up to limit practice listings from a results page.
func parseListingCards(body string, limit int) ([]profile.Listing, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	var out []profile.Listing
	doc.Find(listingCard).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		name := dataValue(card, "Business name")
		if name == "" || !extract.ContainsAny(name, nameWords...) {
			return true
		}
		l := profile.Listing{
			Source:   profile.SourceBusinessListings,
			Name:     name,
			Location: dataValue(card, "Address"),
			Phone:    dataValue(card, "Phone"),
			Rating:   dataValue(card, "Rating"),
		}
		site := htmlutil.SelectAttr(card, `[data-value="Website"]`, "href")
		if site == "" {
			site = dataValue(card, "Website")
		}
		if site != "" {
			l.Website = strings.TrimSpace(site)
		}
		if href := htmlutil.SelectAttr(card, "a[href]", "href"); strings.Contains(href, "/maps/place/") {
			l.URL = href
		}
		if len(extract.Specialties(l.Text())) == 0 {
			l.Specialties = DefaultSpecialty
		}
		out = append(out, l)
		return true
	})
	return out, nil
}
