// Package website pulls contact details from a practitioner's own site.
package website

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/extract"
	"github.com/codeGROOVE-dev/healerscout/pkg/htmlutil"
	"github.com/codeGROOVE-dev/healerscout/pkg/httpcache"
	"github.com/codeGROOVE-dev/healerscout/pkg/linktree"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
)

// Fetcher retrieves a page. *httpcache.Fetcher satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*httpcache.Page, error)
}

// Result is what a site visit yielded.
type Result struct {
	Emails  []string
	Phones  []string
	Socials []string
	Pages   []string // URLs actually fetched
}

// Fill adds the result's contacts and social links to c.
func (r Result) Fill(c *scrape.Candidate) {
	c.ExtraEmails = append(c.ExtraEmails, r.Emails...)
	c.ExtraPhones = append(c.ExtraPhones, r.Phones...)
	c.ExtraSocials = append(c.ExtraSocials, r.Socials...)
}

// Empty reports whether nothing useful was found.
func (r Result) Empty() bool { return len(r.Emails) == 0 && len(r.Phones) == 0 }

// Enricher visits websites under a budget.
type Enricher struct {
	fetch     Fetcher
	gov       budget.Governor
	logger    *slog.Logger
	blocklist extract.Blocklist
	maxEmails int
	maxPhones int
	maxPages  int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithGovernor gates every page fetch on (website, scraping).
func WithGovernor(g budget.Governor) Option {
	return func(e *Enricher) { e.gov = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enricher) { e.logger = l }
}

// WithLimits caps the contacts kept and pages fetched per site.
func WithLimits(emails, phones, pages int) Option {
	return func(e *Enricher) {
		e.maxEmails, e.maxPhones, e.maxPages = emails, phones, pages
	}
}

// New returns an Enricher. Without WithGovernor every fetch is allowed.
func New(f Fetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetch:     f,
		gov:       budget.AllowAll{},
		logger:    slog.Default(),
		blocklist: extract.DefaultBlocklist,
		maxEmails: 5,
		maxPhones: 3,
		maxPages:  2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// skipHosts are sites that are never a practitioner's own website.
var skipHosts = []string{
	"instagram.com", "facebook.com", "tiktok.com", "youtube.com", "twitter.com", "x.com",
	"linktr.ee", "psychologytoday.com", "google.com", "goo.gl", "yelp.com",
}

// Normalize turns a scraped website value into an absolute http(s) URL, or
// "" if it is not one worth visiting.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Host, ".") {
		return ""
	}
	host := htmlutil.Host(raw)
	for _, h := range skipHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return ""
		}
	}
	return u.String()
}

// Enrich fetches the site and, if contacts are still short, its first
// same-host contact or about page. A link-in-bio page is read first and
// replaced by the site it lists. Failures yield an empty Result.
func (e *Enricher) Enrich(ctx context.Context, rawURL string) Result {
	var res Result
	if linktree.Match(rawURL) {
		rawURL = e.followLinkPage(ctx, rawURL, &res)
	}
	start := Normalize(rawURL)
	if start == "" {
		return res
	}

	queue := []string{start}
	seen := map[string]bool{}
	fetched := 0
	for len(queue) > 0 && fetched < e.maxPages {
		target := queue[0]
		queue = queue[1:]
		if seen[target] {
			continue
		}
		seen[target] = true

		d := e.gov.CanPerform(ctx, budget.PlatformWebsite, budget.ActionScraping)
		if !d.Allowed {
			e.logger.DebugContext(ctx, "website budget exhausted", "url", target, "reason", d.Reason)
			break
		}
		page, err := e.fetch.Get(ctx, target)
		if err != nil {
			e.logger.DebugContext(ctx, "website fetch failed", "url", target, "error", err)
			break
		}
		e.record(ctx, page)
		res.Pages = append(res.Pages, page.URL)
		fetched++

		doc, err := htmlutil.Parse(page.HTML)
		if err != nil {
			break
		}
		visible := htmlutil.Text(page.HTML)
		if htmlutil.IsNotFound(visible) {
			e.logger.DebugContext(ctx, "website page not found", "url", page.URL)
			break
		}
		text := visible + " " + strings.Join(htmlutil.MailtoAddresses(doc), " ")
		res.Emails = appendCapped(res.Emails, extract.EmailsWithBlocklist(text, e.blocklist), e.maxEmails)
		res.Phones = appendCapped(res.Phones, extract.Phones(text), e.maxPhones)
		res.Socials = appendCapped(res.Socials, htmlutil.SocialLinks(doc), 10)

		if len(res.Emails) >= e.maxEmails && len(res.Phones) >= e.maxPhones {
			break
		}
		if links := htmlutil.ContactLinks(doc, page.URL); len(links) > 0 && len(queue) == 0 {
			queue = append(queue, links[0])
		}
	}
	return res
}

// followLinkPage reads a link-in-bio page into res and returns the site it
// points at, or "".
func (e *Enricher) followLinkPage(ctx context.Context, rawURL string, res *Result) string {
	d := e.gov.CanPerform(ctx, budget.PlatformWebsite, budget.ActionScraping)
	if !d.Allowed {
		e.logger.DebugContext(ctx, "website budget exhausted", "url", rawURL, "reason", d.Reason)
		return ""
	}
	page, err := e.fetch.Get(ctx, rawURL)
	if err != nil {
		e.logger.DebugContext(ctx, "link page fetch failed", "url", rawURL, "error", err)
		return ""
	}
	e.record(ctx, page)
	res.Pages = append(res.Pages, page.URL)

	lp, err := linktree.Parse(page.HTML)
	if err != nil {
		return ""
	}
	text := lp.Bio + " " + strings.Join(lp.Emails, " ")
	res.Emails = appendCapped(res.Emails, extract.EmailsWithBlocklist(text, e.blocklist), e.maxEmails)
	res.Phones = appendCapped(res.Phones, extract.Phones(lp.Bio), e.maxPhones)
	site := lp.Site()
	e.logger.DebugContext(ctx, "link page resolved", "url", rawURL, "site", site, "emails", len(lp.Emails))
	return site
}

// record charges one website action per document the fetch pulled.
func (e *Enricher) record(ctx context.Context, page *httpcache.Page) {
	for range max(page.Hops, 1) {
		e.gov.Record(ctx, budget.PlatformWebsite, budget.ActionScraping)
	}
}

// appendCapped appends new values not already in dst, by PhoneKey for phones
// and exact match otherwise, until dst holds limit entries.
func appendCapped(dst, src []string, limit int) []string {
	for _, v := range src {
		if len(dst) >= limit {
			break
		}
		dup := false
		for _, have := range dst {
			if have == v || samePhone(have, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func samePhone(a, b string) bool {
	k := profile.PhoneKey(a)
	return len(k) >= 10 && k == profile.PhoneKey(b)
}
