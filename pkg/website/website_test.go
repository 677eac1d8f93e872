package website

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/httpcache"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
)

func newSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
<h1>Moon Lotus Reiki</h1>
<p>Call (928) 555-0142 to book.</p>
<a href="/contact">Contact</a>
<a href="https://www.instagram.com/moonlotusreiki/">Instagram</a>
</body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<html><body>
<a href="mailto:Hello@MoonLotus.com">email us</a>
<p>Phone: 928-555-0142 or 928.555.0199</p>
<p>noreply@moonlotus.com</p>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newEnricher(opts ...Option) *Enricher {
	return New(httpcache.NewFetcher(httpcache.WithHostInterval(0)), opts...)
}

func TestEnrich(t *testing.T) {
	srv, _ := newSite(t)
	got := newEnricher().Enrich(context.Background(), srv.URL)

	want := Result{
		Emails:  []string{"hello@moonlotus.com"},
		Phones:  []string{"(928) 555-0142", "928.555.0199"},
		Socials: []string{"https://www.instagram.com/moonlotusreiki/"},
		Pages:   []string{srv.URL, srv.URL + "/contact"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Enrich() mismatch (-want +got):\n%s", diff)
	}

	c := scrape.Candidate{ExtraPhones: []string{"928 555 0142"}}
	got.Fill(&c)
	want2 := scrape.Candidate{
		ExtraEmails:  []string{"hello@moonlotus.com"},
		ExtraPhones:  []string{"928 555 0142", "(928) 555-0142", "928.555.0199"},
		ExtraSocials: []string{"https://www.instagram.com/moonlotusreiki/"},
	}
	if diff := cmp.Diff(want2, c); diff != "" {
		t.Errorf("Fill() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichSkipsNotFoundPage(t *testing.T) {
	f := mapFetcher{
		"https://moonlotus.com": `<html><body><h1>Oops</h1>
<p>The page you requested cannot be found.</p><p>Call 928-555-0142</p></body></html>`,
	}
	g := &countingGov{}
	got := New(f, WithGovernor(g)).Enrich(context.Background(), "https://moonlotus.com")
	if !got.Empty() {
		t.Errorf("Enrich() = %+v, want no contacts from a not-found page", got)
	}
	if g.records != 1 {
		t.Errorf("Record() calls = %d, want 1", g.records)
	}
}

func TestAppendCappedPhones(t *testing.T) {
	got := appendCapped([]string{"(212) 555-1234"}, []string{"1-212-555-1234", "+1 212 555 9999"}, 3)
	if diff := cmp.Diff([]string{"(212) 555-1234", "+1 212 555 9999"}, got); diff != "" {
		t.Errorf("appendCapped() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichLimits(t *testing.T) {
	srv, hits := newSite(t)
	got := newEnricher(WithLimits(1, 1, 1)).Enrich(context.Background(), srv.URL)
	if len(got.Phones) != 1 || len(got.Pages) != 1 {
		t.Errorf("Enrich() = %+v, want one phone from one page", got)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestEnrichBudgetDenied(t *testing.T) {
	srv, hits := newSite(t)
	got := newEnricher(WithGovernor(budget.DenyAll{Reason: "test"})).Enrich(context.Background(), srv.URL)
	if !got.Empty() || len(got.Pages) != 0 {
		t.Errorf("Enrich() = %+v, want empty when denied", got)
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", hits.Load())
	}
}

type countingGov struct {
	budget.AllowAll
	records int
}

func (g *countingGov) Record(context.Context, string, string) { g.records++ }

func TestEnrichRecordsEachFetch(t *testing.T) {
	srv, _ := newSite(t)
	g := &countingGov{}
	newEnricher(WithGovernor(g)).Enrich(context.Background(), srv.URL)
	if g.records != 2 {
		t.Errorf("Record() calls = %d, want 2", g.records)
	}
}

func TestEnrichFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	g := &countingGov{}
	got := newEnricher(WithGovernor(g)).Enrich(context.Background(), srv.URL)
	if !got.Empty() {
		t.Errorf("Enrich() = %+v, want empty", got)
	}
	if g.records != 0 {
		t.Errorf("Record() calls = %d, want 0 after failed fetch", g.records)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"moonlotus.com", "https://moonlotus.com"},
		{"http://moonlotus.com/path", "http://moonlotus.com/path"},
		{"https://www.instagram.com/moon", ""},
		{"https://linktr.ee/moon", ""},
		{"ftp://files.moon.com", ""},
		{"localhost", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type mapFetcher map[string]string

func (m mapFetcher) Get(_ context.Context, rawURL string) (*httpcache.Page, error) {
	body, ok := m[rawURL]
	if !ok {
		return nil, &httpcache.HTTPError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return &httpcache.Page{URL: rawURL, HTML: body}, nil
}

func TestEnrichFollowsLinkPage(t *testing.T) {
	f := mapFetcher{
		"https://linktr.ee/moonlotus": `<html><head>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"account":{"profileTitle":"Moon Lotus","description":"Reiki in Sedona"},
"links":[{"url":"https://www.instagram.com/moonlotusreiki/","title":"IG"},
{"url":"https://moonlotus.com","title":"Website"},
{"url":"mailto:book@moonlotus.com","title":"Email"}]}}}
</script></head></html>`,
		"https://moonlotus.com": `<html><body><p>Call 928-555-0142</p></body></html>`,
	}
	g := &countingGov{}
	got := New(f, WithGovernor(g)).Enrich(context.Background(), "https://linktr.ee/moonlotus")

	want := Result{
		Emails: []string{"book@moonlotus.com"},
		Phones: []string{"928-555-0142"},
		Pages:  []string{"https://linktr.ee/moonlotus", "https://moonlotus.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Enrich() mismatch (-want +got):\n%s", diff)
	}
	if g.records != 2 {
		t.Errorf("Record() calls = %d, want 2", g.records)
	}
}

func TestEnrichLinkPageWithoutSite(t *testing.T) {
	f := mapFetcher{
		"https://linktr.ee/sage": `<html><head><meta property="og:description" content="Crystal sage"></head>
<body><a href="https://www.tiktok.com/@sage">TikTok</a></body></html>`,
	}
	got := New(f).Enrich(context.Background(), "https://linktr.ee/sage")
	if diff := cmp.Diff([]string{"https://linktr.ee/sage"}, got.Pages); diff != "" {
		t.Errorf("Enrich() pages mismatch (-want +got):\n%s", diff)
	}
	if !got.Empty() {
		t.Errorf("Enrich() = %+v, want no contacts", got)
	}
}

type redirectFetcher struct{}

func (redirectFetcher) Get(_ context.Context, rawURL string) (*httpcache.Page, error) {
	return &httpcache.Page{URL: rawURL + "/home", HTML: "<p>Call 928-555-0142</p>", Hops: 2}, nil
}

func TestEnrichRecordsRedirectHops(t *testing.T) {
	g := &countingGov{}
	got := New(redirectFetcher{}, WithGovernor(g), WithLimits(5, 1, 2)).Enrich(context.Background(), "https://moonlotus.com")
	if len(got.Phones) != 1 {
		t.Errorf("Enrich() = %+v, want one phone", got)
	}
	if g.records != 2 {
		t.Errorf("Record() calls = %d, want 2 (one per document)", g.records)
	}
}
