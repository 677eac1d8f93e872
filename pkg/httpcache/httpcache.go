// Package httpcache fetches practitioner websites with caching, retries and
// per-host pacing.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
	"golang.org/x/time/rate"

	"github.com/codeGROOVE-dev/healerscout/pkg/htmlutil"
)

// UserAgent is the default User-Agent for plain HTTP fetches.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// Cacher allows external cache implementations.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// NewNull creates a Cache with no persistence.
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a Cache with disk persistence under cachePath.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("healerscout", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL to a cache key using SHA256 hash.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents a non-200 response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Page is a fetched document.
type Page struct {
	URL  string // final URL after meta or script redirects
	HTML string
	Hops int // documents fetched, including redirect targets
}

// Stats tracks cache hit/miss counts.
type Stats struct {
	Hits   int64
	Misses int64
}

// Fetcher performs cached, paced GETs.
type Fetcher struct {
	cache     Cacher
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	maxBody   int64
	interval  time.Duration
	attempts  uint
	hosts     sync.Map // host -> *rate.Limiter

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache enables response caching.
func WithCache(c Cacher) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithHostInterval sets the minimum spacing between requests to one host.
func WithHostInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.interval = d }
}

// WithAttempts sets how many times a transient failure is tried.
func WithAttempts(n uint) Option {
	return func(f *Fetcher) { f.attempts = n }
}

// NewFetcher returns a Fetcher with a 15 second client, 1.1 second host
// spacing, a single attempt per URL and a 2 MiB body cap unless overridden.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    slog.Default(),
		userAgent: UserAgent,
		maxBody:   2 << 20,
		interval:  1100 * time.Millisecond,
		attempts:  1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns cache hit/miss counts.
func (f *Fetcher) Stats() Stats {
	return Stats{Hits: f.hits.Load(), Misses: f.misses.Load()}
}

const maxRedirects = 3

// Get fetches rawURL, following meta refresh and simple script redirects.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	current := rawURL
	hops := 0
	var body []byte
	for i := 0; ; i++ {
		var err error
		body, err = f.fetch(ctx, current)
		if err != nil {
			return nil, err
		}
		hops++
		next := htmlutil.RedirectURL(string(body))
		if next == "" || i >= maxRedirects {
			break
		}
		resolved := htmlutil.Resolve(next, current)
		if resolved == "" || resolved == current {
			break
		}
		f.logger.Debug("following HTML redirect", "from", current, "to", resolved)
		current = resolved
	}
	return &Page{URL: current, HTML: string(body), Hops: hops}, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.cache == nil {
		f.misses.Add(1)
		return f.doFetch(ctx, rawURL)
	}

	var wasFetched bool
	data, err := f.cache.GetSet(ctx, URLToKey(rawURL), func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		f.misses.Add(1)
		f.logger.Debug("cache miss", "url", rawURL)
		body, fetchErr := f.doFetch(ctx, rawURL)
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
				return nil, fetchErr
			}
			// Cache failures too so a dead site is not retried every run.
			// A 429 is transient and stays uncached.
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) {
				if httpErr.StatusCode == http.StatusTooManyRequests {
					return nil, fetchErr
				}
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			return fmt.Appendf(nil, "NETERR:%s", fetchErr.Error()), nil
		}
		return body, nil
	}, f.cache.TTL())
	if err != nil {
		return nil, err
	}
	if !wasFetched {
		f.hits.Add(1)
		f.logger.Debug("cache hit", "url", rawURL)
	}

	s := string(data)
	if code, found := strings.CutPrefix(s, "ERROR:"); found {
		n, _ := strconv.Atoi(code) //nolint:errcheck // 0 is acceptable default
		return nil, &HTTPError{StatusCode: n, URL: rawURL}
	}
	if msg, found := strings.CutPrefix(s, "NETERR:"); found {
		return nil, fmt.Errorf("cached network error: %s", msg)
	}
	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, rawURL string) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			if err := f.wait(ctx, rawURL); err != nil {
				return nil, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
			if err != nil {
				return nil, &permanentError{err: err}
			}
			req.Header.Set("User-Agent", f.userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

			resp, err := f.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode != http.StatusOK {
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
			}
			return io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying HTTP request", "attempt", n+1, "url", rawURL, "error", err)
		}),
	)
}

// wait blocks until the host's limiter admits another request.
func (f *Fetcher) wait(ctx context.Context, rawURL string) error {
	host := htmlutil.Host(rawURL)
	if host == "" || f.interval <= 0 {
		return nil
	}
	l, _ := f.hosts.LoadOrStore(host, rate.NewLimiter(rate.Every(f.interval), 1))
	lim, ok := l.(*rate.Limiter)
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isRetryableError returns true for transient server errors. A 429 is the
// site asking to back off and is never retried.
func isRetryableError(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return true
}
