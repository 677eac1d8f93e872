// Package browser drives a stealth Chrome session for directory and social
// pages that need JavaScript.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/codeGROOVE-dev/healerscout/pkg/auth"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// ErrNoMatch is returned by WaitFor when no element matches before the timeout.
var ErrNoMatch = errors.New("no element matched selector")

// Page is one browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches or timeout passes.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	URL() string
	Close() error
}

// Opener hands out fresh pages.
type Opener interface {
	NewPage(ctx context.Context) (Page, error)
}

// Config configures a Browser.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an existing Chrome.
	// Empty launches a local one.
	RemoteURL string
	Headless  bool
	// ResourceBlocking lists resource types to drop (images, fonts, media, stylesheets).
	ResourceBlocking []string
	UserAgent        string
	NavTimeout       time.Duration
	Logger           *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns one Chrome process or remote connection.
type Browser struct {
	cfg  Config
	mu   sync.Mutex
	rod  *rod.Browser
	lnch *launcher.Launcher
}

// Launch starts or connects to Chrome, retrying transient failures. Errors
// wrap profile.ErrSessionFailed.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.defaults()
	b := &Browser{cfg: cfg}

	rb, err := retry.DoWithData(
		func() (*rod.Browser, error) { return b.launch() },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.MaxJitter(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			cfg.Logger.Warn("browser start failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", profile.ErrSessionFailed, err)
	}
	b.rod = rb
	return b, nil
}

func (b *Browser) launch() (*rod.Browser, error) {
	log := b.cfg.Logger
	wsURL := b.cfg.RemoteURL
	if wsURL != "" {
		log.Info("connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(b.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("launched local browser", "url", wsURL, "headless", b.cfg.Headless)
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.cleanupLauncher()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := rb.IgnoreCertErrors(true); err != nil {
		log.Warn("ignore cert errors failed", "error", err)
	}
	return rb, nil
}

// SetCookies installs session cookies for every later page.
func (b *Browser) SetCookies(cookies []auth.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := b.rod.SetCookies(cookieParams(cookies)); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func cookieParams(cookies []auth.Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
	}
	return out
}

// NewPage opens a stealth tab with resource blocking and the configured
// user agent.
func (b *Browser) NewPage(_ context.Context) (Page, error) {
	p, err := stealth.Page(b.rod)
	if err != nil {
		return nil, fmt.Errorf("%w: create tab: %w", profile.ErrSessionFailed, err)
	}
	if b.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			b.cfg.Logger.Warn("set user agent failed", "error", err)
		}
	}
	if len(b.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(p, b.cfg.ResourceBlocking)
	}
	return &rodPage{page: p, navTimeout: b.cfg.NavTimeout, logger: b.cfg.Logger}, nil
}

// Close shuts down the browser and any launched process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.rod != nil {
		err = b.rod.Close()
		b.rod = nil
	}
	b.cleanupLauncher()
	return err
}

func (b *Browser) cleanupLauncher() {
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
}

type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *slog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	if err := p.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Debug("wait load timeout", "url", url, "error", err)
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	return waitError(ctx, selector, err)
}

// waitError maps a rod element lookup failure onto ErrNoMatch unless the
// caller's own context ended.
func waitError(ctx context.Context, selector string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var notFound *rod.ElementNotFoundError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return err
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// applyResourceBlocking drops requests for the listed resource types.
func applyResourceBlocking(page *rod.Page, types []string) {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
