// Command healerscout runs one discovery pass for healing practitioners and
// prints a JSON summary.
//
// Usage:
//
//	healerscout -config healerscout.yaml
//	healerscout -dry-run -only instagram   # requires INSTAGRAM_* env vars or browser cookies
//	healerscout -stats
//	healerscout -list 20 -source instagram
//	healerscout -stop "account warning"    # deny all actions until -resume
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/healerscout/pkg/auth"
	"github.com/codeGROOVE-dev/healerscout/pkg/browser"
	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/config"
	"github.com/codeGROOVE-dev/healerscout/pkg/directory"
	"github.com/codeGROOVE-dev/healerscout/pkg/discovery"
	"github.com/codeGROOVE-dev/healerscout/pkg/httpcache"
	"github.com/codeGROOVE-dev/healerscout/pkg/instagram"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
	"github.com/codeGROOVE-dev/healerscout/pkg/qualify"
	"github.com/codeGROOVE-dev/healerscout/pkg/scrape"
	"github.com/codeGROOVE-dev/healerscout/pkg/store"
	"github.com/codeGROOVE-dev/healerscout/pkg/website"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	verbose := flag.Bool("v", false, "verbose logging (same as -debug)")
	dryRun := flag.Bool("dry-run", false, "discover without saving; found profiles are printed")
	only := flag.String("only", "", "run only one source group: instagram or directories")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching of practitioner websites")
	stats := flag.Bool("stats", false, "print database and budget status, then exit")
	week := flag.Int("week", 0, "set the progressive ramp week, then exit")
	stop := flag.String("stop", "", "activate the emergency stop with this reason, then exit")
	resume := flag.Bool("resume", false, "clear the emergency stop, then exit")
	list := flag.Int("list", 0, "print the N highest-confidence stored healers, then exit")
	source := flag.String("source", "", "restrict -list to one source")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug || *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *noCache {
		cfg.Cache.Disabled = true
	}
	if err := applyOnly(cfg, *only); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	if n, err := st.PruneActions(ctx, time.Now().Add(-actionRetention)); err != nil {
		logger.Warn("failed to prune action history", "error", err)
	} else if n > 0 {
		logger.Debug("pruned action history", "deleted", n)
	}
	gov := newController(cfg, st, logger)
	if err := gov.Load(ctx); err != nil {
		logger.Warn("failed to load action history, budgets start empty", "error", err)
	}

	if *list > 0 {
		if err := listHealers(ctx, st, *list, *source); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	admin, err := runAdmin(ctx, gov, st, *stats, *week, *stop, *resume)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if admin {
		return
	}

	sum, err := run(ctx, cfg, gov, st, logger)
	if sum != nil {
		if outErr := outputJSON(sum); outErr != nil {
			fmt.Fprintf(os.Stderr, "Output error: %v\n", outErr)
			os.Exit(1)
		}
	}
	if err != nil {
		if errors.Is(err, profile.ErrSessionFailed) {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// actionRetention covers the longest budget window with a day to spare.
const actionRetention = 8 * 24 * time.Hour

func listHealers(ctx context.Context, st *store.Store, n int, source string) error {
	f := store.Filter{Limit: n}
	if source != "" {
		src, err := profile.ParseSource(source)
		if err != nil {
			return err
		}
		f.Source = src
	}
	healers, err := st.Healers(ctx, f)
	if err != nil {
		return err
	}
	return outputJSON(healers)
}

func applyOnly(cfg *config.Config, only string) error {
	on, off := true, false
	switch only {
	case "":
	case "instagram":
		cfg.Sources.Instagram, cfg.Sources.Directories = &on, &off
	case "directories":
		cfg.Sources.Instagram, cfg.Sources.Directories = &off, &on
	default:
		return fmt.Errorf("-only must be instagram or directories, got %q", only)
	}
	return nil
}

func newController(cfg *config.Config, st *store.Store, logger *slog.Logger) *budget.Controller {
	opts := []budget.Option{
		budget.WithLogger(logger),
		budget.WithDelays(cfg.BudgetDelays()),
		budget.WithActionLog(st),
		budget.WithSettings(st),
	}
	if r := cfg.BudgetRamp(); r != nil {
		opts = append(opts, budget.WithRamp(*r))
	}
	return budget.New(cfg.BudgetRules(), opts...)
}

// runAdmin handles the flags that inspect or change state without
// discovering. It reports whether one of them ran.
func runAdmin(ctx context.Context, gov *budget.Controller, st *store.Store, stats bool, week int, stop string, resume bool) (bool, error) {
	ran := false
	if week > 0 {
		if err := gov.SetWeek(ctx, week); err != nil {
			return true, err
		}
		ran = true
	}
	if stop != "" {
		if err := gov.EmergencyStop(ctx, stop); err != nil {
			return true, err
		}
		ran = true
	}
	if resume {
		if err := gov.ClearEmergencyStop(ctx); err != nil {
			return true, err
		}
		ran = true
	}
	if !stats && !ran {
		return false, nil
	}

	out := struct {
		Budget budget.Status `json:"budget"`
		Store  *store.Stats  `json:"store,omitempty"`
	}{Budget: gov.Status(ctx)}
	if stats {
		s, err := st.Stats(ctx)
		if err != nil {
			return true, err
		}
		out.Store = s
	}
	return true, outputJSON(out)
}

func run(ctx context.Context, cfg *config.Config, gov *budget.Controller, st *store.Store, logger *slog.Logger) (*discovery.Summary, error) {
	var cache httpcache.Cacher = httpcache.NewNull()
	if !cfg.Cache.Disabled {
		c, err := httpcache.NewWithPath(cfg.Cache.TTL, cfg.Cache.Dir)
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		} else {
			defer func() {
				if err := c.Close(); err != nil {
					logger.Warn("failed to close cache", "error", err)
				}
			}()
			cache = c
		}
	}
	fetchOpts := []httpcache.Option{httpcache.WithCache(cache), httpcache.WithLogger(logger)}
	if cfg.Browser.UserAgent != "" {
		fetchOpts = append(fetchOpts, httpcache.WithUserAgent(cfg.Browser.UserAgent))
	}
	fetcher := httpcache.NewFetcher(fetchOpts...)

	var enricher *website.Enricher
	if cfg.WebsiteEnrichmentEnabled() {
		enricher = website.New(fetcher, website.WithGovernor(gov), website.WithLogger(logger))
	}
	assembler := scrape.NewAssembler(scrape.WithAssemblerLogger(logger), scrape.WithFilters(filters(cfg)))

	var opts []discovery.Option
	opts = append(opts, discovery.WithLogger(logger))
	if cfg.InstagramEnabled() {
		opts = append(opts, discovery.WithHashtagScrapers(instagram.New(gov,
			instagram.WithLogger(logger),
			instagram.WithAssembler(assembler),
			instagram.WithWebsiteEnricher(enricher),
			instagram.WithScanLimit(cfg.HashtagScanLimit),
			instagram.WithMaxProfiles(cfg.MaxProfilesPerUnit),
			instagram.WithWaitTimeout(cfg.Browser.Timeout),
		)))
	}
	if cfg.DirectoriesEnabled() {
		dirOpts := func(src profile.Source) []directory.Option {
			return []directory.Option{
				directory.WithLogger(logger),
				directory.WithAssembler(assembler),
				directory.WithMaxResults(cfg.MaxResults[string(src)]),
				directory.WithMaxEnrich(cfg.MaxProfilesPerUnit),
				directory.WithWaitTimeout(cfg.Browser.Timeout),
			}
		}
		opts = append(opts, discovery.WithDirectoryScrapers(
			directory.NewTherapistDirectory(gov, dirOpts(profile.SourceTherapistDirectory)...),
			directory.NewBusinessListings(gov, append(dirOpts(profile.SourceBusinessListings),
				directory.WithWebsiteEnricher(enricher))...),
		))
	}

	if len(opts) == 1 {
		return discovery.New(discoveryConfig(cfg), nil, gov, st, opts...).Run(ctx)
	}

	br, err := browser.Launch(ctx, browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headless:         cfg.Browser.Headless == nil || *cfg.Browser.Headless,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		UserAgent:        cfg.Browser.UserAgent,
		NavTimeout:       cfg.Browser.Timeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := br.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	if cfg.InstagramEnabled() {
		sources := []auth.Source{auth.EnvSource{}}
		if cfg.Browser.BrowserCookies {
			sources = append(sources, auth.NewBrowserSource(logger))
		}
		cookies, err := instagram.SessionCookies(ctx, logger, sources...)
		if err != nil {
			return nil, err
		}
		if err := br.SetCookies(cookies); err != nil {
			return nil, fmt.Errorf("%w: set cookies: %w", profile.ErrSessionFailed, err)
		}
	}

	return discovery.New(discoveryConfig(cfg), br, gov, st, opts...).Run(ctx)
}

func filters(cfg *config.Config) func(profile.Source) qualify.Filter {
	social := qualify.Social{
		MinNameLen:   cfg.Social.MinNameLen,
		MinFollowers: cfg.Social.MinFollowers,
		MaxFollowers: cfg.Social.MaxFollowers,
		Keywords:     cfg.Social.Keywords,
	}
	if len(social.Keywords) == 0 {
		social.Keywords = qualify.DefaultKeywords
	}
	return func(src profile.Source) qualify.Filter {
		if src.Kind() == profile.KindSocial {
			return social
		}
		return qualify.Directory{}
	}
}

func discoveryConfig(cfg *config.Config) discovery.Config {
	dc := discovery.Config{
		Locations:   cfg.Locations,
		Hashtags:    cfg.Hashtags,
		SearchTerms: map[profile.Source][]string{},
		Dimensions:  map[profile.Source]discovery.Dimension{},
		DryRun:      cfg.DryRun,
	}
	for src, terms := range cfg.SearchTerms {
		dc.SearchTerms[profile.Source(src)] = terms
	}
	for src, d := range cfg.Dimensions {
		dc.Dimensions[profile.Source(src)] = discovery.Dimension{MaxLocations: d.MaxLocations, MaxTerms: d.MaxTerms}
	}
	return dc
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
