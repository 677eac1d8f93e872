// Package config loads healerscout settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

// Config is the top-level configuration.
type Config struct {
	DryRun   bool   `yaml:"dry_run"`
	Database string `yaml:"database"`

	Browser BrowserConfig `yaml:"browser"`
	Cache   CacheConfig   `yaml:"cache"`
	Sources SourcesConfig `yaml:"sources"`

	Locations   []string            `yaml:"locations"`
	SearchTerms map[string][]string `yaml:"search_terms"` // by source
	Hashtags    []string            `yaml:"hashtags"`

	MaxResults         map[string]int             `yaml:"max_results"` // result cards parsed per unit, by source
	Dimensions         map[string]DimensionConfig `yaml:"dimensions"`  // by source
	MaxProfilesPerUnit int                        `yaml:"max_profiles_per_unit"`
	HashtagScanLimit   int                        `yaml:"hashtag_scan_limit"`

	Social SocialConfig `yaml:"social"`
	Budget BudgetConfig `yaml:"budget"`
}

// BrowserConfig controls the automation session.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"` // DevTools URL of an existing Chrome; empty launches one
	Headless         *bool         `yaml:"headless"`
	Timeout          time.Duration `yaml:"timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	UserAgent        string        `yaml:"user_agent"`
	BrowserCookies   bool          `yaml:"browser_cookies"` // read session cookies from local browser stores
}

// CacheConfig controls the website response cache.
type CacheConfig struct {
	Disabled bool          `yaml:"disabled"`
	Dir      string        `yaml:"dir"`
	TTL      time.Duration `yaml:"ttl"`
}

// SourcesConfig toggles source families.
type SourcesConfig struct {
	Instagram   *bool `yaml:"instagram"`
	Directories *bool `yaml:"directories"`
	Website     *bool `yaml:"website_enrichment"`
}

// DimensionConfig caps how much of the location x term space one run covers.
type DimensionConfig struct {
	MaxLocations int `yaml:"max_locations"`
	MaxTerms     int `yaml:"max_terms"`
}

// SocialConfig holds the social qualification band.
type SocialConfig struct {
	MinNameLen   int      `yaml:"min_name_len"`
	MinFollowers int      `yaml:"min_followers"`
	MaxFollowers int      `yaml:"max_followers"`
	Keywords     []string `yaml:"keywords"`
}

// BudgetConfig holds rate limits, delays and the weekly ramp.
type BudgetConfig struct {
	Limits      map[string]map[string][]LimitConfig `yaml:"limits"`
	Delays      DelaysConfig                        `yaml:"delays"`
	Progressive *RampConfig                         `yaml:"progressive"`
}

// LimitConfig is one sliding-window limit.
type LimitConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
	Ramped bool          `yaml:"ramped"`
}

// DelaysConfig mirrors budget.Delays.
type DelaysConfig struct {
	Min                    time.Duration `yaml:"min"`
	Max                    time.Duration `yaml:"max"`
	BetweenPlatforms       time.Duration `yaml:"between_platforms"`
	BetweenPlatformsJitter time.Duration `yaml:"between_platforms_jitter"`
}

// RampConfig mirrors budget.Ramp.
type RampConfig struct {
	Enabled        bool `yaml:"enabled"`
	Start          int  `yaml:"start"`
	WeeklyIncrease int  `yaml:"weekly_increase"`
	Max            int  `yaml:"max"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file, fills defaults and applies
// environment overrides. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = filepath.Join(dataDir(), "healers.db")
	}
	if c.Browser.Headless == nil {
		c.Browser.Headless = boolPtr(true)
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(cacheDir(), "healerscout")
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 7 * 24 * time.Hour
	}
	if c.Sources.Instagram == nil {
		c.Sources.Instagram = boolPtr(true)
	}
	if c.Sources.Directories == nil {
		c.Sources.Directories = boolPtr(true)
	}
	if c.Sources.Website == nil {
		c.Sources.Website = boolPtr(true)
	}
	if len(c.Locations) == 0 {
		c.Locations = defaultLocations()
	}
	if c.SearchTerms == nil {
		c.SearchTerms = map[string][]string{}
	}
	for src, terms := range defaultSearchTerms() {
		if len(c.SearchTerms[src]) == 0 {
			c.SearchTerms[src] = terms
		}
	}
	if len(c.Hashtags) == 0 {
		c.Hashtags = defaultHashtags()
	}
	if c.MaxResults == nil {
		c.MaxResults = map[string]int{}
	}
	for src, n := range map[string]int{
		string(profile.SourceTherapistDirectory): 20,
		string(profile.SourceBusinessListings):   20,
		string(profile.SourceInstagram):          50,
	} {
		if c.MaxResults[src] <= 0 {
			c.MaxResults[src] = n
		}
	}
	if c.Dimensions == nil {
		c.Dimensions = map[string]DimensionConfig{}
	}
	for src, d := range map[string]DimensionConfig{
		string(profile.SourceTherapistDirectory): {MaxLocations: 3, MaxTerms: 2},
		string(profile.SourceBusinessListings):   {MaxLocations: 2, MaxTerms: 2},
		string(profile.SourceInstagram):          {MaxTerms: 3},
	} {
		cur := c.Dimensions[src]
		if cur.MaxLocations <= 0 {
			cur.MaxLocations = d.MaxLocations
		}
		if cur.MaxTerms <= 0 {
			cur.MaxTerms = d.MaxTerms
		}
		c.Dimensions[src] = cur
	}
	if c.MaxProfilesPerUnit <= 0 {
		c.MaxProfilesPerUnit = 3
	}
	if c.HashtagScanLimit <= 0 {
		c.HashtagScanLimit = 20
	}
	if c.Social.MinNameLen <= 0 {
		c.Social.MinNameLen = 2
	}
	if c.Social.MinFollowers <= 0 {
		c.Social.MinFollowers = 100
	}
	if c.Social.MaxFollowers <= 0 {
		c.Social.MaxFollowers = 50_000
	}
	if c.Budget.Delays == (DelaysConfig{}) {
		d := budget.DefaultDelays
		c.Budget.Delays = DelaysConfig{
			Min: d.Min, Max: d.Max,
			BetweenPlatforms: d.BetweenPlatforms, BetweenPlatformsJitter: d.BetweenPlatformsJitter,
		}
	}
	if c.Budget.Progressive == nil {
		r := budget.DefaultRamp
		c.Budget.Progressive = &RampConfig{Enabled: true, Start: r.Start, WeeklyIncrease: r.WeeklyIncrease, Max: r.Max}
	}
}

// Environment variables that override the file.
const (
	EnvDryRun            = "HEALERSCOUT_DRY_RUN"
	EnvEnableInstagram   = "HEALERSCOUT_ENABLE_INSTAGRAM"
	EnvEnableDirectories = "HEALERSCOUT_ENABLE_DIRECTORIES"
	EnvDatabase          = "HEALERSCOUT_DB"
)

func (c *Config) applyEnv() error {
	for env, dst := range map[string]**bool{
		EnvEnableInstagram:   &c.Sources.Instagram,
		EnvEnableDirectories: &c.Sources.Directories,
	} {
		if v := os.Getenv(env); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			*dst = boolPtr(b)
		}
	}
	if v := os.Getenv(EnvDryRun); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDryRun, err)
		}
		c.DryRun = b
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if c.Social.MinFollowers > c.Social.MaxFollowers {
		return fmt.Errorf("social: min_followers %d exceeds max_followers %d", c.Social.MinFollowers, c.Social.MaxFollowers)
	}
	if c.Budget.Delays.Min > c.Budget.Delays.Max {
		return fmt.Errorf("budget: delays.min %s exceeds delays.max %s", c.Budget.Delays.Min, c.Budget.Delays.Max)
	}
	for platform, actions := range c.Budget.Limits {
		for action, limits := range actions {
			for _, l := range limits {
				if l.Window <= 0 {
					return fmt.Errorf("budget: %s/%s: window must be positive", platform, action)
				}
			}
		}
	}
	return nil
}

// InstagramEnabled reports whether the social source runs.
func (c *Config) InstagramEnabled() bool { return c.Sources.Instagram == nil || *c.Sources.Instagram }

// DirectoriesEnabled reports whether the directory sources run.
func (c *Config) DirectoriesEnabled() bool {
	return c.Sources.Directories == nil || *c.Sources.Directories
}

// WebsiteEnrichmentEnabled reports whether practitioners' own sites are fetched.
func (c *Config) WebsiteEnrichmentEnabled() bool { return c.Sources.Website == nil || *c.Sources.Website }

// BudgetRules returns the default rules with any configured limits replacing
// the defaults for the same platform and action.
func (c *Config) BudgetRules() budget.Rules {
	rules := budget.DefaultRules()
	for platform, actions := range c.Budget.Limits {
		if rules[platform] == nil {
			rules[platform] = map[string][]budget.Limit{}
		}
		for action, limits := range actions {
			out := make([]budget.Limit, len(limits))
			for i, l := range limits {
				out[i] = budget.Limit{Window: l.Window, Max: l.Max, Ramped: l.Ramped}
			}
			rules[platform][action] = out
		}
	}
	return rules
}

// BudgetDelays returns the configured pauses.
func (c *Config) BudgetDelays() budget.Delays {
	d := c.Budget.Delays
	return budget.Delays{Min: d.Min, Max: d.Max, BetweenPlatforms: d.BetweenPlatforms, BetweenPlatformsJitter: d.BetweenPlatformsJitter}
}

// BudgetRamp returns the weekly ramp, or nil when disabled.
func (c *Config) BudgetRamp() *budget.Ramp {
	p := c.Budget.Progressive
	if p == nil || !p.Enabled {
		return nil
	}
	return &budget.Ramp{Start: p.Start, WeeklyIncrease: p.WeeklyIncrease, Max: p.Max}
}

func defaultLocations() []string {
	return []string{
		"Los Angeles, CA", "New York, NY", "Boulder, CO", "Sedona, AZ", "Portland, OR",
		"Austin, TX", "Asheville, NC", "San Francisco, CA", "Santa Fe, NM", "Miami, FL",
	}
}

func defaultSearchTerms() map[string][]string {
	return map[string][]string{
		string(profile.SourceTherapistDirectory): {
			"energy healing", "holistic therapy", "spiritual counseling", "mindfulness therapy", "alternative healing",
		},
		string(profile.SourceBusinessListings): {
			"reiki healing", "crystal healing", "spiritual healer", "energy healing", "holistic wellness",
		},
	}
}

func defaultHashtags() []string {
	return []string{
		"reikihealer", "crystalhealing", "energyhealer", "spiritualguide", "chakrahealing",
		"soundtherapy", "holistichealer", "meditationteacher", "spiritualcoach", "lightworker",
	}
}

func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "healerscout")
	}
	return "."
}

func cacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

func boolPtr(b bool) *bool { return &b }
