package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/chrome"
	"github.com/browserutils/kooky/browser/firefox"
)

// platformDomains maps platform names to their cookie domains.
var platformDomains = map[string]string{
	"instagram":   "instagram.com",
	"google_maps": "google.com",
}

// platformEssentialCookies maps platform names to their required cookie names.
var platformEssentialCookies = map[string][]string{
	"instagram":   {"sessionid", "csrftoken"},
	"google_maps": {"NID"},
}

// BrowserSource reads cookies from local browser cookie stores.
type BrowserSource struct {
	logger *slog.Logger
	home   string
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger, home: os.Getenv("HOME")}
}

// Cookies returns cookies for the given platform from browser stores.
func (s *BrowserSource) Cookies(ctx context.Context, platform string) (map[string]string, error) {
	domain, ok := platformDomains[platform]
	if !ok {
		return nil, nil //nolint:nilnil // no cookies for unknown platform is not an error
	}

	s.logger.DebugContext(ctx, "reading browser cookies", "platform", platform, "domain", domain)

	// Firefox-family profiles first; kooky does not auto-detect all of them.
	if cookies := s.tryFirefoxProfiles(ctx, domain, platform); len(cookies) > 0 {
		return cookies, nil
	}
	if cookies := s.tryChromeProfiles(ctx, domain, platform); len(cookies) > 0 {
		return cookies, nil
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil {
		s.logger.Debug("failed to read browser cookies", "platform", platform, "error", err)
		return nil, nil //nolint:nilnil // failed browser read is not a fatal error
	}
	if len(kookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}
	return s.filterEssentialCookies(kookies, platform), nil
}

// firefoxProfileGlobs lists cookies.sqlite locations for Firefox and Zen.
func (s *BrowserSource) firefoxProfileGlobs() []string {
	if s.home == "" {
		return nil
	}
	if runtime.GOOS == "darwin" {
		support := filepath.Join(s.home, "Library", "Application Support")
		return []string{
			filepath.Join(support, "zen", "Profiles", "*", "cookies.sqlite"),
			filepath.Join(support, "Firefox", "Profiles", "*", "cookies.sqlite"),
		}
	}
	return []string{
		filepath.Join(s.home, ".zen", "*", "cookies.sqlite"),
		filepath.Join(s.home, ".mozilla", "firefox", "*", "cookies.sqlite"),
	}
}

func (s *BrowserSource) tryFirefoxProfiles(ctx context.Context, domain, platform string) map[string]string {
	for _, pattern := range s.firefoxProfileGlobs() {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, f := range matches {
			kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(domain))
			if err != nil {
				s.logger.Debug("failed to read Firefox cookies", "profile", filepath.Base(filepath.Dir(f)), "error", err)
				continue
			}
			if len(kookies) > 0 {
				s.logger.Debug("found Firefox cookies",
					"profile", filepath.Base(filepath.Dir(f)),
					"platform", platform,
					"count", len(kookies))
				return s.filterEssentialCookies(kookies, platform)
			}
		}
	}
	return nil
}

// chromeProfileDirs lists Chrome-family profile roots not found by kooky's
// automatic detection.
func (s *BrowserSource) chromeProfileDirs() []string {
	if s.home == "" {
		return nil
	}
	if runtime.GOOS == "darwin" {
		return []string{filepath.Join(s.home, "Library", "Application Support", "Google", "Chrome Canary")}
	}
	return []string{filepath.Join(s.home, ".config", "chromium")}
}

func (s *BrowserSource) tryChromeProfiles(ctx context.Context, domain, platform string) map[string]string {
	profiles := []string{"Default", "Profile 1", "Profile 2", "Profile 3"}
	for _, root := range s.chromeProfileDirs() {
		for _, profile := range profiles {
			cookiesFile := filepath.Join(root, profile, "Cookies")
			if _, err := os.Stat(cookiesFile); err != nil {
				continue
			}
			kookies, err := chrome.ReadCookies(ctx, cookiesFile, kooky.Valid, kooky.DomainHasSuffix(domain))
			if err != nil {
				if strings.Contains(err.Error(), "encryption") || strings.Contains(err.Error(), "decrypt") {
					s.logger.Warn("Chrome cookies exist but cannot be decrypted",
						"profile", profile,
						"platform", platform,
						"hint", "use Firefox or set cookies via environment variables")
				} else {
					s.logger.Debug("failed to read Chrome cookies", "profile", profile, "error", err)
				}
				continue
			}
			if len(kookies) > 0 {
				s.logger.Debug("found Chrome cookies", "profile", profile, "platform", platform, "count", len(kookies))
				return s.filterEssentialCookies(kookies, platform)
			}
		}
	}
	return nil
}

// filterEssentialCookies keeps only the cookies a platform session needs.
func (s *BrowserSource) filterEssentialCookies(kookies []*kooky.Cookie, platform string) map[string]string {
	return essentialOnly(s.logger, platform, func(yield func(name, value string) bool) {
		for _, c := range kookies {
			if !yield(c.Name, c.Value) {
				return
			}
		}
	})
}

func essentialOnly(logger *slog.Logger, platform string, all func(func(name, value string) bool)) map[string]string {
	essentialSet := make(map[string]bool)
	for _, name := range platformEssentialCookies[platform] {
		essentialSet[name] = true
	}

	cookies := make(map[string]string)
	for name, value := range all {
		if essentialSet[name] {
			cookies[name] = value
		}
	}

	var missing []string
	for _, name := range platformEssentialCookies[platform] {
		if _, ok := cookies[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		logger.Info("browser cookies missing", "platform", platform, "keys", missing)
	}
	return cookies
}
