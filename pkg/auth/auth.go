// Package auth supplies session cookies for logged-in browsing.
package auth

import (
	"context"
	"maps"
	"slices"
)

// Source represents a source of authentication cookies.
type Source interface {
	// Cookies returns cookies for the given platform, or nil if unavailable.
	Cookies(ctx context.Context, platform string) (map[string]string, error)
}

// ChainSources returns cookies from the first source that provides them.
func ChainSources(ctx context.Context, platform string, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		cookies, err := src.Cookies(ctx, platform)
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil //nolint:nilnil // no source had cookies, but this is not an error
}

// Cookie is a browser cookie scoped to a platform's domain.
type Cookie struct {
	Name   string
	Value  string
	Domain string // leading dot, e.g. ".instagram.com"
}

// Domain returns the cookie domain for a platform, or "" if unknown.
func Domain(platform string) string {
	return platformDomains[platform]
}

// ForPlatform turns a name/value map into domain-scoped cookies, sorted by
// name. Empty values are dropped.
func ForPlatform(platform string, cookies map[string]string) []Cookie {
	domain := Domain(platform)
	if domain == "" {
		return nil
	}
	var out []Cookie
	for _, name := range slices.Sorted(maps.Keys(cookies)) {
		if v := cookies[name]; v != "" {
			out = append(out, Cookie{Name: name, Value: v, Domain: "." + domain})
		}
	}
	return out
}

// HasSession reports whether cookies include every essential cookie for the
// platform.
func HasSession(platform string, cookies map[string]string) bool {
	essential, ok := platformEssentialCookies[platform]
	if !ok {
		return false
	}
	for _, name := range essential {
		if cookies[name] == "" {
			return false
		}
	}
	return true
}
