package instagram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/healerscout/pkg/auth"
)

// SessionCookies loads session cookies from the first source that has any.
// A missing or partial session is logged; hashtag pages then usually
// redirect to the login wall.
func SessionCookies(ctx context.Context, logger *slog.Logger, sources ...auth.Source) ([]auth.Cookie, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cookies, err := auth.ChainSources(ctx, platform, sources...)
	if err != nil {
		return nil, fmt.Errorf("load %s cookies: %w", platform, err)
	}
	if !auth.HasSession(platform, cookies) {
		logger.WarnContext(ctx, "no instagram session; hashtag pages may require login",
			"env", auth.EnvVarsForPlatform(platform))
	}
	return auth.ForPlatform(platform, cookies), nil
}
