// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// userCache resolves sender display names by open ID, caching results for
// the process lifetime. Lookups are best-effort: a failure falls back to the
// bare ID so decoding never blocks on profile resolution.
type userCache struct {
	tokens *tokenCache
	log    zerolog.Logger

	mu    sync.Mutex
	names map[string]string
}

func newUserCache(tokens *tokenCache, log zerolog.Logger) *userCache {
	return &userCache{
		tokens: tokens,
		log:    log.With().Str("component", "user_cache").Logger(),
		names:  make(map[string]string),
	}
}

// DisplayName returns the user's profile name, preferring name over
// nick_name, falling back to the open ID itself.
func (u *userCache) DisplayName(ctx context.Context, acct *Account, openID string) string {
	u.mu.Lock()
	if name, ok := u.names[openID]; ok {
		u.mu.Unlock()
		return name
	}
	u.mu.Unlock()

	name := openID
	token, err := u.tokens.Token(ctx, acct)
	if err != nil {
		u.log.Debug().Err(err).Str("open_id", openID).Msg("Token unavailable for user lookup")
		return name
	}
	profile, err := acct.api.GetUser(ctx, token, openID)
	if err != nil {
		u.log.Debug().Err(err).Str("open_id", openID).Msg("User lookup failed")
		return name
	}
	switch {
	case profile.Name != "":
		name = profile.Name
	case profile.NickName != "":
		name = profile.NickName
	}

	u.mu.Lock()
	u.names[openID] = name
	u.mu.Unlock()
	return name
}
