// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"sync"
	"time"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// tokenSkewMs is how much validity a cached token must have left to be
// returned without a refresh.
const tokenSkewMs = 60_000

// Account is one configured bot identity plus its cached credential. The
// credential is owned exclusively by this account and mutated only by the
// token cache; accounts never share credentials.
type Account struct {
	ID        string
	AppID     string
	AppSecret string
	Domain    string

	api *apiClient

	// credMu serializes credential reads against refresh, so concurrent
	// callers that arrive while the token is expired share a single
	// in-flight exchange instead of issuing duplicates.
	credMu      sync.Mutex
	token       string
	expiresAtMs int64
}

// newAccount wraps a host-resolved account config with its API client.
func newAccount(cfg gateway.AccountConfig) *Account {
	return &Account{
		ID:        cfg.ID,
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		Domain:    cfg.Domain,
		api:       newAPIClient(cfg.Domain),
	}
}

// tokenCache returns cached tenant access tokens, refreshing on demand.
type tokenCache struct {
	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{now: time.Now}
}

// Token returns a tenant access token for the account with at least 60s of
// validity remaining. The common case is a cache hit with zero network
// calls. On refresh failure nothing is cached and the platform's message is
// propagated as an *AuthError.
func (tc *tokenCache) Token(ctx context.Context, acct *Account) (string, error) {
	acct.credMu.Lock()
	defer acct.credMu.Unlock()

	nowMs := tc.now().UnixMilli()
	if acct.token != "" && acct.expiresAtMs-nowMs >= tokenSkewMs {
		return acct.token, nil
	}

	token, expireSec, err := acct.api.TenantAccessToken(ctx, acct.AppID, acct.AppSecret)
	if err != nil {
		return "", err
	}
	acct.token = token
	acct.expiresAtMs = nowMs + expireSec*1000
	return token, nil
}
