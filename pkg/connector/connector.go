// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// LarkConnector implements the host gateway's channel contract for the
// Lark/Feishu platform. It owns the account registry and one inbound
// session per started account.
type LarkConnector struct {
	config Config
	source gateway.AccountSource
	log    zerolog.Logger
	tokens *tokenCache
	users  *userCache

	mu       sync.Mutex
	accounts map[string]*Account
	sessions map[string]*Session
}

var (
	_ gateway.Channel  = (*LarkConnector)(nil)
	_ gateway.Outbound = (*LarkConnector)(nil)
)

// New validates the configuration and builds a connector. Sessions are
// started per account via Start.
func New(cfg Config, source gateway.AccountSource, log zerolog.Logger) (*LarkConnector, error) {
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}
	c := &LarkConnector{
		config:   cfg,
		source:   source,
		log:      log.With().Str("component", "lark_connector").Logger(),
		tokens:   newTokenCache(),
		accounts: make(map[string]*Account),
		sessions: make(map[string]*Session),
	}
	c.users = newUserCache(c.tokens, c.log)
	return c, nil
}

// Capabilities describes the adapter's feature surface for host gating.
func (c *LarkConnector) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{
		ChatKinds:    []gateway.ChatKind{gateway.ChatDirect, gateway.ChatGroup},
		MediaKinds:   []gateway.MediaKind{gateway.MediaImage, gateway.MediaFile},
		Reactions:    false,
		Threads:      false,
		Mentions:     false,
		ReplyContext: true,
	}
}

// resolveAccount returns the Account for an ID, consulting the host's
// account source on first use. Each account owns its own API client and
// credential.
func (c *LarkConnector) resolveAccount(id string) (*Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acct, ok := c.accounts[id]; ok {
		return acct, nil
	}
	cfg, ok := c.source.Account(id)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", id)
	}
	if err := validateAccount(cfg); err != nil {
		return nil, err
	}
	acct := newAccount(cfg)
	c.accounts[id] = acct
	return acct, nil
}

// Start opens one inbound session for the account named in params and
// registers the host's callbacks on it.
func (c *LarkConnector) Start(ctx context.Context, params gateway.StartParams) error {
	acct, err := c.resolveAccount(params.AccountID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.sessions[params.AccountID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("session already started for account %q", params.AccountID)
	}
	sess := newSession(c, acct, params.Handlers)
	c.sessions[params.AccountID] = sess
	c.mu.Unlock()

	if err := sess.start(ctx); err != nil {
		c.mu.Lock()
		delete(c.sessions, params.AccountID)
		c.mu.Unlock()
		return err
	}
	c.log.Info().Str("account_id", params.AccountID).Msg("Session started")
	return nil
}

// Session returns the live session for an account, if started. Hosts use it
// for operator actions such as pairing approval.
func (c *LarkConnector) Session(accountID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[accountID]
	return sess, ok
}

// Stop terminates all sessions. Idempotent; safe with none started.
func (c *LarkConnector) Stop() error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
	return nil
}
