// Copyright 2024-2026 Aiku AI

package connector

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// Policy controls admission of direct-message senders.
type Policy string

const (
	// PolicyOpen admits every sender.
	PolicyOpen Policy = "open"
	// PolicyAllowlist admits only allowlisted (or already paired) senders.
	PolicyAllowlist Policy = "allowlist"
	// PolicyPairing holds unknown senders in a pending set until an
	// operator approves them.
	PolicyPairing Policy = "pairing"
)

// RenderMode controls how outbound text is rendered.
type RenderMode string

const (
	// RenderRaw always sends plain text.
	RenderRaw RenderMode = "raw"
	// RenderCard always sends an interactive card.
	RenderCard RenderMode = "card"
	// RenderAuto picks card rendering when the text looks like it carries
	// a code block or table, plain text otherwise.
	RenderAuto RenderMode = "auto"
)

// WebhookConfig configures the inbound HTTP listener used instead of the
// WebSocket event source when Enabled is set.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
	// Secret enables HMAC signature verification of deliveries. Empty
	// disables the check.
	Secret string `yaml:"secret"`
}

// Config holds the adapter configuration shared by all accounts.
type Config struct {
	// DMPolicy gates direct-message senders. One of open, allowlist,
	// pairing. Defaults to open.
	DMPolicy Policy `yaml:"dm_policy"`
	// AllowFrom seeds the allowlist once at session start.
	AllowFrom []string `yaml:"allow_from"`
	// GroupPolicy and RequireMention are accepted for forward
	// compatibility but not enforced: group conversations are never
	// subject to the admission gate.
	GroupPolicy    string `yaml:"group_policy"`
	RequireMention bool   `yaml:"require_mention"`

	// RenderMode selects outbound rendering. Defaults to auto.
	RenderMode RenderMode `yaml:"render_mode"`

	Webhook WebhookConfig `yaml:"webhook"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies defaults and validates enum fields.
func (c *Config) PostProcess() error {
	if c.DMPolicy == "" {
		c.DMPolicy = PolicyOpen
	}
	switch c.DMPolicy {
	case PolicyOpen, PolicyAllowlist, PolicyPairing:
	default:
		return fmt.Errorf("invalid dm_policy %q", c.DMPolicy)
	}
	if c.RenderMode == "" {
		c.RenderMode = RenderAuto
	}
	switch c.RenderMode {
	case RenderRaw, RenderCard, RenderAuto:
	default:
		return fmt.Errorf("invalid render_mode %q", c.RenderMode)
	}
	if c.Webhook.Enabled {
		if c.Webhook.Addr == "" {
			c.Webhook.Addr = ":29321"
		}
		if c.Webhook.Path == "" {
			c.Webhook.Path = "/webhook"
		}
	}
	return nil
}

// validateAccount checks the fields the adapter needs from a host-resolved
// account before opening a session.
func validateAccount(acct gateway.AccountConfig) error {
	if acct.AppID == "" || acct.AppSecret == "" {
		return fmt.Errorf("account %q is missing app credentials", acct.ID)
	}
	switch acct.Domain {
	case "", DomainFeishu, DomainLark:
	default:
		return fmt.Errorf("account %q has unknown domain %q", acct.ID, acct.Domain)
	}
	return nil
}
