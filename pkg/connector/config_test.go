// Copyright 2024-2026 Aiku AI

package connector

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/aiku/lark-channel/pkg/gateway"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DMPolicy != PolicyOpen {
		t.Errorf("got dm_policy %q, want open default", cfg.DMPolicy)
	}
	if cfg.RenderMode != RenderAuto {
		t.Errorf("got render_mode %q, want auto default", cfg.RenderMode)
	}
	// Webhook defaults only apply when the listener is enabled.
	if cfg.Webhook.Addr != "" || cfg.Webhook.Path != "" {
		t.Errorf("webhook defaults applied while disabled: %+v", cfg.Webhook)
	}

	cfg = Config{Webhook: WebhookConfig{Enabled: true}}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Webhook.Addr != ":29321" || cfg.Webhook.Path != "/webhook" {
		t.Errorf("got webhook defaults %+v", cfg.Webhook)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
	}{
		{"bad dm_policy", Config{DMPolicy: "strict"}},
		{"bad render_mode", Config{RenderMode: "markdown"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			if err := cfg.PostProcess(); err == nil {
				t.Errorf("invalid config accepted: %+v", tc.cfg)
			}
		})
	}
}

func TestConfigYAML(t *testing.T) {
	t.Parallel()
	raw := `
dm_policy: pairing
allow_from: [ou_alice, ou_bob]
render_mode: raw
webhook:
  enabled: true
  addr: ":9999"
  path: /events
  secret: shh
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("post-process failed: %v", err)
	}
	if cfg.DMPolicy != PolicyPairing {
		t.Errorf("got dm_policy %q", cfg.DMPolicy)
	}
	if len(cfg.AllowFrom) != 2 || cfg.AllowFrom[0] != "ou_alice" {
		t.Errorf("got allow_from %v", cfg.AllowFrom)
	}
	if cfg.RenderMode != RenderRaw {
		t.Errorf("got render_mode %q", cfg.RenderMode)
	}
	if !cfg.Webhook.Enabled || cfg.Webhook.Addr != ":9999" || cfg.Webhook.Path != "/events" || cfg.Webhook.Secret != "shh" {
		t.Errorf("got webhook %+v", cfg.Webhook)
	}
}

func TestValidateAccount(t *testing.T) {
	t.Parallel()
	ok := gateway.AccountConfig{ID: "a", AppID: "app", AppSecret: "sec", Domain: DomainLark}
	if err := validateAccount(ok); err != nil {
		t.Errorf("valid account rejected: %v", err)
	}
	// Empty domain falls back to the default region.
	ok.Domain = ""
	if err := validateAccount(ok); err != nil {
		t.Errorf("default-domain account rejected: %v", err)
	}

	bad := []gateway.AccountConfig{
		{ID: "a", AppSecret: "sec"},
		{ID: "a", AppID: "app"},
		{ID: "a", AppID: "app", AppSecret: "sec", Domain: "example.com"},
	}
	for _, acct := range bad {
		if err := validateAccount(acct); err == nil {
			t.Errorf("invalid account accepted: %+v", acct)
		}
	}
}
