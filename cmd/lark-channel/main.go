// Copyright 2024-2026 Aiku AI

// Command lark-channel runs the Lark/Feishu channel adapter as a standalone
// process: it starts one inbound session per configured account and logs
// normalized messages, raw events and connectivity transitions.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/lark-channel/pkg/connector"
	"github.com/aiku/lark-channel/pkg/gateway"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

// runtimeConfig is the on-disk configuration: a zeroconfig logging section,
// the account list and the adapter config.
type runtimeConfig struct {
	Logging  zeroconfig.Config       `yaml:"logging"`
	Accounts []gateway.AccountConfig `yaml:"accounts"`
	Channel  connector.Config        `yaml:"channel"`
}

// staticAccounts serves the configured account list as an account source.
type staticAccounts struct {
	accounts []gateway.AccountConfig
}

func (s *staticAccounts) AccountIDs() []string {
	ids := make([]string, len(s.accounts))
	for i, acct := range s.accounts {
		ids[i] = acct.ID
	}
	return ids
}

func (s *staticAccounts) Account(id string) (gateway.AccountConfig, bool) {
	for _, acct := range s.accounts {
		if acct.ID == id {
			return acct, true
		}
	}
	return gateway.AccountConfig{}, false
}

func main() {
	root := &cobra.Command{
		Use:     "lark-channel",
		Short:   "Lark/Feishu channel adapter",
		Version: fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
		RunE:    run,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Local secrets may live in a .env file; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := exerrors.Must(cfg.Logging.Compile())

	source := &staticAccounts{accounts: cfg.Accounts}
	conn, err := connector.New(cfg.Channel, source, *log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	for _, id := range source.AccountIDs() {
		accountLog := log.With().Str("account_id", id).Logger()
		err := conn.Start(ctx, gateway.StartParams{
			AccountID: id,
			Handlers:  loggingHandlers(accountLog),
		})
		if err != nil {
			return fmt.Errorf("failed to start account %q: %w", id, err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	return conn.Stop()
}

// loadConfig reads and parses the config file, expanding ${VAR} references
// so credentials can stay in the environment.
func loadConfig(path string) (*runtimeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg runtimeConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	if len(cfg.Logging.Writers) == 0 {
		cfg.Logging.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
	return &cfg, nil
}

// loggingHandlers is the standalone host: it logs everything the adapter
// surfaces.
func loggingHandlers(log zerolog.Logger) gateway.Handlers {
	return gateway.Handlers{
		OnMessage: func(msg gateway.Message) {
			log.Info().
				Str("message_id", msg.ID).
				Str("sender_id", msg.Sender.ID).
				Str("sender_name", msg.Sender.Name).
				Str("conversation_id", msg.ConversationID).
				Str("conversation_kind", string(msg.ConversationKind)).
				Str("text", msg.Text).
				Msg("Message received")
		},
		OnEvent: func(evt gateway.Event) {
			log.Debug().Str("event_type", evt.Type).Msg("Event received")
		},
		OnStatus: func(st gateway.Status) {
			log.Info().Str("status", st.Status).Str("error", st.Error).Msg("Status changed")
		},
	}
}
