// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// reconnectDelay is the fixed delay before re-establishing a dropped event
// source. Reconnection is unbounded: no backoff, no retry ceiling.
const reconnectDelay = 5 * time.Second

// Session is one account's live inbound event source. All session state --
// account, pairing state, transport handle, reconnect timer -- lives here,
// so multiple sessions coexist without shared hidden state.
type Session struct {
	connector *LarkConnector
	account   *Account
	handlers  gateway.Handlers
	policy    Policy
	tokens    *tokenCache
	users     *userCache

	// pairMu guards pairing against external Approve calls racing the
	// event-processing path.
	pairMu  sync.Mutex
	pairing *PairingState

	log zerolog.Logger

	// Overridable in tests.
	wsURL          string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	server         *webhookServer
	stopped        bool

	stopOnce sync.Once
	stopChan chan struct{}
}

func newSession(c *LarkConnector, acct *Account, handlers gateway.Handlers) *Session {
	return &Session{
		connector:      c,
		account:        acct,
		handlers:       handlers,
		policy:         c.config.DMPolicy,
		tokens:         c.tokens,
		users:          c.users,
		pairing:        newPairingState(c.config.AllowFrom),
		log:            c.log.With().Str("component", "session").Str("account_id", acct.ID).Logger(),
		wsURL:          wsMessagesURL(acct.Domain),
		reconnectDelay: reconnectDelay,
		dialer:         websocket.DefaultDialer,
		stopChan:       make(chan struct{}),
	}
}

// start opens the event source: the webhook listener when configured, the
// WebSocket connection otherwise. A failed first WebSocket dial is not fatal;
// the reconnect loop takes over.
func (s *Session) start(ctx context.Context) error {
	if s.connector.config.Webhook.Enabled {
		return s.startWebhook()
	}
	if err := s.connect(ctx); err != nil {
		if errors.Is(err, ErrSessionStopped) {
			return err
		}
		s.log.Warn().Err(err).Msg("Initial connect failed, scheduling retry")
		s.emitStatus(gateway.StatusDisconnected, err.Error())
		s.scheduleReconnect()
	}
	return nil
}

// connect obtains a token, dials the event source and starts the read loop.
func (s *Session) connect(ctx context.Context) error {
	if s.isStopped() {
		return ErrSessionStopped
	}

	token, err := s.tokens.Token(ctx, s.account)
	if err != nil {
		return err
	}

	wsURL := s.wsURL + "?token=" + url.QueryEscape(token)
	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrSessionStopped
	}
	s.conn = conn
	s.mu.Unlock()

	s.log.Info().Msg("Event source connected")
	s.emitStatus(gateway.StatusConnected, "")
	// Adapter-level readiness, distinct from the transport status.
	s.emitStatus(gateway.StatusReady, "")

	go s.readLoop(conn)
	return nil
}

// readLoop processes frames one at a time in arrival order. Pairing and
// credential mutations on this path are serialized by construction.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleFrame(data)
	}

	if s.isStopped() {
		return
	}
	s.log.Warn().Msg("Event source disconnected")
	s.emitStatus(gateway.StatusDisconnected, "")
	s.scheduleReconnect()
}

// scheduleReconnect arms the fixed-delay reconnect timer, unless one is
// already pending or the session was stopped.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.reconnectTimer != nil {
		return
	}
	s.reconnectTimer = time.AfterFunc(s.reconnectDelay, s.reconnect)
}

// reconnect runs when the timer fires. A fire that races Stop detects the
// stopped state and aborts instead of re-establishing the connection.
func (s *Session) reconnect() {
	s.mu.Lock()
	s.reconnectTimer = nil
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	if err := s.connect(context.Background()); err != nil {
		if errors.Is(err, ErrSessionStopped) {
			return
		}
		s.log.Warn().Err(err).Msg("Reconnect attempt failed")
		s.scheduleReconnect()
	}
}

// Stop terminates the session: cancels any pending reconnect, closes the
// transport and shuts down the webhook listener. Safe to call before start
// and idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	s.mu.Lock()
	s.stopped = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.conn = nil
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

func (s *Session) emitStatus(status, errMsg string) {
	if s.handlers.OnStatus != nil {
		s.handlers.OnStatus(gateway.Status{Status: status, Error: errMsg})
	}
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// handleFrame parses and dispatches one inbound frame. Malformed frames are
// logged and dropped; they never terminate the session.
func (s *Session) handleFrame(data []byte) {
	evt, err := parseInboundEvent(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("Dropping malformed frame")
		return
	}
	s.handleInbound(evt)
}

func (s *Session) handleInbound(evt *inboundEvent) {
	switch evt.Kind {
	case eventKindMessage:
		s.handleMessage(evt)
	case eventKindVerification:
		// Endpoint-ownership probes are answered by the webhook handler;
		// over the socket there is nothing to process.
	default:
		if s.handlers.OnEvent != nil {
			s.handlers.OnEvent(gateway.Event{Type: evt.Type, Raw: evt.Raw})
		}
	}
}

// handleMessage runs the gate/decode/forward pipeline for one message event.
func (s *Session) handleMessage(evt *inboundEvent) {
	msg := decodeMessage(evt.Message, evt.Raw)
	if msg == nil {
		// Own-application echo, dropped silently.
		return
	}

	// Group conversations are not subject to the admission gate.
	if msg.ConversationKind == gateway.ChatDirect {
		s.pairMu.Lock()
		decision := evaluate(msg.Sender.ID, s.policy, s.pairing)
		s.pairMu.Unlock()
		if !decision.Allowed {
			if decision.Reason == ReasonPending {
				s.sendPairingPrompt(msg)
			}
			s.log.Debug().
				Str("sender_id", msg.Sender.ID).
				Str("reason", string(decision.Reason)).
				Msg("Direct message gated")
			return
		}
	}

	msg.Sender.Name = s.users.DisplayName(context.Background(), s.account, msg.Sender.ID)
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(*msg)
	}
}

// sendPairingPrompt tells the sender's conversation how to get the user
// approved. One prompt per gated occurrence; the gated event itself is
// discarded.
func (s *Session) sendPairingPrompt(msg *gateway.Message) {
	prompt := fmt.Sprintf(
		"Pairing required. Ask an operator to approve user %s for account %s.",
		msg.Sender.ID, s.account.ID)
	res := s.connector.SendText(context.Background(), s.account.ID, prompt, gateway.SendContext{
		ConversationID:   msg.ConversationID,
		ConversationKind: msg.ConversationKind,
		RecipientID:      msg.Sender.ID,
	})
	if !res.OK {
		s.log.Warn().Str("error", res.Error).Str("sender_id", msg.Sender.ID).Msg("Pairing prompt send failed")
	}
}

// Approve marks a direct-message sender as operator-approved; their
// subsequent messages pass the gate.
func (s *Session) Approve(userID string) {
	s.pairMu.Lock()
	s.pairing.Pair(userID)
	s.pairMu.Unlock()
	s.log.Info().Str("user_id", userID).Msg("User approved")
}
