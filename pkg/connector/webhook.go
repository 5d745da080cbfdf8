// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// Webhook delivery headers.
const (
	headerRequestTimestamp = "X-Lark-Request-Timestamp"
	headerSignature        = "X-Lark-Signature"
)

// maxWebhookBodySize caps webhook request bodies (1 MB).
const maxWebhookBodySize = 1 << 20

// webhookServer wraps the inbound HTTP listener for webhook-mode sessions.
type webhookServer struct {
	srv *http.Server
}

func (ws *webhookServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ws.srv.Shutdown(ctx)
}

// startWebhook starts the inbound HTTP listener instead of dialing out. The
// listener is bound synchronously so the ready status is accurate.
func (s *Session) startWebhook() error {
	cfg := s.connector.config.Webhook

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWebhookRequest)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrSessionStopped
	}
	s.server = &webhookServer{srv: srv}
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Webhook server error")
		}
	}()

	s.log.Info().Str("addr", cfg.Addr).Str("path", cfg.Path).Msg("Webhook listener started")
	s.emitStatus(gateway.StatusReady, "")
	return nil
}

// handleWebhookRequest accepts one POSTed event payload. Signature checks
// run before any processing; endpoint verification probes are echoed; all
// other payloads run the normal pipeline and are acknowledged with 200
// regardless of downstream outcome.
func (s *Session) handleWebhookRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if s.connector.config.Webhook.Secret != "" {
		sig := r.Header.Get(headerSignature)
		ts := r.Header.Get(headerRequestTimestamp)
		if !s.connector.VerifySignature(body, sig, ts) {
			s.log.Warn().Err(ErrSignatureMismatch).Str("remote_addr", r.RemoteAddr).Msg("Rejecting webhook delivery")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	evt, err := parseInboundEvent(body)
	if err != nil {
		// Protocol errors are absorbed; the platform only needs an ack.
		s.log.Warn().Err(err).Msg("Dropping malformed webhook payload")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	if evt.Kind == eventKindVerification {
		resp, err := json.Marshal(map[string]string{"challenge": evt.Challenge})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
		return
	}

	s.handleInbound(evt)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// VerifySignature checks a webhook delivery signature. The platform's scheme
// signs timestamp and secret only; the payload parameter is part of the host
// contract and does not enter the computation. With no secret configured
// every delivery passes.
func (c *LarkConnector) VerifySignature(payload []byte, signature, timestamp string) bool {
	_ = payload
	secret := c.config.Webhook.Secret
	if secret == "" {
		return true
	}
	expected := computeSignature(timestamp, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// computeSignature is the HMAC-SHA256 of (timestamp ++ secret) keyed by the
// secret, base64-encoded.
func computeSignature(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
