// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"fmt"
)

// AuthError is returned when the platform rejects a token exchange. It is
// fatal to the operation that attempted it but not to the session; the next
// inbound or outbound attempt retries the exchange.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth exchange rejected (code %d): %s", e.Code, e.Message)
}

// APIError is a non-success discriminator in any platform API response body.
type APIError struct {
	Code    int
	Message string
	Op      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (code %d): %s", e.Op, e.Code, e.Message)
}

// ProtocolError marks an inbound frame or payload that does not parse as the
// platform wire format. Always absorbed: the caller logs and drops the frame;
// it never terminates a session.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ErrSignatureMismatch rejects a webhook delivery whose signature header does
// not match the computed HMAC. The request body is never processed.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// ErrSessionStopped aborts work that races with an explicit stop.
var ErrSessionStopped = errors.New("session stopped")
