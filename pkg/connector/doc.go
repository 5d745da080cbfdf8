// Copyright 2024-2026 Aiku AI

// Package connector implements a Lark/Feishu channel adapter for a host
// gateway's generic channel plugin contract.
//
// The adapter bridges the platform's WebSocket push and HTTP webhook event
// surfaces into normalized messages, and turns host send requests into
// platform API calls.
//
// # Core Types
//
// [LarkConnector] implements [gateway.Channel] and [gateway.Outbound]: it
// owns the account registry, the token cache and one session per started
// account.
//
// [Session] is one account's live inbound event source. It maintains the
// WebSocket connection (or the webhook listener), reconnects on a fixed
// delay without bound, gates direct-message senders through the pairing
// state machine, and drives decoded messages into the host's callbacks.
//
// [Account] is one configured bot identity together with its cached tenant
// access token; credentials are never shared across accounts.
//
// # Admission Gating
//
// Direct messages pass through a per-session pairing state machine with
// three policies (open, allowlist, pairing). Unapproved senders are held
// pending, prompted once per gated message, and their events discarded.
// Group conversations bypass the gate.
//
// # Sub-packages
//
//   - larkfmt renders outbound text as interactive card payloads.
package connector
