// Copyright 2024-2026 Aiku AI

// Package gateway defines the generic channel plugin contract between the
// host gateway and a platform adapter. The host registers callbacks for
// normalized messages, raw platform events and connectivity status; the
// adapter consumes account resolution and drives the callbacks.
package gateway

import "context"

// ChatKind classifies a conversation as one-to-one or multi-party.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// MediaKind classifies outbound media payloads.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaFile  MediaKind = "file"
)

// Sender identifies the author of an inbound message.
type Sender struct {
	ID   string
	Name string
}

// Message is a platform message normalized for the host. It is immutable
// once handed over; the adapter does not retain it.
type Message struct {
	ID               string
	Kind             string
	Text             string
	Sender           Sender
	ConversationID   string
	ConversationKind ChatKind
	TimestampMs      int64
	// ReplyToID is the message this one replies to, if any.
	ReplyToID string
	// RawEvent carries the unmodified platform payload for hosts that
	// need platform-specific fields.
	RawEvent []byte
}

// Event is a non-message platform event forwarded to the host unchanged.
type Event struct {
	Type string
	Raw  []byte
}

// Status values reported through OnStatus.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	// StatusReady is the adapter-level signal that the session is fully
	// started, distinct from the transport-level connected status.
	StatusReady = "ready"
)

// Status is a connectivity transition observed by the host.
type Status struct {
	Status string
	Error  string
}

// Handlers is the callback set a host registers when starting a session.
type Handlers struct {
	OnMessage func(Message)
	OnEvent   func(Event)
	OnStatus  func(Status)
}

// AccountConfig is a bot identity resolved by the host.
type AccountConfig struct {
	ID        string `yaml:"id" json:"id"`
	AppID     string `yaml:"app_id" json:"app_id"`
	AppSecret string `yaml:"app_secret" json:"app_secret"`
	// Domain selects the platform region, one of the two fixed platform
	// domains understood by the adapter.
	Domain string `yaml:"domain" json:"domain"`
}

// AccountSource resolves configured bot identities by ID.
type AccountSource interface {
	AccountIDs() []string
	Account(id string) (AccountConfig, bool)
}

// StartParams carries everything the adapter needs to start one inbound
// session for one account.
type StartParams struct {
	AccountID string
	Handlers  Handlers
}

// SendContext addresses an outbound message.
type SendContext struct {
	ConversationID   string
	ConversationKind ChatKind
	// RecipientID overrides ConversationID as the delivery target when set.
	RecipientID string
}

// Media describes an outbound attachment. When Data is empty the adapter
// fetches the bytes from URL before uploading.
type Media struct {
	URL  string
	Data []byte
	Kind MediaKind
	Name string
}

// DeliveryResult reports the outcome of a text send. Errors are carried in
// the result; send operations never panic across this boundary.
type DeliveryResult struct {
	OK        bool
	MessageID string
	Error     string
}

// MediaDeliveryResult reports the outcome of a two-phase media send.
type MediaDeliveryResult struct {
	OK        bool
	MessageID string
	MediaKey  string
	Error     string
}

// Capabilities describes what the adapter supports, for host feature gating.
type Capabilities struct {
	ChatKinds    []ChatKind
	MediaKinds   []MediaKind
	Reactions    bool
	Threads      bool
	Mentions     bool
	ReplyContext bool
}

// Channel is the interface a platform adapter exposes to the host.
type Channel interface {
	Capabilities() Capabilities
	Start(ctx context.Context, params StartParams) error
	Stop() error
	// VerifySignature checks a webhook delivery signature. Hosts that
	// terminate HTTP themselves call this before forwarding payloads.
	VerifySignature(payload []byte, signature, timestamp string) bool
}

// Outbound is the send surface the host uses to deliver messages through
// the adapter.
type Outbound interface {
	SendText(ctx context.Context, accountID, text string, sctx SendContext) DeliveryResult
	SendMedia(ctx context.Context, accountID string, media Media, sctx SendContext) MediaDeliveryResult
}
