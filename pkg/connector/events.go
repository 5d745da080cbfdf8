// Copyright 2024-2026 Aiku AI

package connector

import "encoding/json"

// Platform event type carried in the envelope header for new messages.
const eventTypeMessage = "im.message.receive_v1"

// senderKindApp marks an event authored by the bot application itself.
const senderKindApp = "app"

// eventKind discriminates parsed inbound events.
type eventKind int

const (
	// eventKindMessage is a chat message sub-event.
	eventKindMessage eventKind = iota
	// eventKindOther is any recognized envelope whose payload the adapter
	// does not model; the raw bytes are preserved opaquely.
	eventKindOther
	// eventKindVerification is the platform's endpoint-ownership probe.
	eventKindVerification
)

// eventEnvelope is the outer frame shared by WebSocket pushes and webhook
// deliveries.
type eventEnvelope struct {
	Schema string      `json:"schema"`
	Header eventHeader `json:"header"`
	Event  json.RawMessage `json:"event"`

	// Verification probes arrive without a header.
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

type eventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	AppID      string `json:"app_id"`
}

// messageEvent is the payload of an im.message.receive_v1 event.
type messageEvent struct {
	Sender struct {
		SenderID struct {
			OpenID string `json:"open_id"`
		} `json:"sender_id"`
		SenderType string `json:"sender_type"`
	} `json:"sender"`
	Message struct {
		MessageID   string `json:"message_id"`
		RootID      string `json:"root_id"`
		ParentID    string `json:"parent_id"`
		CreateTime  string `json:"create_time"`
		ChatID      string `json:"chat_id"`
		ChatType    string `json:"chat_type"`
		MessageType string `json:"message_type"`
		// Content is itself a JSON-encoded string whose shape depends
		// on MessageType.
		Content string `json:"content"`
	} `json:"message"`
}

// inboundEvent is the tagged union handed to the session's event pipeline.
// Exactly one of Message / Challenge is meaningful depending on Kind; Raw
// always carries the unmodified frame.
type inboundEvent struct {
	Kind      eventKind
	Type      string
	Message   *messageEvent
	Challenge string
	Raw       []byte
}

// parseInboundEvent decodes one frame. A frame that is not valid JSON or
// lacks any recognizable shape is a protocol error; the caller logs and
// drops it without terminating the session.
func parseInboundEvent(data []byte) (*inboundEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed event frame", Err: err}
	}

	if env.Type == "url_verification" {
		return &inboundEvent{
			Kind:      eventKindVerification,
			Type:      env.Type,
			Challenge: env.Challenge,
			Raw:       data,
		}, nil
	}

	if env.Header.EventType == eventTypeMessage {
		var msg messageEvent
		if err := json.Unmarshal(env.Event, &msg); err != nil {
			return nil, &ProtocolError{Reason: "malformed message event", Err: err}
		}
		return &inboundEvent{
			Kind:    eventKindMessage,
			Type:    env.Header.EventType,
			Message: &msg,
			Raw:     data,
		}, nil
	}

	return &inboundEvent{
		Kind: eventKindOther,
		Type: env.Header.EventType,
		Raw:  data,
	}, nil
}
