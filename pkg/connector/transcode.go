// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/aiku/lark-channel/pkg/connector/larkfmt"
	"github.com/aiku/lark-channel/pkg/gateway"
)

// decodeMessage converts a platform message event to the normalized model.
// It returns nil when the event must be dropped silently: the only such case
// is a sender whose id-kind marks the bot's own application identity (echo
// prevention).
func decodeMessage(evt *messageEvent, raw []byte) *gateway.Message {
	if evt.Sender.SenderType == senderKindApp {
		return nil
	}

	msg := &gateway.Message{
		ID:               evt.Message.MessageID,
		Kind:             evt.Message.MessageType,
		Text:             extractText(evt.Message.Content, evt.Message.MessageType),
		ConversationID:   evt.Message.ChatID,
		ConversationKind: chatKind(evt.Message.ChatType),
		TimestampMs:      parseTimestampMs(evt.Message.CreateTime),
		RawEvent:         raw,
	}
	msg.Sender.ID = evt.Sender.SenderID.OpenID
	msg.Sender.Name = evt.Sender.SenderID.OpenID

	// Prefer the thread root over the direct parent as reply context.
	switch {
	case evt.Message.RootID != "":
		msg.ReplyToID = evt.Message.RootID
	case evt.Message.ParentID != "":
		msg.ReplyToID = evt.Message.ParentID
	}

	return msg
}

// extractText pulls the text field out of the nested content payload. When
// the payload does not parse or carries no text (stickers, images, ...), the
// message kind becomes a bracketed placeholder instead; this never fails.
func extractText(content, messageType string) string {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err == nil && payload.Text != "" {
		return payload.Text
	}
	return "[" + messageType + "]"
}

// parseTimestampMs parses the platform's millisecond-epoch string timestamp,
// falling back to the current time when absent or malformed.
func parseTimestampMs(s string) int64 {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return ms
	}
	return time.Now().UnixMilli()
}

// encodeText renders outbound text into a wire msg_type and JSON-encoded
// content string according to the render mode.
func encodeText(text string, mode RenderMode) (msgType, content string, err error) {
	useCard := mode == RenderCard || (mode == RenderAuto && larkfmt.NeedsCard(text))
	if useCard {
		card, err := json.Marshal(larkfmt.Render(text))
		if err != nil {
			return "", "", err
		}
		return "interactive", string(card), nil
	}

	plain, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", "", err
	}
	return "text", string(plain), nil
}
