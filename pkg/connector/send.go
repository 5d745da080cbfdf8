// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// SendText delivers one text message. The recipient is the explicit
// recipient ID when set, the conversation ID otherwise; the id-kind selector
// follows the conversation kind. Every failure mode is converted to a
// DeliveryResult; nothing escapes this boundary.
func (c *LarkConnector) SendText(ctx context.Context, accountID, text string, sctx gateway.SendContext) gateway.DeliveryResult {
	acct, err := c.resolveAccount(accountID)
	if err != nil {
		return gateway.DeliveryResult{Error: err.Error()}
	}

	token, err := c.tokens.Token(ctx, acct)
	if err != nil {
		return gateway.DeliveryResult{Error: err.Error()}
	}

	msgType, content, err := encodeText(text, c.config.RenderMode)
	if err != nil {
		return gateway.DeliveryResult{Error: err.Error()}
	}

	receiveID := sctx.RecipientID
	if receiveID == "" {
		receiveID = sctx.ConversationID
	}

	messageID, err := acct.api.SendMessage(ctx, token, receiveIDKind(sctx.ConversationKind), receiveID, msgType, content)
	if err != nil {
		c.log.Warn().Err(err).
			Str("account_id", accountID).
			Str("receive_id", receiveID).
			Msg("Text send failed")
		return gateway.DeliveryResult{Error: err.Error()}
	}

	return gateway.DeliveryResult{OK: true, MessageID: messageID}
}

// SendMedia delivers media in two phases: fetch-and-upload, then a message
// referencing the returned media handle. A phase-1 failure short-circuits
// without attempting the send. A phase-2 failure after a successful upload
// is reported as a failed send; the uploaded media is not retracted.
func (c *LarkConnector) SendMedia(ctx context.Context, accountID string, media gateway.Media, sctx gateway.SendContext) gateway.MediaDeliveryResult {
	acct, err := c.resolveAccount(accountID)
	if err != nil {
		return gateway.MediaDeliveryResult{Error: err.Error()}
	}

	token, err := c.tokens.Token(ctx, acct)
	if err != nil {
		return gateway.MediaDeliveryResult{Error: err.Error()}
	}

	data := media.Data
	if len(data) == 0 {
		data, err = acct.api.FetchBytes(ctx, media.URL)
		if err != nil {
			return gateway.MediaDeliveryResult{Error: err.Error()}
		}
	}

	mediaKey, err := acct.api.UploadMedia(ctx, token, media.Kind, media.Name, data)
	if err != nil {
		c.log.Warn().Err(err).
			Str("account_id", accountID).
			Str("media_kind", string(media.Kind)).
			Msg("Media upload failed")
		return gateway.MediaDeliveryResult{Error: err.Error()}
	}

	msgType, content, err := encodeMediaRef(media.Kind, mediaKey)
	if err != nil {
		return gateway.MediaDeliveryResult{MediaKey: mediaKey, Error: err.Error()}
	}

	receiveID := sctx.RecipientID
	if receiveID == "" {
		receiveID = sctx.ConversationID
	}

	messageID, err := acct.api.SendMessage(ctx, token, receiveIDKind(sctx.ConversationKind), receiveID, msgType, content)
	if err != nil {
		c.log.Warn().Err(err).
			Str("account_id", accountID).
			Str("media_key", mediaKey).
			Msg("Media send failed after successful upload")
		return gateway.MediaDeliveryResult{MediaKey: mediaKey, Error: err.Error()}
	}

	return gateway.MediaDeliveryResult{OK: true, MessageID: messageID, MediaKey: mediaKey}
}

// encodeMediaRef builds the wire msg_type and content for a message that
// references an uploaded media handle.
func encodeMediaRef(kind gateway.MediaKind, mediaKey string) (msgType, content string, err error) {
	var payload []byte
	if kind == gateway.MediaFile {
		payload, err = json.Marshal(map[string]string{"file_key": mediaKey})
		msgType = "file"
	} else {
		payload, err = json.Marshal(map[string]string{"image_key": mediaKey})
		msgType = "image"
	}
	if err != nil {
		return "", "", err
	}
	return msgType, string(payload), nil
}
