// Copyright 2024-2026 Aiku AI

package connector

import "github.com/aiku/lark-channel/pkg/gateway"

// The two fixed platform regions.
const (
	DomainFeishu = "open.feishu.cn"
	DomainLark   = "open.larksuite.com"
)

// wsMessagesPath is the event push endpoint appended to the region domain.
const wsMessagesPath = "/open-apis/ws/messages"

// apiBaseURL returns the HTTPS API root for a region domain.
func apiBaseURL(domain string) string {
	return "https://" + domain
}

// wsMessagesURL returns the WebSocket event source URL for a region domain.
// The bearer token is appended as a query parameter by the session.
func wsMessagesURL(domain string) string {
	return "wss://" + domain + wsMessagesPath
}

// receiveIDKind maps a conversation kind to the platform's receive_id_type
// selector: group messages are addressed by conversation ID, direct messages
// by the recipient's open ID.
func receiveIDKind(kind gateway.ChatKind) string {
	if kind == gateway.ChatGroup {
		return "chat_id"
	}
	return "open_id"
}

// chatKind maps the platform's two-valued chat type to the normalized kind.
func chatKind(platformType string) gateway.ChatKind {
	if platformType == "p2p" {
		return gateway.ChatDirect
	}
	return gateway.ChatGroup
}
