// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// endpointCall records one API request made during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeLark wraps an httptest.Server simulating the platform API. It records
// calls and serves canned responses; individual response codes can be
// overridden per endpoint to exercise failure paths.
type fakeLark struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Canned auth exchange response.
	Token     string
	ExpireSec int64
	AuthCode  int
	AuthMsg   string

	// Canned send response.
	MessageID string
	SendCode  int
	SendMsg   string

	// Canned upload response.
	ImageKey   string
	UploadCode int
	UploadMsg  string

	// Users maps open_id to (name, nick_name) pairs for user lookup.
	Users map[string][2]string
	// FailEndpoints causes matching path prefixes to return HTTP 500.
	FailEndpoints map[string]bool
}

func newFakeLark() *fakeLark {
	f := &fakeLark{
		Token:         "test-token",
		ExpireSec:     7200,
		MessageID:     "om_test1",
		ImageKey:      "img_key_1",
		Users:         make(map[string][2]string),
		FailEndpoints: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeLark) Close() {
	f.Server.Close()
}

func (f *fakeLark) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{
		Method: r.Method,
		Path:   r.URL.Path + "?" + r.URL.RawQuery,
		Body:   string(body),
	})
}

// CallCount returns the number of recorded calls whose path starts with
// the given prefix.
func (f *fakeLark) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call matching the path prefix.
func (f *fakeLark) LastCall(prefix string) (endpointCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if strings.HasPrefix(f.calls[i].Path, prefix) {
			return f.calls[i], true
		}
	}
	return endpointCall{}, false
}

func (f *fakeLark) handler(w http.ResponseWriter, r *http.Request) {
	f.record(r)

	for prefix := range f.FailEndpoints {
		if f.FailEndpoints[prefix] && strings.HasPrefix(r.URL.Path, prefix) {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/open-apis/auth/v3/tenant_access_token"):
		if f.AuthCode != 0 {
			fmt.Fprintf(w, `{"code":%d,"msg":%q}`, f.AuthCode, f.AuthMsg)
			return
		}
		fmt.Fprintf(w, `{"code":0,"msg":"ok","tenant_access_token":%q,"expire":%d}`, f.Token, f.ExpireSec)

	case strings.HasPrefix(r.URL.Path, "/open-apis/im/v1/messages"):
		if f.SendCode != 0 {
			fmt.Fprintf(w, `{"code":%d,"msg":%q}`, f.SendCode, f.SendMsg)
			return
		}
		fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"message_id":%q}}`, f.MessageID)

	case strings.HasPrefix(r.URL.Path, "/open-apis/im/v1/images"):
		if f.UploadCode != 0 {
			fmt.Fprintf(w, `{"code":%d,"msg":%q}`, f.UploadCode, f.UploadMsg)
			return
		}
		fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"image_key":%q}}`, f.ImageKey)

	case strings.HasPrefix(r.URL.Path, "/open-apis/contact/v3/users/"):
		openID := strings.TrimPrefix(r.URL.Path, "/open-apis/contact/v3/users/")
		names, ok := f.Users[openID]
		if !ok {
			fmt.Fprint(w, `{"code":99991,"msg":"user not found"}`)
			return
		}
		fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"user":{"open_id":%q,"name":%q,"nick_name":%q,"avatar":{"url":""}}}}`,
			openID, names[0], names[1])

	default:
		http.NotFound(w, r)
	}
}

// testAccounts is a static in-memory account source.
type testAccounts map[string]gateway.AccountConfig

func (t testAccounts) AccountIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	return ids
}

func (t testAccounts) Account(id string) (gateway.AccountConfig, bool) {
	cfg, ok := t[id]
	return cfg, ok
}

// newTestConnector builds a connector with one account pointed at the fake
// platform server.
func newTestConnector(cfg Config, fake *fakeLark) (*LarkConnector, *Account) {
	source := testAccounts{
		"acct1": {ID: "acct1", AppID: "app", AppSecret: "secret", Domain: DomainFeishu},
	}
	c, err := New(cfg, source, zerolog.Nop())
	if err != nil {
		panic(err)
	}
	acct, err := c.resolveAccount("acct1")
	if err != nil {
		panic(err)
	}
	acct.api.baseURL = fake.Server.URL
	return c, acct
}

// callbackRecorder captures host callback invocations for assertions.
type callbackRecorder struct {
	mu       sync.Mutex
	messages []gateway.Message
	events   []gateway.Event
	statuses []gateway.Status
}

func (r *callbackRecorder) Handlers() gateway.Handlers {
	return gateway.Handlers{
		OnMessage: func(msg gateway.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		OnEvent: func(evt gateway.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, evt)
		},
		OnStatus: func(st gateway.Status) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, st)
		},
	}
}

func (r *callbackRecorder) Messages() []gateway.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.Message(nil), r.messages...)
}

func (r *callbackRecorder) Events() []gateway.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.Event(nil), r.events...)
}

func (r *callbackRecorder) StatusCount(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.statuses {
		if st.Status == status {
			n++
		}
	}
	return n
}

// WaitStatus polls until at least n statuses of the given kind were
// observed, or the timeout elapses.
func (r *callbackRecorder) WaitStatus(status string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.StatusCount(status) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// messageFrame builds a platform message event frame for tests.
func messageFrame(senderType, openID, chatID, chatType, msgType, content string) []byte {
	frame := map[string]any{
		"schema": "2.0",
		"header": map[string]any{
			"event_id":    "evt1",
			"event_type":  eventTypeMessage,
			"create_time": "1700000000000",
			"app_id":      "app",
		},
		"event": map[string]any{
			"sender": map[string]any{
				"sender_id":   map[string]any{"open_id": openID},
				"sender_type": senderType,
			},
			"message": map[string]any{
				"message_id":   "om_in1",
				"create_time":  "1700000000123",
				"chat_id":      chatID,
				"chat_type":    chatType,
				"message_type": msgType,
				"content":      content,
			},
		},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		panic(err)
	}
	return data
}
