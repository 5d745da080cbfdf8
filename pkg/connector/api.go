// Copyright 2024-2026 Aiku AI

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/aiku/lark-channel/pkg/gateway"
)

// apiClient is a thin typed client for the platform's HTTP API. One instance
// per account; the base URL is fixed by the account's region domain.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(domain string) *apiClient {
	if domain == "" {
		domain = DomainFeishu
	}
	return &apiClient{
		baseURL: apiBaseURL(domain),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the common response envelope: code is the success
// discriminator (0 means success), msg carries the failure message.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// TenantAccessToken exchanges app credentials for a tenant access token and
// its TTL in seconds. A non-zero response code yields an *AuthError.
func (c *apiClient) TenantAccessToken(ctx context.Context, appID, appSecret string) (token string, expireSec int64, err error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     appID,
		"app_secret": appSecret,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	// The auth endpoint returns its payload at the top level, not under
	// data.
	var out struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int64  `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("token exchange response: %w", err)
	}
	if out.Code != 0 {
		return "", 0, &AuthError{Code: out.Code, Message: out.Msg}
	}
	return out.TenantAccessToken, out.Expire, nil
}

// SendMessage posts one message. The receive_id_type query selects how
// receiveID is interpreted; content is the already-JSON-encoded payload.
func (c *apiClient) SendMessage(ctx context.Context, token, receiveIDType, receiveID, msgType, content string) (messageID string, err error) {
	body, err := json.Marshal(map[string]string{
		"receive_id": receiveID,
		"msg_type":   msgType,
		"content":    content,
	})
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/open-apis/im/v1/messages?receive_id_type=" + url.QueryEscape(receiveIDType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("send message response: %w", err)
	}
	if out.Code != 0 {
		return "", &APIError{Code: out.Code, Message: out.Msg, Op: "send message"}
	}
	var data struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return "", fmt.Errorf("send message data: %w", err)
	}
	return data.MessageID, nil
}

// UploadMedia uploads media bytes tagged by kind and returns the opaque
// media handle the platform assigns.
func (c *apiClient) UploadMedia(ctx context.Context, token string, kind gateway.MediaKind, name string, data []byte) (mediaKey string, err error) {
	imageType := "message"
	if kind == gateway.MediaFile {
		imageType = "file"
	}
	if name == "" {
		name = "upload"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("image_type", imageType); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/im/v1/images", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload media request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload media response: %w", err)
	}
	if out.Code != 0 {
		return "", &APIError{Code: out.Code, Message: out.Msg, Op: "upload media"}
	}
	var payload struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal(out.Data, &payload); err != nil {
		return "", fmt.Errorf("upload media data: %w", err)
	}
	return payload.ImageKey, nil
}

// userProfile is the subset of the user lookup response the adapter uses.
type userProfile struct {
	OpenID   string `json:"open_id"`
	Name     string `json:"name"`
	NickName string `json:"nick_name"`
	Avatar   struct {
		URL string `json:"url"`
	} `json:"avatar"`
}

// GetUser looks up a user profile by open ID.
func (c *apiClient) GetUser(ctx context.Context, token, openID string) (*userProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/open-apis/contact/v3/users/"+url.PathEscape(openID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("user lookup response: %w", err)
	}
	if out.Code != 0 {
		return nil, &APIError{Code: out.Code, Message: out.Msg, Op: "user lookup"}
	}
	var data struct {
		User userProfile `json:"user"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return nil, fmt.Errorf("user lookup data: %w", err)
	}
	return &data.User, nil
}

// FetchBytes downloads media bytes from an arbitrary URL for re-upload.
func (c *apiClient) FetchBytes(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 100<<20))
}
