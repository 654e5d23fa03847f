// Package callable はリモートのcallableプロシージャ（入出金など）を呼び出すクライアントを提供します。
package callable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Code はプロシージャが返すエラー種別です。
type Code string

const (
	CodeUnauthenticated    Code = "unauthenticated"
	CodeInvalidArgument    Code = "invalid-argument"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeNotFound           Code = "not-found"
	CodeInternal           Code = "internal"
)

// Error はプロシージャが失敗を返したときのエラーです。
type Error struct {
	Endpoint string
	Code     Code
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("callable %s: %s: %s", e.Endpoint, e.Code, e.Message)
}

// Result は成功時のレスポンスです。Dataはエンドポイントごとに形が異なります。
type Result struct {
	Data json.RawMessage
}

// Decode はDataをvへデコードします。
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// envelope は {success, data?, error?{code,message}} 形式のレスポンスです。
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Config はクライアントの接続設定です。
type Config struct {
	BaseURL string
	APIKey  string
}

// Client は POST {base}/{endpoint} でプロシージャを呼び出します。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient はClientを生成します。httpClientがnilの場合はhttp.DefaultClientを使います。
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}
}

// Call はendpointへpayloadを送ります。
// プロシージャが失敗を返した場合は *Error を、通信やデコードの失敗はそれ以外のエラーを返します。
func (c *Client) Call(ctx context.Context, endpoint string, payload any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("callable %s: marshal payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("callable %s: create request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("callable %s: http request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("callable %s: read response: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return Result{}, &Error{Endpoint: endpoint, Code: CodeInternal, Message: fmt.Sprintf("http %d", resp.StatusCode)}
		}
		return Result{}, fmt.Errorf("callable %s: decode response: %w", endpoint, err)
	}

	if env.Error != nil {
		code := env.Error.Code
		if code == "" {
			code = CodeInternal
		}
		return Result{}, &Error{Endpoint: endpoint, Code: code, Message: env.Error.Message}
	}
	if !env.Success || resp.StatusCode >= 400 {
		return Result{}, &Error{Endpoint: endpoint, Code: CodeInternal, Message: fmt.Sprintf("http %d: call not successful", resp.StatusCode)}
	}
	return Result{Data: env.Data}, nil
}
