// Package apiclient は voicecards APIのクライアントです。
// 永続化、文字起こし、類似度評価、言い換え生成はすべてサーバー側で行われ、
// このパッケージはHTTPで呼び出すだけです。
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
	"go_voicecards/internal/webutil"
)

// Client はAPIクライアント。認証ヘッダーやログは httpClient の Transport (middleware) が付与する
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New は baseURL (例: http://localhost:8000) に対するクライアントを作成します。
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient.New: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient.New: unsupported scheme %q: %w", u.Scheme, model.ErrInvalidInput)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

// BaseURL はAPIのベースURLを返します。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do はリクエストを送信し、レスポンスを dst にデコードします。
// 401 は model.ErrUnauthorized、通信失敗は model.ErrTransport として返します。
func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) error {
	logger := middleware.GetLogger(ctx)

	reqBody, err := webutil.EncodeJSONBody(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return fmt.Errorf("apiclient.do: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.Warn("API request failed", "method", method, "path", path, "error", err)
		appErr := model.NewAppError("TRANSPORT_ERROR", "サーバーに接続できませんでした。", "", model.ErrTransport)
		return fmt.Errorf("%s %s: %w: %w", method, path, appErr, err)
	}

	if err := webutil.HandleResponse(resp, dst); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}
