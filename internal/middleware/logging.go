package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// logCtxKey はコンテキストにロガーを格納するためのキーです。
type logCtxKey struct{}

// sensitiveHeaders はログ出力時に値をマスキングするヘッダー名のリストです (小文字で定義)。
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true, // リクエストヘッダー
	"set-cookie":    true, // レスポンスヘッダー
	"x-api-key":     true,
	"x-csrf-token":  true,
}

// sensitiveFields はログ出力時に値をマスキングする JSON ボディのフィールド名です (小文字で定義)。
var sensitiveFields = map[string]bool{
	"password":      true,
	"access_token":  true,
	"refresh_token": true,
}

// maxLoggedBody はデバッグログに載せるボディの最大長。音声のbase64が長大になるため切り詰める
const maxLoggedBody = 2048

// RoundTripperFunc は関数を http.RoundTripper として扱うためのアダプタです。
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Middleware は http.RoundTripper をラップする関数です。
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain は base に mws を適用します。mws[0] が最も外側になります。
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// LoggingMiddleware はリクエスト/レスポンスのログ出力を一元管理するミドルウェアです。
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			startTime := time.Now()
			requestLogger := GetLoggerOr(r.Context(), logger)

			requestLogger.Info("Request started",
				"method", r.Method,
				"path", r.URL.Path,
			)

			// リクエストボディを安全に読み取る (デバッグ用)
			var reqBodyBytes []byte
			if requestLogger.Enabled(r.Context(), slog.LevelDebug) && r.Body != nil && r.GetBody != nil {
				if body, err := r.GetBody(); err == nil {
					reqBodyBytes, _ = io.ReadAll(body)
					body.Close()
				}
			}

			resp, err := next.RoundTrip(r)
			latency := time.Since(startTime)
			if err != nil {
				requestLogger.Warn("Request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"latency_ms", float64(latency.Nanoseconds())/1e6,
					"error", err,
				)
				return nil, err
			}

			logLevel := slog.LevelInfo
			if resp.StatusCode >= 500 {
				logLevel = slog.LevelError
			} else if resp.StatusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			requestLogger.Log(r.Context(), logLevel, "Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", resp.StatusCode,
				"latency_ms", float64(latency.Nanoseconds())/1e6,
			)

			if requestLogger.Enabled(r.Context(), slog.LevelDebug) {
				requestLogger.Debug("Request detail",
					"headers", formatHeaders(r.Header),
					"body", truncate(maskBody(reqBodyBytes)),
				)
				// レスポンスボディは読み取ってから元に戻す
				var respBody []byte
				if resp.Body != nil {
					respBody, _ = io.ReadAll(resp.Body)
					resp.Body.Close()
					resp.Body = io.NopCloser(bytes.NewReader(respBody))
				}
				requestLogger.Debug("Response detail",
					"status", resp.StatusCode,
					"headers", formatHeaders(resp.Header),
					"body", truncate(maskBody(respBody)),
				)
			}
			return resp, nil
		})
	}
}

// WithLogger はロガーをコンテキストに格納します。
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey{}, logger)
}

// GetLogger はコンテキストから slog.Logger を取得します。
func GetLogger(ctx context.Context) *slog.Logger {
	return GetLoggerOr(ctx, slog.Default())
}

// GetLoggerOr はコンテキストにロガーがなければ fallback を返します。
func GetLoggerOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(logCtxKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// formatHeaders はヘッダー情報をログ出力用に整形・マスキングするヘルパー関数
func formatHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for key, values := range headers {
		lowerKey := strings.ToLower(key)
		if sensitiveHeaders[lowerKey] {
			result[key] = "[SENSITIVE]"
		} else {
			result[key] = strings.Join(values, ", ")
		}
	}
	return result
}

// maskBody は JSON ボディ内のセンシティブなフィールドをマスキングします。JSON でなければそのまま返します。
func maskBody(body []byte) string {
	if len(body) == 0 || !json.Valid(body) {
		return string(body)
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return string(body)
	}
	masked, err := json.Marshal(maskFields(data))
	if err != nil {
		return "[unloggable body]"
	}
	return string(masked)
}

func maskFields(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			if sensitiveFields[strings.ToLower(key)] {
				v[key] = "[SENSITIVE]"
				continue
			}
			v[key] = maskFields(value)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = maskFields(item)
		}
		return v
	default:
		return v
	}
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
