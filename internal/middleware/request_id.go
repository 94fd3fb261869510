package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを送るヘッダー名
const RequestIDHeader = "X-Request-ID"

// RequestID は各リクエストに X-Request-ID を付与し、req_id 付きのロガーをコンテキストに格納します。
// 既にヘッダーがある場合はその値を使います。
func RequestID(logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			// RoundTripper は元のリクエストを変更してはいけないのでクローンする
			r = r.Clone(WithLogger(r.Context(), GetLoggerOr(r.Context(), logger).With("req_id", requestID)))
			r.Header.Set(RequestIDHeader, requestID)

			return next.RoundTrip(r)
		})
	}
}
