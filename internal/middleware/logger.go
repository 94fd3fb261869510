// internal/middleware/logger.go
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewStructuredLogger はサーバー側 (テスト用の偽APIサーバー) のアクセスログです。
// chimiddleware.RequestID の後ろに置くと、クライアントが送った X-Request-ID がそのまま request_id になります。
func NewStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()
			reqLogger := logger.With(slog.String("request_id", chimiddleware.GetReqID(r.Context())))

			defer func() {
				level := slog.LevelInfo
				if ww.Status() >= 500 {
					level = slog.LevelError
				} else if ww.Status() >= 400 {
					level = slog.LevelWarn
				}

				latency := time.Since(t1)
				reqLogger.LogAttrs(r.Context(), level, "Request served",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes_out", ww.BytesWritten()),
					slog.Float64("latency_ms", float64(latency.Nanoseconds())/1e6),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), reqLogger)))
		}
		return http.HandlerFunc(fn)
	}
}
