package middleware

import (
	"context"
	"errors"
	"net/http"

	"go_voicecards/internal/model"
)

// TokenSource はベアラートークンの取得元です。
// ログインしていない場合は model.ErrNotLoggedIn を返します。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BearerAuth は Authorization: Bearer ヘッダーを付与するミドルウェアです。
// トークンがない場合はヘッダーなしで送信し、サーバーの 401 に判断を委ねます。
func BearerAuth(src TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			logger := GetLogger(r.Context())

			if r.Header.Get("Authorization") != "" {
				return next.RoundTrip(r)
			}

			token, err := src.Token(r.Context())
			switch {
			case errors.Is(err, model.ErrNotLoggedIn):
				logger.Debug("No stored credential, sending request without Authorization header")
				return next.RoundTrip(r)
			case err != nil:
				logger.Error("Failed to load bearer token", "error", err)
				return nil, err
			}

			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}
