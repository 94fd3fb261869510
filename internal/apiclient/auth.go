package apiclient

import (
	"context"
	"net/http"

	"go_voicecards/internal/model"
)

// Login はユーザー名とパスワードでアクセストークンを取得します。
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup はユーザーを新規登録します。ログインは別途必要です。
func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", &req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
