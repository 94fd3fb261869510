package service

import (
	"context"
	"log/slog"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
)

// AuthAPI は認証に必要なリモートAPI (apiclient.Client が満たす)
type AuthAPI interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	Signup(ctx context.Context, req model.SignupRequest) (*model.User, error)
}

// AuthService はログイン・新規登録・ログアウトを扱います。
type AuthService interface {
	Login(ctx context.Context, username, password string) (*model.Credential, error)
	Signup(ctx context.Context, username, password string) (*model.User, error)
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) (*model.Credential, error)
}

type authService struct {
	api    AuthAPI
	store  CredentialStore
	logger *slog.Logger
}

func NewAuthService(api AuthAPI, store CredentialStore, logger *slog.Logger) AuthService {
	return &authService{api: api, store: store, logger: logger}
}

func (s *authService) Login(ctx context.Context, username, password string) (*model.Credential, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("username", username)

	resp, err := s.api.Login(ctx, model.LoginRequest{Username: username, Password: password})
	if err != nil {
		logger.Warn("Login failed", "error", err)
		return nil, err
	}

	cred, err := s.store.Save(ctx, resp.AccessToken)
	if err != nil {
		return nil, err
	}
	logger.Info("Logged in")
	return cred, nil
}

func (s *authService) Signup(ctx context.Context, username, password string) (*model.User, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("username", username)

	user, err := s.api.Signup(ctx, model.SignupRequest{Username: username, Password: password})
	if err != nil {
		logger.Warn("Signup failed", "error", err)
		return nil, err
	}
	// 登録後もログインは別途必要 (自動ログインしない)
	logger.Info("Signed up", "user_id", user.ID)
	return user, nil
}

func (s *authService) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func (s *authService) Whoami(ctx context.Context) (*model.Credential, error) {
	return s.store.Current(ctx)
}
