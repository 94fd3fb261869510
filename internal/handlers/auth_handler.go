package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
	"go_voicecards/internal/service"
)

type AuthHandler struct {
	*view
	service service.AuthService
}

func NewAuthHandler(s service.AuthService, creds service.CredentialStore, out io.Writer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{view: newView(out, creds, logger), service: s}
}

// Signup は新規ユーザーを登録します。登録後のログインは別途必要です。
func (h *AuthHandler) Signup(ctx context.Context, username, password string) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Signup"))

	user, err := h.service.Signup(ctx, username, password)
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) && (errors.Is(err, model.ErrInvalidInput) || errors.Is(err, model.ErrConflict)) {
			logger.Info("Signup rejected", "code", appErr.Code)
			h.printf("登録できませんでした: %s\n", appErr.Message)
			return err
		}
		return h.handleError(ctx, logger, err)
	}
	h.printf("ユーザー %q を登録しました。続けてログインしてください: voicecards login %s <パスワード>\n", user.Username, user.Username)
	return nil
}

// Login はログインしてトークンを保存します。
func (h *AuthHandler) Login(ctx context.Context, username, password string) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Login"))

	cred, err := h.service.Login(ctx, username, password)
	if err != nil {
		if model.IsUnauthorized(err) {
			// ログイン画面での 401 は資格情報の誤り
			logger.Info("Login rejected")
			h.println("ユーザー名またはパスワードが正しくありません。")
			return err
		}
		return h.handleError(ctx, logger, err)
	}

	if cred.ExpiresAt != nil {
		h.printf("%s としてログインしました (有効期限: %s)\n", cred.Username, cred.ExpiresAt.Local().Format("2006-01-02 15:04"))
	} else {
		h.printf("%s としてログインしました\n", cred.Username)
	}
	return nil
}

func (h *AuthHandler) Logout(ctx context.Context) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Logout"))
	if err := h.service.Logout(ctx); err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.println("ログアウトしました。")
	return nil
}

func (h *AuthHandler) Whoami(ctx context.Context) error {
	cred, err := h.service.Whoami(ctx)
	if errors.Is(err, model.ErrNotLoggedIn) {
		h.println("ログインしていません。")
		h.println(loginHint)
		return err
	}
	if err != nil {
		return h.handleError(ctx, middleware.GetLoggerOr(ctx, h.logger), err)
	}
	h.println(cred.Username)
	return nil
}
