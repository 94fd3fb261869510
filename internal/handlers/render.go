package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go_voicecards/internal/model"
	"go_voicecards/internal/service"
)

// loginHint はログイン画面の代わりに表示する案内
const loginHint = "ログインしてください: voicecards login <ユーザー名> <パスワード>"

// ANSI エスケープ (強調表示)
const (
	ansiMark  = "\x1b[1;33m"
	ansiReset = "\x1b[0m"
)

// view は全ハンドラ共通の出力先と 401 の扱いをまとめます。
type view struct {
	mu     sync.Mutex
	out    io.Writer
	creds  service.CredentialStore
	logger *slog.Logger
}

func newView(out io.Writer, creds service.CredentialStore, logger *slog.Logger) *view {
	if logger == nil {
		logger = slog.Default()
	}
	return &view{out: out, creds: creds, logger: logger}
}

func (v *view) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *view) println(args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, args...)
}

// handleError はエラーをユーザー向けに表示し、そのまま返します。
// 401 の場合は保存済みの認証情報を消してログインを促します (全呼び出し箇所で共通)。
func (v *view) handleError(ctx context.Context, logger *slog.Logger, err error) error {
	switch {
	case model.IsUnauthorized(err), errors.Is(err, model.ErrNotLoggedIn):
		logger.Info("Not authenticated, clearing credentials", "error", err)
		if clearErr := v.creds.Clear(ctx); clearErr != nil {
			logger.Error("Failed to clear credentials", "error", clearErr)
		}
		v.println(loginHint)
		return err
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		logger.Warn("Request failed", "code", appErr.Code, "error", err)
		v.printf("エラー: %s\n", appErr.Message)
		return err
	}

	logger.Error("Unhandled error", "error", err)
	v.println("エラー: 予期しないエラーが発生しました。")
	return err
}

// highlight は <mark>...</mark> で囲まれた一致箇所を端末向けに強調します。
func highlight(s string, color bool) string {
	open, closeMark := "[", "]"
	if color {
		open, closeMark = ansiMark, ansiReset
	}
	r := strings.NewReplacer("<mark>", open, "</mark>", closeMark)
	return html.UnescapeString(r.Replace(s))
}

// truncate は表示用に rune 単位で切り詰めます。
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
