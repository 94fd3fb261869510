// internal/model/error.go
package model

import (
	"errors"
	"fmt"
)

// アプリケーション固有のエラー
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("resource conflict")
	ErrUnauthorized   = errors.New("unauthorized")                          // 401。全呼び出し箇所で共通の扱い (ログアウト + ログイン画面へ)
	ErrTransport      = errors.New("request did not reach the server")      // ネットワークエラー等
	ErrNotLoggedIn    = errors.New("not logged in")                         // ローカルに有効な認証情報がない
	ErrMicrophone     = errors.New("cannot access microphone")              // 録音デバイスを開けない
	ErrEmptyAudio     = errors.New("recorded audio is empty")               // 送信できる音声がない
	ErrUnexpectedBody = errors.New("unexpected response body from the API") // レスポンスのデコード/検証失敗
)

// AppError はAPI呼び出しやアプリ内部で発生したエラーの詳細を保持します。
type AppError struct {
	Code    string // 例: "NOT_FOUND"
	Message string // ユーザーに表示するメッセージ
	Field   string // バリデーションエラー時の対象フィールド
	Status  int    // HTTPステータス (APIエラーの場合のみ)
	Err     error  // 根本原因 (sentinel error)
}

func NewAppError(code, message, field string, err error) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Err: err}
}

func (e *AppError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// APIErrorResponse はFastAPI形式のエラーボディ ({"detail": ...})
// detail は文字列またはバリデーションエラーの配列になる
type APIErrorResponse struct {
	Detail any `json:"detail"`
}

// IsUnauthorized は err が認証エラーかどうかを判定します。
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
