// internal/webutil/response.go
package webutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go_voicecards/internal/model"
)

// maxErrorBodySize はエラーボディとして読み取る最大バイト数
const maxErrorBodySize = 64 << 10

// HandleResponse はAPIレスポンスを解釈します。
// 2xx の場合は dst にデコードして検証し、それ以外は AppError を返します。
// これがクライアント側のエラーハンドリングの中心となります。
func HandleResponse(resp *http.Response, dst interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewResponseError(resp)
	}

	if dst == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return model.NewAppError("UNEXPECTED_BODY", "サーバーからの応答を解釈できませんでした。", "", fmt.Errorf("%w: %v", model.ErrUnexpectedBody, err))
	}
	if err := ValidateStruct(dst); err != nil {
		return model.NewAppError("UNEXPECTED_BODY", "サーバーからの応答が不正です。", "", fmt.Errorf("%w: %v", model.ErrUnexpectedBody, err))
	}
	return nil
}

// NewResponseError は非2xxレスポンスを AppError に変換します。ボディはここで読み切ります。
func NewResponseError(resp *http.Response) *model.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	sentinel := MapStatusToError(resp.StatusCode)

	appErr := model.NewAppError(codeFor(sentinel), detailMessage(body, resp.StatusCode), "", sentinel)
	appErr.Status = resp.StatusCode
	return appErr
}

// MapStatusToError はHTTPステータスコードをアプリケーションエラーにマッピングします
func MapStatusToError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return model.ErrUnauthorized
	case status == http.StatusForbidden:
		return model.ErrForbidden
	case status == http.StatusNotFound:
		return model.ErrNotFound
	case status == http.StatusConflict:
		return model.ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return model.ErrInvalidInput
	default:
		return model.ErrInternalServer
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, model.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, model.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, model.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, model.ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// detailMessage は {"detail": "..."} または {"detail": [{"msg": "..."}]} からメッセージを取り出します
func detailMessage(body []byte, status int) string {
	var errResp model.APIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch d := errResp.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case []interface{}:
			msgs := make([]string, 0, len(d))
			for _, item := range d {
				if m, ok := item.(map[string]interface{}); ok {
					if msg, ok := m["msg"].(string); ok {
						msgs = append(msgs, msg)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(status)
}
