package webutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go_voicecards/internal/model"

	"github.com/go-playground/validator/v10"
)

// EncodeJSONBody はリクエストDTOを検証してJSONにエンコードします。
// src が nil の場合はボディなし (nil) を返します。
func EncodeJSONBody(src interface{}) (io.Reader, error) {
	if src == nil {
		return nil, nil
	}
	if err := ValidateStruct(src); err != nil {
		return nil, err
	}
	b, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("webutil.EncodeJSONBody: %w", err)
	}
	return bytes.NewReader(b), nil
}

// ValidateStruct は構造体タグに基づく検証を行い、失敗時は AppError (ErrInvalidInput) を返します。
func ValidateStruct(v interface{}) error {
	err := Validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	// InvalidValidationError (構造体以外が渡された等) は検証対象外として扱う
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return fmt.Errorf("webutil.ValidateStruct: %w", err)
}

// NewValidationError は validator のエラーを翻訳済みメッセージ付きの AppError に変換します。
func NewValidationError(errs validator.ValidationErrors) *model.AppError {
	fields := make([]string, 0, len(errs))
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field())
		messages = append(messages, fe.Translate(Trans))
	}
	return model.NewAppError("VALIDATION_ERROR", joinNonEmpty(messages, " "), joinNonEmpty(fields, ","), model.ErrInvalidInput)
}

func joinNonEmpty(items []string, sep string) string {
	var buf bytes.Buffer
	for _, s := range items {
		if s == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(s)
	}
	return buf.String()
}
