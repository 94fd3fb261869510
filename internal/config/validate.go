package config

import (
	"errors"
	"fmt"

	"go_voicecards/internal/webutil"

	"github.com/go-playground/validator/v10"
)

// Validate は読み込んだ設定値を検証します。
func (c *Config) Validate() error {
	if err := webutil.Validator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("config.Validate: %w", webutil.NewValidationError(verrs))
		}
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}
