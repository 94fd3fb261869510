package repository

import (
	"context"
	"errors"
	"fmt"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"

	"gorm.io/gorm"
)

// CredentialRepository はローカルに保存した認証情報を扱います。保存されるのは常に1件です。
type CredentialRepository interface {
	Save(ctx context.Context, db *gorm.DB, cred *model.Credential) error
	Find(ctx context.Context, db *gorm.DB) (*model.Credential, error)
	Delete(ctx context.Context, db *gorm.DB) error
}

type gormCredentialRepository struct{}

func NewGormCredentialRepository() CredentialRepository {
	return &gormCredentialRepository{}
}

// Save は既存の認証情報を置き換えます。
func (r *gormCredentialRepository) Save(ctx context.Context, db *gorm.DB, cred *model.Credential) error {
	logger := middleware.GetLogger(ctx)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Credential{}).Error; err != nil {
			return err
		}
		cred.ID = 0
		return tx.Create(cred).Error
	})
	if err != nil {
		logger.Error("Failed to save credential", "error", err)
		return fmt.Errorf("gormCredentialRepository.Save: %w", err)
	}
	return nil
}

func (r *gormCredentialRepository) Find(ctx context.Context, db *gorm.DB) (*model.Credential, error) {
	logger := middleware.GetLogger(ctx)
	var cred model.Credential
	if err := db.WithContext(ctx).Order("id DESC").First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Failed to find credential", "error", err)
		return nil, fmt.Errorf("gormCredentialRepository.Find: %w", err)
	}
	return &cred, nil
}

func (r *gormCredentialRepository) Delete(ctx context.Context, db *gorm.DB) error {
	logger := middleware.GetLogger(ctx)
	if err := db.WithContext(ctx).Where("1 = 1").Delete(&model.Credential{}).Error; err != nil {
		logger.Error("Failed to delete credential", "error", err)
		return fmt.Errorf("gormCredentialRepository.Delete: %w", err)
	}
	return nil
}
