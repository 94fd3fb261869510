package mocks

import (
	"context"

	"go_voicecards/internal/model"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// CredentialRepository は repository.CredentialRepository のモック
type CredentialRepository struct {
	mock.Mock
}

func (m *CredentialRepository) Save(ctx context.Context, db *gorm.DB, cred *model.Credential) error {
	args := m.Called(ctx, db, cred)
	return args.Error(0)
}

func (m *CredentialRepository) Find(ctx context.Context, db *gorm.DB) (*model.Credential, error) {
	args := m.Called(ctx, db)
	cred, _ := args.Get(0).(*model.Credential)
	return cred, args.Error(1)
}

func (m *CredentialRepository) Delete(ctx context.Context, db *gorm.DB) error {
	args := m.Called(ctx, db)
	return args.Error(0)
}
