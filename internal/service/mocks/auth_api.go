package mocks

import (
	"context"

	"go_voicecards/internal/model"

	"github.com/stretchr/testify/mock"
)

// AuthAPI は service.AuthAPI のモック
type AuthAPI struct {
	mock.Mock
}

func (m *AuthAPI) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*model.LoginResponse)
	return resp, args.Error(1)
}

func (m *AuthAPI) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}
