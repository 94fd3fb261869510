package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go_voicecards/internal/model"
	"go_voicecards/internal/repository"
	repomocks "go_voicecards/internal/repository/mocks"
	"go_voicecards/internal/service/mocks"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- テストヘルパー関数 ---
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(t.TempDir()+"/cred.db", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "failed to open local store for testing")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject, ExpiresAt: jwt.NewNumericDate(exp)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return signed
}

func TestCredentialStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewCredentialStore(db, repository.NewGormCredentialRepository())

	_, err := store.Current(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn, "初期状態は未ログイン")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := newToken(t, "alice", exp)
	cred, err := store.Save(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	require.NotNil(t, cred.ExpiresAt)
	assert.True(t, exp.Equal(*cred.ExpiresAt))

	got, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// 別インスタンス (= 次回起動) でも読み込める
	reopened := NewCredentialStore(db, repository.NewGormCredentialRepository())
	cur, err := reopened.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", cur.Username)

	require.NoError(t, reopened.Clear(ctx))
	_, err = reopened.Token(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn)
}

func TestCredentialStore_Expired(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := NewCredentialStore(db, repository.NewGormCredentialRepository()).(*credentialStore)

	_, err := s.Save(ctx, newToken(t, "alice", time.Now().Add(time.Minute)))
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Current(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn, "期限切れのトークンは未ログイン扱い")
}

func TestCredentialStore_Save_InvalidToken(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(repomocks.CredentialRepository)
	store := NewCredentialStore(nil, mockRepo)

	tests := []struct {
		name  string
		token string
	}{
		{name: "異常系: JWTではない", token: "not-a-jwt"},
		{name: "異常系: sub がない", token: func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("k"))
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(ctx, tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrUnexpectedBody)
		})
	}
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialStore_Clear_RepositoryError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(repomocks.CredentialRepository)
	cred := &model.Credential{Token: "t", Username: "alice"}
	mockRepo.On("Find", ctx, (*gorm.DB)(nil)).Return(cred, nil).Once()
	mockRepo.On("Delete", ctx, (*gorm.DB)(nil)).Return(errors.New("disk full")).Once()

	store := NewCredentialStore(nil, mockRepo)
	_, err := store.Current(ctx)
	require.NoError(t, err)

	err = store.Clear(ctx)
	require.Error(t, err)
	_, err = store.Current(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn, "DB削除に失敗してもメモリ上はログアウト済み")
	mockRepo.AssertExpectations(t)
}

func Test_authService_Login(t *testing.T) {
	ctx := context.Background()
	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		setupMock func(m *mocks.AuthAPI)
		wantErr   error
		wantUser  string
	}{
		{
			name: "正常系: ログインしてトークンを保存",
			setupMock: func(m *mocks.AuthAPI) {
				m.On("Login", ctx, model.LoginRequest{Username: "alice", Password: "pw"}).
					Return(&model.LoginResponse{AccessToken: newToken(t, "alice", time.Now().Add(time.Hour)), TokenType: "bearer"}, nil).Once()
			},
			wantUser: "alice",
		},
		{
			name: "異常系: 認証失敗",
			setupMock: func(m *mocks.AuthAPI) {
				m.On("Login", ctx, model.LoginRequest{Username: "alice", Password: "pw"}).
					Return(nil, model.ErrUnauthorized).Once()
			},
			wantErr: model.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := new(mocks.AuthAPI)
			tt.setupMock(mockAPI)
			store := NewCredentialStore(setupTestDB(t), repository.NewGormCredentialRepository())
			svc := NewAuthService(mockAPI, store, testLogger)

			cred, err := svc.Login(ctx, "alice", "pw")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, curErr := store.Current(ctx)
				assert.ErrorIs(t, curErr, model.ErrNotLoggedIn)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, cred.Username)
				who, err := svc.Whoami(ctx)
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, who.Username)
			}
			mockAPI.AssertExpectations(t)
		})
	}
}

func Test_authService_SignupAndLogout(t *testing.T) {
	ctx := context.Background()
	mockAPI := new(mocks.AuthAPI)
	store := NewCredentialStore(setupTestDB(t), repository.NewGormCredentialRepository())
	svc := NewAuthService(mockAPI, store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mockAPI.On("Signup", ctx, model.SignupRequest{Username: "bob", Password: "secret1"}).
		Return(&model.User{ID: 2, Username: "bob"}, nil).Once()

	user, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 2, user.ID)

	_, err = svc.Whoami(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn, "登録だけではログインしない")

	_, err = store.Save(ctx, newToken(t, "bob", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	_, err = svc.Whoami(ctx)
	assert.ErrorIs(t, err, model.ErrNotLoggedIn)
	mockAPI.AssertExpectations(t)
}
