package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
	"go_voicecards/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// CredentialStore はプロセス全体で共有する認証状態 (ベアラートークンとユーザー) です。
// グローバル変数ではなく、必要なコンポーネントに明示的に注入して使います。
// 状態遷移は Save (ログイン) と Clear (ログアウト / 401) のみ。
type CredentialStore interface {
	// Token は有効なアクセストークンを返します。なければ model.ErrNotLoggedIn
	Token(ctx context.Context) (string, error)
	// Current は現在の認証情報を返します。なければ model.ErrNotLoggedIn
	Current(ctx context.Context) (*model.Credential, error)
	// Save はトークンを検証せずにデコードし、ユーザー名と有効期限と共に保存します。
	Save(ctx context.Context, token string) (*model.Credential, error)
	// Clear は保存済みの認証情報を消去します。
	Clear(ctx context.Context) error
}

type credentialStore struct {
	db   *gorm.DB
	repo repository.CredentialRepository
	now  func() time.Time

	mu     sync.Mutex
	loaded bool
	cached *model.Credential
}

func NewCredentialStore(db *gorm.DB, repo repository.CredentialRepository) CredentialStore {
	return &credentialStore{db: db, repo: repo, now: time.Now}
}

func (s *credentialStore) Token(ctx context.Context) (string, error) {
	cred, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (s *credentialStore) Current(ctx context.Context) (*model.Credential, error) {
	logger := middleware.GetLogger(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		cred, err := s.repo.Find(ctx, s.db)
		switch {
		case errors.Is(err, model.ErrNotFound):
			s.cached = nil
		case err != nil:
			logger.Error("Failed to load stored credential", "error", err)
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "保存された認証情報の読み込みに失敗しました。", "", err)
		default:
			s.cached = cred
		}
		s.loaded = true
	}

	if s.cached == nil {
		return nil, model.ErrNotLoggedIn
	}
	if s.cached.Expired(s.now()) {
		logger.Info("Stored credential expired", "username", s.cached.Username, "expires_at", s.cached.ExpiresAt)
		return nil, model.ErrNotLoggedIn
	}
	copied := *s.cached
	return &copied, nil
}

func (s *credentialStore) Save(ctx context.Context, token string) (*model.Credential, error) {
	logger := middleware.GetLogger(ctx)

	cred, err := credentialFromToken(token)
	if err != nil {
		logger.Warn("Received an access token that could not be decoded", "error", err)
		return nil, model.NewAppError("INVALID_TOKEN", "サーバーから受け取ったトークンが不正です。", "", fmt.Errorf("%w: %v", model.ErrUnexpectedBody, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(ctx, s.db, cred); err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "認証情報の保存に失敗しました。", "", err)
	}
	s.cached = cred
	s.loaded = true

	logger.Info("Credential saved", "username", cred.Username)
	copied := *cred
	return &copied, nil
}

func (s *credentialStore) Clear(ctx context.Context) error {
	logger := middleware.GetLogger(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// メモリ上の状態は DB の削除に失敗しても必ず消す
	s.cached = nil
	s.loaded = true
	if err := s.repo.Delete(ctx, s.db); err != nil {
		return model.NewAppError("INTERNAL_SERVER_ERROR", "認証情報の削除に失敗しました。", "", err)
	}
	logger.Info("Credential cleared")
	return nil
}

// credentialFromToken はJWTを署名検証せずにデコードします。
// 署名の検証はサーバーの責務で、クライアントは sub と exp を読むだけ
func credentialFromToken(token string) (*model.Credential, error) {
	claims := &model.JWTCustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, errors.New("token has no subject")
	}

	cred := &model.Credential{Token: token, Username: subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		cred.ExpiresAt = &exp
	}
	return cred, nil
}
