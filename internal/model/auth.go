package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest はログインAPIのリクエストボディ
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest は新規登録APIのリクエストボディ
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse はログイン成功時のレスポンス
type LoginResponse struct {
	AccessToken string `json:"access_token" validate:"required"`
	TokenType   string `json:"token_type"`
}

// User はサーバーが返すユーザー情報
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// JWTCustomClaims はアクセストークンのペイロード。sub にユーザー名が入る
type JWTCustomClaims struct {
	jwt.RegisteredClaims
}

// Credential はローカルに保存する認証情報 (ベアラートークンとユーザー)
// 保存されるのは常に1件のみ
type Credential struct {
	ID        uint       `gorm:"primaryKey"`
	Token     string     `gorm:"not null"`
	Username  string     `gorm:"not null"`
	UserID    *int       `gorm:"default:null"`
	ExpiresAt *time.Time `gorm:"default:null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Credential) TableName() string {
	return "credentials"
}

// Expired は有効期限を過ぎているかどうか。期限なしのトークンは期限切れにならない
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
