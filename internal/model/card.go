// internal/model/card.go
package model

import "time"

// Card は概念 (問題文) と定義 (正解) の組です。サーバー側が所有し、クライアントからは不変。
type Card struct {
	ID         int        `json:"id" validate:"required"`
	DeckID     int        `json:"deck_id"`
	Concept    string     `json:"concept" validate:"required"`
	Definition string     `json:"definition" validate:"required"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	NextReview *time.Time `json:"next_review,omitempty"`
}

// Deck はカードの集まり
type Deck struct {
	ID          int        `json:"id" validate:"required"`
	UserID      int        `json:"user_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	CardCount   int        `json:"card_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NextCardResponse は「デッキ内で次に復習すべきカード」のレスポンス
// Card が nil の場合、復習すべきカードは残っていない
type NextCardResponse struct {
	Card           *Card  `json:"card" validate:"omitempty"`
	DeckName       string `json:"deck_name"`
	CardsRemaining int    `json:"cards_remaining" validate:"gte=0"`
}

// デッキ作成リクエストDTO
type CreateDeckRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description,omitempty"`
}

// カード作成リクエストDTO
type CreateCardRequest struct {
	DeckID     int    `json:"deck_id" validate:"required,gt=0"`
	Concept    string `json:"concept" validate:"required,min=1,max=200"`
	Definition string `json:"definition" validate:"required,min=1"`
}

// MessageResponse は進捗リセット等の汎用レスポンス
type MessageResponse struct {
	Message string `json:"message"`
}
