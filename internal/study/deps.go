// Package study は音声による学習セッション (カードの読み込み → 録音 → 採点 → レビュー送信) を進めます。
package study

import (
	"context"

	"go_voicecards/internal/model"
)

// API は学習セッションが使うリモートAPI (apiclient.Client が満たす)
type API interface {
	NextCard(ctx context.Context, deckID int) (*model.NextCardResponse, error)
	StudyCard(ctx context.Context, cardID int) (*model.Card, error)
	GetDeck(ctx context.Context, deckID int) (*model.Deck, error)
	Transcribe(ctx context.Context, audioBase64 string) (string, error)
	Evaluate(ctx context.Context, userAnswer, definition string) (*model.EvaluationResult, error)
	Paraphrase(ctx context.Context, definition string) ([]string, error)
	SubmitReview(ctx context.Context, req model.SubmitReviewRequest) (*model.ReviewResponse, error)
}

// Credentials は注入される認証状態。401 を受けたら Clear する (service.CredentialStore が満たす)
type Credentials interface {
	Clear(ctx context.Context) error
}

// Navigator は画面遷移
type Navigator interface {
	ToLogin()
	ToDeck(deckID int)
	ShowDone(deckName string)
}

// Notifier はユーザーへの通知と、状態が変わったことの通知
type Notifier interface {
	Notify(msg string)
	StateChanged(state State)
}
