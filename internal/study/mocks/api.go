package mocks

import (
	"context"

	"go_voicecards/internal/model"

	"github.com/stretchr/testify/mock"
)

// API は study.API のモック
type API struct {
	mock.Mock
}

func (m *API) NextCard(ctx context.Context, deckID int) (*model.NextCardResponse, error) {
	args := m.Called(ctx, deckID)
	resp, _ := args.Get(0).(*model.NextCardResponse)
	return resp, args.Error(1)
}

func (m *API) StudyCard(ctx context.Context, cardID int) (*model.Card, error) {
	args := m.Called(ctx, cardID)
	card, _ := args.Get(0).(*model.Card)
	return card, args.Error(1)
}

func (m *API) GetDeck(ctx context.Context, deckID int) (*model.Deck, error) {
	args := m.Called(ctx, deckID)
	deck, _ := args.Get(0).(*model.Deck)
	return deck, args.Error(1)
}

func (m *API) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	args := m.Called(ctx, audioBase64)
	return args.String(0), args.Error(1)
}

func (m *API) Evaluate(ctx context.Context, userAnswer, definition string) (*model.EvaluationResult, error) {
	args := m.Called(ctx, userAnswer, definition)
	result, _ := args.Get(0).(*model.EvaluationResult)
	return result, args.Error(1)
}

func (m *API) Paraphrase(ctx context.Context, definition string) ([]string, error) {
	args := m.Called(ctx, definition)
	paraphrases, _ := args.Get(0).([]string)
	return paraphrases, args.Error(1)
}

func (m *API) SubmitReview(ctx context.Context, req model.SubmitReviewRequest) (*model.ReviewResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*model.ReviewResponse)
	return resp, args.Error(1)
}
