package mocks

import (
	"context"

	"go_voicecards/internal/model"

	"github.com/stretchr/testify/mock"
)

// DeckAPI は service.DeckAPI のモック
type DeckAPI struct {
	mock.Mock
}

func (m *DeckAPI) ListDecks(ctx context.Context) ([]model.Deck, error) {
	args := m.Called(ctx)
	decks, _ := args.Get(0).([]model.Deck)
	return decks, args.Error(1)
}

func (m *DeckAPI) CreateDeck(ctx context.Context, req model.CreateDeckRequest) (*model.Deck, error) {
	args := m.Called(ctx, req)
	deck, _ := args.Get(0).(*model.Deck)
	return deck, args.Error(1)
}

func (m *DeckAPI) GetDeck(ctx context.Context, deckID int) (*model.Deck, error) {
	args := m.Called(ctx, deckID)
	deck, _ := args.Get(0).(*model.Deck)
	return deck, args.Error(1)
}

func (m *DeckAPI) DeleteDeck(ctx context.Context, deckID int) error {
	args := m.Called(ctx, deckID)
	return args.Error(0)
}

func (m *DeckAPI) ListCards(ctx context.Context, deckID int) ([]model.Card, error) {
	args := m.Called(ctx, deckID)
	cards, _ := args.Get(0).([]model.Card)
	return cards, args.Error(1)
}

func (m *DeckAPI) CreateCard(ctx context.Context, req model.CreateCardRequest) (*model.Card, error) {
	args := m.Called(ctx, req)
	card, _ := args.Get(0).(*model.Card)
	return card, args.Error(1)
}

func (m *DeckAPI) DeleteCard(ctx context.Context, cardID int) error {
	args := m.Called(ctx, cardID)
	return args.Error(0)
}

func (m *DeckAPI) ResetCardProgress(ctx context.Context, cardID int) (string, error) {
	args := m.Called(ctx, cardID)
	return args.String(0), args.Error(1)
}

func (m *DeckAPI) ResetDeckProgress(ctx context.Context, deckID int) (string, error) {
	args := m.Called(ctx, deckID)
	return args.String(0), args.Error(1)
}
