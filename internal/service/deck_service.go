package service

import (
	"context"
	"log/slog"
	"strings"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
)

// DeckAPI はデッキ・カード管理のリモートAPI (apiclient.Client が満たす)
type DeckAPI interface {
	ListDecks(ctx context.Context) ([]model.Deck, error)
	CreateDeck(ctx context.Context, req model.CreateDeckRequest) (*model.Deck, error)
	GetDeck(ctx context.Context, deckID int) (*model.Deck, error)
	DeleteDeck(ctx context.Context, deckID int) error
	ListCards(ctx context.Context, deckID int) ([]model.Card, error)
	CreateCard(ctx context.Context, req model.CreateCardRequest) (*model.Card, error)
	DeleteCard(ctx context.Context, cardID int) error
	ResetCardProgress(ctx context.Context, cardID int) (string, error)
	ResetDeckProgress(ctx context.Context, deckID int) (string, error)
}

// DeckDetail はデッキ画面に表示する内容
type DeckDetail struct {
	Deck  *model.Deck
	Cards []model.Card
}

// DeckService はダッシュボードとデッキ画面の操作をまとめます。
type DeckService interface {
	ListDecks(ctx context.Context) ([]model.Deck, error)
	CreateDeck(ctx context.Context, name, description string) (*model.Deck, error)
	GetDeckDetail(ctx context.Context, deckID int) (*DeckDetail, error)
	DeleteDeck(ctx context.Context, deckID int) error
	AddCard(ctx context.Context, deckID int, concept, definition string) (*model.Card, error)
	DeleteCard(ctx context.Context, cardID int) error
	ResetDeckProgress(ctx context.Context, deckID int) (string, error)
	ResetCardProgress(ctx context.Context, cardID int) (string, error)
}

type deckService struct {
	api    DeckAPI
	logger *slog.Logger
}

func NewDeckService(api DeckAPI, logger *slog.Logger) DeckService {
	return &deckService{api: api, logger: logger}
}

func (s *deckService) ListDecks(ctx context.Context) ([]model.Deck, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger)
	decks, err := s.api.ListDecks(ctx)
	if err != nil {
		logger.Warn("Failed to list decks", "error", err)
		return nil, err
	}
	logger.Debug("Listed decks", "count", len(decks))
	return decks, nil
}

func (s *deckService) CreateDeck(ctx context.Context, name, description string) (*model.Deck, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger)
	req := model.CreateDeckRequest{Name: strings.TrimSpace(name)}
	if d := strings.TrimSpace(description); d != "" {
		req.Description = &d
	}
	deck, err := s.api.CreateDeck(ctx, req)
	if err != nil {
		logger.Warn("Failed to create deck", "name", req.Name, "error", err)
		return nil, err
	}
	logger.Info("Deck created", "deck_id", deck.ID)
	return deck, nil
}

func (s *deckService) GetDeckDetail(ctx context.Context, deckID int) (*DeckDetail, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("deck_id", deckID)
	deck, err := s.api.GetDeck(ctx, deckID)
	if err != nil {
		logger.Warn("Failed to get deck", "error", err)
		return nil, err
	}
	cards, err := s.api.ListCards(ctx, deckID)
	if err != nil {
		logger.Warn("Failed to list cards", "error", err)
		return nil, err
	}
	return &DeckDetail{Deck: deck, Cards: cards}, nil
}

func (s *deckService) DeleteDeck(ctx context.Context, deckID int) error {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("deck_id", deckID)
	if err := s.api.DeleteDeck(ctx, deckID); err != nil {
		logger.Warn("Failed to delete deck", "error", err)
		return err
	}
	logger.Info("Deck deleted")
	return nil
}

func (s *deckService) AddCard(ctx context.Context, deckID int, concept, definition string) (*model.Card, error) {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("deck_id", deckID)
	card, err := s.api.CreateCard(ctx, model.CreateCardRequest{
		DeckID:     deckID,
		Concept:    strings.TrimSpace(concept),
		Definition: strings.TrimSpace(definition),
	})
	if err != nil {
		logger.Warn("Failed to create card", "error", err)
		return nil, err
	}
	logger.Info("Card created", "card_id", card.ID)
	return card, nil
}

func (s *deckService) DeleteCard(ctx context.Context, cardID int) error {
	logger := middleware.GetLoggerOr(ctx, s.logger).With("card_id", cardID)
	if err := s.api.DeleteCard(ctx, cardID); err != nil {
		logger.Warn("Failed to delete card", "error", err)
		return err
	}
	logger.Info("Card deleted")
	return nil
}

func (s *deckService) ResetDeckProgress(ctx context.Context, deckID int) (string, error) {
	msg, err := s.api.ResetDeckProgress(ctx, deckID)
	if err != nil {
		middleware.GetLoggerOr(ctx, s.logger).Warn("Failed to reset deck progress", "deck_id", deckID, "error", err)
		return "", err
	}
	return msg, nil
}

func (s *deckService) ResetCardProgress(ctx context.Context, cardID int) (string, error) {
	msg, err := s.api.ResetCardProgress(ctx, cardID)
	if err != nil {
		middleware.GetLoggerOr(ctx, s.logger).Warn("Failed to reset card progress", "card_id", cardID, "error", err)
		return "", err
	}
	return msg, nil
}
