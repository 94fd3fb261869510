package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"go_voicecards/internal/model"
)

func (c *Client) ListDecks(ctx context.Context) ([]model.Deck, error) {
	var decks []model.Deck
	if err := c.do(ctx, http.MethodGet, "/api/decks/", nil, &decks); err != nil {
		return nil, err
	}
	return decks, nil
}

func (c *Client) CreateDeck(ctx context.Context, req model.CreateDeckRequest) (*model.Deck, error) {
	var deck model.Deck
	if err := c.do(ctx, http.MethodPost, "/api/decks/", &req, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// GetDeck は deck-by-id。学習画面ではデッキ名の取得に使う
func (c *Client) GetDeck(ctx context.Context, deckID int) (*model.Deck, error) {
	var deck model.Deck
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/decks/%d", deckID), nil, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

func (c *Client) DeleteDeck(ctx context.Context, deckID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/decks/%d", deckID), nil, nil)
}

func (c *Client) ListCards(ctx context.Context, deckID int) ([]model.Card, error) {
	var cards []model.Card
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/cards/deck/%d", deckID), nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) CreateCard(ctx context.Context, req model.CreateCardRequest) (*model.Card, error) {
	var card model.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/", &req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) DeleteCard(ctx context.Context, cardID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cards/%d", cardID), nil, nil)
}
