package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/service"
)

// DeckHandler はダッシュボード (デッキ一覧) とデッキ画面を表示します。
type DeckHandler struct {
	*view
	service  service.DeckService
	importer *service.CardImporter
	now      func() time.Time
}

func NewDeckHandler(s service.DeckService, importer *service.CardImporter, creds service.CredentialStore, out io.Writer, logger *slog.Logger) *DeckHandler {
	return &DeckHandler{view: newView(out, creds, logger), service: s, importer: importer, now: time.Now}
}

// Dashboard はデッキの一覧を表示します。
func (h *DeckHandler) Dashboard(ctx context.Context) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Dashboard"))

	decks, err := h.service.ListDecks(ctx)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	if len(decks) == 0 {
		h.println("デッキがありません。作成するには: voicecards deck-create <名前> [説明]")
		return nil
	}

	h.mu.Lock()
	tw := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	io.WriteString(tw, "ID\tデッキ\tカード数\t説明\n")
	for _, d := range decks {
		desc := ""
		if d.Description != nil {
			desc = truncate(*d.Description, 40)
		}
		writeRow(tw, d.ID, d.Name, d.CardCount, desc)
	}
	tw.Flush()
	h.mu.Unlock()

	h.println("学習を始めるには: voicecards study <デッキID>")
	return nil
}

func (h *DeckHandler) CreateDeck(ctx context.Context, name, description string) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "CreateDeck"))
	deck, err := h.service.CreateDeck(ctx, name, description)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.printf("デッキ %q を作成しました (ID: %d)\n", deck.Name, deck.ID)
	return nil
}

// ShowDeck はデッキ画面 (カード一覧と次回復習日) を表示します。
func (h *DeckHandler) ShowDeck(ctx context.Context, deckID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "ShowDeck"), slog.Int("deck_id", deckID))

	detail, err := h.service.GetDeckDetail(ctx, deckID)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}

	h.printf("== %s ==\n", detail.Deck.Name)
	if detail.Deck.Description != nil && *detail.Deck.Description != "" {
		h.println(*detail.Deck.Description)
	}
	if len(detail.Cards) == 0 {
		h.printf("カードがありません。追加するには: voicecards card-add %d <概念> <定義>\n", deckID)
		return nil
	}

	now := h.now()
	h.mu.Lock()
	tw := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	io.WriteString(tw, "ID\t概念\t定義\t次回復習\n")
	for _, c := range detail.Cards {
		writeRow(tw, c.ID, truncate(c.Concept, 30), truncate(c.Definition, 50), nextReviewLabel(c.NextReview, now))
	}
	tw.Flush()
	h.mu.Unlock()

	h.printf("学習: voicecards study %d  /  1枚だけ: voicecards study %d -card <カードID>\n", deckID, deckID)
	return nil
}

func (h *DeckHandler) DeleteDeck(ctx context.Context, deckID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "DeleteDeck"))
	if err := h.service.DeleteDeck(ctx, deckID); err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.printf("デッキ %d を削除しました\n", deckID)
	return nil
}

func (h *DeckHandler) ResetDeck(ctx context.Context, deckID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "ResetDeck"))
	msg, err := h.service.ResetDeckProgress(ctx, deckID)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.println(msg)
	return nil
}

func (h *DeckHandler) AddCard(ctx context.Context, deckID int, concept, definition string) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "AddCard"))
	card, err := h.service.AddCard(ctx, deckID, concept, definition)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.printf("カード %q を追加しました (ID: %d)\n", card.Concept, card.ID)
	return nil
}

func (h *DeckHandler) DeleteCard(ctx context.Context, cardID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "DeleteCard"))
	if err := h.service.DeleteCard(ctx, cardID); err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.printf("カード %d を削除しました\n", cardID)
	return nil
}

func (h *DeckHandler) ResetCard(ctx context.Context, cardID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "ResetCard"))
	msg, err := h.service.ResetCardProgress(ctx, cardID)
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.println(msg)
	return nil
}

// Import は .xlsx (A列=概念, B列=定義) からカードを取り込みます。
func (h *DeckHandler) Import(ctx context.Context, deckID int, path string) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Import"))
	result, err := h.importer.ImportFile(ctx, deckID, path, service.DefaultImportConfig())
	if err != nil {
		return h.handleError(ctx, logger, err)
	}
	h.printf("%d 行を処理: %d 枚追加, %d 行スキップ\n", result.TotalProcessed, result.Created, result.Skipped)
	for _, e := range result.Errors {
		h.printf("  %s\n", e)
	}
	return nil
}

func writeRow(w io.Writer, cols ...any) {
	for i, c := range cols {
		if i > 0 {
			io.WriteString(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	io.WriteString(w, "\n")
}

func nextReviewLabel(next *time.Time, now time.Time) string {
	switch {
	case next == nil:
		return "未学習"
	case !next.After(now):
		return "復習可"
	default:
		return next.Local().Format("2006-01-02")
	}
}
