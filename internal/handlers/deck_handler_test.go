package handlers_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"go_voicecards/internal/apiclient/apitest"
	"go_voicecards/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDeckHandler_Dashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: デッキがない", func(t *testing.T) {
		env := setupEnv(t)
		env.login(t)
		require.NoError(t, env.decks.Dashboard(ctx))
		assert.Contains(t, env.out.String(), "デッキがありません。")
	})

	t.Run("正常系: デッキ一覧", func(t *testing.T) {
		env := setupEnv(t)
		env.login(t)
		deckID := env.srv.AddDeck("Networking")
		env.srv.AddCard(deckID, "TCP", "信頼性のある通信", true)

		require.NoError(t, env.decks.Dashboard(ctx))
		out := env.out.String()
		assert.Contains(t, out, "Networking")
		assert.Contains(t, out, "voicecards study <デッキID>")
	})

	t.Run("異常系: 未ログインならログインを促す", func(t *testing.T) {
		env := setupEnv(t)
		err := env.decks.Dashboard(ctx)
		assert.ErrorIs(t, err, model.ErrUnauthorized)
		assert.Contains(t, env.out.String(), "ログインしてください")
	})

	t.Run("異常系: 401 で保存済みの認証情報を消す", func(t *testing.T) {
		env := setupEnv(t)
		env.login(t)
		env.srv.FailWith(apitest.RouteListDecks, http.StatusUnauthorized)

		assert.ErrorIs(t, env.decks.Dashboard(ctx), model.ErrUnauthorized)
		_, err := env.store.Token(ctx)
		assert.ErrorIs(t, err, model.ErrNotLoggedIn)
	})

	t.Run("異常系: サーバーエラー", func(t *testing.T) {
		env := setupEnv(t)
		env.login(t)
		env.srv.FailWith(apitest.RouteListDecks, http.StatusInternalServerError)

		assert.ErrorIs(t, env.decks.Dashboard(ctx), model.ErrInternalServer)
		assert.Contains(t, env.out.String(), "エラー:")
		_, err := env.store.Token(ctx)
		assert.NoError(t, err, "401 以外では認証情報は残る")
	})
}

func TestDeckHandler_CreateAndShow(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	env.login(t)

	require.NoError(t, env.decks.CreateDeck(ctx, "Go", "言語仕様"))
	assert.Contains(t, env.out.String(), `デッキ "Go" を作成しました`)

	decks, err := env.client.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	deckID := decks[0].ID

	require.NoError(t, env.decks.ShowDeck(ctx, deckID))
	assert.Contains(t, env.out.String(), "カードがありません。")

	require.NoError(t, env.decks.AddCard(ctx, deckID, "goroutine", "軽量スレッド"))
	require.NoError(t, env.decks.ShowDeck(ctx, deckID))
	out := env.out.String()
	assert.Contains(t, out, "== Go ==")
	assert.Contains(t, out, "goroutine")
	assert.Contains(t, out, "未学習")
}

func TestDeckHandler_CreateDeck_Validation(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	env.login(t)

	err := env.decks.CreateDeck(ctx, "   ", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Contains(t, env.out.String(), "エラー:")
	assert.Equal(t, 0, env.srv.Calls(apitest.RouteCreateDeck))
}

func TestDeckHandler_ShowDeck_NotFound(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	env.login(t)

	assert.ErrorIs(t, env.decks.ShowDeck(ctx, 999), model.ErrNotFound)
	assert.Contains(t, env.out.String(), "エラー: Deck not found")
}

func TestDeckHandler_Import(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	env.login(t)
	deckID := env.srv.AddDeck("Networking")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"concept", "definition"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"TCP", "信頼性のある通信"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"UDP", ""}))
	path := filepath.Join(t.TempDir(), "cards.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	require.NoError(t, env.decks.Import(ctx, deckID, path))
	out := env.out.String()
	assert.Contains(t, out, "2 行を処理: 1 枚追加, 1 行スキップ")
	assert.Contains(t, out, "row 3")

	cards, err := env.client.ListCards(ctx, deckID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "TCP", cards[0].Concept)
}
