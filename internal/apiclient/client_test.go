package apiclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go_voicecards/internal/apiclient"
	"go_voicecards/internal/apiclient/apitest"
	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenFunc func(ctx context.Context) (string, error)

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// --- ヘルパー: 偽サーバーとクライアントのセットアップ ---
func setupClient(t *testing.T, token string) (*apitest.Server, *apiclient.Client) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := tokenFunc(func(ctx context.Context) (string, error) {
		if token == "" {
			return "", model.ErrNotLoggedIn
		}
		return token, nil
	})
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.RequestID(logger),
			middleware.BearerAuth(src),
			middleware.LoggingMiddleware(logger),
		),
	}
	client, err := apiclient.New(srv.URL+"/", httpClient)
	require.NoError(t, err)
	return srv, client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "正常系: http", baseURL: "http://localhost:8000"},
		{name: "正常系: 末尾スラッシュ", baseURL: "https://api.example.com/"},
		{name: "異常系: スキームなし", baseURL: "localhost:8000", wantErr: true},
		{name: "異常系: ftp", baseURL: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := apiclient.New(tt.baseURL, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))
		})
	}
}

func TestClient_Login(t *testing.T) {
	_, client := setupClient(t, "")
	ctx := context.Background()

	t.Run("正常系: トークンを取得", func(t *testing.T) {
		resp, err := client.Login(ctx, model.LoginRequest{Username: "alice", Password: apitest.DefaultPassword})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "bearer", resp.TokenType)
	})

	t.Run("異常系: パスワード違いは 401", func(t *testing.T) {
		_, err := client.Login(ctx, model.LoginRequest{Username: "alice", Password: "wrong"})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrUnauthorized)

		var appErr *model.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "Incorrect username or password", appErr.Message)
		assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	})

	t.Run("異常系: 空のユーザー名は送信前に検証エラー", func(t *testing.T) {
		_, err := client.Login(ctx, model.LoginRequest{Password: "x"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestClient_Signup(t *testing.T) {
	_, client := setupClient(t, "")
	ctx := context.Background()

	user, err := client.Signup(ctx, model.SignupRequest{Username: "bob", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	_, err = client.Signup(ctx, model.SignupRequest{Username: "bob", Password: "secret1"})
	assert.ErrorIs(t, err, model.ErrInvalidInput, "登録済みは 400")

	_, err = client.Signup(ctx, model.SignupRequest{Username: "bo", Password: "secret1"})
	var appErr *model.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "username", appErr.Field)
}

func TestClient_DecksAndCards(t *testing.T) {
	srv, client := setupClient(t, apitest.IssueToken("alice", time.Hour))
	ctx := context.Background()

	deck, err := client.CreateDeck(ctx, model.CreateDeckRequest{Name: "Biology"})
	require.NoError(t, err)
	assert.Equal(t, "Biology", deck.Name)

	card, err := client.CreateCard(ctx, model.CreateCardRequest{DeckID: deck.ID, Concept: "Cell", Definition: "Basic unit of life"})
	require.NoError(t, err)
	assert.Equal(t, deck.ID, card.DeckID)

	decks, err := client.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, 1, decks[0].CardCount)

	got, err := client.GetDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Name)

	cards, err := client.ListCards(ctx, deck.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Cell", cards[0].Concept)

	require.NoError(t, client.DeleteCard(ctx, card.ID))
	require.NoError(t, client.DeleteDeck(ctx, deck.ID))

	_, err = client.GetDeck(ctx, deck.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 2, srv.Calls(apitest.RouteGetDeck))
}

func TestClient_StudyEndpoints(t *testing.T) {
	srv, client := setupClient(t, apitest.IssueToken("alice", time.Hour))
	ctx := context.Background()

	deckID := srv.AddDeck("Chemistry")
	cardID := srv.AddCard(deckID, "Atom", "Smallest unit of matter", true)
	srv.SetEvaluation(model.EvaluationResult{
		SimilarityScore:       0.72,
		MatchedKeywords:       []string{"unit"},
		HighlightedUserAnswer: "a <mark>unit</mark>",
		HighlightedDefinition: "Smallest <mark>unit</mark> of matter",
	})
	srv.SetParaphrases([]string{"p1", "p2"})

	next, err := client.NextCard(ctx, deckID)
	require.NoError(t, err)
	require.NotNil(t, next.Card)
	assert.Equal(t, cardID, next.Card.ID)
	assert.Equal(t, "Chemistry", next.DeckName)
	assert.Equal(t, 1, next.CardsRemaining)

	card, err := client.StudyCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, "Atom", card.Concept)

	transcript, err := client.Transcribe(ctx, "UklGRg==")
	require.NoError(t, err)
	assert.NotEmpty(t, transcript)
	assert.Equal(t, []string{"UklGRg=="}, srv.ReceivedAudio())

	result, err := client.Evaluate(ctx, transcript, card.Definition)
	require.NoError(t, err)
	assert.InDelta(t, 0.72, result.SimilarityScore, 1e-9)
	assert.Equal(t, []string{"unit"}, result.MatchedKeywords)

	paraphrases, err := client.Paraphrase(ctx, card.Definition)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, paraphrases)

	review, err := client.SubmitReview(ctx, model.SubmitReviewRequest{CardID: cardID, UserAnswer: transcript, Quality: model.QualityNormal})
	require.NoError(t, err)
	assert.Equal(t, model.QualityNormal, review.Quality)

	next, err = client.NextCard(ctx, deckID)
	require.NoError(t, err)
	assert.Nil(t, next.Card, "レビュー後は復習対象なし")
	assert.Equal(t, 0, next.CardsRemaining)

	msg, err := client.ResetDeckProgress(ctx, deckID)
	require.NoError(t, err)
	assert.Contains(t, msg, "1 cards")

	msg, err = client.ResetCardProgress(ctx, cardID)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
}

func TestClient_ErrorMapping(t *testing.T) {
	srv, client := setupClient(t, apitest.IssueToken("alice", time.Hour))
	ctx := context.Background()
	deckID := srv.AddDeck("d")

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "401 は ErrUnauthorized", status: http.StatusUnauthorized, wantErr: model.ErrUnauthorized},
		{name: "403 は ErrForbidden", status: http.StatusForbidden, wantErr: model.ErrForbidden},
		{name: "404 は ErrNotFound", status: http.StatusNotFound, wantErr: model.ErrNotFound},
		{name: "422 は ErrInvalidInput", status: http.StatusUnprocessableEntity, wantErr: model.ErrInvalidInput},
		{name: "500 は ErrInternalServer", status: http.StatusInternalServerError, wantErr: model.ErrInternalServer},
		{name: "503 は ErrInternalServer", status: http.StatusServiceUnavailable, wantErr: model.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.FailWith(apitest.RouteNextCard, tt.status)
			defer srv.Recover(apitest.RouteNextCard)

			_, err := client.NextCard(ctx, deckID)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.status == http.StatusUnauthorized, model.IsUnauthorized(err))
		})
	}
}

func TestClient_WithoutToken(t *testing.T) {
	srv, client := setupClient(t, "")
	deckID := srv.AddDeck("d")

	_, err := client.NextCard(context.Background(), deckID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestClient_TransportError(t *testing.T) {
	srv, client := setupClient(t, "token")
	srv.Close() // サーバーを止めて接続できない状態にする

	_, err := client.ListDecks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.False(t, errors.Is(err, model.ErrUnauthorized))

	var appErr *model.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRANSPORT_ERROR", appErr.Code)
}

func TestClient_RequestIDReachesServer(t *testing.T) {
	var serverLogs syncBuffer
	srv := apitest.NewServer(apitest.WithLogger(slog.New(slog.NewJSONHandler(&serverLogs, nil))))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient := &http.Client{Transport: middleware.Chain(http.DefaultTransport, middleware.RequestID(logger))}
	client, err := apiclient.New(srv.URL, httpClient)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), model.LoginRequest{Username: "alice", Password: apitest.DefaultPassword})
	require.NoError(t, err)

	// アクセスログはレスポンスを書いた後に出る
	require.Eventually(t, func() bool {
		return strings.Contains(serverLogs.String(), `"path":"/api/auth/login"`)
	}, time.Second, 10*time.Millisecond)
	assert.Regexp(t, `"request_id":"[0-9a-f-]{36}"`, serverLogs.String(), "クライアントが生成したIDがサーバーのログに残る")
}

// syncBuffer はサーバーのゴルーチンから書き込まれるログ用
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
