package handlers_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go_voicecards/internal/apiclient"
	"go_voicecards/internal/apiclient/apitest"
	"go_voicecards/internal/audio"
	"go_voicecards/internal/handlers"
	"go_voicecards/internal/middleware"
	"go_voicecards/internal/repository"
	"go_voicecards/internal/service"

	"github.com/stretchr/testify/require"
)

// syncBuffer は非同期の通知と同時に書き込まれても安全な出力先
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
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

// testEnv は偽のAPIサーバー、ローカルストア、ハンドラ一式です。
type testEnv struct {
	srv    *apitest.Server
	store  service.CredentialStore
	client *apiclient.Client
	out    *syncBuffer
	logger *slog.Logger

	auth  *handlers.AuthHandler
	decks *handlers.DeckHandler
}

// --- ヘルパー: 本番と同じ構成でハンドラを組み立てる ---
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "voicecards.db"), logger)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := service.NewCredentialStore(db, repository.NewGormCredentialRepository())

	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.RequestID(logger),
			middleware.BearerAuth(store),
			middleware.LoggingMiddleware(logger),
		),
	}
	client, err := apiclient.New(srv.URL, httpClient)
	require.NoError(t, err)

	out := &syncBuffer{}
	deckService := service.NewDeckService(client, logger)
	return &testEnv{
		srv:    srv,
		store:  store,
		client: client,
		out:    out,
		logger: logger,
		auth:   handlers.NewAuthHandler(service.NewAuthService(client, store, logger), store, out, logger),
		decks:  handlers.NewDeckHandler(deckService, service.NewCardImporter(client, logger), store, out, logger),
	}
}

// login は偽サーバーが受け付けるトークンを保存します。
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.store.Save(context.Background(), apitest.IssueToken("alice", time.Hour))
	require.NoError(t, err)
}

// study は script を標準入力として学習画面を作ります。
func (e *testEnv) study(mic audio.Microphone, script string, opts handlers.StudyOptions) *handlers.StudyHandler {
	return handlers.NewStudyHandler(e.client, e.decks, mic, e.store, strings.NewReader(script), e.out, e.logger, opts)
}
