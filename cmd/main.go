// cmd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"go_voicecards/internal/apiclient"
	"go_voicecards/internal/audio"
	"go_voicecards/internal/config"
	"go_voicecards/internal/handlers"
	"go_voicecards/internal/middleware"
	"go_voicecards/internal/repository"
	"go_voicecards/internal/service"
)

const usage = `使い方: voicecards <コマンド> [引数]

  signup <ユーザー名> <パスワード>   新規登録
  login <ユーザー名> <パスワード>    ログイン
  logout                             ログアウト
  whoami                             ログイン中のユーザー
  decks                              デッキ一覧
  deck-create <名前> [説明]          デッキを作成
  deck <デッキID>                    デッキ画面 (カード一覧)
  deck-delete <デッキID>             デッキを削除
  deck-reset <デッキID>              デッキの学習進捗をリセット
  card-add <デッキID> <概念> <定義>  カードを追加
  card-delete <カードID>             カードを削除
  card-reset <カードID>              カードの学習進捗をリセット
  import <デッキID> <file.xlsx>      .xlsx からカードを取り込む
  study [-card ID] [-answer-file F] <デッキID>
                                     学習を始める
`

// app はコマンドの実行に必要な依存関係です。
type app struct {
	logger *slog.Logger
	store  service.CredentialStore
	client *apiclient.Client
	auth   *handlers.AuthHandler
	decks  *handlers.DeckHandler
}

func main() {
	//　設定ファイル読み込み用の一時的なロガー設定
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(tempLogger)
	// 設定読み込み中のログは CLI の出力を汚さないよう通常は捨てる
	if strings.ToLower(os.Getenv("APP_ENV")) != "dev" {
		log.SetOutput(io.Discard)
	}

	if err := config.LoadConfig("configs"); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(config.Cfg.Log.Level)
	slog.SetDefault(logger)

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Print(usage)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(config.Cfg.Storage.Path, logger)
	if err != nil {
		slog.Error("Error initializing local store", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("Error closing local store", slog.Any("error", err))
		}
	}()

	// Dependency Injection
	store := service.NewCredentialStore(db, repository.NewGormCredentialRepository())
	httpClient := &http.Client{
		Timeout: config.Cfg.API.Timeout,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.RequestID(logger),
			middleware.BearerAuth(store),
			middleware.LoggingMiddleware(logger),
		),
	}
	client, err := apiclient.New(config.Cfg.API.BaseURL, httpClient)
	if err != nil {
		slog.Error("Error creating API client", slog.Any("error", err))
		os.Exit(1)
	}

	a := &app{
		logger: logger,
		store:  store,
		client: client,
		auth:   handlers.NewAuthHandler(service.NewAuthService(client, store, logger), store, os.Stdout, logger),
		decks: handlers.NewDeckHandler(service.NewDeckService(client, logger),
			service.NewCardImporter(client, logger), store, os.Stdout, logger),
	}

	// ハンドラがエラーを表示済みなので、ここでは終了コードだけ返す
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		logger.Debug("Command failed", slog.String("command", args[0]), slog.Any("error", err))
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		os.Exit(1)
	}
}

// newLogger は APP_ENV=dev なら tint、それ以外は JSON で標準エラーに出力するロガーを作ります。
func newLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
		slog.Warn("Unknown log level specified in config, defaulting to INFO", slog.String("level", level))
	}

	var handler slog.Handler
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})
	}
	return slog.New(handler)
}

var errUsage = errors.New("invalid arguments")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		if len(args) != 2 {
			return errUsage
		}
		return a.auth.Signup(ctx, args[0], args[1])
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		return a.auth.Login(ctx, args[0], args[1])
	case "logout":
		return a.auth.Logout(ctx)
	case "whoami":
		return a.auth.Whoami(ctx)
	case "decks":
		return a.decks.Dashboard(ctx)
	case "deck-create":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		desc := ""
		if len(args) == 2 {
			desc = args[1]
		}
		return a.decks.CreateDeck(ctx, args[0], desc)
	case "deck", "deck-delete", "deck-reset", "card-delete", "card-reset":
		if len(args) != 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		switch cmd {
		case "deck":
			return a.decks.ShowDeck(ctx, id)
		case "deck-delete":
			return a.decks.DeleteDeck(ctx, id)
		case "deck-reset":
			return a.decks.ResetDeck(ctx, id)
		case "card-delete":
			return a.decks.DeleteCard(ctx, id)
		default:
			return a.decks.ResetCard(ctx, id)
		}
	case "card-add":
		if len(args) != 3 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.decks.AddCard(ctx, id, args[1], args[2])
	case "import":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.decks.Import(ctx, id, args[1])
	case "study":
		return a.study(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "不明なコマンドです: %s\n", cmd)
		return errUsage
	}
}

func (a *app) study(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("study", flag.ContinueOnError)
	cardID := fs.Int("card", 0, "このカードだけを学習する")
	answerFile := fs.String("answer-file", "", "マイクの代わりに録音済みの音声ファイルを回答にする")
	noColor := fs.Bool("no-color", false, "一致箇所を色で強調しない")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	deckID, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	var mic audio.Microphone
	opts := handlers.StudyOptions{
		ChunkSize: config.Cfg.Audio.ChunkSize,
		Color:     !*noColor && os.Getenv("NO_COLOR") == "",
	}
	if *answerFile != "" {
		mic = audio.FileMicrophone{Path: *answerFile}
		opts.OneShot = true
	} else {
		mic = audio.NewExecMicrophone(config.Cfg.Audio.Command, config.Cfg.Audio.Args, a.logger)
	}

	h := handlers.NewStudyHandler(a.client, a.decks, mic, a.store, os.Stdin, os.Stdout, a.logger, opts)
	return h.Run(ctx, deckID, *cardID)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "ID は正の整数で指定してください: %s\n", s)
		return 0, errUsage
	}
	return id, nil
}
