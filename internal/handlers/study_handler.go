package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	tea "charm.land/bubbletea/v2"

	"go_voicecards/internal/audio"
	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
	"go_voicecards/internal/service"
	"go_voicecards/internal/study"
)

// StudyOptions は学習画面の動作設定
type StudyOptions struct {
	ChunkSize int
	// OneShot は r で録音を開始してすぐに停止する (録音済みファイルを回答にする場合)
	OneShot bool
	Color   bool
}

// StudyHandler は学習画面を端末のキー操作で動かします。
type StudyHandler struct {
	*view
	api   study.API
	decks *DeckHandler
	mic   audio.Microphone
	in    io.Reader
	opts  StudyOptions
}

func NewStudyHandler(api study.API, decks *DeckHandler, mic audio.Microphone, creds service.CredentialStore, in io.Reader, out io.Writer, logger *slog.Logger, opts StudyOptions) *StudyHandler {
	return &StudyHandler{
		view:  newView(out, creds, logger),
		api:   api,
		decks: decks,
		mic:   mic,
		in:    in,
		opts:  opts,
	}
}

// 学習画面を離れた後の行き先
type route int

const (
	routeNone route = iota
	routeLogin
	routeDeck
	routeDone
)

// studyBridge はセッションからの画面遷移と通知を tea.Msg として画面に届けます。
// 画面の起動前と終了後は、通知だけを直接出力します。
type studyBridge struct {
	*view

	mu       sync.Mutex
	send     func(tea.Msg)
	route    route
	deckID   int
	deckName string
}

func (b *studyBridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

func (b *studyBridge) detach() {
	b.attach(nil)
}

// post は画面が動いていれば msg を送ります。送れなかった場合は false
func (b *studyBridge) post(msg tea.Msg) bool {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		return false
	}
	send(msg)
	return true
}

func (b *studyBridge) navigate(r route, deckID int, deckName string) {
	b.mu.Lock()
	b.route = r
	b.deckID = deckID
	b.deckName = deckName
	b.mu.Unlock()
	b.post(leaveMsg{})
}

func (b *studyBridge) ToLogin() {
	b.navigate(routeLogin, 0, "")
}

func (b *studyBridge) ToDeck(deckID int) {
	b.navigate(routeDeck, deckID, "")
}

func (b *studyBridge) ShowDone(deckName string) {
	b.navigate(routeDone, 0, deckName)
}

func (b *studyBridge) Notify(msg string) {
	if !b.post(noticeMsg(msg)) {
		b.printf("! %s\n", msg)
	}
}

func (b *studyBridge) StateChanged(st study.State) {
	b.post(stateMsg(st))
}

func (b *studyBridge) destination() (route, int, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.route, b.deckID, b.deckName
}

// Run は学習画面を開きます。cardID が 0 以外なら1枚だけ出題します。
func (h *StudyHandler) Run(ctx context.Context, deckID, cardID int) error {
	logger := middleware.GetLoggerOr(ctx, h.logger).With(slog.String("handler", "Study"), slog.Int("deck_id", deckID))
	ctx = middleware.WithLogger(ctx, logger)

	bridge := &studyBridge{view: h.view}
	sess := study.New(h.api, h.creds, h.mic, bridge, bridge, logger, study.Config{
		DeckID:    deckID,
		CardID:    cardID,
		ChunkSize: h.opts.ChunkSize,
	})

	logger.Info("Study session started", "mode", sess.Mode().String())
	loadErr := sess.Load(ctx)
	if st := sess.State(); loadErr == nil && !st.Exited && !st.Done {
		h.runScreen(ctx, sess, bridge, logger)
	}
	sess.Wait()

	r, toDeck, deckName := bridge.destination()
	switch r {
	case routeLogin:
		h.println(loginHint)
		return model.ErrUnauthorized
	case routeDeck:
		return h.decks.ShowDeck(ctx, toDeck)
	case routeDone:
		h.printf("%s: 今日復習するカードはすべて終わりました。\n", deckName)
		return nil
	}
	return loadErr
}

// runScreen は画面を閉じるまでキー入力を処理します。
// 閉じた後は実行中の操作を取り消し、終わるまで待ちます。
func (h *StudyHandler) runScreen(ctx context.Context, sess *study.Session, bridge *studyBridge, logger *slog.Logger) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newStudyModel(opCtx, sess, h.opts, logger)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(h.in),
		tea.WithOutput(h.out),
	)
	bridge.attach(p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("Study screen failed", "error", err)
	}
	bridge.detach()

	sess.Close()
	cancel()
	m.ops.closeAndWait()
}
