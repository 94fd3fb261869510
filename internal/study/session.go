package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go_voicecards/internal/audio"
	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"
)

// ユーザーに表示するメッセージ
const (
	msgLoadFailed        = "カードの読み込みに失敗しました。"
	msgMicrophone        = "マイクにアクセスできません。権限を確認してください。"
	msgRecordingFailed   = "録音に失敗しました。もう一度お試しください。"
	msgEmptyAudio        = "音声が録音されていません。もう一度お試しください。"
	msgTranscribeFailed  = "文字起こしに失敗しました。もう一度お試しください。"
	msgEmptyTranscript   = "音声を認識できませんでした。もう一度お試しください。"
	msgEvaluateFailed    = "回答の採点に失敗しました。もう一度お試しください。"
	msgParaphraseFailed  = "言い換えの取得に失敗しました。"
	msgSubmitFailed      = "レビューの保存に失敗しました。"
	msgSubmitUnreachable = "サーバーに接続できませんでした。もう一度送信してください。"
)

// Config はセッションの対象。CardID が 0 以外なら SingleCard モード
type Config struct {
	DeckID    int
	CardID    int
	ChunkSize int
}

// Session は1つの学習画面のセッションです。
// 操作はすべてゴルーチンセーフで、実行中の操作と衝突する呼び出しは何もしません。
type Session struct {
	api    API
	creds  Credentials
	mic    audio.Microphone
	nav    Navigator
	notify Notifier
	logger *slog.Logger

	mode      Mode
	deckID    int
	cardID    int
	chunkSize int

	mu    sync.Mutex
	state State

	// generation はカードを読み込むたびに増える。非同期の結果が現在のカード向けかどうかの判定に使う
	generation uint64
	recording  *audio.Recording
	// paraphrasing は言い換えを取得中のカードの generation (0 なら取得中でない)
	paraphrasing uint64

	tasks sync.WaitGroup
}

func New(api API, creds Credentials, mic audio.Microphone, nav Navigator, notify Notifier, logger *slog.Logger, cfg Config) *Session {
	mode := DeckSequential
	if cfg.CardID != 0 {
		mode = SingleCard
	}
	s := &Session{
		api:       api,
		creds:     creds,
		mic:       mic,
		nav:       nav,
		notify:    notify,
		logger:    logger.With("deck_id", cfg.DeckID, "mode", mode.String()),
		mode:      mode,
		deckID:    cfg.DeckID,
		cardID:    cfg.CardID,
		chunkSize: cfg.ChunkSize,
	}
	s.state.Mode = mode
	s.state.resetAnswer()
	return s
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) DeckID() int {
	return s.deckID
}

// State は現在の状態のコピーを返します。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Wait はバックグラウンドで実行中の言い換え取得が終わるまで待ちます。
func (s *Session) Wait() {
	s.tasks.Wait()
}

func (s *Session) log(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerOr(ctx, s.logger)
}

// publish は状態の変更を通知します。ロックを保持したまま呼ばないこと
func (s *Session) publish() {
	s.notify.StateChanged(s.State())
}

// Load は次に出題するカードを読み込みます。読み込みの前に回答に関する状態はすべて消えます。
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Exited {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation
	s.state.resetAnswer()
	s.state.Loading = true
	rec := s.recording
	s.recording = nil
	s.state.Recording = false
	s.mu.Unlock()
	if rec != nil {
		_, _ = rec.Stop()
	}
	s.publish()

	var err error
	if s.mode == SingleCard {
		err = s.loadSingleCard(ctx, gen)
	} else {
		err = s.loadNextCard(ctx, gen)
	}

	s.mu.Lock()
	if gen == s.generation || s.state.Exited {
		s.state.Loading = false
	}
	// 読み込みに失敗したら前のカードは出題しない (同じカードを二重に送信しないため)
	if err != nil && gen == s.generation {
		s.state.Card = nil
	}
	s.mu.Unlock()
	s.publish()
	return err
}

func (s *Session) loadNextCard(ctx context.Context, gen uint64) error {
	logger := s.log(ctx)

	resp, err := s.api.NextCard(ctx, s.deckID)
	if err != nil {
		return s.fail(ctx, "load", msgLoadFailed, err)
	}

	s.mu.Lock()
	if gen != s.generation || s.state.Exited {
		s.mu.Unlock()
		logger.Debug("Dropped stale card load")
		return nil
	}
	s.state.Card = resp.Card
	s.state.DeckName = resp.DeckName
	s.state.CardsRemaining = resp.CardsRemaining
	s.state.Done = resp.Card == nil
	s.mu.Unlock()

	if resp.Card == nil {
		logger.Info("No more cards to review")
		s.nav.ShowDone(resp.DeckName)
		return nil
	}
	logger.Info("Card loaded", "card_id", resp.Card.ID, "cards_remaining", resp.CardsRemaining)
	return nil
}

func (s *Session) loadSingleCard(ctx context.Context, gen uint64) error {
	logger := s.log(ctx).With("card_id", s.cardID)

	card, err := s.api.StudyCard(ctx, s.cardID)
	if errors.Is(err, model.ErrNotFound) {
		// 指定されたカードがなければデッキ画面に戻る
		logger.Warn("Card not found, returning to deck")
		s.exit()
		s.nav.ToDeck(s.deckID)
		return err
	}
	if err != nil {
		return s.fail(ctx, "load", msgLoadFailed, err)
	}

	// デッキ名は表示用なので取得できなくても続行する
	deckName := ""
	deck, err := s.api.GetDeck(ctx, s.deckID)
	switch {
	case model.IsUnauthorized(err):
		return s.fail(ctx, "load deck", msgLoadFailed, err)
	case err != nil:
		logger.Warn("Failed to fetch deck name", "error", err)
	default:
		deckName = deck.Name
	}

	s.mu.Lock()
	if gen != s.generation || s.state.Exited {
		s.mu.Unlock()
		return nil
	}
	s.state.Card = card
	s.state.DeckName = deckName
	s.state.CardsRemaining = 0
	s.state.Done = false
	s.mu.Unlock()

	logger.Info("Card loaded")
	return nil
}

// StartRecording は録音を開始します。
// 録音中・処理中・結果表示中・カードがない場合は何もしません。
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Recording || s.state.Processing || s.state.Loading || s.state.ShowResults ||
		s.state.Card == nil || s.state.Done || s.state.Exited {
		s.mu.Unlock()
		return nil
	}
	// マイクを開いている間に2回目の開始が来ないよう先に録音中にする
	s.state.Recording = true
	gen := s.generation
	s.mu.Unlock()

	stream, err := s.mic.Open(ctx)
	if err != nil {
		s.mu.Lock()
		s.state.Recording = false
		s.mu.Unlock()
		s.log(ctx).Warn("Failed to open microphone", "error", err)
		s.notify.Notify(msgMicrophone)
		if !errors.Is(err, model.ErrMicrophone) {
			err = fmt.Errorf("%w: %w", model.ErrMicrophone, err)
		}
		return fmt.Errorf("study.StartRecording: %w", err)
	}

	rec := audio.Start(stream, s.chunkSize)
	s.mu.Lock()
	if gen != s.generation || s.state.Exited {
		s.state.Recording = false
		s.mu.Unlock()
		_, _ = rec.Stop()
		return nil
	}
	s.recording = rec
	s.mu.Unlock()

	s.log(ctx).Info("Recording started")
	s.publish()
	return nil
}

// StopRecording は録音を止め、録音した音声で回答の処理を1回だけ実行します。
// 録音中でなければ何もしません。マイクは結果に関わらず必ず解放されます。
func (s *Session) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	rec := s.recording
	if rec == nil {
		s.mu.Unlock()
		return nil
	}
	s.recording = nil
	s.state.Recording = false
	if s.state.Card == nil || s.state.Exited {
		s.mu.Unlock()
		_, _ = rec.Stop()
		return nil
	}
	s.state.Processing = true
	gen := s.generation
	card := *s.state.Card
	s.mu.Unlock()
	s.publish()

	defer s.finishProcessing()

	payload, err := rec.Stop()
	if err != nil {
		s.log(ctx).Warn("Recording failed", "error", err)
		if errors.Is(err, model.ErrMicrophone) {
			s.notify.Notify(msgMicrophone)
		} else {
			s.notify.Notify(msgRecordingFailed)
		}
		return fmt.Errorf("study.StopRecording: %w", err)
	}
	s.log(ctx).Info("Recording stopped", "bytes", len(payload))

	return s.answer(ctx, gen, card, payload)
}

func (s *Session) finishProcessing() {
	s.mu.Lock()
	changed := s.state.Processing
	s.state.Processing = false
	s.mu.Unlock()
	if changed {
		s.publish()
	}
}

// answer は 音声のエンコード → 文字起こし → 採点 → 評価の提案 を順に行い、
// 最後に言い換えの取得をバックグラウンドで開始します。
// 途中で失敗した場合は状態を変更せずに中断します。
func (s *Session) answer(ctx context.Context, gen uint64, card model.Card, payload []byte) error {
	logger := s.log(ctx).With("card_id", card.ID)

	encoded, err := audio.EncodePayload(payload)
	if err != nil {
		logger.Warn("No audio to send", "error", err)
		s.notify.Notify(msgEmptyAudio)
		return fmt.Errorf("study.answer: %w", err)
	}

	transcript, err := s.api.Transcribe(ctx, encoded)
	if err != nil {
		return s.fail(ctx, "transcribe", msgTranscribeFailed, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Info("Transcript is empty")
		s.notify.Notify(msgEmptyTranscript)
		return fmt.Errorf("study.answer: empty transcript: %w", model.ErrEmptyAudio)
	}

	result, err := s.api.Evaluate(ctx, transcript, card.Definition)
	if err != nil {
		return s.fail(ctx, "evaluate", msgEvaluateFailed, err)
	}

	suggested := SuggestQuality(result.SimilarityScore)
	s.mu.Lock()
	if gen != s.generation || s.state.Exited {
		s.mu.Unlock()
		logger.Debug("Dropped evaluation for a card that is no longer shown")
		return nil
	}
	s.state.Transcript = transcript
	s.state.Result = result
	s.state.Quality = &suggested
	s.state.ShowResults = true
	s.mu.Unlock()
	s.publish()

	logger.Info("Answer evaluated", "similarity", result.SimilarityScore, "suggested_quality", suggested.String())
	s.startParaphrase(ctx, gen, card.Definition)
	return nil
}

// RefreshParaphrases は現在のカードの言い換えを取得し直します。
// 結果の表示中でなければ、または取得中であれば何もしません。
func (s *Session) RefreshParaphrases(ctx context.Context) {
	s.mu.Lock()
	if s.state.Card == nil || !s.state.ShowResults || s.state.Exited {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	definition := s.state.Card.Definition
	s.mu.Unlock()

	s.startParaphrase(ctx, gen, definition)
}

// startParaphrase は言い換えの取得を切り離して実行します。
// 結果は同じカードを表示している間に届いた場合だけ反映されます。
func (s *Session) startParaphrase(ctx context.Context, gen uint64, definition string) {
	s.mu.Lock()
	if s.paraphrasing == gen {
		s.mu.Unlock()
		return
	}
	s.paraphrasing = gen
	s.mu.Unlock()

	// 呼び出し元の操作が終わっても取得は続ける
	taskCtx := context.WithoutCancel(ctx)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		paraphrases, err := s.api.Paraphrase(taskCtx, definition)

		s.mu.Lock()
		if s.paraphrasing == gen {
			s.paraphrasing = 0
		}
		live := gen == s.generation && !s.state.Exited
		if err == nil && live {
			s.state.Paraphrases = paraphrases
		}
		s.mu.Unlock()

		// 画面を離れた後やカードが変わった後の応答は、401 も含めて何もしない
		switch {
		case !live:
			s.log(taskCtx).Debug("Dropped paraphrases for a card that is no longer shown", "error", err)
		case model.IsUnauthorized(err):
			s.unauthorized(taskCtx)
		case err != nil:
			s.log(taskCtx).Warn("Failed to fetch paraphrases", "error", err)
			s.notify.Notify(msgParaphraseFailed)
		default:
			s.publish()
		}
	}()
}

// ToggleParaphrases は言い換えパネルの表示を切り替えます。
func (s *Session) ToggleParaphrases() {
	s.mu.Lock()
	if !s.state.ShowResults {
		s.mu.Unlock()
		return
	}
	s.state.ShowParaphrases = !s.state.ShowParaphrases
	s.mu.Unlock()
	s.publish()
}

// SelectQuality は提案された評価を上書きします。
func (s *Session) SelectQuality(q model.Quality) error {
	if !q.Valid() {
		return fmt.Errorf("study.SelectQuality: %s: %w", q, model.ErrInvalidInput)
	}
	s.mu.Lock()
	if !s.state.ShowResults || s.state.Exited {
		s.mu.Unlock()
		return nil
	}
	s.state.Quality = &q
	s.mu.Unlock()
	s.publish()
	return nil
}

// SubmitQuality は評価を選んでそのまま送信します。
func (s *Session) SubmitQuality(ctx context.Context, q model.Quality) error {
	if err := s.SelectQuality(q); err != nil {
		return err
	}
	return s.Submit(ctx)
}

// Submit は選択中の評価でレビューを送信し、次へ進みます。
// カードか回答がなければ何もしません。401 以外の応答であれば成否に関わらず次へ進みます。
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Exited || s.state.Processing || s.state.Card == nil ||
		s.state.Transcript == "" || s.state.Quality == nil {
		s.mu.Unlock()
		return nil
	}
	s.state.Processing = true
	gen := s.generation
	req := model.SubmitReviewRequest{
		CardID:     s.state.Card.ID,
		UserAnswer: s.state.Transcript,
		Quality:    *s.state.Quality,
	}
	s.mu.Unlock()
	s.publish()

	logger := s.log(ctx).With("card_id", req.CardID, "quality", req.Quality.String())

	_, err := s.api.SubmitReview(ctx, req)
	s.finishProcessing()
	switch {
	case model.IsUnauthorized(err):
		s.unauthorized(ctx)
		return fmt.Errorf("study.Submit: %w", err)
	case errors.Is(err, model.ErrTransport), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// 送信できたか分からないので進まない。再送はユーザーに任せる
		logger.Warn("Review was not delivered", "error", err)
		s.notify.Notify(msgSubmitUnreachable)
		return fmt.Errorf("study.Submit: %w", err)
	case err != nil:
		logger.Warn("Review submission failed, moving on", "error", err)
		s.notify.Notify(msgSubmitFailed)
	default:
		logger.Info("Review submitted")
	}

	s.mu.Lock()
	stale := gen != s.generation || s.state.Exited
	s.mu.Unlock()
	if stale {
		return err
	}

	if s.mode == SingleCard {
		s.exit()
		s.nav.ToDeck(s.deckID)
		return err
	}
	if loadErr := s.Load(ctx); loadErr != nil {
		return errors.Join(err, loadErr)
	}
	return err
}

// Close は録音中であればマイクを解放してセッションを終了します。
func (s *Session) Close() {
	s.mu.Lock()
	rec := s.recording
	s.recording = nil
	s.state.Recording = false
	s.mu.Unlock()
	if rec != nil {
		_, _ = rec.Stop()
	}
	s.exit()
}

// exit はセッションを終了状態にします。以降の操作は何もしません。
// 初めて終了した場合に true を返します。
func (s *Session) exit() bool {
	s.mu.Lock()
	if s.state.Exited {
		s.mu.Unlock()
		return false
	}
	s.state.Exited = true
	s.generation++
	s.mu.Unlock()
	s.publish()
	return true
}

// fail は呼び出しの失敗を処理します。401 ならログアウトしてログイン画面へ、
// それ以外は通知するだけで状態は変えません。
func (s *Session) fail(ctx context.Context, op, msg string, err error) error {
	if model.IsUnauthorized(err) {
		s.unauthorized(ctx)
		return fmt.Errorf("study.%s: %w", op, err)
	}
	s.log(ctx).Warn("Request failed", "op", op, "error", err)
	s.notify.Notify(msg)
	return fmt.Errorf("study.%s: %w", op, err)
}

// unauthorized は認証情報を消してログイン画面へ移ります。再試行はしません。
func (s *Session) unauthorized(ctx context.Context) {
	logger := s.log(ctx)
	if err := s.creds.Clear(ctx); err != nil {
		logger.Error("Failed to clear credentials", "error", err)
	}
	if s.exit() {
		logger.Info("Session expired, redirecting to login")
		s.nav.ToLogin()
	}
}
