package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "charm.land/bubbletea/v2"

	"go_voicecards/internal/model"
	"go_voicecards/internal/study"
)

// キーの説明
type keyHint struct {
	Key         string
	Description string
}

// セッションから届くメッセージ
type (
	stateMsg  study.State
	noticeMsg string
	// leaveMsg はセッションが画面を離れた (ログイン画面・デッキ画面・完了)
	leaveMsg struct{}
	// opDoneMsg はキー操作で始めたセッションの操作が終わった
	opDoneMsg struct {
		op  string
		err error
	}
)

// studyModel は学習画面の tea.Model です。
// セッションの操作は状態の通知を Program.Send で送るため、Update の中では呼ばずに tea.Cmd で実行します。
// 操作の実行中に押されたキーは順番に溜めておき、操作が終わってから処理します。
type studyModel struct {
	ctx    context.Context
	sess   *study.Session
	opts   StudyOptions
	logger *slog.Logger
	ops    *opTracker

	state    study.State
	notice   string
	busy     bool
	queued   []tea.KeyPressMsg
	showHelp bool
	quitting bool
}

var _ tea.Model = (*studyModel)(nil)

func newStudyModel(ctx context.Context, sess *study.Session, opts StudyOptions, logger *slog.Logger) *studyModel {
	return &studyModel{
		ctx:    ctx,
		sess:   sess,
		opts:   opts,
		logger: logger,
		ops:    &opTracker{},
		state:  sess.State(),
	}
}

func (m *studyModel) Init() tea.Cmd {
	return nil
}

func (m *studyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = study.State(msg)
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case leaveMsg:
		return m.quit()

	case opDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Debug("Operation failed", "op", msg.op, "error", msg.err)
		}
		m.state = m.sess.State()
		return m.drain()

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.busy {
			m.queued = append(m.queued, msg)
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// drain は溜まっているキーを、次の操作が始まるまで処理します。
func (m *studyModel) drain() (tea.Model, tea.Cmd) {
	for len(m.queued) > 0 && !m.busy && !m.quitting {
		key := m.queued[0]
		m.queued = m.queued[1:]
		if _, cmd := m.handleKey(key); cmd != nil {
			return m, cmd
		}
	}
	return m, nil
}

func (m *studyModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.queued = nil
	return m, tea.Quit
}

func (m *studyModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	key := msg.String()
	switch key {
	case "q", "esc":
		return m.quit()
	case "?", "h":
		m.showHelp = !m.showHelp
		return m, nil
	case "r", "space":
		return m.do("record", m.toggleRecording)
	case "s", "enter":
		return m.do("submit", m.sess.Submit)
	case "f":
		return m.do("toggle-paraphrases", func(context.Context) error {
			m.sess.ToggleParaphrases()
			return nil
		})
	case "p":
		return m.do("refresh-paraphrases", func(ctx context.Context) error {
			m.sess.RefreshParaphrases(ctx)
			return nil
		})
	case "l":
		// 読み込みに失敗してカードがないときだけ読み込み直す
		if m.state.Card != nil || m.state.Loading || m.state.Done {
			return m, nil
		}
		return m.do("reload", m.sess.Load)
	}

	if q, err := model.ParseQuality(key); err == nil {
		return m.do("select-quality", func(context.Context) error {
			return m.sess.SelectQuality(q)
		})
	}
	return m, nil
}

// do はセッションの操作を tea.Cmd として実行します。
func (m *studyModel) do(op string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	m.notice = ""
	ctx := m.ctx
	return m, func() tea.Msg {
		if !m.ops.begin() {
			return nil
		}
		defer m.ops.done()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// opTracker は実行中の操作を数えます。close の後に始まる操作は実行しません。
type opTracker struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (t *opTracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *opTracker) done() {
	t.wg.Done()
}

func (t *opTracker) closeAndWait() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// toggleRecording はゴルーチン上で実行されるため、不変の sess と opts 以外のフィールドは読まない
func (m *studyModel) toggleRecording(ctx context.Context) error {
	if m.sess.State().Recording {
		return m.sess.StopRecording(ctx)
	}
	if err := m.sess.StartRecording(ctx); err != nil {
		return err
	}
	if m.opts.OneShot && m.sess.State().Recording {
		return m.sess.StopRecording(ctx)
	}
	return nil
}

func (m *studyModel) KeyHints() []keyHint {
	st := m.state
	switch {
	case st.Card == nil:
		return []keyHint{{Key: "l", Description: "読み込み直す"}, {Key: "q", Description: "終了"}}
	case st.Recording:
		return []keyHint{{Key: "r", Description: "録音を停止"}, {Key: "q", Description: "終了"}}
	case st.ShowResults:
		return []keyHint{
			{Key: "0-3", Description: "評価を選ぶ"},
			{Key: "s", Description: "送信して次へ"},
			{Key: "f", Description: "言い換え"},
			{Key: "q", Description: "終了"},
		}
	default:
		return []keyHint{{Key: "r", Description: "録音を開始"}, {Key: "?", Description: "ヘルプ"}, {Key: "q", Description: "終了"}}
	}
}

func (m *studyModel) View() tea.View {
	return tea.NewView(m.render())
}

// render は画面の内容を組み立てます。
func (m *studyModel) render() string {
	if m.quitting {
		return ""
	}
	st := m.state
	var b strings.Builder

	if st.Mode == study.DeckSequential {
		fmt.Fprintf(&b, "[%s] 残り %d 枚\n\n", st.DeckName, st.CardsRemaining)
	} else {
		fmt.Fprintf(&b, "[%s]\n\n", st.DeckName)
	}

	switch {
	case st.Loading:
		b.WriteString("読み込み中...\n")
	case st.Card == nil:
		b.WriteString("カードを読み込めませんでした。\n")
	default:
		m.renderCard(&b, st)
	}

	if m.notice != "" {
		fmt.Fprintf(&b, "\n! %s\n", m.notice)
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(studyHelp)
		b.WriteString("\n")
	} else {
		hints := make([]string, 0, 4)
		for _, h := range m.KeyHints() {
			hints = append(hints, h.Key+" "+h.Description)
		}
		b.WriteString(strings.Join(hints, " • "))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *studyModel) renderCard(b *strings.Builder, st study.State) {
	fmt.Fprintf(b, "概念: %s\n\n", st.Card.Concept)

	switch {
	case st.Recording:
		b.WriteString("● 録音中... (r で停止)\n")
	case st.Processing:
		b.WriteString("処理中...\n")
	case st.ShowResults && st.Result != nil:
		fmt.Fprintf(b, "あなたの回答: %s\n", highlight(st.Result.HighlightedUserAnswer, m.opts.Color))
		fmt.Fprintf(b, "正解:         %s\n", highlight(st.Result.HighlightedDefinition, m.opts.Color))
		fmt.Fprintf(b, "類似度: %.0f%%", st.Result.SimilarityScore*100)
		if len(st.Result.MatchedKeywords) > 0 {
			fmt.Fprintf(b, "  一致: %s", strings.Join(st.Result.MatchedKeywords, ", "))
		}
		b.WriteString("\n")

		switch {
		case len(st.Paraphrases) == 0:
		case st.ShowParaphrases:
			b.WriteString("-- 別の言い方 --\n")
			for i, p := range st.Paraphrases {
				fmt.Fprintf(b, "  %d. %s\n", i+1, p)
			}
		default:
			fmt.Fprintf(b, "言い換えが %d 件あります (f で表示)\n", len(st.Paraphrases))
		}

		if st.Quality != nil {
			fmt.Fprintf(b, "評価: %d (%s)\n", int(*st.Quality), *st.Quality)
		}
	default:
		b.WriteString("r で録音を開始して定義を答えてください\n")
	}
}

const studyHelp = `操作:
  r / space  録音の開始/停止
  0-3        評価を選ぶ (0=Again 1=Hard 2=Normal 3=Easy)
  s / enter  評価を送信して次へ
  f          言い換えの表示/非表示
  p          言い換えを取り直す
  l          カードを読み込み直す
  ?          このヘルプ
  q / esc    終了`
