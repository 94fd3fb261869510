package study

import (
	"fmt"

	"go_voicecards/internal/model"
)

// Mode はセッションの進め方。セッションの生成時に決まり、変わらない
type Mode int

const (
	// DeckSequential はデッキ内の復習期限が来たカードを順番に出題する
	DeckSequential Mode = iota
	// SingleCard は指定された1枚だけを出題し、送信後はデッキ画面に戻る
	SingleCard
)

func (m Mode) String() string {
	switch m {
	case DeckSequential:
		return "deck"
	case SingleCard:
		return "single"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State は学習画面の状態のスナップショット。カードを読み込むたびに一時的な項目はリセットされる
type State struct {
	Mode           Mode
	Card           *model.Card
	DeckName       string
	CardsRemaining int

	Loading    bool
	Recording  bool
	Processing bool

	Transcript      string
	Result          *model.EvaluationResult
	Quality         *model.Quality
	Paraphrases     []string
	ShowParaphrases bool
	ShowResults     bool

	// Done はデッキに復習すべきカードが残っていない (DeckSequential のみ)
	Done bool
	// Exited はこのセッションが画面を離れた (ログイン画面またはデッキ画面へ)
	Exited bool
}

// resetAnswer は回答に関する一時的な項目を消します。
func (s *State) resetAnswer() {
	s.Transcript = ""
	s.Result = nil
	s.Quality = nil
	s.Paraphrases = []string{}
	s.ShowParaphrases = false
	s.ShowResults = false
}

// clone は呼び出し側が変更しても影響しないコピーを返します。
func (s State) clone() State {
	c := s
	if s.Card != nil {
		card := *s.Card
		c.Card = &card
	}
	if s.Result != nil {
		result := *s.Result
		result.MatchedKeywords = append([]string(nil), s.Result.MatchedKeywords...)
		c.Result = &result
	}
	if s.Quality != nil {
		q := *s.Quality
		c.Quality = &q
	}
	c.Paraphrases = append([]string{}, s.Paraphrases...)
	return c
}
