// internal/model/review.go
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quality は想起の自己評価。外部のスペースドリピティションに渡される
type Quality int

const (
	QualityAgain  Quality = iota // 0
	QualityHard                  // 1
	QualityNormal                // 2
	QualityEasy                  // 3
)

var qualityNames = [...]string{"Again", "Hard", "Normal", "Easy"}

func (q Quality) Valid() bool {
	return q >= QualityAgain && q <= QualityEasy
}

func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// ParseQuality は "0".."3" または "again"/"hard"/"normal"/"easy" を受け付けます。
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		q := Quality(n)
		if !q.Valid() {
			return 0, fmt.Errorf("quality %d out of range: %w", n, ErrInvalidInput)
		}
		return q, nil
	}
	for i, name := range qualityNames {
		if strings.EqualFold(s, name) {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quality %q: %w", s, ErrInvalidInput)
}

// TranscriptionRequest は音声 (base64) の文字起こしリクエスト
type TranscriptionRequest struct {
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
}

type TranscriptionResponse struct {
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// EvaluationRequest は回答と正解定義の類似度評価リクエスト
type EvaluationRequest struct {
	UserAnswer        string `json:"user_answer" validate:"required"`
	CorrectDefinition string `json:"correct_definition" validate:"required"`
}

// EvaluationResult は類似度評価の結果。回答ごとに一度だけ生成され、次のカードで破棄される
// Highlighted* には一致箇所を <mark>...</mark> で囲んだテキストが入る
type EvaluationResult struct {
	SimilarityScore       float64  `json:"similarity_score" validate:"gte=0,lte=1"`
	MatchedKeywords       []string `json:"matched_keywords"`
	HighlightedUserAnswer string   `json:"highlighted_user_answer"`
	HighlightedDefinition string   `json:"highlighted_definition"`
}

type ParaphraseRequest struct {
	Definition string `json:"definition" validate:"required"`
}

type ParaphraseResponse struct {
	Paraphrases []string `json:"paraphrases"`
}

// SubmitReviewRequest は採点済みレビューの送信DTO
type SubmitReviewRequest struct {
	CardID     int     `json:"card_id" validate:"required"`
	UserAnswer string  `json:"user_answer" validate:"required"`
	Quality    Quality `json:"quality" validate:"gte=0,lte=3"`
}

type ReviewResponse struct {
	ID              int       `json:"id"`
	CardID          int       `json:"card_id"`
	SimilarityScore float64   `json:"similarity_score"`
	Quality         Quality   `json:"quality"`
	MatchedKeywords []string  `json:"matched_keywords"`
	ReviewedAt      time.Time `json:"reviewed_at"`
}
