package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"go_voicecards/internal/model"
)

// NextCard は next-due-card。デッキ内で次に復習期限が来ているカードを返す (なければ Card は nil)
func (c *Client) NextCard(ctx context.Context, deckID int) (*model.NextCardResponse, error) {
	var resp model.NextCardResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/study/deck/%d/next", deckID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StudyCard は card-by-id。単一カード学習用
func (c *Client) StudyCard(ctx context.Context, cardID int) (*model.Card, error) {
	var card model.Card
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/study/card/%d", cardID), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Transcribe は base64 エンコード済みの音声を文字起こしします。
func (c *Client) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	var resp model.TranscriptionResponse
	req := model.TranscriptionRequest{AudioBase64: audioBase64}
	if err := c.do(ctx, http.MethodPost, "/api/study/transcribe", &req, &resp); err != nil {
		return "", err
	}
	return resp.Transcript, nil
}

// Evaluate は回答と正解定義の類似度を評価します。
func (c *Client) Evaluate(ctx context.Context, userAnswer, definition string) (*model.EvaluationResult, error) {
	var result model.EvaluationResult
	req := model.EvaluationRequest{UserAnswer: userAnswer, CorrectDefinition: definition}
	if err := c.do(ctx, http.MethodPost, "/api/study/evaluate", &req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Paraphrase は定義の言い換えを取得します。
func (c *Client) Paraphrase(ctx context.Context, definition string) ([]string, error) {
	var resp model.ParaphraseResponse
	req := model.ParaphraseRequest{Definition: definition}
	if err := c.do(ctx, http.MethodPost, "/api/study/paraphrase", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Paraphrases == nil {
		return []string{}, nil
	}
	return resp.Paraphrases, nil
}

// SubmitReview は採点済みのレビューを送信します。次回復習日の計算はサーバー側
func (c *Client) SubmitReview(ctx context.Context, req model.SubmitReviewRequest) (*model.ReviewResponse, error) {
	var resp model.ReviewResponse
	if err := c.do(ctx, http.MethodPost, "/api/study/review", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResetCardProgress(ctx context.Context, cardID int) (string, error) {
	var resp model.MessageResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/study/progress/card/%d", cardID), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) ResetDeckProgress(ctx context.Context, deckID int) (string, error) {
	var resp model.MessageResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/study/progress/deck/%d", deckID), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
