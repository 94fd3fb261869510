package study

import "go_voicecards/internal/model"

// 類似度スコアから自己評価を提案するしきい値 (下限を含む)
const (
	easyThreshold   = 0.85
	normalThreshold = 0.70
	hardThreshold   = 0.50
)

// SuggestQuality は類似度スコア (0〜1) から自己評価の初期値を決めます。
// あくまで提案で、ユーザーは送信前に変更できます。
func SuggestQuality(score float64) model.Quality {
	switch {
	case score >= easyThreshold:
		return model.QualityEasy
	case score >= normalThreshold:
		return model.QualityNormal
	case score >= hardThreshold:
		return model.QualityHard
	default:
		return model.QualityAgain
	}
}
