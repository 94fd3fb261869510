// Package audio は回答の録音と、API に送るための音声ペイロードを扱います。
package audio

import (
	"context"
	"encoding/base64"
	"io"

	"go_voicecards/internal/model"
)

// Stream は録音中の音声入力です。Close で入力デバイスを解放します。
type Stream interface {
	io.ReadCloser
}

// Microphone は音声入力を開きます。開けない場合は model.ErrMicrophone を返します。
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// EncodePayload は連結済みの音声を base64 (標準エンコーディング) にします。
func EncodePayload(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", model.ErrEmptyAudio
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}
