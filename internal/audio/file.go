package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"go_voicecards/internal/model"
)

// FileMicrophone は録音済みのファイルを音声入力として扱います (-answer-file 用)。
// 中身は Open 時にすべて読み込むため、すぐに Stop しても全体が録音されます。
type FileMicrophone struct {
	Path string
}

func (m FileMicrophone) Open(_ context.Context) (Stream, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMicrophone, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
