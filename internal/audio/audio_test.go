package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go_voicecards/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeStream はテスト用の Stream。書き込んだデータがそのままチャンクとして読まれる
type pipeStream struct {
	*io.PipeReader
	w      *io.PipeWriter
	mu     sync.Mutex
	closed int
}

func newPipeStream() *pipeStream {
	r, w := io.Pipe()
	return &pipeStream{PipeReader: r, w: w}
}

func (s *pipeStream) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.w.Close()
}

func (s *pipeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestEncodePayload(t *testing.T) {
	t.Run("正常系", func(t *testing.T) {
		got, err := EncodePayload([]byte("RIFF....WAVE"))
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(got)
		require.NoError(t, err)
		assert.Equal(t, "RIFF....WAVE", string(decoded))
	})

	t.Run("異常系: 空の音声", func(t *testing.T) {
		_, err := EncodePayload(nil)
		assert.ErrorIs(t, err, model.ErrEmptyAudio)
	})
}

func TestRecording_ConcatenatesChunksInOrder(t *testing.T) {
	stream := newPipeStream()
	rec := Start(stream, 4)

	for _, chunk := range []string{"ab", "cd", "ef"} {
		_, err := stream.w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return rec.Chunks() == 3 }, time.Second, 5*time.Millisecond)

	payload, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(payload))
	assert.Equal(t, 1, stream.closeCount())

	// 2回目の Stop は入力を再度閉じない
	again, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, payload, again)
	assert.Equal(t, 1, stream.closeCount())
}

func TestRecording_ReadErrorStillReleasesStream(t *testing.T) {
	stream := newPipeStream()
	rec := Start(stream, 16)

	_, err := stream.w.Write([]byte("xy"))
	require.NoError(t, err)
	stream.w.CloseWithError(errors.New("device unplugged"))

	payload, err := rec.Stop()
	assert.EqualError(t, err, "device unplugged")
	assert.Equal(t, "xy", string(payload))
	assert.Equal(t, 1, stream.closeCount())
}

func TestFileMicrophone(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: ファイルの中身が音声になる", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "answer.wav")
		require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

		stream, err := FileMicrophone{Path: path}.Open(ctx)
		require.NoError(t, err)
		rec := Start(stream, 3)
		require.Eventually(t, func() bool { return rec.Chunks() == 4 }, time.Second, 5*time.Millisecond)

		payload, err := rec.Stop()
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(payload))
	})

	t.Run("異常系: ファイルがない", func(t *testing.T) {
		_, err := FileMicrophone{Path: filepath.Join(t.TempDir(), "missing.wav")}.Open(ctx)
		assert.ErrorIs(t, err, model.ErrMicrophone)
	})
}

func TestExecMicrophone(t *testing.T) {
	ctx := context.Background()

	t.Run("異常系: コマンドが見つからない", func(t *testing.T) {
		mic := NewExecMicrophone("voicecards-no-such-recorder", nil, nil)
		_, err := mic.Open(ctx)
		assert.ErrorIs(t, err, model.ErrMicrophone)
	})

	t.Run("正常系: 標準出力を録音として読む", func(t *testing.T) {
		if _, err := exec.LookPath("cat"); err != nil {
			t.Skip("cat is not available")
		}
		path := filepath.Join(t.TempDir(), "answer.wav")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

		stream, err := NewExecMicrophone("cat", []string{path}, nil).Open(ctx)
		require.NoError(t, err)
		rec := Start(stream, 1024)
		require.Eventually(t, func() bool { return rec.Chunks() > 0 }, 2*time.Second, 10*time.Millisecond)

		payload, err := rec.Stop()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(payload))
	})

	t.Run("異常系: デバイスを開けずにすぐ終了した", func(t *testing.T) {
		if _, err := exec.LookPath("sh"); err != nil {
			t.Skip("sh is not available")
		}
		stream, err := NewExecMicrophone("sh", []string{"-c", "echo 'no such device' >&2; exit 1"}, nil).Open(ctx)
		require.NoError(t, err, "起動には成功する")

		// 終了すると EOF になる
		_, err = io.ReadAll(stream)
		require.NoError(t, err)

		err = stream.Close()
		assert.ErrorIs(t, err, model.ErrMicrophone)
	})

	t.Run("正常系: 停止の要求による終了はエラーにしない", func(t *testing.T) {
		if _, err := exec.LookPath("sleep"); err != nil {
			t.Skip("sleep is not available")
		}
		stream, err := NewExecMicrophone("sleep", []string{"30"}, nil).Open(ctx)
		require.NoError(t, err)
		rec := Start(stream, 1024)

		payload, err := rec.Stop()
		require.NoError(t, err)
		assert.Empty(t, payload)
	})
}
