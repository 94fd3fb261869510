package audio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// Recording は1回分の録音です。Start で読み取りを始め、Stop で入力を解放して
// それまでに受け取ったチャンクを順番通りに連結して返します。
type Recording struct {
	stream    Stream
	chunkSize int

	mu     sync.Mutex
	chunks [][]byte
	err    error

	done     chan struct{}
	stopOnce sync.Once
	closeErr error
}

// Start は stream からチャンク単位の読み取りをバックグラウンドで開始します。
func Start(stream Stream, chunkSize int) *Recording {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	r := &Recording{stream: stream, chunkSize: chunkSize, done: make(chan struct{})}
	go r.read()
	return r
}

func (r *Recording) read() {
	defer close(r.done)
	buf := make([]byte, r.chunkSize)
	for {
		n, err := r.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// Chunks は現在までに受け取ったチャンク数
func (r *Recording) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Stop は入力を閉じ (成功・失敗どちらでも必ず)、読み取りの終了を待ってから
// 連結した音声を返します。2回目以降の呼び出しは同じ結果を返します。
func (r *Recording) Stop() ([]byte, error) {
	r.stopOnce.Do(func() {
		r.closeErr = r.stream.Close()
		<-r.done
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	payload := bytes.Join(r.chunks, nil)
	if r.err != nil {
		return payload, r.err
	}
	return payload, r.closeErr
}
