package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"go_voicecards/internal/model"
)

// stopTimeout は録音コマンドが停止要求に応じるまで待つ時間
const stopTimeout = 5 * time.Second

// ExecMicrophone は外部の録音コマンド (arecord, ffmpeg 等) を起動し、
// その標準出力を音声入力として使います。
type ExecMicrophone struct {
	Command string
	Args    []string
	Logger  *slog.Logger
}

func NewExecMicrophone(command string, args []string, logger *slog.Logger) *ExecMicrophone {
	return &ExecMicrophone{Command: command, Args: args, Logger: logger}
}

func (m *ExecMicrophone) Open(ctx context.Context) (Stream, error) {
	path, err := exec.LookPath(m.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMicrophone, m.Command, err)
	}

	pr, pw := io.Pipe()
	// 録音の終了は Close で制御するため、呼び出し元の ctx には紐付けない
	cmd := exec.Command(path, m.Args...)
	cmd.Stdout = pw
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrMicrophone, err)
	}

	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.DebugContext(ctx, "Recorder started", "command", m.Command, "pid", cmd.Process.Pid)

	s := &execStream{cmd: cmd, pr: pr, pw: pw, logger: logger, exited: make(chan struct{})}
	go s.wait()
	return s, nil
}

type execStream struct {
	cmd    *exec.Cmd
	pr     *io.PipeReader
	pw     *io.PipeWriter
	logger *slog.Logger

	// exited は録音コマンドが終了すると閉じられる。waitErr はその後に読む
	exited  chan struct{}
	waitErr error

	once sync.Once
	err  error
}

func (s *execStream) wait() {
	s.waitErr = s.cmd.Wait()
	close(s.exited)
	// 読み手に EOF を返す
	s.pw.Close()
}

func (s *execStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close は録音コマンドに停止を要求し、出力をすべて書き終えるまで待ちます。
// 停止を要求する前にコマンドが異常終了していた場合 (デバイスを開けない等) は ErrMicrophone を返します。
func (s *execStream) Close() error {
	s.once.Do(func() {
		select {
		case <-s.exited:
			s.err = s.exitError(true)
			s.logger.Debug("Recorder had already exited", "pid", s.cmd.Process.Pid, "error", s.waitErr)
			return
		default:
		}

		if err := s.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			_ = s.cmd.Process.Kill()
		}

		select {
		case <-s.exited:
		case <-time.After(stopTimeout):
			s.logger.Warn("Recorder did not stop in time, killing", "pid", s.cmd.Process.Pid)
			_ = s.cmd.Process.Kill()
			s.pr.Close()
			<-s.exited
		}
		s.err = s.exitError(false)
		s.logger.Debug("Recorder stopped", "pid", s.cmd.Process.Pid)
	})
	return s.err
}

// exitError は終了状態をエラーに変換します。
// 停止を要求した後の終了コード (SIGINT で 255 を返す ffmpeg 等) やシグナルによる終了は正常な停止とみなします。
func (s *execStream) exitError(beforeStop bool) error {
	if s.waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(s.waitErr, &exitErr) {
		return s.waitErr
	}
	if beforeStop {
		return fmt.Errorf("%w: recorder exited: %v", model.ErrMicrophone, s.waitErr)
	}
	return nil
}
