package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// InputPlaceholder in a decoder argv is replaced with the input path.
const InputPlaceholder = "{input}"

// DefaultDecoderArgs transcodes any ffmpeg-readable input to MJPEG on stdout.
var DefaultDecoderArgs = []string{"ffmpeg", "-hide_banner", "-loglevel", "error", "-i", InputPlaceholder, "-f", "mjpeg", "-q:v", "5", "-"}

// tailWriter keeps the last max bytes written (decoder stderr).
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}

// CommandSource runs a decoder subprocess and reads MJPEG from its stdout.
type CommandSource struct {
	argv   []string
	cmd    *exec.Cmd
	mjpeg  *MJPEGSource
	stderr *tailWriter
	log    zerolog.Logger

	waitOnce sync.Once
	waitErr  error
}

// ExpandArgs substitutes input into argv.
func ExpandArgs(argv []string, input string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, InputPlaceholder, input)
	}
	return out
}

// StartCommand starts argv and returns a source over its output. The process
// is killed when ctx is canceled.
func StartCommand(ctx context.Context, argv []string, log zerolog.Logger) (*CommandSource, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty decoder command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder setup: %w", err)
	}
	tw := &tailWriter{max: 4096}
	cmd.Stderr = tw
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("decoder start: %w", err)
	}
	log.Info().Strs("argv", argv).Int("pid", cmd.Process.Pid).Msg("decoder started")
	return &CommandSource{
		argv:   argv,
		cmd:    cmd,
		mjpeg:  NewMJPEGSource(stdout, nil, log),
		stderr: tw,
		log:    log,
	}, nil
}

func (s *CommandSource) wait() error {
	s.waitOnce.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

func (s *CommandSource) Next(ctx context.Context) (*Frame, error) {
	f, err := s.mjpeg.Next(ctx)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, io.EOF) {
		return nil, err
	}
	if werr := s.wait(); werr != nil && s.mjpeg.seq == 0 {
		return nil, fmt.Errorf("decoder %s failed: %w: %s", s.argv[0], werr, s.stderr.String())
	}
	return nil, io.EOF
}

// Close kills the decoder if it is still running and reaps it.
func (s *CommandSource) Close() error {
	if s.cmd.ProcessState == nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}
