package frames

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/common/fsutil"
)

// Backends accepted by Open.
const (
	BackendAuto   = "auto"
	BackendMJPEG  = "mjpeg"
	BackendFFmpeg = "ffmpeg"
	BackendGoCV   = "gocv"
)

// OpenConfig selects and configures a frame source.
type OpenConfig struct {
	// Input is a file path, a stream URL, or "-" for stdin (MJPEG only).
	Input   string
	Backend string
	// DecoderArgs overrides DefaultDecoderArgs for the ffmpeg backend.
	DecoderArgs []string
	// FPS limits the read rate; 0 reads as fast as the source allows.
	FPS    float64
	Stdin  io.Reader
	Logger zerolog.Logger
}

func isMJPEG(input string) bool {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".mjpeg", ".mjpg":
		return true
	}
	return false
}

func isURL(input string) bool { return strings.Contains(input, "://") }

// ResolveBackend returns the backend Open would use for cfg.
func ResolveBackend(cfg OpenConfig) string {
	b := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if b != "" && b != BackendAuto {
		return b
	}
	if cfg.Input == "-" || isMJPEG(cfg.Input) {
		return BackendMJPEG
	}
	if GoCVAvailable {
		return BackendGoCV
	}
	return BackendFFmpeg
}

// Open opens the configured source. A missing input file is an error.
func Open(ctx context.Context, cfg OpenConfig) (Source, error) {
	if cfg.Input == "" {
		return nil, fmt.Errorf("no video input configured")
	}
	input := cfg.Input
	if input != "-" && !isURL(input) {
		p, err := fsutil.ResolveFile(input)
		if err != nil {
			return nil, err
		}
		input = p
	}
	log := cfg.Logger.With().Str("component", "frames").Logger()

	var (
		src Source
		err error
	)
	switch backend := ResolveBackend(cfg); backend {
	case BackendMJPEG:
		if input == "-" {
			stdin := cfg.Stdin
			if stdin == nil {
				stdin = os.Stdin
			}
			src = NewMJPEGSource(stdin, nil, log)
		} else {
			src, err = OpenMJPEGFile(input, log)
		}
	case BackendFFmpeg:
		args := cfg.DecoderArgs
		if len(args) == 0 {
			args = DefaultDecoderArgs
		}
		src, err = StartCommand(ctx, ExpandArgs(args, input), log)
	case BackendGoCV:
		src, err = OpenGoCV(input)
	default:
		return nil, fmt.Errorf("unknown video backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open video %q: %w", cfg.Input, err)
	}
	if cfg.FPS > 0 {
		src = Paced(src, cfg.FPS)
	}
	return src, nil
}

type paced struct {
	Source
	interval time.Duration
	last     time.Time
}

// Paced wraps src so that Next returns at most fps frames per second.
func Paced(src Source, fps float64) Source {
	if fps <= 0 {
		return src
	}
	return &paced{Source: src, interval: time.Duration(float64(time.Second) / fps)}
}

func (p *paced) Next(ctx context.Context) (*Frame, error) {
	if !p.last.IsZero() {
		if d := time.Until(p.last.Add(p.interval)); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	f, err := p.Source.Next(ctx)
	p.last = time.Now()
	return f, err
}
