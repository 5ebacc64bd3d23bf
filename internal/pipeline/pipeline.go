package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/events"
	"vlmd/internal/frames"
	"vlmd/internal/history"
	"vlmd/internal/overlay"
	"vlmd/internal/relay"
	"vlmd/internal/vlm"
)

// Config wires a Pipeline. Source is required; a nil Hub gets relay defaults.
type Config struct {
	Source frames.Source
	// VLM configures the inference client. Callback and Logger are set by New.
	VLM vlm.Config
	Hub *relay.Hub
	// Presenter displays rendered frames; nil disables the overlay.
	Presenter overlay.Presenter
	Overlay   overlay.Options
	// InitialPrompt is used until the first control query arrives.
	InitialPrompt string
	Publisher     events.Publisher
	// EventStats, when set, feeds the broker counts in Status.
	EventStats events.Counter
	History    *history.Store
	Logger     zerolog.Logger
}

// Pipeline owns the inference client and the frame loop.
type Pipeline struct {
	cfg     Config
	client  *vlm.Client
	hub     *relay.Hub
	pub     events.Publisher
	log     zerolog.Logger
	started time.Time

	running atomic.Bool
	frames  atomic.Uint64
	skipped atomic.Uint64

	mu        sync.RWMutex
	prompt    string
	promptID  string
	lastReply string
	lastError string
}

// New builds a Pipeline and its inference client.
func New(cfg Config) *Pipeline {
	if cfg.Hub == nil {
		cfg.Hub = relay.NewHub(relay.Config{Logger: cfg.Logger})
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	p := &Pipeline{
		cfg:     cfg,
		hub:     cfg.Hub,
		pub:     cfg.Publisher,
		log:     cfg.Logger.With().Str("component", "pipeline").Logger(),
		started: time.Now(),
		prompt:  cfg.InitialPrompt,
	}
	vcfg := cfg.VLM
	vcfg.Callback = p.handleResult
	vcfg.Logger = cfg.Logger
	p.client = vlm.New(vcfg)
	return p
}

// Hub returns the shared prompt/reply hub.
func (p *Pipeline) Hub() *relay.Hub { return p.hub }

// Client returns the inference client.
func (p *Pipeline) Client() *vlm.Client { return p.client }

// Run reads frames until end of stream, a quit from the presenter, or ctx
// cancellation, all of which return nil. Source errors are returned.
func (p *Pipeline) Run(ctx context.Context) error {
	src := p.cfg.Source
	if src == nil {
		return errors.New("pipeline: no frame source")
	}
	p.running.Store(true)
	defer p.running.Store(false)
	p.log.Info().Bool("overlay", p.cfg.Presenter != nil).Msg("frame loop started")

	for {
		f, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				p.log.Info().Uint64("frames", p.frames.Load()).Msg("end of video")
				return nil
			case ctx.Err() != nil:
				p.log.Info().Msg("frame loop canceled")
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		quit, err := p.step(f)
		if err != nil {
			return err
		}
		if quit {
			p.log.Info().Msg("overlay quit requested")
			return nil
		}
	}
}

// step processes one frame.
func (p *Pipeline) step(f *frames.Frame) (bool, error) {
	p.frames.Add(1)
	framesTotal.Inc()

	if msg, ok := p.hub.Next(); ok {
		p.adopt(msg)
	}

	if p.client.Busy() {
		p.skip("busy")
	} else if img, err := f.Image(); err != nil {
		p.log.Warn().Err(err).Uint64("seq", f.Seq).Msg("frame decode failed")
		p.skip("decode")
	} else {
		prompt, id := p.current()
		if p.client.Submit(prompt, img, id) {
			p.pub.Publish(events.Event{Name: events.Submitted, RequestID: id, Prompt: prompt, At: time.Now()})
		} else {
			p.skip("busy")
		}
	}

	if p.cfg.Presenter == nil {
		return false, nil
	}
	img, err := f.Image()
	if err != nil {
		return false, nil
	}
	quit, err := p.cfg.Presenter.Present(overlay.Render(img, p.overlayText(), p.cfg.Overlay))
	if err != nil {
		p.log.Warn().Err(err).Msg("overlay present failed")
	}
	return quit, nil
}

func (p *Pipeline) skip(reason string) {
	p.skipped.Add(1)
	framesSkipped.WithLabelValues(reason).Inc()
}

func (p *Pipeline) adopt(msg relay.PromptMessage) {
	p.mu.Lock()
	p.prompt, p.promptID = msg.Data, msg.ID
	p.mu.Unlock()
	p.log.Info().Str("request_id", msg.ID).Str("prompt", msg.Data).Msg("updating prompt")
}

func (p *Pipeline) current() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt, p.promptID
}

func (p *Pipeline) overlayText() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReply
}

// Close cancels any in-flight call and waits for it.
func (p *Pipeline) Close() error { return p.client.Close() }
