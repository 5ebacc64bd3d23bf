package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultReplyTTL      = time.Minute
	DefaultSweepInterval = 10 * time.Second
)

// Config holds Hub tunables.
type Config struct {
	// Timeout bounds how long Query waits for a reply.
	Timeout time.Duration
	// ReplyTTL is how long an uncollected reply is kept. Negative disables eviction.
	ReplyTTL      time.Duration
	SweepInterval time.Duration
	// MaxMailboxDepth limits queued prompts; 0 means unbounded.
	MaxMailboxDepth int
	// ReportFailures stores failed calls so waiting queries return an
	// InferenceError instead of timing out.
	ReportFailures bool
	// NewID generates request ids; defaults to random UUIDs.
	NewID  func() string
	Logger zerolog.Logger
}

// Hub is the shared context between the control endpoint and the frame loop.
type Hub struct {
	cfg     Config
	mailbox *Mailbox
	replies *ReplyStore
	log     zerolog.Logger
}

// NewHub constructs a Hub, applying defaults.
func NewHub(cfg Config) *Hub {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.ReplyTTL == 0:
		cfg.ReplyTTL = DefaultReplyTTL
	case cfg.ReplyTTL < 0:
		cfg.ReplyTTL = 0
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Hub{
		cfg:     cfg,
		mailbox: NewMailbox(cfg.MaxMailboxDepth),
		replies: NewReplyStore(cfg.ReplyTTL),
		log:     cfg.Logger.With().Str("component", "relay").Logger(),
	}
}

// Mailbox exposes the prompt queue.
func (h *Hub) Mailbox() *Mailbox { return h.mailbox }

// Replies exposes the reply store.
func (h *Hub) Replies() *ReplyStore { return h.replies }

// Run sweeps expired replies until ctx is done.
func (h *Hub) Run(ctx context.Context) { h.replies.Run(ctx, h.cfg.SweepInterval) }

// Next dequeues at most one prompt for the frame loop.
func (h *Hub) Next() (PromptMessage, bool) { return h.mailbox.TryDequeue() }

// NewID returns a fresh request id.
func (h *Hub) NewID() string { return h.cfg.NewID() }

// Query enqueues prompt under a fresh id and waits for its reply. It returns
// the reply text, the id used, and ErrTimeout if no reply arrived in time.
// A timed-out query leaves its prompt and any later reply in place.
func (h *Hub) Query(ctx context.Context, prompt string) (string, string, error) {
	id := h.cfg.NewID()
	text, err := h.QueryID(ctx, id, prompt)
	return text, id, err
}

// QueryID is Query with a caller-chosen id.
func (h *Hub) QueryID(ctx context.Context, id, prompt string) (string, error) {
	if err := h.mailbox.Enqueue(PromptMessage{Type: TypeQuery, Data: prompt, ID: id}); err != nil {
		queriesTotal.WithLabelValues("rejected").Inc()
		return "", err
	}
	h.log.Debug().Str("request_id", id).Msg("prompt queued")

	wctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()
	r, err := h.replies.Wait(wctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			queriesTotal.WithLabelValues("timeout").Inc()
			return "", ErrTimeout
		}
		queriesTotal.WithLabelValues("canceled").Inc()
		return "", err
	}
	if r.Err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		return "", &InferenceError{Err: r.Err}
	}
	queriesTotal.WithLabelValues("reply").Inc()
	return r.Text, nil
}

// Deliver records the outcome of a model call made for id. Failures are
// dropped unless ReportFailures is set; replies for an empty id are not kept.
func (h *Hub) Deliver(id, text string, err error) {
	if id == "" {
		return
	}
	if err != nil {
		if !h.cfg.ReportFailures {
			h.log.Debug().Str("request_id", id).Err(err).Msg("failed call not reported")
			return
		}
		h.replies.Put(id, Reply{Err: err})
		return
	}
	h.replies.Put(id, Reply{Text: text})
}
