package httpapi

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Defaults for /query and /history.
const (
	DefaultPrompt       = "Describe the scene."
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// OverlayHandler serves rendered overlay frames.
type OverlayHandler interface {
	ServeJPEG(http.ResponseWriter, *http.Request)
	ServeStream(http.ResponseWriter, *http.Request)
}

type corsOptions struct {
	enabled bool
	origins []string
	methods []string
	headers []string
}

type options struct {
	// baseCtx is canceled on shutdown; in-flight queries then answer 503.
	baseCtx       context.Context
	log           zerolog.Logger
	cors          corsOptions
	events        http.Handler
	overlay       OverlayHandler
	defaultPrompt string
}

// Option configures NewMux.
type Option func(*options)

// WithBaseContext sets the process-level context joined into every query.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.baseCtx = ctx
		}
	}
}

// WithLogger installs the structured request logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithCORS enables CORS for the given origins. Empty methods/headers take
// GET/OPTIONS and Content-Type.
func WithCORS(origins, methods, headers []string) Option {
	return func(o *options) {
		o.cors = corsOptions{
			enabled: true,
			origins: append([]string(nil), origins...),
			methods: append([]string(nil), methods...),
			headers: append([]string(nil), headers...),
		}
	}
}

// WithEvents mounts h (a websocket event stream) at GET /events.
func WithEvents(h http.Handler) Option { return func(o *options) { o.events = h } }

// WithOverlay mounts GET /overlay.jpg and GET /overlay.mjpg.
func WithOverlay(h OverlayHandler) Option { return func(o *options) { o.overlay = h } }

// WithDefaultPrompt replaces DefaultPrompt for queries without a query parameter.
func WithDefaultPrompt(p string) Option { return func(o *options) { o.defaultPrompt = p } }

func buildOptions(opts []Option) options {
	o := options{
		baseCtx:       context.Background(),
		log:           zerolog.Nop(),
		defaultPrompt: DefaultPrompt,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
