package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vlmd/internal/history"
	"vlmd/internal/relay"
	"vlmd/pkg/types"
)

// TimeoutMessage is the /query body when no reply arrived in time.
const TimeoutMessage = "Server timed out processing the request"

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Query(ctx context.Context, prompt string) (string, error)
	Status() types.StatusResponse
	Ready() bool
	History(ctx context.Context, offset, limit int) ([]types.HistoryEntry, int, error)
	HistoryEntry(ctx context.Context, id string) (types.HistoryEntry, bool, error)
}

func NewMux(svc Service, opts ...Option) http.Handler {
	o := buildOptions(opts)
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if o.cors.enabled {
		methods := o.cors.methods
		if len(methods) == 0 {
			methods = []string{http.MethodGet, http.MethodOptions}
		}
		headers := o.cors.headers
		if len(headers) == 0 {
			headers = []string{"Content-Type"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.cors.origins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}

	h := &handlers{svc: svc, o: o}
	r.Get("/query", h.query)

	// Compression for JSON endpoints only; streams need the raw writer.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/status", h.status)
		r.Get("/history", h.history)
		r.Get("/history/{id}", h.historyEntry)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})

	if o.events != nil {
		r.Handle("/events", o.events)
	}
	if o.overlay != nil {
		r.Get("/overlay.jpg", o.overlay.ServeJPEG)
		r.Get("/overlay.mjpg", o.overlay.ServeStream)
	}

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
	o   options
}

// query injects a prompt into the frame loop and returns the model's reply.
//
//	@Summary		Ask about the video
//	@Description	Replaces the active prompt and waits for the first reply produced for it.
//	@Produce		plain
//	@Param			query	query		string	false	"Prompt text (default: Describe the scene.)"
//	@Success		200		{string}	string	"Model reply, or the timeout message"
//	@Failure		429		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/query [get]
func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	prompt := h.o.defaultPrompt
	if q := r.URL.Query(); q.Has("query") {
		prompt = q.Get("query")
	}
	start := time.Now()
	// shutdown releases waiting queries with 503
	ctx, cancel := queryContext(r, h.o.baseCtx)
	defer cancel()

	text, err := h.svc.Query(ctx, prompt)
	status := http.StatusOK
	switch {
	case err == nil:
		writeText(w, text)
	case errors.Is(err, relay.ErrTimeout):
		writeText(w, TimeoutMessage)
	case errors.Is(err, relay.ErrMailboxFull):
		countRejected("mailbox_full")
		status = http.StatusTooManyRequests
		writeJSONError(w, status, err.Error())
	case relay.IsInferenceError(err):
		status = http.StatusBadGateway
		writeJSONError(w, status, err.Error())
	case errors.Is(context.Cause(ctx), errShuttingDown):
		status = http.StatusServiceUnavailable
		writeJSONError(w, status, errShuttingDown.Error())
	case r.Context().Err() != nil:
		// client went away; nothing to write
		status = 499
	default:
		status = http.StatusInternalServerError
		writeJSONError(w, status, err.Error())
	}
	logQuery(h.o.log, r, prompt, status, start, err)
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
}

// status reports frame loop and queue state.
//
//	@Summary	Service status
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status())
}

// history lists recorded queries newest first.
//
//	@Summary	Query history
//	@Produce	json
//	@Param		offset	query		int	false	"Rows to skip"
//	@Param		limit	query		int	false	"Page size (max 200)"
//	@Success	200		{object}	types.HistoryResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/history [get]
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeJSONError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", DefaultHistoryLimit)
	if err != nil || limit <= 0 {
		writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	items, total, err := h.svc.History(r.Context(), offset, limit)
	if err != nil {
		if errors.Is(err, history.ErrDisabled) {
			writeJSONError(w, http.StatusNotFound, "history is not enabled")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []types.HistoryEntry{}
	}
	writeJSON(w, types.HistoryResponse{Items: items, Total: total, Offset: offset, Limit: limit})
}

// historyEntry returns one recorded query by request id.
//
//	@Summary	Query history entry
//	@Produce	json
//	@Param		id	path		string	true	"Request id"
//	@Success	200	{object}	types.HistoryEntry
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/history/{id} [get]
func (h *handlers) historyEntry(w http.ResponseWriter, r *http.Request) {
	e, ok, err := h.svc.HistoryEntry(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, history.ErrDisabled):
		writeJSONError(w, http.StatusNotFound, "history is not enabled")
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	case !ok:
		writeJSONError(w, http.StatusNotFound, "no such query")
	default:
		writeJSON(w, e)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
