package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/config"
	"vlmd/internal/events"
	"vlmd/internal/frames"
	"vlmd/internal/history"
	"vlmd/internal/httpapi"
	"vlmd/internal/overlay"
	"vlmd/internal/pipeline"
	"vlmd/internal/relay"
	"vlmd/internal/vlm"
)

const shutdownTimeout = 5 * time.Second

// app holds everything serve starts so it can be torn down in order.
type app struct {
	log       zerolog.Logger
	source    frames.Source
	store     *history.Store
	mqtt      *events.MQTTEmitter
	presenter overlay.Presenter
	pipeline  *pipeline.Pipeline
	server    *http.Server
	listener  net.Listener
	// stop cancels the context pending queries wait under.
	stop context.CancelFunc
}

// serve runs the frame loop and the control endpoint until the video ends,
// the window is quit, or ctx is canceled.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

func build(ctx context.Context, cfg config.Config, log zerolog.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.source, err = frames.Open(ctx, frames.OpenConfig{
		Input:       cfg.VideoFile,
		Backend:     cfg.VideoBackend,
		DecoderArgs: cfg.DecoderCmd,
		FPS:         cfg.FPS,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open video: %w", err)
	}

	a.store, err = history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	var pubs events.Multi
	var broadcaster *events.Broadcaster
	if cfg.Events {
		broadcaster = events.NewBroadcaster(log, originChecker(cfg.CORSOrigins))
		pubs = append(pubs, broadcaster)
	}
	if cfg.MQTT.Broker != "" {
		em := events.NewMQTTEmitter(events.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Format:   cfg.MQTT.Format,
		}, log)
		if cerr := em.Connect(); cerr != nil {
			log.Warn().Err(cerr).Str("broker", cfg.MQTT.Broker).Msg("mqtt disabled")
		} else {
			a.mqtt = em
			pubs = append(pubs, em)
		}
	}

	var stream *overlay.StreamPresenter
	if cfg.Overlay {
		if cfg.OverlayMode == "window" {
			a.presenter, err = overlay.NewWindowPresenter("Overlay")
			if err != nil {
				return nil, err
			}
		} else {
			stream = overlay.NewStreamPresenter(0)
			a.presenter = stream
		}
	}

	hub := relay.NewHub(relay.Config{
		Timeout:         cfg.QueryTimeout.Std(),
		ReplyTTL:        cfg.ReplyTTL.Std(),
		MaxMailboxDepth: cfg.MaxMailboxDepth,
		ReportFailures:  cfg.ReportFailures,
		Logger:          log,
	})

	var pub events.Publisher = events.Nop{}
	if len(pubs) > 0 {
		pub = pubs
	}
	var stats events.Counter
	if a.mqtt != nil {
		stats = a.mqtt
	}
	a.pipeline = pipeline.New(pipeline.Config{
		Source: a.source,
		VLM: vlm.Config{
			URL:            cfg.ModelURL,
			APIKey:         cfg.APIKey,
			MaxTokens:      cfg.VLM.MaxTokens,
			Temperature:    cfg.VLM.Temperature,
			TopP:           cfg.VLM.TopP,
			ImageSize:      cfg.VLM.ImageSize,
			JPEGQuality:    cfg.VLM.JPEGQuality,
			RequestTimeout: cfg.VLM.RequestTimeout.Std(),
		},
		Hub:           hub,
		Presenter:     a.presenter,
		Overlay:       overlay.Options{Shadow: true},
		InitialPrompt: cfg.InitialPrompt,
		Publisher:     pub,
		EventStats:    stats,
		History:       a.store,
		Logger:        log,
	})

	baseCtx, stop := context.WithCancel(ctx)
	a.stop = stop
	opts := []httpapi.Option{
		httpapi.WithBaseContext(baseCtx),
		httpapi.WithLogger(log),
	}
	if cfg.DefaultPrompt != "" {
		opts = append(opts, httpapi.WithDefaultPrompt(cfg.DefaultPrompt))
	}
	if len(cfg.CORSOrigins) > 0 {
		opts = append(opts, httpapi.WithCORS(cfg.CORSOrigins, nil, nil))
	}
	if broadcaster != nil {
		opts = append(opts, httpapi.WithEvents(broadcaster))
	}
	if stream != nil {
		opts = append(opts, httpapi.WithOverlay(stream))
	}

	addr := cfg.ListenAddr()
	a.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	a.server = &http.Server{
		Handler:           httpapi.NewMux(a.pipeline, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *app) run(ctx context.Context) error {
	defer a.close()

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.listener.Addr().String()).Msg("control endpoint listening")
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.pipeline.Hub().Run(hubCtx)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go func() {
		if err, ok := <-serveErr; ok && err != nil {
			a.log.Error().Err(err).Msg("http server failed")
			stopLoop()
		}
	}()

	err := a.pipeline.Run(loopCtx)
	if err != nil {
		a.log.Error().Err(err).Msg("frame loop stopped")
	} else {
		a.log.Info().Msg("frame loop finished")
	}
	return err
}

// close releases resources in reverse start order. Pending queries and
// overlay streams are released before the server shutdown waits on them.
func (a *app) close() {
	if a.stop != nil {
		a.stop()
	}
	if a.presenter != nil {
		_ = a.presenter.Close()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("http shutdown")
		}
		cancel()
	} else if a.listener != nil {
		_ = a.listener.Close()
	}
	if a.pipeline != nil {
		_ = a.pipeline.Close()
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.mqtt != nil {
		_ = a.mqtt.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// originChecker allows same-origin websocket upgrades plus the configured
// CORS origins.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
