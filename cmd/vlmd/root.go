package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vlmd/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFunc func(ctx context.Context, cfg config.Config, log zerolog.Logger) error

// flagValues mirrors the command-line flags; only changed flags override
// file and environment settings.
type flagValues struct {
	configPath     string
	modelURL       string
	videoFile      string
	apiKey         string
	port           int
	addr           string
	overlay        bool
	overlayMode    string
	logLevel       string
	logFormat      string
	queryTimeout   config.Duration
	fps            float64
	historyDB      string
	mqttBroker     string
	events         bool
	reportFailures bool
	initialPrompt  string
	videoBackend   string
	corsOrigins    []string
}

func newRootCmd(run runFunc) *cobra.Command {
	f := &flagValues{}
	root := &cobra.Command{
		Use:           "vlmd",
		Short:         "Run a video through a remote vision-language model and answer questions about it",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	fl := root.Flags()
	fl.StringVar(&f.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	fl.StringVar(&f.modelURL, "model_url", "", "Chat completions URL of the vision-language model (env VLMD_MODEL_URL)")
	fl.StringVar(&f.videoFile, "video_file", "", "Video file, stream URL, or - for MJPEG on stdin")
	fl.StringVar(&f.apiKey, "api_key", "", "Bearer token for the model endpoint (env VLMD_API_KEY)")
	fl.IntVar(&f.port, "port", 0, "HTTP port for the control endpoint")
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address, overrides --port (env VLMD_ADDR)")
	fl.BoolVar(&f.overlay, "overlay", false, "Render the latest reply over the video")
	fl.StringVar(&f.overlayMode, "overlay-mode", config.DefaultOverlayMode, "Overlay output: stream (GET /overlay.mjpg) or window (needs -tags=gocv)")
	fl.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: json|console (default: console on a terminal)")
	fl.TextVar(&f.queryTimeout, "query-timeout", config.Duration(config.DefaultQueryTimeout), "How long GET /query waits for a reply")
	fl.Float64Var(&f.fps, "fps", 0, "Limit frames read per second (0 = as fast as decoded)")
	fl.StringVar(&f.historyDB, "history-db", "", "SQLite file for query history (empty disables)")
	fl.StringVar(&f.mqttBroker, "mqtt-broker", "", "MQTT broker for reply events, e.g. tcp://localhost:1883")
	fl.BoolVar(&f.events, "events", false, "Serve reply events over websocket at GET /events")
	fl.BoolVar(&f.reportFailures, "report-failures", false, "Answer /query with 502 when the model call fails instead of timing out")
	fl.StringVar(&f.initialPrompt, "initial-prompt", "", "Prompt used before the first query")
	fl.StringVar(&f.videoBackend, "video-backend", config.DefaultVideoBackend, "Video backend: auto|mjpeg|ffmpeg|gocv")
	fl.StringSliceVar(&f.corsOrigins, "cors-origin", nil, "Allowed CORS origins (repeatable)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vlmd", version)
		},
	})
	return root
}

// resolveConfig layers changed flags over config.Resolve and validates.
func resolveConfig(cmd *cobra.Command, f *flagValues, getenv func(string) string) (config.Config, error) {
	cfg, err := config.Resolve(f.configPath, getenv)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	changed := cmd.Flags().Changed
	if changed("model_url") {
		cfg.ModelURL = f.modelURL
	}
	if changed("video_file") {
		cfg.VideoFile = f.videoFile
	}
	if changed("api_key") {
		cfg.APIKey = f.apiKey
	}
	if changed("port") {
		cfg.Port = f.port
		if !changed("addr") {
			cfg.Addr = ""
		}
	}
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("overlay") {
		cfg.Overlay = f.overlay
	}
	if changed("overlay-mode") {
		cfg.OverlayMode = f.overlayMode
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("query-timeout") {
		cfg.QueryTimeout = f.queryTimeout
	}
	if changed("fps") {
		cfg.FPS = f.fps
	}
	if changed("history-db") {
		cfg.HistoryDB = f.historyDB
	}
	if changed("mqtt-broker") {
		cfg.MQTT.Broker = f.mqttBroker
	}
	if changed("events") {
		cfg.Events = f.events
	}
	if changed("report-failures") {
		cfg.ReportFailures = f.reportFailures
	}
	if changed("initial-prompt") {
		cfg.InitialPrompt = f.initialPrompt
	}
	if changed("video-backend") {
		cfg.VideoBackend = f.videoBackend
	}
	if changed("cors-origin") {
		cfg.CORSOrigins = f.corsOrigins
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
