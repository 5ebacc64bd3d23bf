package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that reads "10s"-style strings from any of
// the supported file formats.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// VLMConfig holds generation parameters for the remote model.
type VLMConfig struct {
	MaxTokens      int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature    *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP           *float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	ImageSize      int      `json:"image_size" yaml:"image_size" toml:"image_size"`
	JPEGQuality    int      `json:"jpeg_quality" yaml:"jpeg_quality" toml:"jpeg_quality"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
}

// MQTTConfig enables the MQTT event emitter when Broker is set.
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker" toml:"broker"`
	Topic    string `json:"topic" yaml:"topic" toml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id" toml:"client_id"`
	QoS      int    `json:"qos" yaml:"qos" toml:"qos"`
	Format   string `json:"format" yaml:"format" toml:"format"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Port      int    `json:"port" yaml:"port" toml:"port"`
	ModelURL  string `json:"model_url" yaml:"model_url" toml:"model_url"`
	APIKey    string `json:"api_key" yaml:"api_key" toml:"api_key"`
	VideoFile string `json:"video_file" yaml:"video_file" toml:"video_file"`

	// Overlay enables rendering; OverlayMode picks "stream" (HTTP MJPEG) or "window".
	Overlay     bool   `json:"overlay" yaml:"overlay" toml:"overlay"`
	OverlayMode string `json:"overlay_mode" yaml:"overlay_mode" toml:"overlay_mode"`

	InitialPrompt   string   `json:"initial_prompt" yaml:"initial_prompt" toml:"initial_prompt"`
	DefaultPrompt   string   `json:"default_prompt" yaml:"default_prompt" toml:"default_prompt"`
	QueryTimeout    Duration `json:"query_timeout" yaml:"query_timeout" toml:"query_timeout"`
	ReplyTTL        Duration `json:"reply_ttl" yaml:"reply_ttl" toml:"reply_ttl"`
	MaxMailboxDepth int      `json:"max_mailbox_depth" yaml:"max_mailbox_depth" toml:"max_mailbox_depth"`
	ReportFailures  bool     `json:"report_failures" yaml:"report_failures" toml:"report_failures"`

	FPS          float64  `json:"fps" yaml:"fps" toml:"fps"`
	VideoBackend string   `json:"video_backend" yaml:"video_backend" toml:"video_backend"`
	DecoderCmd   []string `json:"decoder_cmd" yaml:"decoder_cmd" toml:"decoder_cmd"`

	HistoryDB   string   `json:"history_db" yaml:"history_db" toml:"history_db"`
	Events      bool     `json:"events" yaml:"events" toml:"events"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	VLM  VLMConfig  `json:"vlm" yaml:"vlm" toml:"vlm"`
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt" toml:"mqtt"`
}

// Built-in defaults.
const (
	DefaultAddr         = ":8080"
	DefaultOverlayMode  = "stream"
	DefaultQueryTimeout = 10 * time.Second
	DefaultLogLevel     = "info"
	DefaultVideoBackend = "auto"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OverlayMode:  DefaultOverlayMode,
		QueryTimeout: Duration(DefaultQueryTimeout),
		VideoBackend: DefaultVideoBackend,
		LogLevel:     DefaultLogLevel,
	}
}

// ListenAddr resolves the HTTP listen address: Addr if set, else ":Port",
// else DefaultAddr.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	if c.Port > 0 {
		return net.JoinHostPort("", strconv.Itoa(c.Port))
	}
	return DefaultAddr
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ModelURL) == "" {
		missing = append(missing, "model_url")
	}
	if strings.TrimSpace(c.VideoFile) == "" {
		missing = append(missing, "video_file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required setting(s): %s", strings.Join(missing, ", "))
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must be >= 0")
	}
	switch c.OverlayMode {
	case "", "stream", "window":
	default:
		return fmt.Errorf("unknown overlay_mode: %s", c.OverlayMode)
	}
	switch strings.ToLower(c.MQTT.Format) {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("unknown mqtt format: %s", c.MQTT.Format)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}
