package vlm

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultMaxTokens      = 128
	DefaultTemperature    = 0.20
	DefaultTopP           = 0.70
	DefaultImageSize      = 336
	DefaultJPEGQuality    = 75
	DefaultMaxEncodedLen  = 180_000
	DefaultRequestTimeout = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Callback receives the outcome of every call started by Submit.
type Callback func(Result)

// Config encapsulates all tunables for Client construction.
type Config struct {
	URL    string
	APIKey string

	// Generation parameters sent with every request. Nil or negative
	// Temperature/TopP take the defaults; zero is sent as is.
	MaxTokens   int
	Temperature *float64
	TopP        *float64

	// Frame encoding.
	ImageSize     int
	JPEGQuality   int
	MaxEncodedLen int

	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	// HTTPClient overrides the transport built from ConnectTimeout.
	HTTPClient *http.Client
	Callback   Callback
	Logger     zerolog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == nil || *cfg.Temperature < 0 {
		cfg.Temperature = Float64(DefaultTemperature)
	}
	if cfg.TopP == nil || *cfg.TopP < 0 {
		cfg.TopP = Float64(DefaultTopP)
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.MaxEncodedLen <= 0 {
		cfg.MaxEncodedLen = DefaultMaxEncodedLen
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return cfg
}

// Float64 returns a pointer to v, for the optional Config fields.
func Float64(v float64) *float64 { return &v }
