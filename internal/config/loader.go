package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvModelURL = "VLMD_MODEL_URL"
	EnvAPIKey   = "VLMD_API_KEY"
	EnvAddr     = "VLMD_ADDR"
	EnvVideo    = "VLMD_VIDEO_FILE"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with non-empty environment values.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvModelURL); v != "" {
		cfg.ModelURL = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := getenv(EnvAddr); v != "" {
		cfg.Addr = v
	}
	if v := getenv(EnvVideo); v != "" {
		cfg.VideoFile = v
	}
}

// Merge copies every non-zero field of src over dst.
func Merge(dst *Config, src Config) {
	str := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	str(&dst.Addr, src.Addr)
	str(&dst.ModelURL, src.ModelURL)
	str(&dst.APIKey, src.APIKey)
	str(&dst.VideoFile, src.VideoFile)
	str(&dst.OverlayMode, src.OverlayMode)
	str(&dst.InitialPrompt, src.InitialPrompt)
	str(&dst.DefaultPrompt, src.DefaultPrompt)
	str(&dst.VideoBackend, src.VideoBackend)
	str(&dst.HistoryDB, src.HistoryDB)
	str(&dst.LogLevel, src.LogLevel)
	str(&dst.LogFormat, src.LogFormat)
	str(&dst.MQTT.Broker, src.MQTT.Broker)
	str(&dst.MQTT.Topic, src.MQTT.Topic)
	str(&dst.MQTT.ClientID, src.MQTT.ClientID)
	str(&dst.MQTT.Format, src.MQTT.Format)
	if src.Port != 0 {
		// A bare port outranks an address from a lower layer.
		if src.Addr == "" {
			dst.Addr = ""
		}
		dst.Port = src.Port
	}
	if src.Overlay {
		dst.Overlay = true
	}
	if src.ReportFailures {
		dst.ReportFailures = true
	}
	if src.Events {
		dst.Events = true
	}
	if src.QueryTimeout != 0 {
		dst.QueryTimeout = src.QueryTimeout
	}
	if src.ReplyTTL != 0 {
		dst.ReplyTTL = src.ReplyTTL
	}
	if src.MaxMailboxDepth != 0 {
		dst.MaxMailboxDepth = src.MaxMailboxDepth
	}
	if src.FPS != 0 {
		dst.FPS = src.FPS
	}
	if len(src.DecoderCmd) > 0 {
		dst.DecoderCmd = append([]string(nil), src.DecoderCmd...)
	}
	if len(src.CORSOrigins) > 0 {
		dst.CORSOrigins = append([]string(nil), src.CORSOrigins...)
	}
	if src.MQTT.QoS != 0 {
		dst.MQTT.QoS = src.MQTT.QoS
	}
	v, sv := &dst.VLM, src.VLM
	if sv.MaxTokens != 0 {
		v.MaxTokens = sv.MaxTokens
	}
	if sv.Temperature != nil {
		t := *sv.Temperature
		v.Temperature = &t
	}
	if sv.TopP != nil {
		p := *sv.TopP
		v.TopP = &p
	}
	if sv.ImageSize != 0 {
		v.ImageSize = sv.ImageSize
	}
	if sv.JPEGQuality != 0 {
		v.JPEGQuality = sv.JPEGQuality
	}
	if sv.RequestTimeout != 0 {
		v.RequestTimeout = sv.RequestTimeout
	}
}

// Resolve builds the configuration from built-in defaults, then environment,
// then the file at path (if any). Command-line flags are applied by the caller.
func Resolve(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	ApplyEnv(&cfg, getenv)
	if path == "" {
		return cfg, nil
	}
	fileCfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	Merge(&cfg, fileCfg)
	return cfg, nil
}
