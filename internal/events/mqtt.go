package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTConfig configures the MQTT emitter.
type MQTTConfig struct {
	Broker   string // host:port or full URL
	ClientID string
	Topic    string // prefix; events go to <Topic>/<event name>
	QoS      byte
	Format   string // json or msgpack
}

// MQTTEmitter publishes events to an MQTT broker.
type MQTTEmitter struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    zerolog.Logger

	mu        sync.Mutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTTEmitter builds an emitter; call Connect before publishing.
func NewMQTTEmitter(cfg MQTTConfig, log zerolog.Logger) *MQTTEmitter {
	if cfg.Topic == "" {
		cfg.Topic = "vlmd/events"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "vlmd"
	}
	return &MQTTEmitter{cfg: cfg, log: log.With().Str("component", "mqtt").Logger()}
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}

// Connect establishes the broker connection with automatic reconnects.
func (e *MQTTEmitter) Connect() error {
	if e.cfg.Broker == "" {
		return errors.New("mqtt broker not configured")
	}
	if _, err := Encode(Event{}, e.cfg.Format); err != nil {
		return err
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.log.Info().Str("broker", e.cfg.Broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn().Err(err).Str("broker", e.cfg.Broker).Msg("mqtt connection lost, reconnecting")
	}

	e.client = mqtt.NewClient(opts)
	tok := e.client.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

// Topic returns the topic an event is published to.
func (e *MQTTEmitter) Topic(ev Event) string { return e.cfg.Topic + "/" + ev.Name }

// Publish implements Publisher. The broker round trip happens off the caller's goroutine.
func (e *MQTTEmitter) Publish(ev Event) {
	e.mu.Lock()
	ok := e.connected && e.client != nil
	if !ok {
		e.errors++
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	payload, err := Encode(ev, e.cfg.Format)
	if err != nil {
		e.log.Warn().Err(err).Msg("mqtt encode failed")
		return
	}
	tok := e.client.Publish(e.Topic(ev), e.cfg.QoS, false, payload)
	go func() {
		if !tok.WaitTimeout(2*time.Second) || tok.Error() != nil {
			e.mu.Lock()
			e.errors++
			e.mu.Unlock()
			e.log.Debug().Err(tok.Error()).Str("event", ev.Name).Msg("mqtt publish failed")
			return
		}
		e.mu.Lock()
		e.published++
		e.mu.Unlock()
	}()
}

// Counter reports delivery counts of a broker-backed publisher.
type Counter interface {
	Stats() (published, failed uint64)
}

// Stats returns published and failed counts.
func (e *MQTTEmitter) Stats() (published, failed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published, e.errors
}

var _ Counter = (*MQTTEmitter)(nil)

// Close disconnects from the broker.
func (e *MQTTEmitter) Close() error {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.setConnected(false)
	return nil
}
