package vlm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of one background call.
type Result struct {
	RequestID string
	Prompt    string
	Reply     string
	Err       error
	Duration  time.Duration
}

// Client submits frames to the model endpoint, one call at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger

	gate chan struct{} // size 1: single in-flight call

	// base context for background calls; canceled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup

	calls atomic.Uint64
}

// New constructs a Client from cfg, applying package defaults.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	cli := cfg.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Timeout=0: every request carries a context deadline from RequestTimeout.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:        cfg,
		httpClient: cli,
		log:        cfg.Logger.With().Str("component", "vlm").Logger(),
		gate:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Busy reports whether a call is outstanding.
func (c *Client) Busy() bool { return len(c.gate) > 0 }

// Calls returns the number of calls started since construction.
func (c *Client) Calls() uint64 { return c.calls.Load() }

// Submit starts a background call for frame with prompt and returns true, or
// returns false without side effects if a call is already in flight or the
// client is closed.
func (c *Client) Submit(prompt string, frame image.Image, requestID string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		submitsTotal.WithLabelValues("rejected").Inc()
		return false
	}
	select {
	case c.gate <- struct{}{}:
	default:
		c.mu.Unlock()
		submitsTotal.WithLabelValues("rejected").Inc()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	submitsTotal.WithLabelValues("accepted").Inc()
	busyGauge.Set(1)
	c.calls.Add(1)
	go c.run(prompt, frame, requestID)
	return true
}

// Close rejects further submissions, cancels an in-flight call and waits for it.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Client) run(prompt string, frame image.Image, requestID string) {
	defer c.wg.Done()
	start := time.Now()
	res := Result{RequestID: requestID, Prompt: prompt}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("vlm call panic: %v", r)
			}
			// release before the callback so the next submit is not blocked by it
			<-c.gate
			busyGauge.Set(0)
		}()
		res.Reply, res.Err = c.Describe(c.ctx, prompt, frame)
	}()
	res.Duration = time.Since(start)
	if res.Err != nil && c.ctx.Err() != nil {
		res.Err = fmt.Errorf("%w: %v", ErrClosed, res.Err)
	}

	callDuration.Observe(res.Duration.Seconds())
	if res.Err != nil {
		callsTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(res.Err).Str("request_id", requestID).Dur("dur", res.Duration).Msg("vlm call failed")
	} else {
		callsTotal.WithLabelValues("ok").Inc()
		c.log.Debug().Str("request_id", requestID).Dur("dur", res.Duration).Int("reply_len", len(res.Reply)).Msg("vlm call done")
	}

	if c.cfg.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("request_id", requestID).Msg("vlm callback panic")
		}
	}()
	c.cfg.Callback(res)
}

// Describe performs one synchronous call: encode frame, POST it with prompt
// and return the first completion text.
func (c *Client) Describe(ctx context.Context, prompt string, frame image.Image) (string, error) {
	b64, err := EncodeImage(frame, c.cfg.ImageSize, c.cfg.JPEGQuality, c.cfg.MaxEncodedLen)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(c.cfg.buildRequest(prompt, b64))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(b))}
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrMalformedResponse
		}
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out.firstContent()
}
