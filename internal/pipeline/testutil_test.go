package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vlmd/internal/frames"
)

// imageSource yields limit synthetic frames (0 means endless), one per delay.
type imageSource struct {
	n     int
	limit int
	delay time.Duration
}

func (s *imageSource) Next(ctx context.Context) (*frames.Frame, error) {
	if s.limit > 0 && s.n >= s.limit {
		return nil, io.EOF
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	s.n++
	return frames.NewImageFrame(uint64(s.n), image.NewRGBA(image.Rect(0, 0, 64, 48))), nil
}

func (s *imageSource) Close() error { return nil }

// promptOf extracts the prompt text from a chat completions request body.
func promptOf(r *http.Request) string {
	var body struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		return ""
	}
	p, _, _ := strings.Cut(body.Messages[0].Content, " Here is the image:")
	return p
}

// echoServer replies "saw: <prompt>" and counts calls.
func echoServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		prompt := promptOf(r)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "saw:" + prompt}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// countingServer replies "reply-N" where N counts calls from 1.
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": fmt.Sprintf("reply-%d", n)}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// blockingServer holds every request until release is closed or the client goes away.
func blockingServer(t *testing.T) (*httptest.Server, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"late"}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, release
}

func runAsync(t *testing.T, p *Pipeline) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for !p.Ready() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("run did not return after cancel")
		}
		_ = p.Close()
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
