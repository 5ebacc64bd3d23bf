package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/events"
	"vlmd/internal/frames"
	"vlmd/internal/history"
	"vlmd/internal/httpapi"
	"vlmd/internal/overlay"
	"vlmd/internal/pipeline"
	"vlmd/internal/relay"
	"vlmd/internal/vlm"
)

// writeMJPEG writes n solid frames as a concatenated JPEG stream.
func writeMJPEG(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+3] = uint8(i), 0xff
		}
		img.Set(0, 0, color.White)
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "clip.mjpeg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// modelServer is a fake chat completions endpoint. A nil handler replies
// "saw:<prompt>".
type modelServer struct {
	*httptest.Server
	calls atomic.Int64
}

func newModelServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, prompt string)) *modelServer {
	t.Helper()
	m := &modelServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		prompt := ""
		if len(body.Messages) > 0 {
			prompt, _, _ = strings.Cut(body.Messages[0].Content, " Here is the image:")
		}
		if handle != nil {
			handle(w, r, prompt)
			return
		}
		writeChoice(w, "saw:"+prompt)
	}))
	t.Cleanup(m.Close)
	return m
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
}

type stackConfig struct {
	frames         int
	fps            float64
	timeout        time.Duration
	maxDepth       int
	reportFailures bool
	historyDB      bool
}

type stack struct {
	srv      *httptest.Server
	pipeline *pipeline.Pipeline
	events   *events.MemoryPublisher
	overlay  *overlay.StreamPresenter
	done     chan error
}

// startStack wires the real frame source, pipeline and control endpoint
// against model, and runs the loop until the test ends.
func startStack(t *testing.T, model *modelServer, sc stackConfig) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()

	src, err := frames.Open(ctx, frames.OpenConfig{Input: writeMJPEG(t, sc.frames), FPS: sc.fps, Logger: log})
	if err != nil {
		t.Fatalf("open frames: %v", err)
	}
	var store *history.Store
	if sc.historyDB {
		store, err = history.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("open history: %v", err)
		}
	}
	hub := relay.NewHub(relay.Config{
		Timeout:         sc.timeout,
		MaxMailboxDepth: sc.maxDepth,
		ReportFailures:  sc.reportFailures,
		Logger:          log,
	})
	go hub.Run(ctx)

	pub := events.NewMemoryPublisher()
	presenter := overlay.NewStreamPresenter(0)
	p := pipeline.New(pipeline.Config{
		Source:    src,
		VLM:       vlm.Config{URL: model.URL, RequestTimeout: 5 * time.Second},
		Hub:       hub,
		Presenter: presenter,
		Publisher: pub,
		History:   store,
		Logger:    log,
	})
	srv := httptest.NewServer(httpapi.NewMux(p,
		httpapi.WithBaseContext(ctx),
		httpapi.WithOverlay(presenter),
	))

	st := &stack{srv: srv, pipeline: p, events: pub, overlay: presenter, done: make(chan error, 1)}
	go func() { st.done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = presenter.Close()
		srv.Close()
		select {
		case <-st.done:
		case <-time.After(5 * time.Second):
			t.Errorf("loop did not stop")
		}
		_ = p.Close()
		_ = src.Close()
		_ = store.Close()
	})
	return st
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
