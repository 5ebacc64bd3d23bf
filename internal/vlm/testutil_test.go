package vlm

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"testing"
	"time"
)

// testFrame returns a small solid-color frame.
func testFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// writeReply writes a minimal chat completions response.
func writeReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

// waitResult waits for one result on ch or fails the test.
func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for callback")
		return Result{}
	}
}

// newTestClient builds a client whose callback forwards results to the returned channel.
func newTestClient(url string, mutate func(*Config)) (*Client, chan Result) {
	ch := make(chan Result, 4)
	cfg := Config{URL: url, APIKey: "k", Callback: func(r Result) { ch <- r }}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), ch
}
