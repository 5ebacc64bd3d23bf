package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"
)

// StreamPresenter keeps the newest rendered frame as JPEG and serves it over
// HTTP, either as a single image or as a multipart MJPEG stream.
type StreamPresenter struct {
	quality int

	mu      sync.Mutex
	blob    []byte
	when    time.Time
	frames  uint64
	changed chan struct{} // closed and replaced on every push
	closed  bool
}

// NewStreamPresenter encodes frames at the given JPEG quality (1-100).
func NewStreamPresenter(quality int) *StreamPresenter {
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	return &StreamPresenter{quality: quality, changed: make(chan struct{})}
}

func (p *StreamPresenter) Present(img image.Image) (bool, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return false, fmt.Errorf("overlay encode: %w", err)
	}
	p.push(buf.Bytes())
	return false, nil
}

func (p *StreamPresenter) push(blob []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.blob = blob
	p.when = time.Now()
	p.frames++
	close(p.changed)
	p.changed = make(chan struct{})
}

// Close wakes and ends all open streams. Later frames are dropped.
func (p *StreamPresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.changed)
	}
	return nil
}

// Frames returns the number of frames presented.
func (p *StreamPresenter) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Newest returns the latest JPEG, or nil before the first frame.
func (p *StreamPresenter) Newest() ([]byte, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blob, p.when
}

// next blocks until a frame newer than then exists, the presenter closes or
// done fires.
func (p *StreamPresenter) next(then time.Time, done <-chan struct{}) ([]byte, time.Time, bool) {
	for {
		p.mu.Lock()
		if p.blob != nil && p.when.After(then) {
			blob, when := p.blob, p.when
			p.mu.Unlock()
			return blob, when, true
		}
		if p.closed {
			p.mu.Unlock()
			return nil, time.Time{}, false
		}
		ch := p.changed
		p.mu.Unlock()
		select {
		case <-ch:
		case <-done:
			return nil, time.Time{}, false
		}
	}
}

// ServeJPEG writes the newest frame, or 503 before the first one.
func (p *StreamPresenter) ServeJPEG(w http.ResponseWriter, r *http.Request) {
	blob, _ := p.Newest()
	if blob == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	_, _ = w.Write(blob)
}

// ServeStream writes frames as multipart/x-mixed-replace until the client
// disconnects or the presenter closes. The fps form value caps the rate.
func (p *StreamPresenter) ServeStream(w http.ResponseWriter, r *http.Request) {
	fps := formInt(r, "fps", 15, 1, 30)
	period := time.Second / time.Duration(fps)

	m := multipart.NewWriter(w)
	defer m.Close()
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+m.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	h := textproto.MIMEHeader{}
	var last time.Time
	for {
		blob, when, ok := p.next(last, r.Context().Done())
		if !ok {
			return
		}
		last = when
		h.Set("Content-Type", "image/jpeg")
		h.Set("Content-Length", strconv.Itoa(len(blob)))
		h.Set("X-TimeStamp", strconv.FormatInt(when.UnixMilli(), 10))
		part, err := m.CreatePart(h)
		if err != nil {
			return
		}
		if _, err := part.Write(blob); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(period):
		}
	}
}

func formInt(r *http.Request, name string, def, min, max int) int {
	sv := r.FormValue(name)
	if sv == "" {
		return def
	}
	v, err := strconv.Atoi(sv)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
