package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	subscriberBuffer = 16
	writeWait        = 5 * time.Second
)

// Broadcaster pushes events as JSON text messages to websocket subscribers.
// A subscriber whose buffer is full is disconnected rather than slowing the
// publisher down.
type Broadcaster struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster returns an empty broadcaster. checkOrigin may be nil to
// accept same-origin requests only.
func NewBroadcaster(log zerolog.Logger, checkOrigin func(*http.Request) bool) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096, CheckOrigin: checkOrigin},
		log:      log.With().Str("component", "events").Logger(),
		subs:     make(map[chan Event]struct{}),
	}
}

// Publish implements Publisher.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber: drop it
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// ServeHTTP upgrades the connection and streams events until the client goes away.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	// reader: detect client close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
