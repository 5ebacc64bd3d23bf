package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vlmd/internal/events"
	"vlmd/internal/frames"
	"vlmd/internal/history"
	"vlmd/internal/relay"
	"vlmd/internal/vlm"
	"vlmd/pkg/types"
)

func TestRun_NoSource(t *testing.T) {
	p := New(Config{})
	defer p.Close()
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error without source")
	}
}

func TestRun_EndOfStream(t *testing.T) {
	srv, _ := echoServer(t)
	p := New(Config{Source: &imageSource{limit: 3}, VLM: vlm.Config{URL: srv.URL}})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	_ = p.Close()
	st := p.Status()
	if st.Frames != 3 || st.Running || p.Ready() {
		t.Fatalf("status=%+v", st)
	}
}

type failingSource struct{}

func (failingSource) Next(context.Context) (*frames.Frame, error) {
	return nil, errors.New("disk on fire")
}
func (failingSource) Close() error { return nil }

func TestRun_SourceErrorReturned(t *testing.T) {
	p := New(Config{Source: failingSource{}})
	defer p.Close()
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected source error")
	}
}

func TestRun_SkipsFramesWhileBusy(t *testing.T) {
	srv, release := blockingServer(t)
	p := New(Config{Source: &imageSource{limit: 20}, VLM: vlm.Config{URL: srv.URL}})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	st := p.Status()
	if st.Calls != 1 || st.FramesSkipped != 19 || !st.Busy {
		t.Fatalf("calls=%d skipped=%d busy=%v", st.Calls, st.FramesSkipped, st.Busy)
	}
	close(release)
	_ = p.Close()
}

func TestQuery_RoundTripUpdatesOverlayHistoryAndEvents(t *testing.T) {
	srv, _ := echoServer(t)
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	pub := events.NewMemoryPublisher()
	p := New(Config{
		Source:    &imageSource{delay: 2 * time.Millisecond},
		VLM:       vlm.Config{URL: srv.URL},
		Hub:       relay.NewHub(relay.Config{Timeout: 3 * time.Second}),
		Publisher: pub,
		History:   store,
	})
	stop := runAsync(t, p)
	defer stop()

	text, err := p.Query(context.Background(), "what is it?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if text != "saw:what is it?" {
		t.Fatalf("text=%q", text)
	}
	st := p.Status()
	if st.Prompt != "what is it?" || st.PromptID == "" {
		t.Fatalf("prompt not adopted: %+v", st)
	}
	waitFor(t, "overlay text", func() bool { return p.overlayText() == "saw:what is it?" })

	items, total, err := p.History(context.Background(), 0, 10)
	if err != nil || total != 1 {
		t.Fatalf("history total=%d err=%v", total, err)
	}
	if items[0].Status != types.StatusOK || items[0].Reply != "saw:what is it?" || items[0].ID != st.PromptID {
		t.Fatalf("entry=%+v", items[0])
	}

	waitFor(t, "submitted and replied events", func() bool {
		var sawSubmit, sawReply bool
		for _, e := range pub.Events() {
			if e.RequestID != st.PromptID {
				continue
			}
			sawSubmit = sawSubmit || e.Name == events.Submitted
			sawReply = sawReply || (e.Name == events.Replied && e.Reply == text)
		}
		return sawSubmit && sawReply
	})
}

func TestQuery_HistoryKeepsReturnedReply(t *testing.T) {
	srv, calls := countingServer(t)
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	p := New(Config{
		Source:  &imageSource{delay: 2 * time.Millisecond},
		VLM:     vlm.Config{URL: srv.URL},
		Hub:     relay.NewHub(relay.Config{Timeout: 3 * time.Second}),
		History: store,
	})
	stop := runAsync(t, p)
	defer stop()

	text, err := p.Query(context.Background(), "count")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	// the adopted prompt keeps its id, so further calls complete under it
	start := calls.Load()
	waitFor(t, "more calls under the same id", func() bool { return calls.Load() >= start+5 })
	waitFor(t, "latest reply on overlay", func() bool { return p.overlayText() != text })

	id := p.Status().PromptID
	e, ok, err := store.Get(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("get ok=%v err=%v", ok, err)
	}
	if e.Status != types.StatusOK || e.Reply != text {
		t.Fatalf("entry=%+v want reply %q", e, text)
	}
	if got, ok, _ := p.HistoryEntry(context.Background(), id); !ok || got != e {
		t.Fatalf("HistoryEntry=%+v ok=%v", got, ok)
	}
}

func TestQuery_TimeoutRecorded(t *testing.T) {
	srv, _ := blockingServer(t)
	store, _ := history.Open(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	defer store.Close()
	pub := events.NewMemoryPublisher()
	p := New(Config{
		Source:    &imageSource{delay: 2 * time.Millisecond},
		VLM:       vlm.Config{URL: srv.URL},
		Hub:       relay.NewHub(relay.Config{Timeout: 50 * time.Millisecond}),
		Publisher: pub,
		History:   store,
	})
	stop := runAsync(t, p)
	defer stop()

	if _, err := p.Query(context.Background(), "anyone?"); !errors.Is(err, relay.ErrTimeout) {
		t.Fatalf("err=%v want timeout", err)
	}
	items, _, _ := store.List(context.Background(), 0, 1)
	if len(items) != 1 || items[0].Status != types.StatusTimeout {
		t.Fatalf("items=%+v", items)
	}
	names := pub.Names()
	if names[len(names)-1] != events.TimedOut {
		t.Fatalf("events=%v", names)
	}
}

func TestQuery_ReportedFailure(t *testing.T) {
	p := New(Config{
		Source: &imageSource{delay: 2 * time.Millisecond},
		VLM:    vlm.Config{URL: "http://127.0.0.1:1/v1/chat/completions", ConnectTimeout: 100 * time.Millisecond},
		Hub:    relay.NewHub(relay.Config{Timeout: 3 * time.Second, ReportFailures: true}),
	})
	stop := runAsync(t, p)
	defer stop()

	_, err := p.Query(context.Background(), "hello")
	if !relay.IsInferenceError(err) {
		t.Fatalf("err=%v want InferenceError", err)
	}
	if p.Status().LastError == "" {
		t.Fatal("last error not recorded")
	}
}

func TestQuery_HistoryDisabled(t *testing.T) {
	p := New(Config{})
	defer p.Close()
	if _, _, err := p.History(context.Background(), 0, 10); !errors.Is(err, history.ErrDisabled) {
		t.Fatalf("err=%v", err)
	}
	if _, _, err := p.HistoryEntry(context.Background(), "a"); !errors.Is(err, history.ErrDisabled) {
		t.Fatalf("entry err=%v", err)
	}
}

type fixedCounter struct{ published, failed uint64 }

func (c fixedCounter) Stats() (uint64, uint64) { return c.published, c.failed }

func TestStatus_BrokerStats(t *testing.T) {
	p := New(Config{})
	defer p.Close()
	if st := p.Status(); st.Broker != nil {
		t.Fatalf("broker stats without a broker: %+v", st.Broker)
	}

	p = New(Config{EventStats: fixedCounter{published: 7, failed: 2}})
	defer p.Close()
	st := p.Status()
	if st.Broker == nil || st.Broker.Published != 7 || st.Broker.Failed != 2 {
		t.Fatalf("broker=%+v", st.Broker)
	}
}

// quitPresenter records presented frames and asks to quit after max.
type quitPresenter struct {
	mu   sync.Mutex
	seen []image.Image
	max  int
}

func (q *quitPresenter) Present(img image.Image) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = append(q.seen, img)
	return len(q.seen) >= q.max, nil
}

func (q *quitPresenter) Close() error { return nil }

func TestRun_PresenterQuitStopsLoop(t *testing.T) {
	srv, _ := echoServer(t)
	pres := &quitPresenter{max: 3}
	p := New(Config{Source: &imageSource{}, VLM: vlm.Config{URL: srv.URL}, Presenter: pres})
	defer p.Close()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(pres.seen) != 3 || p.Status().Frames != 3 {
		t.Fatalf("presented=%d frames=%d", len(pres.seen), p.Status().Frames)
	}
	if got := pres.seen[0].Bounds().Size(); got != image.Pt(64, 48) {
		t.Fatalf("rendered size=%v", got)
	}
}

func TestRun_InitialPromptUsedBeforeQueries(t *testing.T) {
	srv, calls := echoServer(t)
	p := New(Config{Source: &imageSource{delay: time.Millisecond}, VLM: vlm.Config{URL: srv.URL}, InitialPrompt: "Describe the scene."})
	stop := runAsync(t, p)
	defer stop()
	waitFor(t, "first reply", func() bool { return p.overlayText() != "" })
	if got := p.overlayText(); got != "saw:Describe the scene." {
		t.Fatalf("overlay=%q", got)
	}
	if calls.Load() == 0 {
		t.Fatal("no model calls")
	}
	// replies for the empty id are never stored
	if n := p.Hub().Replies().Len(); n != 0 {
		t.Fatalf("store len=%d", n)
	}
}
