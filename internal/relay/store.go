package relay

import (
	"context"
	"sync"
	"time"
)

// Reply is a completed model reply, or the error of a failed call.
type Reply struct {
	Text string
	Err  error
	At   time.Time
}

type waiter struct {
	ch   chan struct{}
	refs int
}

// ReplyStore maps request ids to replies.
type ReplyStore struct {
	mu      sync.Mutex
	entries map[string]Reply
	waiters map[string]*waiter
	ttl     time.Duration // 0 disables eviction
	now     func() time.Time
}

// NewReplyStore returns a store evicting uncollected replies older than ttl.
func NewReplyStore(ttl time.Duration) *ReplyStore {
	return &ReplyStore{
		entries: make(map[string]Reply),
		waiters: make(map[string]*waiter),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores r under id, overwriting any previous entry, and wakes waiters.
func (s *ReplyStore) Put(id string, r Reply) {
	s.mu.Lock()
	if r.At.IsZero() {
		r.At = s.now()
	}
	s.entries[id] = r
	if w, ok := s.waiters[id]; ok {
		close(w.ch)
		delete(s.waiters, id)
	}
	n := len(s.entries)
	s.mu.Unlock()
	storeSize.Set(float64(n))
}

// PopIfPresent atomically reads and removes the entry for id.
func (s *ReplyStore) PopIfPresent(id string) (Reply, bool) {
	s.mu.Lock()
	r, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	n := len(s.entries)
	s.mu.Unlock()
	if ok {
		storeSize.Set(float64(n))
	}
	return r, ok
}

// Wait blocks until a reply for id is stored, then pops and returns it.
// It returns ctx.Err() if ctx ends first; the entry, if stored later, stays
// in the store until collected or evicted.
func (s *ReplyStore) Wait(ctx context.Context, id string) (Reply, error) {
	for {
		s.mu.Lock()
		if r, ok := s.entries[id]; ok {
			delete(s.entries, id)
			n := len(s.entries)
			s.mu.Unlock()
			storeSize.Set(float64(n))
			return r, nil
		}
		w, ok := s.waiters[id]
		if !ok {
			w = &waiter{ch: make(chan struct{})}
			s.waiters[id] = w
		}
		w.refs++
		s.mu.Unlock()

		select {
		case <-w.ch:
		case <-ctx.Done():
			s.mu.Lock()
			w.refs--
			if cur, ok := s.waiters[id]; ok && cur == w && w.refs == 0 {
				delete(s.waiters, id)
			}
			s.mu.Unlock()
			return Reply{}, ctx.Err()
		}
	}
}

// Len returns the number of stored replies.
func (s *ReplyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts entries stored before now-ttl and returns how many were removed.
func (s *ReplyStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	removed := 0
	for id, r := range s.entries {
		if r.At.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()
	if removed > 0 {
		repliesEvicted.Add(float64(removed))
		storeSize.Set(float64(n))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *ReplyStore) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}
