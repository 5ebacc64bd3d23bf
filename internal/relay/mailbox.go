package relay

import "sync"

// TypeQuery is the only PromptMessage type produced by the control endpoint.
const TypeQuery = "query"

// PromptMessage is a prompt update travelling from a handler to the loop.
type PromptMessage struct {
	Type string
	Data string
	ID   string
}

// Mailbox is a FIFO of prompt messages. Enqueue never blocks.
type Mailbox struct {
	mu       sync.Mutex
	items    []PromptMessage
	maxDepth int // 0 = unbounded
}

// NewMailbox returns a mailbox; maxDepth <= 0 means unbounded.
func NewMailbox(maxDepth int) *Mailbox {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Mailbox{maxDepth: maxDepth}
}

// Enqueue appends msg, or returns ErrMailboxFull when a depth limit is set and reached.
func (m *Mailbox) Enqueue(msg PromptMessage) error {
	m.mu.Lock()
	if m.maxDepth > 0 && len(m.items) >= m.maxDepth {
		m.mu.Unlock()
		return ErrMailboxFull
	}
	m.items = append(m.items, msg)
	n := len(m.items)
	m.mu.Unlock()
	mailboxDepth.Set(float64(n))
	return nil
}

// TryDequeue removes and returns the oldest message, if any.
func (m *Mailbox) TryDequeue() (PromptMessage, bool) {
	m.mu.Lock()
	if len(m.items) == 0 {
		m.mu.Unlock()
		return PromptMessage{}, false
	}
	msg := m.items[0]
	m.items[0] = PromptMessage{}
	m.items = m.items[1:]
	n := len(m.items)
	if n == 0 {
		m.items = nil
	}
	m.mu.Unlock()
	mailboxDepth.Set(float64(n))
	return msg, true
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
