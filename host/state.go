package host

import (
	"fmt"
	"sync"
)

// State is a host lifecycle state.
type State int32

const (
	// StateCreated is the state before Create has run.
	StateCreated State = iota
	// StateConfirmed means the registry entry is ready and the host is
	// subscribed to dismiss broadcasts, but nothing is rendered yet.
	StateConfirmed
	// StateRendering means the content is visible.
	StateRendering
	// StateRebuilding means the host is torn down for recreation. The
	// content is retained and no result is produced.
	StateRebuilding
	// StateReattaching means retained content is being mounted again.
	StateReattaching
	// StateTerminating means the result envelope is being produced.
	StateTerminating
	// StateDestroyed is final.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfirmed:
		return "confirmed"
	case StateRendering:
		return "rendering"
	case StateRebuilding:
		return "rebuilding"
	case StateReattaching:
		return "reattaching"
	case StateTerminating:
		return "terminating"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// acceptsDismiss reports whether a dismiss broadcast ends the session in s.
func (s State) acceptsDismiss() bool {
	return s == StateConfirmed || s == StateRendering || s == StateRebuilding
}

// message is anything the host loop processes.
type message interface{}

// mailbox is an unbounded FIFO with a coalescing wake-up signal. put never
// blocks, so surfaces and broadcast handlers may post from any goroutine,
// including the loop itself.
type mailbox struct {
	mu     sync.Mutex
	queue  []message
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(msg message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) take() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}
