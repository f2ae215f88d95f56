// Package memory provides the in-process implementation of broadcast.Bus.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/dialog-session-go/broadcast"
)

// Bus implements broadcast.Bus with synchronous fan-out to a snapshot of the
// current subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	bus     *Bus
	action  string
	handler broadcast.Handler
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Publish implements broadcast.Bus.Publish.
func (b *Bus) Publish(ctx context.Context, msg broadcast.Message) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	// Snapshot subscribers so handlers may subscribe or close without
	// deadlocking against the publisher.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, broadcast.ErrClosed
	}
	targets := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		if sub.action == msg.Action {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.closed.Load() || sub.ctx.Err() != nil {
			continue
		}
		sub.handler(sub.ctx, msg)
		delivered++
	}
	return delivered, nil
}

// Subscribe implements broadcast.Bus.Subscribe.
func (b *Bus) Subscribe(ctx context.Context, action string, handler broadcast.Handler) (broadcast.Subscription, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{bus: b, action: action, handler: handler, ctx: subCtx, cancel: cancel}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return nil, broadcast.ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-subCtx.Done()
		_ = sub.Close()
	}()

	return sub, nil
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscription; later calls fail with broadcast.ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

// Close implements broadcast.Subscription.Close.
func (s *subscription) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		s.cancel()
	}
	return nil
}

// Compile-time interface checks
var (
	_ broadcast.Bus          = (*Bus)(nil)
	_ broadcast.Subscription = (*subscription)(nil)
)
