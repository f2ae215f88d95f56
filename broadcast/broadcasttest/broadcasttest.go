// Package broadcasttest provides a conformance suite for broadcast.Bus
// implementations.
package broadcasttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/dialog-session-go/broadcast"
)

// BusFactory creates a new Bus instance for testing.
type BusFactory func(t *testing.T) broadcast.Bus

// RunBusTests runs the complete Bus test suite against the provided factory.
func RunBusTests(t *testing.T, factory BusFactory) {
	t.Run("FanOut_AllSubscribersReceive", func(t *testing.T) { testFanOut(t, factory) })
	t.Run("ActionIsolation", func(t *testing.T) { testActionIsolation(t, factory) })
	t.Run("NoSubscribers_Dropped", func(t *testing.T) { testNoSubscribers(t, factory) })
	t.Run("CloseStopsDelivery", func(t *testing.T) { testCloseStopsDelivery(t, factory) })
	t.Run("ContextCancellationStopsDelivery", func(t *testing.T) { testContextCancellation(t, factory) })
}

type recorder struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (r *recorder) handle(_ context.Context, msg broadcast.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func testFanOut(t *testing.T, factory BusFactory) {
	b := factory(t)
	ctx := context.Background()

	var recs [3]recorder
	for i := range recs {
		sub, err := b.Subscribe(ctx, broadcast.ActionDismiss, recs[i].handle)
		if err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
		defer sub.Close()
	}

	n, err := b.Publish(ctx, broadcast.Message{Action: broadcast.ActionDismiss, Identifier: "A"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != len(recs) {
		t.Fatalf("expected %d deliveries, got %d", len(recs), n)
	}
	for i := range recs {
		if recs[i].count() != 1 {
			t.Fatalf("subscriber %d received %d messages", i, recs[i].count())
		}
		if recs[i].msgs[0].Identifier != "A" {
			t.Fatalf("subscriber %d got identifier %q", i, recs[i].msgs[0].Identifier)
		}
	}
}

func testActionIsolation(t *testing.T, factory BusFactory) {
	b := factory(t)
	ctx := context.Background()

	var rec recorder
	sub, err := b.Subscribe(ctx, broadcast.ActionDismiss, rec.handle)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := b.Publish(ctx, broadcast.Message{Action: "other", Identifier: "A"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("subscriber must not see other actions")
	}
}

func testNoSubscribers(t *testing.T, factory BusFactory) {
	b := factory(t)
	n, err := b.Publish(context.Background(), broadcast.Message{Action: broadcast.ActionDismiss, Identifier: "A"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func testCloseStopsDelivery(t *testing.T, factory BusFactory) {
	b := factory(t)
	ctx := context.Background()

	var rec recorder
	sub, err := b.Subscribe(ctx, broadcast.ActionDismiss, rec.handle)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}
	if _, err := b.Publish(ctx, broadcast.Message{Action: broadcast.ActionDismiss, Identifier: "A"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("closed subscription received %d messages", rec.count())
	}
}

func testContextCancellation(t *testing.T, factory BusFactory) {
	b := factory(t)

	ctx, cancel := context.WithCancel(context.Background())
	var rec recorder
	if _, err := b.Subscribe(ctx, broadcast.ActionDismiss, rec.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := b.Publish(context.Background(), broadcast.Message{Action: broadcast.ActionDismiss, Identifier: "A"})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscription still receiving after context cancellation")
}
