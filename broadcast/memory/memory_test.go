package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ggoodman/dialog-session-go/broadcast"
	"github.com/ggoodman/dialog-session-go/broadcast/broadcasttest"
)

func TestMemoryBus(t *testing.T) {
	broadcasttest.RunBusTests(t, func(t *testing.T) broadcast.Bus {
		b := New()
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestMemoryBus_HandlerMaySubscribe(t *testing.T) {
	b := New()
	defer b.Close()
	ctx := context.Background()

	nested := 0
	_, err := b.Subscribe(ctx, broadcast.ActionDismiss, func(ctx context.Context, msg broadcast.Message) {
		sub, err := b.Subscribe(ctx, "nested", func(context.Context, broadcast.Message) {})
		if err == nil {
			nested++
			_ = sub.Close()
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := b.Publish(ctx, broadcast.Message{Action: broadcast.ActionDismiss, Identifier: "A"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if nested != 1 {
		t.Fatalf("expected nested subscribe to succeed")
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := New()
	ctx := context.Background()
	if _, err := b.Subscribe(ctx, broadcast.ActionDismiss, func(context.Context, broadcast.Message) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected subscriptions dropped, got %d", b.Subscribers())
	}
	if _, err := b.Publish(ctx, broadcast.Message{Action: broadcast.ActionDismiss}); !errors.Is(err, broadcast.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe(ctx, broadcast.ActionDismiss, func(context.Context, broadcast.Message) {}); !errors.Is(err, broadcast.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
