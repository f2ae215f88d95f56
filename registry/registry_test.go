package registry_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ggoodman/dialog-session-go/broadcast"
	busmemory "github.com/ggoodman/dialog-session-go/broadcast/memory"
	"github.com/ggoodman/dialog-session-go/registry"
	"github.com/ggoodman/dialog-session-go/registry/memory"
)

func newRegistry(t *testing.T) (*registry.Registry, *busmemory.Bus) {
	t.Helper()
	bus := busmemory.New()
	t.Cleanup(func() { _ = bus.Close() })
	return registry.New(memory.New(), bus), bus
}

func TestBeginShow_AtMostOnePerIdentifier(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	out, err := r.BeginShow(ctx, "A")
	if err != nil || out != registry.ShowAccepted {
		t.Fatalf("first show: %v %v", out, err)
	}
	out, err = r.BeginShow(ctx, "A")
	if err != nil || out != registry.ShowAlreadyShowing {
		t.Fatalf("second show: %v %v", out, err)
	}

	if err := r.End(ctx, "A"); err != nil {
		t.Fatalf("end: %v", err)
	}
	out, _ = r.BeginShow(ctx, "A")
	if out != registry.ShowAccepted {
		t.Fatalf("show after end must be accepted, got %v", out)
	}
}

func TestBeginShow_EmptyIdentifierUnmanaged(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		out, err := r.BeginShow(ctx, "")
		if err != nil || out != registry.ShowAccepted {
			t.Fatalf("empty identifier show %d: %v %v", i, out, err)
		}
	}
	if _, found, _ := r.Lookup(ctx, ""); found {
		t.Fatalf("empty identifier must never be recorded")
	}
	if pending, err := r.ConfirmShown(ctx, ""); err != nil || pending {
		t.Fatalf("confirm of empty identifier must be a no-op: %v %v", pending, err)
	}
	if _, err := r.RequestDismiss(ctx, ""); !errors.Is(err, registry.ErrNoIdentifier) {
		t.Fatalf("expected ErrNoIdentifier, got %v", err)
	}
}

func TestRequestDismiss_DeferredBeforeConfirm(t *testing.T) {
	r, bus := newRegistry(t)
	ctx := context.Background()

	var got []broadcast.Message
	sub, err := bus.Subscribe(ctx, broadcast.ActionDismiss, func(_ context.Context, m broadcast.Message) { got = append(got, m) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := r.BeginShow(ctx, "A"); err != nil {
		t.Fatalf("show: %v", err)
	}
	out, err := r.RequestDismiss(ctx, "A")
	if err != nil || out != registry.DismissDeferred {
		t.Fatalf("dismiss before confirm: %v %v", out, err)
	}
	if len(got) != 0 {
		t.Fatalf("deferred dismiss must not broadcast")
	}
	e, _, _ := r.Lookup(ctx, "A")
	if !e.DismissPending {
		t.Fatalf("expected pending mark")
	}

	pending, err := r.ConfirmShown(ctx, "A")
	if err != nil || !pending {
		t.Fatalf("confirm must report pending: %v %v", pending, err)
	}
	e, _, _ = r.Lookup(ctx, "A")
	if !e.Ready || e.DismissPending {
		t.Fatalf("after confirm expected ready without pending, got %+v", e)
	}
}

func TestRequestDismiss_BroadcastAfterConfirm(t *testing.T) {
	r, bus := newRegistry(t)
	ctx := context.Background()

	var got []broadcast.Message
	sub, _ := bus.Subscribe(ctx, broadcast.ActionDismiss, func(_ context.Context, m broadcast.Message) { got = append(got, m) })
	defer sub.Close()

	_, _ = r.BeginShow(ctx, "A")
	_, _ = r.ConfirmShown(ctx, "A")

	out, err := r.RequestDismiss(ctx, "A")
	if err != nil || out != registry.DismissSent {
		t.Fatalf("dismiss after confirm: %v %v", out, err)
	}
	if len(got) != 1 || got[0].Identifier != "A" || got[0].Action != broadcast.ActionDismiss {
		t.Fatalf("unexpected broadcasts: %+v", got)
	}

	// Unknown identifiers are broadcast too; nobody listens, nothing happens.
	out, err = r.RequestDismiss(ctx, "nobody")
	if err != nil || out != registry.DismissSent {
		t.Fatalf("dismiss unknown: %v %v", out, err)
	}
}

func TestReset_UnblocksIdentifier(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	_, _ = r.BeginShow(ctx, "A")
	if err := r.Reset(ctx, "A"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, found, _ := r.Lookup(ctx, "A"); found {
		t.Fatalf("reset must drop the entry")
	}
	out, _ := r.BeginShow(ctx, "A")
	if out != registry.ShowAccepted {
		t.Fatalf("show after reset must be accepted")
	}
	if err := r.Reset(ctx, ""); !errors.Is(err, registry.ErrNoIdentifier) {
		t.Fatalf("expected ErrNoIdentifier, got %v", err)
	}
}

type countingObserver struct {
	mu    sync.Mutex
	dedup int

	deferred int
	sent     int
}

func (o *countingObserver) ShowDeduplicated(string) { o.mu.Lock(); o.dedup++; o.mu.Unlock() }
func (o *countingObserver) DismissParked(string)    { o.mu.Lock(); o.deferred++; o.mu.Unlock() }
func (o *countingObserver) DismissBroadcast(string) { o.mu.Lock(); o.sent++; o.mu.Unlock() }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	bus := busmemory.New()
	defer bus.Close()
	r := registry.New(memory.New(), bus, registry.WithObserver(obs))
	ctx := context.Background()

	_, _ = r.BeginShow(ctx, "A")
	_, _ = r.BeginShow(ctx, "A")
	_, _ = r.RequestDismiss(ctx, "A")
	_, _ = r.ConfirmShown(ctx, "A")
	_, _ = r.RequestDismiss(ctx, "A")

	if obs.dedup != 1 || obs.deferred != 1 || obs.sent != 1 {
		t.Fatalf("unexpected observer counts: %+v", obs)
	}
}

func TestConcurrentShows_SingleWinner(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.BeginShow(ctx, "A")
			if err == nil && out == registry.ShowAccepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("expected one accepted show, got %d", accepted)
	}
}

func TestRequestDismiss_ConcurrentWithConfirm(t *testing.T) {
	r, bus := newRegistry(t)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		id := "race-" + strconv.Itoa(i)
		if _, err := r.BeginShow(ctx, id); err != nil {
			t.Fatalf("begin show: %v", err)
		}

		var received atomic.Int32
		sub, err := bus.Subscribe(ctx, broadcast.ActionDismiss, func(_ context.Context, msg broadcast.Message) {
			if msg.Identifier == id {
				received.Add(1)
			}
		})
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}

		var (
			wg      sync.WaitGroup
			out     registry.DismissOutcome
			pending bool
			dErr    error
			cErr    error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, dErr = r.RequestDismiss(ctx, id)
		}()
		go func() {
			defer wg.Done()
			pending, cErr = r.ConfirmShown(ctx, id)
		}()
		wg.Wait()
		_ = sub.Close()

		if dErr != nil || cErr != nil {
			t.Fatalf("%s: dismiss=%v confirm=%v", id, dErr, cErr)
		}
		// The dismiss reaches the session exactly one way.
		switch out {
		case registry.DismissDeferred:
			if !pending || received.Load() != 0 {
				t.Fatalf("%s: deferred dismiss must be drained by confirm only (pending=%v broadcasts=%d)", id, pending, received.Load())
			}
		case registry.DismissSent:
			if pending || received.Load() != 1 {
				t.Fatalf("%s: sent dismiss must be broadcast only (pending=%v broadcasts=%d)", id, pending, received.Load())
			}
		}
		if err := r.End(ctx, id); err != nil {
			t.Fatalf("end: %v", err)
		}
	}
}
