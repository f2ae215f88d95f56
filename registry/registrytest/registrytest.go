// Package registrytest provides a conformance suite for registry.Store
// implementations.
package registrytest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ggoodman/dialog-session-go/registry"
)

// StoreFactory creates a fresh, empty Store for each subtest.
type StoreFactory func(t *testing.T) registry.Store

// RunStoreTests runs the complete Store test suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("Insert_OncePerIdentifier", func(t *testing.T) { testInsertOnce(t, factory) })
	t.Run("Insert_ConcurrentSingleWinner", func(t *testing.T) { testInsertConcurrent(t, factory) })
	t.Run("Confirm_DrainsPending", func(t *testing.T) { testConfirmDrains(t, factory) })
	t.Run("DeferDismiss_OnlyWhenNotReady", func(t *testing.T) { testDeferOnlyNotReady(t, factory) })
	t.Run("Remove_Idempotent", func(t *testing.T) { testRemoveIdempotent(t, factory) })
	t.Run("Identifiers_Isolated", func(t *testing.T) { testIsolation(t, factory) })
}

func testInsertOnce(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	ok, err := s.Insert(ctx, "A")
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	ok, err = s.Insert(ctx, "A")
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if ok {
		t.Fatalf("second insert must be rejected")
	}
	e, found, err := s.Get(ctx, "A")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if e.Ready || e.DismissPending {
		t.Fatalf("fresh entry must be not-ready without pending mark: %+v", e)
	}
}

func testInsertConcurrent(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	const callers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Insert(ctx, "race")
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one accepted insert, got %d", wins.Load())
	}
}

func testConfirmDrains(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "A"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	deferred, err := s.DeferDismiss(ctx, "A")
	if err != nil || !deferred {
		t.Fatalf("defer: deferred=%v err=%v", deferred, err)
	}
	e, _, _ := s.Get(ctx, "A")
	if !e.DismissPending {
		t.Fatalf("expected pending mark before confirm")
	}

	pending, err := s.Confirm(ctx, "A")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !pending {
		t.Fatalf("confirm must report the pending mark")
	}
	e, found, _ := s.Get(ctx, "A")
	if !found || !e.Ready || e.DismissPending {
		t.Fatalf("after confirm expected ready without pending, got %+v found=%v", e, found)
	}

	pending, err = s.Confirm(ctx, "A")
	if err != nil {
		t.Fatalf("reconfirm: %v", err)
	}
	if pending {
		t.Fatalf("pending mark must be drained exactly once")
	}
}

func testDeferOnlyNotReady(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	deferred, err := s.DeferDismiss(ctx, "missing")
	if err != nil {
		t.Fatalf("defer missing: %v", err)
	}
	if deferred {
		t.Fatalf("dismiss for an unknown identifier must not be deferred")
	}
	if _, found, _ := s.Get(ctx, "missing"); found {
		t.Fatalf("defer must not create entries")
	}

	if _, err := s.Insert(ctx, "A"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Confirm(ctx, "A"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	deferred, err = s.DeferDismiss(ctx, "A")
	if err != nil {
		t.Fatalf("defer ready: %v", err)
	}
	if deferred {
		t.Fatalf("dismiss for a ready entry must not be deferred")
	}
	e, _, _ := s.Get(ctx, "A")
	if e.DismissPending {
		t.Fatalf("ready entry must never carry a pending mark")
	}
}

func testRemoveIdempotent(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "A"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.DeferDismiss(ctx, "A"); err != nil {
		t.Fatalf("defer: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Remove(ctx, "A"); err != nil {
			t.Fatalf("remove %d: %v", i, err)
		}
	}
	if _, found, _ := s.Get(ctx, "A"); found {
		t.Fatalf("entry must be gone")
	}
	ok, err := s.Insert(ctx, "A")
	if err != nil || !ok {
		t.Fatalf("insert after remove: ok=%v err=%v", ok, err)
	}
	pending, err := s.Confirm(ctx, "A")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if pending {
		t.Fatalf("remove must drop the pending mark")
	}
}

func testIsolation(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("id-%d", i)
		if ok, err := s.Insert(ctx, id); err != nil || !ok {
			t.Fatalf("insert %s: ok=%v err=%v", id, ok, err)
		}
	}
	if _, err := s.Confirm(ctx, "id-0"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := s.Remove(ctx, "id-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	e, found, _ := s.Get(ctx, "id-2")
	if !found || e.Ready {
		t.Fatalf("unrelated entry changed: %+v found=%v", e, found)
	}
	e, found, _ = s.Get(ctx, "id-0")
	if !found || !e.Ready {
		t.Fatalf("confirmed entry lost: %+v found=%v", e, found)
	}
}
