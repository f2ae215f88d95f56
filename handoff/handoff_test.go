package handoff

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ggoodman/dialog-session-go/content"
)

type testAlert struct{ title string }

func (a *testAlert) BuildAlert(b *content.AlertBuilder) { b.SetTitle(a.title) }

type testUnit struct{}

func (testUnit) Attach(context.Context, content.Container, content.Finisher) error { return nil }

func TestStore_TagsKind(t *testing.T) {
	r := New()

	at, err := r.Store(&testAlert{})
	if err != nil {
		t.Fatalf("store alert: %v", err)
	}
	if at.Kind != content.KindAlert {
		t.Fatalf("expected alert kind, got %s", at.Kind)
	}

	ut, err := r.Store(testUnit{})
	if err != nil {
		t.Fatalf("store unit: %v", err)
	}
	if ut.Kind != content.KindUnit {
		t.Fatalf("expected unit kind, got %s", ut.Kind)
	}
	if at.ID == ut.ID {
		t.Fatalf("tokens must be unique")
	}

	if _, err := r.Store("not content"); !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
	if _, err := r.Store(nil); !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent for nil, got %v", err)
	}
}

func TestTake_ExactlyOnce(t *testing.T) {
	r := New()
	a := &testAlert{title: "hello"}
	tok, err := r.Store(a)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok := r.Take(tok)
	if !ok || got != a {
		t.Fatalf("first take must return the stored value")
	}
	for i := 0; i < 3; i++ {
		if _, ok := r.Take(tok); ok {
			t.Fatalf("take %d after consumption must miss", i+2)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestTake_Misses(t *testing.T) {
	r := New()
	if _, ok := r.Take(Token{}); ok {
		t.Fatalf("zero token must miss")
	}
	if _, ok := r.Take(Token{ID: "stale", Kind: content.KindAlert}); ok {
		t.Fatalf("unknown token must miss")
	}

	tok, _ := r.Store(&testAlert{})
	forged := Token{ID: tok.ID, Kind: content.KindUnit}
	if _, ok := r.Take(forged); ok {
		t.Fatalf("kind mismatch must miss")
	}
	if _, ok := r.Take(tok); ok {
		t.Fatalf("kind mismatch must discard the entry")
	}
}

func TestTake_ConcurrentSingleWinner(t *testing.T) {
	r := New()
	tok, _ := r.Store(&testAlert{})

	const takers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < takers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Take(tok); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
