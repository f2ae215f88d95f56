// Package handoff transfers content values that cannot travel inside a
// launch payload from the code that shows a session to the host that renders
// it.
//
// Store parks a value under a fresh unguessable token; Take returns it once
// and forgets it. A Take that misses means the value did not survive (the
// host was recreated from cold state, or the token was already consumed) and
// the session has expired.
package handoff

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ggoodman/dialog-session-go/content"
	"github.com/google/uuid"
)

// ErrUnsupportedContent is returned by Store for values that are neither an
// alert definition nor a content unit.
var ErrUnsupportedContent = errors.New("handoff: unsupported content")

// Token references one parked content value. The kind travels alongside the
// ID so the host can pick its rendering mode before taking the value.
type Token struct {
	ID   string       `json:"id"`
	Kind content.Kind `json:"kind"`
}

// IsZero reports whether t references nothing.
func (t Token) IsZero() bool { return t.ID == "" }

type entry struct {
	kind  content.Kind
	value any
}

// Registry is a process-wide, one-time handoff table. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	log     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Store parks v and returns the token that retrieves it.
func (r *Registry) Store(v any) (Token, error) {
	kind := content.KindOf(v)
	if kind == content.KindNone {
		return Token{}, ErrUnsupportedContent
	}
	tok := Token{ID: uuid.NewString(), Kind: kind}

	r.mu.Lock()
	r.entries[tok.ID] = entry{kind: kind, value: v}
	r.mu.Unlock()

	r.log.Debug("handoff.store", slog.String("kind", kind.String()))
	return tok, nil
}

// Take removes and returns the value for t. It reports false for a zero
// token, an unknown or consumed token, or a token whose kind does not match
// the stored value (the entry is discarded in that case).
func (r *Registry) Take(t Token) (any, bool) {
	if t.IsZero() {
		return nil, false
	}
	r.mu.Lock()
	e, ok := r.entries[t.ID]
	if ok {
		delete(r.entries, t.ID)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Debug("handoff.take.miss")
		return nil, false
	}
	if e.kind != t.Kind {
		r.log.Warn("handoff.take.kind_mismatch", slog.String("stored", e.kind.String()), slog.String("token", t.Kind.String()))
		return nil, false
	}
	return e.value, true
}

// Len reports how many values are parked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
