// Package registry guarantees at most one live dialog session per
// identifier and coordinates dismiss requests that race session startup.
//
// An entry is inserted (not ready) when a show is accepted, flipped to ready
// when the host confirms it is up, and removed when the host is destroyed. A
// dismiss that arrives while the entry is not yet ready cannot be delivered
// to a host that has not subscribed yet, so it is parked as a pending mark
// and handed to the host when it confirms.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ggoodman/dialog-session-go/broadcast"
)

// ErrNoIdentifier is returned by operations that require a managed identifier.
var ErrNoIdentifier = errors.New("registry: empty identifier")

// Entry is the registry view of one identifier.
type Entry struct {
	Ready          bool `json:"ready"`
	DismissPending bool `json:"dismissPending"`
}

// Store is the atomic storage behind a Registry. Every method must be atomic
// with respect to the others for the same identifier.
type Store interface {
	// Insert creates a not-ready entry. It reports false if an entry exists.
	Insert(ctx context.Context, id string) (inserted bool, err error)
	// Confirm marks the entry ready and removes its pending mark, reporting
	// whether one was present. Confirming a missing entry creates it ready.
	Confirm(ctx context.Context, id string) (dismissPending bool, err error)
	// DeferDismiss records a pending mark only if the entry exists and is not
	// ready. It reports whether the mark was recorded.
	DeferDismiss(ctx context.Context, id string) (deferred bool, err error)
	// Remove deletes the entry and any pending mark. Missing ids are ignored.
	Remove(ctx context.Context, id string) error
	// Get reads the entry for id.
	Get(ctx context.Context, id string) (Entry, bool, error)
}

// ShowOutcome is the result of BeginShow.
type ShowOutcome int

const (
	ShowAccepted ShowOutcome = iota
	ShowAlreadyShowing
)

func (o ShowOutcome) String() string {
	switch o {
	case ShowAccepted:
		return "accepted"
	case ShowAlreadyShowing:
		return "already-showing"
	}
	return fmt.Sprintf("ShowOutcome(%d)", int(o))
}

// DismissOutcome is the result of RequestDismiss.
type DismissOutcome int

const (
	// DismissDeferred means the session has not confirmed yet; it will
	// terminate itself at confirmation.
	DismissDeferred DismissOutcome = iota
	// DismissSent means a dismiss broadcast was published.
	DismissSent
)

func (o DismissOutcome) String() string {
	switch o {
	case DismissDeferred:
		return "deferred"
	case DismissSent:
		return "sent"
	}
	return fmt.Sprintf("DismissOutcome(%d)", int(o))
}

// Observer receives registry events. Any method may be left as a no-op.
type Observer interface {
	ShowDeduplicated(id string)
	DismissParked(id string)
	DismissBroadcast(id string)
}

// Registry is the session identity service shared by builders and hosts.
type Registry struct {
	store    Store
	bus      broadcast.Bus
	log      *slog.Logger
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver attaches an observer, typically a metrics sink.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// New creates a Registry over store that publishes dismisses on bus.
func New(store Store, bus broadcast.Bus, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		bus:   bus,
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bus returns the broadcast bus the registry publishes on.
func (r *Registry) Bus() broadcast.Bus { return r.bus }

// BeginShow claims id for a new session. The empty identifier is always
// accepted and never recorded.
func (r *Registry) BeginShow(ctx context.Context, id string) (ShowOutcome, error) {
	if id == "" {
		return ShowAccepted, nil
	}
	inserted, err := r.store.Insert(ctx, id)
	if err != nil {
		return ShowAccepted, fmt.Errorf("registry: insert %q: %w", id, err)
	}
	if !inserted {
		r.log.InfoContext(ctx, "registry.show.duplicate", slog.String("identifier", id))
		if r.observer != nil {
			r.observer.ShowDeduplicated(id)
		}
		return ShowAlreadyShowing, nil
	}
	r.log.DebugContext(ctx, "registry.show.accepted", slog.String("identifier", id))
	return ShowAccepted, nil
}

// ConfirmShown marks the session ready and reports whether a dismiss arrived
// before confirmation. The pending mark is consumed by this call.
func (r *Registry) ConfirmShown(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	pending, err := r.store.Confirm(ctx, id)
	if err != nil {
		return false, fmt.Errorf("registry: confirm %q: %w", id, err)
	}
	r.log.DebugContext(ctx, "registry.confirm", slog.String("identifier", id), slog.Bool("dismiss_pending", pending))
	return pending, nil
}

// RequestDismiss asks the session showing id to end. If the session has not
// confirmed yet the request is parked; otherwise it is broadcast. A broadcast
// with no live recipient is a no-op.
func (r *Registry) RequestDismiss(ctx context.Context, id string) (DismissOutcome, error) {
	if id == "" {
		return DismissSent, ErrNoIdentifier
	}
	deferred, err := r.store.DeferDismiss(ctx, id)
	if err != nil {
		return DismissSent, fmt.Errorf("registry: defer dismiss %q: %w", id, err)
	}
	if deferred {
		r.log.InfoContext(ctx, "registry.dismiss.deferred", slog.String("identifier", id))
		if r.observer != nil {
			r.observer.DismissParked(id)
		}
		return DismissDeferred, nil
	}

	n, err := r.bus.Publish(ctx, broadcast.Message{Action: broadcast.ActionDismiss, Identifier: id})
	if err != nil {
		return DismissSent, fmt.Errorf("registry: publish dismiss %q: %w", id, err)
	}
	r.log.InfoContext(ctx, "registry.dismiss.sent", slog.String("identifier", id), slog.Int("delivered", n))
	if r.observer != nil {
		r.observer.DismissBroadcast(id)
	}
	return DismissSent, nil
}

// End releases id. It is idempotent.
func (r *Registry) End(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("registry: remove %q: %w", id, err)
	}
	r.log.DebugContext(ctx, "registry.end", slog.String("identifier", id))
	return nil
}

// Reset dismisses whatever is showing under id and then forgets the
// identifier entirely, so a later show is accepted even if a host never
// confirmed.
func (r *Registry) Reset(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoIdentifier
	}
	if _, err := r.RequestDismiss(ctx, id); err != nil && !errors.Is(err, broadcast.ErrClosed) {
		return err
	}
	if err := r.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("registry: reset %q: %w", id, err)
	}
	r.log.InfoContext(ctx, "registry.reset", slog.String("identifier", id))
	return nil
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	if id == "" {
		return Entry{}, false, nil
	}
	return r.store.Get(ctx, id)
}
