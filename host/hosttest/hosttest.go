// Package hosttest provides in-memory surfaces, layouts and result slots for
// exercising dialog hosts without a real presentation layer.
package hosttest

import (
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/dialog-session-go/content"
	"github.com/ggoodman/dialog-session-go/host"
	"github.com/ggoodman/dialog-session-go/result"
)

// Surfaces is a host.SurfaceFactory recording every surface it creates.
type Surfaces struct {
	// ShowErr, when set, is returned by every Show.
	ShowErr error

	mu       sync.Mutex
	surfaces []*Surface
}

// NewSurface implements host.SurfaceFactory.
func (f *Surfaces) NewSurface(emit func(content.Event)) host.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Surface{emit: emit, showErr: f.ShowErr}
	f.surfaces = append(f.surfaces, s)
	return s
}

// Count reports how many surfaces were created.
func (f *Surfaces) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.surfaces)
}

// Last returns the most recently created surface, or nil.
func (f *Surfaces) Last() *Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.surfaces) == 0 {
		return nil
	}
	return f.surfaces[len(f.surfaces)-1]
}

// Surface is a scripted host.Surface. Dismiss emits content.Dismissed
// synchronously, like a platform widget whose dismiss listener fires inline.
type Surface struct {
	emit    func(content.Event)
	showErr error

	mu        sync.Mutex
	decl      content.Declaration
	opts      host.SurfaceOptions
	open      bool
	shows     int
	dismisses int
}

func (s *Surface) Show(decl content.Declaration, opts host.SurfaceOptions) error {
	if s.showErr != nil {
		return s.showErr
	}
	s.mu.Lock()
	s.decl = decl
	s.opts = opts
	s.open = true
	s.shows++
	s.mu.Unlock()
	return nil
}

func (s *Surface) Dismiss() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	s.dismisses++
	s.mu.Unlock()
	s.emit(content.Dismissed{})
}

// Press simulates a button press.
func (s *Surface) Press(b content.Button) { s.emit(content.ButtonPressed{Button: b}) }

// Select simulates a choice. The mode is taken from the shown declaration.
func (s *Surface) Select(which int, checked bool) {
	s.mu.Lock()
	mode := content.ChoicePlain
	if s.decl.Choices != nil {
		mode = s.decl.Choices.Mode
	}
	s.mu.Unlock()
	s.emit(content.ChoiceSelected{Mode: mode, Which: which, Checked: checked})
}

// Cancel simulates a back or outside-tap gesture.
func (s *Surface) Cancel() { s.emit(content.Cancelled{}) }

// Close simulates the platform closing the surface on its own.
func (s *Surface) Close() { s.Dismiss() }

// Declaration returns the last shown declaration.
func (s *Surface) Declaration() content.Declaration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decl
}

// Options returns the options of the last Show.
func (s *Surface) Options() host.SurfaceOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// IsOpen reports whether the surface is shown and not yet dismissed.
func (s *Surface) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Dismisses reports how many times the surface was actually closed.
func (s *Surface) Dismisses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismisses
}

// Layout is a host.Layout with a fixed set of containers.
type Layout struct {
	containers map[string]*Container
}

// NewLayout returns a layout with one container per id.
func NewLayout(ids ...string) *Layout {
	l := &Layout{containers: make(map[string]*Container, len(ids))}
	for _, id := range ids {
		l.containers[id] = &Container{id: id}
	}
	return l
}

// Container implements host.Layout.
func (l *Layout) Container(id string) (content.Container, bool) {
	c, ok := l.containers[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Get returns the concrete container for id, or nil.
func (l *Layout) Get(id string) *Container { return l.containers[id] }

// Container records mounted views.
type Container struct {
	id string

	mu    sync.Mutex
	views []any
}

func (c *Container) ID() string { return c.id }

func (c *Container) Mount(view any) error {
	c.mu.Lock()
	c.views = append(c.views, view)
	c.mu.Unlock()
	return nil
}

// Views returns everything mounted so far.
func (c *Container) Views() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.views))
	copy(out, c.views)
	return out
}

// Slot collects delivered envelopes.
type Slot struct {
	mu   sync.Mutex
	envs []*result.Envelope
	ch   chan *result.Envelope
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan *result.Envelope, 16)}
}

// Deliver is a host.ResultSlot.
func (s *Slot) Deliver(env *result.Envelope) {
	s.mu.Lock()
	s.envs = append(s.envs, env)
	s.mu.Unlock()
	select {
	case s.ch <- env:
	default:
	}
}

// Count reports how many envelopes were delivered.
func (s *Slot) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs)
}

// Wait returns the next delivered envelope or fails the test after timeout.
func (s *Slot) Wait(t testing.TB, timeout time.Duration) *result.Envelope {
	t.Helper()
	select {
	case env := <-s.ch:
		return env
	case <-time.After(timeout):
		t.Fatalf("no result delivered within %s", timeout)
		return nil
	}
}

// WaitDone fails the test if h is not destroyed within timeout.
func WaitDone(t testing.TB, h *host.Host, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatalf("host not destroyed within %s (state %s)", timeout, h.State())
	}
}

var (
	_ host.SurfaceFactory = (*Surfaces)(nil)
	_ host.Surface        = (*Surface)(nil)
	_ host.Layout         = (*Layout)(nil)
)
