// Package host runs one dialog session: it takes the handed-off content,
// confirms the session with the identity registry, renders the content and
// turns the resulting interaction into exactly one result envelope.
//
// Each Host is an actor. Surface events, dismiss broadcasts and lifecycle
// commands are posted to an unbounded mailbox and processed in arrival order
// by a single goroutine, so content callbacks never run concurrently and a
// surface may emit events from inside Dismiss without deadlocking.
//
// Lifecycle:
//
//	Created -> Confirmed -> Rendering <-> Rebuilding -> Reattaching -> Rendering
//	                \            \              \
//	                 +------------+--------------+--> Terminating -> Destroyed
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/dialog-session-go/broadcast"
	"github.com/ggoodman/dialog-session-go/bundle"
	"github.com/ggoodman/dialog-session-go/content"
	"github.com/ggoodman/dialog-session-go/handoff"
	"github.com/ggoodman/dialog-session-go/internal/logctx"
	"github.com/ggoodman/dialog-session-go/registry"
	"github.com/ggoodman/dialog-session-go/result"
	"github.com/ggoodman/dialog-session-go/wire"
)

var (
	// ErrContainerMissing aborts creation when a content unit has no
	// container to attach into.
	ErrContainerMissing = errors.New("host: content container missing")
	// ErrNoSurfaces aborts creation of an alert session without a surface
	// factory.
	ErrNoSurfaces = errors.New("host: no surface factory configured")
	// ErrAlreadyCreated is returned by a second call to Create.
	ErrAlreadyCreated = errors.New("host: already created")
	// ErrDestroyed is returned by commands sent to a destroyed host.
	ErrDestroyed = errors.New("host: destroyed")
	// ErrInvalidState is returned by rebuild commands issued out of order.
	ErrInvalidState = errors.New("host: invalid state for command")
)

// SurfaceOptions are the presentation settings passed to a Surface.
type SurfaceOptions struct {
	Theme      string
	Cancelable bool
}

// Surface renders an alert declaration. Implementations report user
// interaction through the emit function they were created with and must emit
// content.Dismissed exactly once per Show, whether the surface closed itself
// or Dismiss was called.
type Surface interface {
	Show(decl content.Declaration, opts SurfaceOptions) error
	Dismiss()
}

// SurfaceFactory creates a surface for each rendering of an alert.
type SurfaceFactory interface {
	NewSurface(emit func(content.Event)) Surface
}

// Layout exposes the containers of a host's layout.
type Layout interface {
	Container(id string) (content.Container, bool)
}

// ResultSlot receives the envelope of a terminated session.
type ResultSlot func(env *result.Envelope)

// Observer receives host lifecycle events, typically for metrics.
type Observer interface {
	HostCreated()
	HostDestroyed()
	SessionShown(kind string)
	SessionExpired(id string)
	SessionRaceDismissed(id string)
	HostRebuilt(id string)
	ResultDelivered(code result.Code)
}

type mode int

const (
	modeNone mode = iota
	modeAlert
	modeUnit
	modeLayout
)

func (m mode) String() string {
	switch m {
	case modeAlert:
		return "alert"
	case modeUnit:
		return "unit"
	case modeLayout:
		return "layout"
	}
	return "none"
}

// Host is one dialog session incarnation chain: a first creation followed by
// any number of rebuilds and a single termination.
type Host struct {
	req      wire.LaunchRequest
	handoffs *handoff.Registry
	reg      *registry.Registry
	surfaces SurfaceFactory
	layout   Layout
	theme    string
	slot     ResultSlot
	log      *slog.Logger
	observer Observer
	unitID   string

	mbox    *mailbox
	done    chan struct{}
	state   atomic.Int32
	created atomic.Bool

	resMu sync.Mutex
	res   *result.Envelope

	// Owned by Create until the loop starts, then by the loop.
	mode       mode
	value      any
	decl       content.Declaration
	surface    Surface
	gen        int
	code       result.Code
	which      *int
	checked    *bool
	saved      bundle.Bundle
	sub        broadcast.Subscription
	dismissRan bool
	finalized  bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger used by the host.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.log = l
		}
	}
}

// WithSurfaceFactory sets the factory used to render alerts.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(h *Host) { h.surfaces = f }
}

// WithLayout sets the layout content units attach into.
func WithLayout(l Layout) Option {
	return func(h *Host) { h.layout = l }
}

// WithTheme overrides the theme passed to surfaces. By default the theme
// named in the launch request is passed through unchanged.
func WithTheme(theme string) Option {
	return func(h *Host) { h.theme = theme }
}

// WithResultSlot sets where the result envelope is delivered. Without a slot
// the session is fire-and-forget.
func WithResultSlot(s ResultSlot) Option {
	return func(h *Host) { h.slot = s }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(h *Host) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithUnitID sets the platform identifier of this host, used in logs.
func WithUnitID(id string) Option {
	return func(h *Host) { h.unitID = id }
}

// New prepares a host for req. Nothing happens until Create.
func New(req wire.LaunchRequest, handoffs *handoff.Registry, reg *registry.Registry, opts ...Option) *Host {
	h := &Host{
		req:      req,
		handoffs: handoffs,
		reg:      reg,
		theme:    req.Theme,
		log:      slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		mbox:     newMailbox(),
		done:     make(chan struct{}),
		code:     result.Cancelled,
	}
	if h.req.Params == nil {
		h.req.Params = bundle.New()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Identifier returns the session identifier, "" for unmanaged sessions.
func (h *Host) Identifier() string { return h.req.Identifier }

// UnitID returns the platform identifier set with WithUnitID.
func (h *Host) UnitID() string { return h.unitID }

// State returns the current lifecycle state.
func (h *Host) State() State { return State(h.state.Load()) }

// Done is closed once the host is destroyed and its result, if any, has been
// delivered.
func (h *Host) Done() <-chan struct{} { return h.done }

// Result returns the envelope produced at termination, or nil.
func (h *Host) Result() *result.Envelope {
	h.resMu.Lock()
	defer h.resMu.Unlock()
	return h.res
}

func (h *Host) setState(s State) { h.state.Store(int32(s)) }

// Create performs first creation. It returns after the content is rendered
// or the session has already ended (expired content, dismiss raced the
// start). Only a fatal setup failure such as ErrContainerMissing is returned
// as an error; in that case no result is produced.
//
// ctx bounds the lifetime of the session: when it ends, the session
// terminates with result.Cancelled.
func (h *Host) Create(ctx context.Context) error {
	if !h.created.CompareAndSwap(false, true) {
		return ErrAlreadyCreated
	}
	h.observer.HostCreated()

	sd := &logctx.SessionData{Identifier: h.req.Identifier, UnitID: h.unitID}
	ctx = logctx.WithSessionData(ctx, sd)

	if !h.resolveContent() {
		h.log.WarnContext(ctx, "host.create.expired", slog.Bool("had_token", h.req.Handoff != nil))
		h.observer.SessionExpired(h.req.Identifier)
		h.terminate(ctx, "expired session", true)
		h.finalize()
		return nil
	}
	sd.Kind = h.mode.String()

	if h.req.Identifier != "" {
		sub, err := h.reg.Bus().Subscribe(ctx, broadcast.ActionDismiss, h.onBroadcast)
		if err != nil {
			return h.abort(ctx, fmt.Errorf("host: subscribe dismiss: %w", err))
		}
		h.sub = sub
	}

	pending, err := h.reg.ConfirmShown(ctx, h.req.Identifier)
	if err != nil {
		return h.abort(ctx, err)
	}
	h.setState(StateConfirmed)
	if pending {
		h.log.InfoContext(ctx, "host.create.race_dismiss")
		h.observer.SessionRaceDismissed(h.req.Identifier)
		h.terminate(ctx, "race-condition dismiss", true)
		h.finalize()
		return nil
	}

	if err := h.render(ctx); err != nil {
		return h.abort(ctx, err)
	}
	h.observer.SessionShown(h.mode.String())
	h.log.InfoContext(ctx, "host.create.shown")

	go h.loop(ctx)
	return nil
}

// resolveContent takes the handed-off content and picks the rendering mode.
// It reports false when the session has nothing to show.
func (h *Host) resolveContent() bool {
	if h.req.Handoff != nil {
		v, ok := h.handoffs.Take(*h.req.Handoff)
		if !ok {
			return false
		}
		h.value = v
		switch h.req.Handoff.Kind {
		case content.KindAlert:
			h.mode = modeAlert
		case content.KindUnit:
			h.mode = modeUnit
		default:
			return false
		}
		return true
	}
	if h.req.Layout != "" && h.layout != nil {
		h.mode = modeLayout
		return true
	}
	return false
}

// render mounts the content for the current incarnation and enters Rendering.
func (h *Host) render(ctx context.Context) error {
	switch h.mode {
	case modeAlert:
		if h.surfaces == nil {
			return ErrNoSurfaces
		}
		b := content.NewAlertBuilder()
		h.value.(content.Alert).BuildAlert(b)
		h.decl = b.Declaration()

		h.gen++
		gen := h.gen
		s := h.surfaces.NewSurface(func(ev content.Event) {
			h.mbox.put(surfaceEvent{gen: gen, ev: ev})
		})
		h.surface = s
		if err := s.Show(h.decl, SurfaceOptions{Theme: h.theme, Cancelable: h.req.Cancelable}); err != nil {
			h.surface = nil
			return fmt.Errorf("host: show surface: %w", err)
		}
		h.setState(StateRendering)
		if o, ok := h.value.(content.ShownObserver); ok {
			o.OnShown(control{h: h, gen: gen})
		}
		return nil

	case modeUnit:
		if h.layout == nil {
			return ErrContainerMissing
		}
		c, ok := h.layout.Container(content.ContainerID)
		if !ok {
			return ErrContainerMissing
		}
		h.setState(StateRendering)
		if err := h.value.(content.Unit).Attach(ctx, c, h); err != nil {
			return fmt.Errorf("host: attach unit: %w", err)
		}
		return nil

	case modeLayout:
		h.setState(StateRendering)
		return nil
	}
	return fmt.Errorf("host: nothing to render")
}

func (h *Host) onBroadcast(_ context.Context, msg broadcast.Message) {
	if msg.Identifier != "" && msg.Identifier == h.req.Identifier {
		h.mbox.put(dismissCmd{})
	}
}

// loop drains the mailbox until the host is destroyed.
func (h *Host) loop(ctx context.Context) {
	defer h.finalize()
	for {
		select {
		case <-ctx.Done():
			h.terminate(ctx, "context done", true)
			return
		case <-h.mbox.signal:
			for _, msg := range h.mbox.take() {
				h.handle(ctx, msg)
				if h.State() == StateDestroyed {
					return
				}
			}
		}
	}
}

func (h *Host) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case surfaceEvent:
		if m.gen != h.gen || h.surface == nil {
			if _, ok := m.ev.(content.Dismissed); ok {
				h.log.DebugContext(ctx, "host.rebuild.dismiss_suppressed", slog.Int("generation", m.gen))
			}
			return
		}
		h.handleEvent(ctx, m.ev)

	case controlCmd:
		if m.gen != h.gen || h.surface == nil {
			return
		}
		if m.cancel {
			h.code = result.Cancelled
		}
		h.surface.Dismiss()

	case backCmd:
		if !h.req.Cancelable {
			h.log.DebugContext(ctx, "host.back.ignored")
			return
		}
		h.terminate(ctx, "back", true)

	case finishCmd:
		h.terminate(ctx, "finish", false)

	case dismissCmd:
		if !h.State().acceptsDismiss() {
			return
		}
		h.log.InfoContext(ctx, "host.dismiss.received", slog.String("state", h.State().String()))
		h.terminate(ctx, "dismiss broadcast", true)

	case destroyCmd:
		h.terminate(ctx, "destroy", true)

	case rebuildCmd:
		m.reply <- h.beginRebuild(ctx)

	case reattachCmd:
		m.reply <- h.reattach(ctx)

	case syncCmd:
		m.reply <- nil
	}
}

// terminate produces and delivers the envelope, then destroys the host.
// forceCancel overrides whatever code has been recorded.
func (h *Host) terminate(ctx context.Context, reason string, forceCancel bool) {
	switch h.State() {
	case StateTerminating, StateDestroyed:
		return
	}
	h.setState(StateTerminating)

	code := h.code
	switch {
	case forceCancel:
		code = result.Cancelled
	case h.mode == modeUnit || h.mode == modeLayout:
		code = result.Cancelled
		if rc, ok := h.value.(content.ResultCoder); ok {
			code = rc.ResultCode()
		}
	}

	env := &result.Envelope{
		Code:       code,
		Identifier: h.req.Identifier,
		Params:     h.req.Params,
		Which:      h.which,
		Checked:    h.checked,
	}
	if rc, ok := h.value.(content.ResponseCollector); ok {
		env.Responses = bundle.New()
		rc.CollectResponses(env.Responses)
	}

	h.resMu.Lock()
	h.res = env
	h.resMu.Unlock()

	h.log.InfoContext(ctx, "host.terminate", slog.String("reason", reason), slog.String("code", code.String()))

	// Release the identifier before delivery so the receiver can show the
	// same identifier again from inside its result callback.
	h.release(ctx)

	if h.slot != nil {
		h.slot(env)
		h.observer.ResultDelivered(code)
	}
}

// abort ends a creation that cannot proceed. No result is produced.
func (h *Host) abort(ctx context.Context, err error) error {
	h.log.ErrorContext(ctx, "host.create.abort", slog.String("err", err.Error()))
	h.release(ctx)
	h.finalize()
	return err
}

// release closes the surface, unsubscribes and frees the identifier. The
// host is Destroyed afterwards.
func (h *Host) release(ctx context.Context) {
	if s := h.surface; s != nil {
		h.surface = nil
		h.gen++
		s.Dismiss()
	}
	h.runOnDismiss()
	if h.sub != nil {
		_ = h.sub.Close()
		h.sub = nil
	}
	if err := h.reg.End(context.WithoutCancel(ctx), h.req.Identifier); err != nil {
		h.log.ErrorContext(ctx, "host.release.err", slog.String("err", err.Error()))
	}
	h.setState(StateDestroyed)
	h.mbox.close()
}

func (h *Host) finalize() {
	if h.finalized {
		return
	}
	h.finalized = true
	h.observer.HostDestroyed()
	close(h.done)
}

func (h *Host) runOnDismiss() {
	if h.dismissRan || h.mode != modeAlert || h.decl.OnDismiss == nil {
		return
	}
	h.dismissRan = true
	h.decl.OnDismiss()
}

// Back requests a back navigation. It ends the session with result.Cancelled
// when the session is cancelable and is ignored otherwise.
func (h *Host) Back() { h.mbox.put(backCmd{}) }

// Finish ends the session. Content units receive the host as their
// content.Finisher.
func (h *Host) Finish() { h.mbox.put(finishCmd{}) }

// Destroy tears the session down for good, producing result.Cancelled.
func (h *Host) Destroy() { h.mbox.put(destroyCmd{}) }

// Sync waits until every command posted before it has been processed.
func (h *Host) Sync(ctx context.Context) error {
	return h.call(ctx, func(reply chan error) message { return syncCmd{reply: reply} })
}

// BeginRebuild tears the rendered content down for recreation. Content state
// is saved and the surface closed; the session stays registered and no
// result is produced.
func (h *Host) BeginRebuild(ctx context.Context) error {
	return h.call(ctx, func(reply chan error) message { return rebuildCmd{reply: reply} })
}

// FinishRebuild reattaches the retained content and renders it again.
func (h *Host) FinishRebuild(ctx context.Context) error {
	return h.call(ctx, func(reply chan error) message { return reattachCmd{reply: reply} })
}

// Recreate performs a full rebuild.
func (h *Host) Recreate(ctx context.Context) error {
	if err := h.BeginRebuild(ctx); err != nil {
		return err
	}
	return h.FinishRebuild(ctx)
}

func (h *Host) call(ctx context.Context, mk func(reply chan error) message) error {
	reply := make(chan error, 1)
	if !h.mbox.put(mk(reply)) {
		return ErrDestroyed
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrDestroyed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) beginRebuild(ctx context.Context) error {
	if h.State() != StateRendering {
		return fmt.Errorf("%w: rebuild in %s", ErrInvalidState, h.State())
	}
	if s, ok := h.value.(content.StateSaver); ok {
		h.saved = bundle.New()
		s.SaveState(h.saved)
	}
	h.setState(StateRebuilding)
	if s := h.surface; s != nil {
		// The Dismissed this triggers belongs to a surface the host no
		// longer tracks and is dropped by handle.
		h.surface = nil
		s.Dismiss()
	}
	h.log.InfoContext(ctx, "host.rebuild.begin")
	return nil
}

func (h *Host) reattach(ctx context.Context) error {
	if h.State() != StateRebuilding {
		return fmt.Errorf("%w: reattach in %s", ErrInvalidState, h.State())
	}
	h.setState(StateReattaching)
	if s, ok := h.value.(content.StateSaver); ok && h.saved != nil {
		s.RestoreState(h.saved)
	}
	if err := h.render(ctx); err != nil {
		h.log.ErrorContext(ctx, "host.rebuild.abort", slog.String("err", err.Error()))
		h.release(ctx)
		return err
	}
	h.observer.HostRebuilt(h.req.Identifier)
	h.log.InfoContext(ctx, "host.rebuild.done", slog.Int("generation", h.gen))
	return nil
}

type nopObserver struct{}

func (nopObserver) HostCreated()                {}
func (nopObserver) HostDestroyed()              {}
func (nopObserver) SessionShown(string)         {}
func (nopObserver) SessionExpired(string)       {}
func (nopObserver) SessionRaceDismissed(string) {}
func (nopObserver) HostRebuilt(string)          {}
func (nopObserver) ResultDelivered(result.Code) {}

var _ content.Finisher = (*Host)(nil)
