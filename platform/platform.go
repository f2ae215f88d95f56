// Package platform runs dialog hosts. A Runtime plays the part of the
// windowing platform: it receives sealed launch payloads, creates one host
// per launch, routes rebuild and back-navigation requests to it and tears
// every host down on shutdown.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ggoodman/dialog-session-go/broadcast"
	bmemory "github.com/ggoodman/dialog-session-go/broadcast/memory"
	"github.com/ggoodman/dialog-session-go/config"
	"github.com/ggoodman/dialog-session-go/handoff"
	"github.com/ggoodman/dialog-session-go/host"
	"github.com/ggoodman/dialog-session-go/internal/logctx"
	"github.com/ggoodman/dialog-session-go/internal/metrics"
	"github.com/ggoodman/dialog-session-go/registry"
	rmemory "github.com/ggoodman/dialog-session-go/registry/memory"
	rredis "github.com/ggoodman/dialog-session-go/registry/redis"
	"github.com/ggoodman/dialog-session-go/theme"
	"github.com/ggoodman/dialog-session-go/wire"
)

var (
	// ErrClosed is returned by launches on a runtime that has shut down.
	ErrClosed = errors.New("platform: runtime closed")
	// ErrUnknownLayout is returned when a launch names an unregistered layout.
	ErrUnknownLayout = errors.New("platform: unknown layout")
	// ErrUnknownUnit is returned for a unit ID that is not running.
	ErrUnknownUnit = errors.New("platform: unknown unit")
	// ErrCreationAborted wraps host creation failures. The host has already
	// released the session identifier when it is returned.
	ErrCreationAborted = errors.New("platform: host creation aborted")
)

// Mode selects how a launched host relates to the code that launched it.
type Mode int

const (
	// ModeNewTask detaches the host; no result is delivered.
	ModeNewTask Mode = iota
	// ModeAttached delivers the result envelope to the launch slot.
	ModeAttached
)

func (m Mode) String() string {
	if m == ModeAttached {
		return "attached"
	}
	return "new_task"
}

// LaunchOptions control a single launch.
type LaunchOptions struct {
	Mode Mode
	// Slot receives the envelope in ModeAttached. Ignored in ModeNewTask.
	Slot host.ResultSlot
}

// Runtime owns the process-wide dialog state and the running hosts.
type Runtime struct {
	log               *slog.Logger
	handoffs          *handoff.Registry
	store             registry.Store
	bus               broadcast.Bus
	registry          *registry.Registry
	sealer            *wire.Sealer
	surfaces          host.SurfaceFactory
	themes            *theme.Catalog
	metrics           *metrics.Metrics
	defaultLayout     host.Layout
	defaultCancelable bool
	closers           []func() error

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	layouts map[string]host.Layout
	units   map[string]*host.Host
	closed  bool
	wg      sync.WaitGroup
}

// New creates a runtime. Unless overridden it uses in-memory registry
// storage, an in-process dismiss bus and a freshly generated sealing key.
func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		log:               slog.New(slog.DiscardHandler),
		defaultCancelable: true,
		layouts:           make(map[string]host.Layout),
		units:             make(map[string]*host.Host),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}

	if rt.store == nil {
		rt.store = rmemory.New()
	}
	if rt.bus == nil {
		b := bmemory.New()
		rt.bus = b
		rt.closers = append(rt.closers, b.Close)
	}
	if rt.sealer == nil {
		s, err := wire.NewSealer()
		if err != nil {
			return nil, fmt.Errorf("platform: sealer: %w", err)
		}
		rt.sealer = s
	}
	if rt.themes == nil {
		rt.themes = theme.NewCatalog(theme.WithLogger(rt.log))
	}

	rt.handoffs = handoff.New(handoff.WithLogger(rt.log))
	rt.registry = registry.New(rt.store, rt.bus,
		registry.WithLogger(rt.log),
		registry.WithObserver(rt.metrics),
	)
	rt.ctx, rt.cancel = context.WithCancel(context.Background())
	return rt, nil
}

// NewFromConfig builds a runtime from cfg: the registry backend, the theme
// directory, the cancelable default and a JSON logger at the configured
// level. opts are applied after the configured ones and win.
func NewFromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})})
	base := []Option{
		WithLogger(log),
		WithDefaultCancelable(cfg.DefaultCancelable),
	}

	if cfg.RegistryBackend == config.BackendRedis {
		store, err := rredis.New(ctx, rredis.Config{
			Addr:      cfg.RedisAddr,
			KeyPrefix: cfg.KeyPrefix,
			GroupID:   cfg.GroupID,
		})
		if err != nil {
			return nil, fmt.Errorf("platform: redis registry: %w", err)
		}
		base = append(base, WithRegistryStore(store), WithCloser(store.Close))
	}

	if cfg.ThemeDir != "" {
		cat := theme.NewCatalog(theme.WithDir(cfg.ThemeDir), theme.WithLogger(log))
		if err := cat.Load(); err != nil {
			return nil, fmt.Errorf("platform: themes: %w", err)
		}
		base = append(base, WithThemes(cat))
	}

	return New(append(base, opts...)...)
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.log }

// Handoffs returns the content handoff registry.
func (rt *Runtime) Handoffs() *handoff.Registry { return rt.handoffs }

// Registry returns the session identity registry.
func (rt *Runtime) Registry() *registry.Registry { return rt.registry }

// Themes returns the theme catalog.
func (rt *Runtime) Themes() *theme.Catalog { return rt.themes }

// DefaultCancelable is the cancelable flag new builders start with.
func (rt *Runtime) DefaultCancelable() bool { return rt.defaultCancelable }

// RegisterLayout makes l available to launches under name.
func (rt *Runtime) RegisterLayout(name string, l host.Layout) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.layouts[name] = l
}

// HasLayout reports whether name is a registered layout.
func (rt *Runtime) HasLayout(name string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.layouts[name]
	return ok
}

// Dispatch seals req and launches it. It returns the ID of the new unit.
func (rt *Runtime) Dispatch(ctx context.Context, req wire.LaunchRequest, opts LaunchOptions) (string, error) {
	payload, err := rt.sealer.Seal(req)
	if err != nil {
		return "", err
	}
	return rt.LaunchPayload(ctx, payload, opts)
}

// LaunchPayload opens a sealed launch payload and creates a host for it. It
// returns once the host is rendering or has already ended. An error means
// no result will be delivered. Errors matching ErrCreationAborted come from a
// host that existed and released the identifier itself; any other error
// leaves the identifier to the caller.
func (rt *Runtime) LaunchPayload(ctx context.Context, payload string, opts LaunchOptions) (string, error) {
	req, err := rt.sealer.Open(payload)
	if err != nil {
		return "", err
	}

	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return "", ErrClosed
	}
	layout := rt.defaultLayout
	if req.Layout != "" {
		l, ok := rt.layouts[req.Layout]
		if !ok {
			rt.mu.Unlock()
			return "", fmt.Errorf("%w: %q", ErrUnknownLayout, req.Layout)
		}
		layout = l
	}
	rt.mu.Unlock()

	unitID := uuid.NewString()
	themeID := rt.themes.Resolve(req.Theme).ID

	hopts := []host.Option{
		host.WithLogger(rt.log),
		host.WithSurfaceFactory(rt.surfaces),
		host.WithLayout(layout),
		host.WithTheme(themeID),
		host.WithUnitID(unitID),
		host.WithObserver(rt.metrics),
	}
	if opts.Mode == ModeAttached && opts.Slot != nil {
		hopts = append(hopts, host.WithResultSlot(opts.Slot))
	}
	h := host.New(req, rt.handoffs, rt.registry, hopts...)

	ctx = logctx.WithLaunchData(ctx, &logctx.LaunchData{Mode: opts.Mode.String(), Layout: req.Layout, Theme: themeID})
	rt.log.DebugContext(ctx, "platform.launch", slog.String("unit", unitID), slog.String("identifier", req.Identifier))

	// The host outlives the launching call; it is bounded by the runtime.
	hctx := logctx.WithLaunchData(rt.ctx, &logctx.LaunchData{Mode: opts.Mode.String(), Layout: req.Layout, Theme: themeID})
	if err := h.Create(hctx); err != nil {
		rt.log.ErrorContext(ctx, "platform.launch.err", slog.String("unit", unitID), slog.String("err", err.Error()))
		return "", fmt.Errorf("%w: %w", ErrCreationAborted, err)
	}

	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		h.Destroy()
		return unitID, nil
	}
	rt.units[unitID] = h
	rt.wg.Add(1)
	rt.mu.Unlock()
	go func() {
		defer rt.wg.Done()
		<-h.Done()
		rt.mu.Lock()
		delete(rt.units, unitID)
		rt.mu.Unlock()
	}()
	return unitID, nil
}

// Host returns the running host for unitID.
func (rt *Runtime) Host(unitID string) (*host.Host, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	h, ok := rt.units[unitID]
	return h, ok
}

// Units returns the IDs of all running hosts.
func (rt *Runtime) Units() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ids := make([]string, 0, len(rt.units))
	for id := range rt.units {
		ids = append(ids, id)
	}
	return ids
}

// Recreate rebuilds the host for unitID, as on a configuration change.
func (rt *Runtime) Recreate(ctx context.Context, unitID string) error {
	h, ok := rt.Host(unitID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	return h.Recreate(ctx)
}

// Back delivers a back-navigation request to the host for unitID.
func (rt *Runtime) Back(unitID string) error {
	h, ok := rt.Host(unitID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	h.Back()
	return nil
}

// Dismiss asks the session registered under id to end.
func (rt *Runtime) Dismiss(ctx context.Context, id string) (registry.DismissOutcome, error) {
	return rt.registry.RequestDismiss(ctx, id)
}

// Reset dismisses the session registered under id and forgets it.
func (rt *Runtime) Reset(ctx context.Context, id string) error {
	return rt.registry.Reset(ctx, id)
}

// Run watches the theme catalog until ctx ends, then shuts the runtime
// down.
func (rt *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.themes.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return rt.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Shutdown destroys every running host, waits for their results to be
// delivered and releases runtime resources. Launches after Shutdown fail
// with ErrClosed.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	hosts := make([]*host.Host, 0, len(rt.units))
	for _, h := range rt.units {
		hosts = append(hosts, h)
	}
	rt.mu.Unlock()

	rt.log.InfoContext(ctx, "platform.shutdown", slog.Int("units", len(hosts)))

	var g errgroup.Group
	for _, h := range hosts {
		g.Go(func() error {
			h.Destroy()
			select {
			case <-h.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err := g.Wait()
	rt.cancel()
	rt.wg.Wait()

	for _, fn := range rt.closers {
		err = errors.Join(err, fn())
	}
	return err
}
