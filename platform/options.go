package platform

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ggoodman/dialog-session-go/broadcast"
	"github.com/ggoodman/dialog-session-go/host"
	"github.com/ggoodman/dialog-session-go/internal/metrics"
	"github.com/ggoodman/dialog-session-go/registry"
	"github.com/ggoodman/dialog-session-go/theme"
	"github.com/ggoodman/dialog-session-go/wire"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger shared by the runtime and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithSurfaceFactory sets how alert surfaces are rendered.
func WithSurfaceFactory(f host.SurfaceFactory) Option {
	return func(rt *Runtime) { rt.surfaces = f }
}

// WithLayout registers a named host layout.
func WithLayout(name string, l host.Layout) Option {
	return func(rt *Runtime) { rt.layouts[name] = l }
}

// WithDefaultLayout sets the layout content units attach into when the
// session names no layout.
func WithDefaultLayout(l host.Layout) Option {
	return func(rt *Runtime) { rt.defaultLayout = l }
}

// WithRegistryStore replaces the in-memory identity store.
func WithRegistryStore(s registry.Store) Option {
	return func(rt *Runtime) { rt.store = s }
}

// WithBus replaces the in-process dismiss bus.
func WithBus(b broadcast.Bus) Option {
	return func(rt *Runtime) { rt.bus = b }
}

// WithThemes sets the theme catalog. Run watches it for changes.
func WithThemes(c *theme.Catalog) Option {
	return func(rt *Runtime) { rt.themes = c }
}

// WithSealer sets the launch payload sealer. A fresh key is generated
// otherwise.
func WithSealer(s *wire.Sealer) Option {
	return func(rt *Runtime) { rt.sealer = s }
}

// WithMetrics registers dialog metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(rt *Runtime) { rt.metrics = metrics.New(reg) }
}

// WithDefaultCancelable sets the cancelable flag new builders start with.
func WithDefaultCancelable(v bool) Option {
	return func(rt *Runtime) { rt.defaultCancelable = v }
}

// WithCloser registers a function run at Shutdown.
func WithCloser(fn func() error) Option {
	return func(rt *Runtime) { rt.closers = append(rt.closers, fn) }
}
