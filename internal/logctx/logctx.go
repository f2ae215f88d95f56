package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the dialog attributes carried by ctx.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("dialog",
			slog.String("identifier", sd.Identifier),
			slog.String("unit", sd.UnitID),
			slog.String("kind", sd.Kind),
		))
	}

	if ld, ok := ctx.Value(launchDataKey{}).(*LaunchData); ok {
		r.AddAttrs(slog.Group("launch",
			slog.String("mode", ld.Mode),
			slog.String("layout", ld.Layout),
			slog.String("theme", ld.Theme),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type sessionDataKey struct{}

type SessionData struct {
	Identifier string
	UnitID     string
	Kind       string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type launchDataKey struct{}

type LaunchData struct {
	Mode   string
	Layout string
	Theme  string
}

func WithLaunchData(ctx context.Context, data *LaunchData) context.Context {
	return context.WithValue(ctx, launchDataKey{}, data)
}
