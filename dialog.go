// Package dialog shows modal dialog sessions.
//
// A session is configured with a Builder and launched with Show. When the
// session is given an identifier, at most one session per identifier is live
// at any time: a second Show for an identifier that is still showing is
// dropped, and Dismiss ends the live session even if its host has not
// finished starting yet.
//
//	launched, err := dialog.NewWithID(origin, "delete-confirm").
//		SetAlert(content.AlertFunc(func(b *content.AlertBuilder) {
//			b.SetTitle("Delete?").
//				SetPositiveButton("Delete", nil).
//				SetNegativeButton("Keep", nil)
//		})).
//		Show(ctx)
//
// Origins that implement platform.ResultReceiver get the result envelope
// with result.RequestTag once the session ends.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ggoodman/dialog-session-go/bundle"
	"github.com/ggoodman/dialog-session-go/content"
	"github.com/ggoodman/dialog-session-go/handoff"
	"github.com/ggoodman/dialog-session-go/platform"
	"github.com/ggoodman/dialog-session-go/registry"
	"github.com/ggoodman/dialog-session-go/result"
	"github.com/ggoodman/dialog-session-go/wire"
)

// ErrNoOrigin is returned by Show on a builder without an origin, including
// a builder that has already been shown.
var ErrNoOrigin = errors.New("dialog: no origin")

// Builder configures one dialog session. It is not safe for concurrent use
// and may be shown once.
type Builder struct {
	origin     platform.Origin
	id         string
	content    any
	layout     string
	cancelable bool
	theme      string
	params     bundle.Bundle
}

// New returns a builder for an unmanaged session: no de-duplication and no
// dismissal by identifier.
func New(origin platform.Origin) *Builder {
	return NewWithID(origin, "")
}

// NewWithID returns a builder for a session managed under id.
func NewWithID(origin platform.Origin, id string) *Builder {
	b := &Builder{origin: origin, id: id, cancelable: true}
	if origin != nil && origin.Runtime() != nil {
		b.cancelable = origin.Runtime().DefaultCancelable()
	}
	return b
}

// Identifier returns the session identifier, "" when unmanaged.
func (b *Builder) Identifier() string { return b.id }

// SetAlert shows a as an alert. It replaces any content or layout set before.
func (b *Builder) SetAlert(a content.Alert) *Builder {
	b.content = a
	b.layout = ""
	return b
}

// SetUnit attaches u into the default layout. It replaces any content or
// layout set before.
func (b *Builder) SetUnit(u content.Unit) *Builder {
	b.content = u
	b.layout = ""
	return b
}

// SetContent dispatches on the kind of v. It panics when v is neither an
// alert nor a unit.
func (b *Builder) SetContent(v any) *Builder {
	switch content.KindOf(v) {
	case content.KindAlert:
		return b.SetAlert(v.(content.Alert))
	case content.KindUnit:
		return b.SetUnit(v.(content.Unit))
	}
	panic(fmt.Sprintf("dialog: unsupported content type %T", v))
}

// SetLayout hosts the session in the layout registered on the runtime under
// name, optionally attaching u into it. It panics when no such layout is
// registered.
func (b *Builder) SetLayout(name string, u content.Unit) *Builder {
	if b.origin == nil || b.origin.Runtime() == nil || !b.origin.Runtime().HasLayout(name) {
		panic(fmt.Sprintf("dialog: layout %q is not registered", name))
	}
	b.layout = name
	b.content = nil
	if u != nil {
		b.content = u
	}
	return b
}

// SetCancelable controls whether back navigation and outside touches end
// the session.
func (b *Builder) SetCancelable(v bool) *Builder {
	b.cancelable = v
	return b
}

// SetTheme selects the theme passed to the surface.
func (b *Builder) SetTheme(id string) *Builder {
	b.theme = id
	return b
}

// SetParams attaches caller parameters. They are echoed back in the result
// envelope.
func (b *Builder) SetParams(p bundle.Bundle) *Builder {
	b.params = p.Clone()
	return b
}

// Show launches the session. It reports false without error when a session
// with the same identifier is already showing. The builder cannot be shown
// again.
func (b *Builder) Show(ctx context.Context) (bool, error) {
	origin := b.origin
	b.origin = nil
	if origin == nil || origin.Runtime() == nil {
		return false, ErrNoOrigin
	}
	rt := origin.Runtime()
	log := rt.Logger()

	var tok *handoff.Token
	if b.content != nil {
		t, err := rt.Handoffs().Store(b.content)
		if err != nil {
			return false, err
		}
		tok = &t
	}
	release := func() {
		if tok != nil {
			rt.Handoffs().Take(*tok)
		}
	}

	out, err := rt.Registry().BeginShow(ctx, b.id)
	if err != nil {
		release()
		return false, err
	}
	if out == registry.ShowAlreadyShowing {
		log.InfoContext(ctx, "dialog.show.duplicate", slog.String("identifier", b.id))
		release()
		return false, nil
	}

	params := b.params
	if params == nil {
		params = bundle.New()
	}
	req := wire.LaunchRequest{
		Handoff:    tok,
		Cancelable: b.cancelable,
		Identifier: b.id,
		Theme:      b.theme,
		Layout:     b.layout,
		Params:     params,
	}

	opts := platform.LaunchOptions{Mode: platform.ModeNewTask}
	if recv, ok := origin.(platform.ResultReceiver); ok {
		opts = platform.LaunchOptions{
			Mode: platform.ModeAttached,
			Slot: func(env *result.Envelope) { recv.OnResult(result.RequestTag, env) },
		}
	}

	unit, err := rt.Dispatch(ctx, req, opts)
	if err != nil {
		log.ErrorContext(ctx, "dialog.show.err", slog.String("identifier", b.id), slog.String("err", err.Error()))
		release()
		// An aborted host already released the identifier; it may belong to
		// another session by now.
		if !errors.Is(err, platform.ErrCreationAborted) {
			if endErr := rt.Registry().End(context.WithoutCancel(ctx), b.id); endErr != nil {
				err = errors.Join(err, endErr)
			}
		}
		return false, err
	}
	log.DebugContext(ctx, "dialog.show.launched", slog.String("identifier", b.id), slog.String("unit", unit))
	return true, nil
}

// Dismiss ends the session shown under id. A dismiss that arrives before the
// session's host has started is held and applied when it starts.
func Dismiss(ctx context.Context, origin platform.Origin, id string) error {
	if origin == nil || origin.Runtime() == nil {
		return ErrNoOrigin
	}
	_, err := origin.Runtime().Dismiss(ctx, id)
	return err
}

// Reset dismisses the session shown under id and forgets the identifier, so
// a new session can be shown under it even if the old host never started.
func Reset(ctx context.Context, origin platform.Origin, id string) error {
	if origin == nil || origin.Runtime() == nil {
		return ErrNoOrigin
	}
	return origin.Runtime().Reset(ctx, id)
}
