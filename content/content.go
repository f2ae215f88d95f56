// Package content defines the contract between a dialog session host and
// the content it presents.
//
// Content comes in two kinds:
//
//	Alert -> declares title, message, buttons and choice lists; the host
//	         renders them through a platform Surface and owns the interaction.
//	Unit  -> a self-managing content unit attached into a layout container;
//	         it ends the session itself through the Finisher it is handed.
//
// Either kind may additionally implement the optional hooks in this package
// (ResponseCollector, ResultCoder, StateSaver, ShownObserver). Absence simply
// means the content does not participate in that part of the lifecycle.
package content

import (
	"context"

	"github.com/ggoodman/dialog-session-go/bundle"
	"github.com/ggoodman/dialog-session-go/result"
)

// ContainerID names the layout container generic content units attach into.
const ContainerID = "dialog_content"

// Kind tags a content value at hand-off time.
type Kind int

const (
	KindNone Kind = iota
	KindAlert
	KindUnit
)

func (k Kind) String() string {
	switch k {
	case KindAlert:
		return "alert"
	case KindUnit:
		return "unit"
	}
	return "none"
}

// KindOf classifies v. A value implementing both interfaces is an alert.
func KindOf(v any) Kind {
	switch v.(type) {
	case Alert:
		return KindAlert
	case Unit:
		return KindUnit
	}
	return KindNone
}

// Alert is an alert-style content definition.
type Alert interface {
	// BuildAlert populates the declaration. It is called on first creation
	// and again after every host rebuild.
	BuildAlert(b *AlertBuilder)
}

// Unit is a generic content unit.
type Unit interface {
	// Attach mounts the unit into the host container. It is called on first
	// creation and again after every host rebuild. The unit ends the session
	// by calling f.Finish.
	Attach(ctx context.Context, c Container, f Finisher) error
}

// Container is the fixed layout slot a Unit attaches into.
type Container interface {
	ID() string
	Mount(view any) error
}

// Finisher ends the session that owns a Unit.
type Finisher interface {
	Finish()
}

// Control lets alert handlers act on the open surface.
type Control interface {
	// Dismiss closes the surface, ending the session with whatever code has
	// been recorded so far.
	Dismiss()
	// Cancel records Cancelled and closes the surface.
	Cancel()
}

// ResponseCollector is implemented by content that reports data back to the
// caller when the session terminates.
type ResponseCollector interface {
	CollectResponses(responses bundle.Bundle)
}

// ResultCoder is implemented by units that decide their own result code.
type ResultCoder interface {
	ResultCode() result.Code
}

// StateSaver is implemented by content carrying state that must survive a
// host rebuild.
type StateSaver interface {
	SaveState(state bundle.Bundle)
	RestoreState(state bundle.Bundle)
}

// ShownObserver is notified each time an alert surface becomes visible.
type ShownObserver interface {
	OnShown(ctrl Control)
}

// AlertFunc adapts a function to the Alert interface.
type AlertFunc func(b *AlertBuilder)

func (f AlertFunc) BuildAlert(b *AlertBuilder) { f(b) }

// UnitFunc adapts a function to the Unit interface.
type UnitFunc func(ctx context.Context, c Container, f Finisher) error

func (f UnitFunc) Attach(ctx context.Context, c Container, fin Finisher) error { return f(ctx, c, fin) }
