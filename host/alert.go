package host

import (
	"context"
	"log/slog"

	"github.com/ggoodman/dialog-session-go/content"
	"github.com/ggoodman/dialog-session-go/result"
)

type (
	surfaceEvent struct {
		gen int
		ev  content.Event
	}
	controlCmd struct {
		gen    int
		cancel bool
	}
	backCmd     struct{}
	finishCmd   struct{}
	dismissCmd  struct{}
	destroyCmd  struct{}
	rebuildCmd  struct{ reply chan error }
	reattachCmd struct{ reply chan error }
	syncCmd     struct{ reply chan error }
)

// control is the content.Control handed to alert callbacks. It is bound to
// the surface generation it was created for, so a stale control cannot close
// a surface rendered after a rebuild.
type control struct {
	h   *Host
	gen int
}

func (c control) Dismiss() { c.h.mbox.put(controlCmd{gen: c.gen}) }
func (c control) Cancel()  { c.h.mbox.put(controlCmd{gen: c.gen, cancel: true}) }

func buttonCode(b content.Button) result.Code {
	switch b {
	case content.ButtonPositive:
		return result.Positive
	case content.ButtonNegative:
		return result.Negative
	case content.ButtonNeutral:
		return result.Neutral
	}
	return result.Cancelled
}

// handleEvent applies a surface event to the session. The canonical code,
// which and checked values are recorded before any user handler runs.
func (h *Host) handleEvent(ctx context.Context, ev content.Event) {
	switch ev := ev.(type) {
	case content.ChoiceSelected:
		list := h.decl.Choices
		if list == nil {
			return
		}
		which := ev.Which
		h.which = &which
		switch list.Mode {
		case content.ChoicePlain:
			h.code = result.PlainChoice
		case content.ChoiceSingle:
			h.code = result.SingleChoice
		case content.ChoiceMulti:
			h.code = result.MultiChoice
			checked := ev.Checked
			h.checked = &checked
		}
		if list.Handler != nil {
			list.Handler(which, ev.Checked)
		}
		if list.Mode == content.ChoicePlain {
			h.surface.Dismiss()
		}

	case content.ButtonPressed:
		spec := h.decl.Button(ev.Button)
		if spec == nil {
			h.log.DebugContext(ctx, "host.event.undeclared_button", slog.String("button", ev.Button.String()))
			return
		}
		h.code = buttonCode(ev.Button)
		which := int(ev.Button)
		h.which = &which
		if spec.Handler != nil {
			spec.Handler(control{h: h, gen: h.gen})
		}
		if !spec.Override {
			h.surface.Dismiss()
		}

	case content.Cancelled:
		if !h.req.Cancelable {
			h.log.DebugContext(ctx, "host.event.cancel_ignored")
			return
		}
		h.code = result.Cancelled
		h.surface.Dismiss()

	case content.Dismissed:
		h.surface = nil
		h.runOnDismiss()
		h.terminate(ctx, "surface dismissed", false)
	}
}
