package platform_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ggoodman/dialog-session-go/content"
	"github.com/ggoodman/dialog-session-go/host"
	"github.com/ggoodman/dialog-session-go/host/hosttest"
	"github.com/ggoodman/dialog-session-go/platform"
	"github.com/ggoodman/dialog-session-go/registry"
	"github.com/ggoodman/dialog-session-go/result"
	"github.com/ggoodman/dialog-session-go/theme"
	"github.com/ggoodman/dialog-session-go/wire"
)

const timeout = 2 * time.Second

func newRuntime(t *testing.T, opts ...platform.Option) (*platform.Runtime, *hosttest.Surfaces) {
	t.Helper()
	surfaces := &hosttest.Surfaces{}
	rt, err := platform.New(append([]platform.Option{platform.WithSurfaceFactory(surfaces)}, opts...)...)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	return rt, surfaces
}

// launch hands alert off under id and dispatches it attached to slot.
func launch(t *testing.T, rt *platform.Runtime, id string, alert content.Alert, slot *hosttest.Slot) string {
	t.Helper()
	ctx := context.Background()
	tok, err := rt.Handoffs().Store(alert)
	if err != nil {
		t.Fatalf("handoff: %v", err)
	}
	if out, err := rt.Registry().BeginShow(ctx, id); err != nil || out != registry.ShowAccepted {
		t.Fatalf("begin show: %v %v", out, err)
	}
	unit, err := rt.Dispatch(ctx, wire.LaunchRequest{Handoff: &tok, Identifier: id, Cancelable: true},
		platform.LaunchOptions{Mode: platform.ModeAttached, Slot: slot.Deliver})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	return unit
}

func okAlert() content.Alert {
	return content.AlertFunc(func(b *content.AlertBuilder) {
		b.SetTitle("t").SetPositiveButton("OK", nil)
	})
}

func TestRuntime_LaunchAndResult(t *testing.T) {
	rt, surfaces := newRuntime(t)
	slot := hosttest.NewSlot()

	unit := launch(t, rt, "A", okAlert(), slot)
	h, ok := rt.Host(unit)
	if !ok {
		t.Fatalf("unit %s not tracked", unit)
	}
	if h.Identifier() != "A" || h.UnitID() != unit {
		t.Fatalf("unexpected host identity: %q %q", h.Identifier(), h.UnitID())
	}
	if got := surfaces.Last().Options().Theme; got != theme.DefaultID {
		t.Fatalf("theme = %q, want %q", got, theme.DefaultID)
	}

	surfaces.Last().Press(content.ButtonPositive)
	if d := result.Decode(slot.Wait(t, timeout)); !d.IsPositive("A") {
		t.Fatalf("expected positive, got %s", d.Code())
	}
	hosttest.WaitDone(t, h, timeout)

	deadline := time.Now().Add(timeout)
	for len(rt.Units()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("unit still tracked after destruction: %v", rt.Units())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRuntime_NewTaskDropsSlot(t *testing.T) {
	rt, surfaces := newRuntime(t)
	slot := hosttest.NewSlot()
	ctx := context.Background()

	tok, _ := rt.Handoffs().Store(okAlert())
	unit, err := rt.Dispatch(ctx, wire.LaunchRequest{Handoff: &tok, Cancelable: true},
		platform.LaunchOptions{Mode: platform.ModeNewTask, Slot: slot.Deliver})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	h, _ := rt.Host(unit)
	surfaces.Last().Press(content.ButtonPositive)
	hosttest.WaitDone(t, h, timeout)
	if slot.Count() != 0 {
		t.Fatalf("detached launch must not deliver results")
	}
}

func TestRuntime_LaunchPayloadRejectsTampering(t *testing.T) {
	rt, _ := newRuntime(t)
	other, err := wire.NewSealer()
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	payload, err := other.Seal(wire.LaunchRequest{Identifier: "x"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := rt.LaunchPayload(context.Background(), payload, platform.LaunchOptions{}); !errors.Is(err, wire.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestRuntime_UnknownLayout(t *testing.T) {
	rt, _ := newRuntime(t)
	_, err := rt.Dispatch(context.Background(), wire.LaunchRequest{Layout: "nope"}, platform.LaunchOptions{})
	if !errors.Is(err, platform.ErrUnknownLayout) {
		t.Fatalf("expected ErrUnknownLayout, got %v", err)
	}
}

func TestRuntime_LayoutOnly(t *testing.T) {
	layout := hosttest.NewLayout("header")
	rt, _ := newRuntime(t, platform.WithLayout("custom", layout))
	if !rt.HasLayout("custom") {
		t.Fatalf("layout not registered")
	}
	unit, err := rt.Dispatch(context.Background(), wire.LaunchRequest{Layout: "custom"}, platform.LaunchOptions{})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	h, ok := rt.Host(unit)
	if !ok || h.State() != host.StateRendering {
		t.Fatalf("layout session must be rendering")
	}
}

func TestRuntime_RecreateAndBack(t *testing.T) {
	rt, surfaces := newRuntime(t)
	slot := hosttest.NewSlot()
	ctx := context.Background()

	unit := launch(t, rt, "R", okAlert(), slot)
	if err := rt.Recreate(ctx, unit); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if surfaces.Count() != 2 {
		t.Fatalf("expected a second surface after recreate, got %d", surfaces.Count())
	}
	if err := rt.Back(unit); err != nil {
		t.Fatalf("back: %v", err)
	}
	if d := result.Decode(slot.Wait(t, timeout)); !d.IsCancelled("R") {
		t.Fatalf("expected cancelled, got %s", d.Code())
	}

	if err := rt.Recreate(ctx, "missing"); !errors.Is(err, platform.ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	if err := rt.Back("missing"); !errors.Is(err, platform.ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestRuntime_DismissAndReset(t *testing.T) {
	rt, _ := newRuntime(t)
	slot := hosttest.NewSlot()
	ctx := context.Background()

	launch(t, rt, "D", okAlert(), slot)
	out, err := rt.Dismiss(ctx, "D")
	if err != nil || out != registry.DismissSent {
		t.Fatalf("dismiss: %v %v", out, err)
	}
	if d := result.Decode(slot.Wait(t, timeout)); !d.IsCancelled("D") {
		t.Fatalf("expected cancelled, got %s", d.Code())
	}

	if _, err := rt.Registry().BeginShow(ctx, "stuck"); err != nil {
		t.Fatalf("begin show: %v", err)
	}
	if err := rt.Reset(ctx, "stuck"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if out, _ := rt.Registry().BeginShow(ctx, "stuck"); out != registry.ShowAccepted {
		t.Fatalf("reset identifier must be showable again, got %s", out)
	}
}

func TestRuntime_Shutdown(t *testing.T) {
	rt, _ := newRuntime(t)
	slots := []*hosttest.Slot{hosttest.NewSlot(), hosttest.NewSlot()}
	launch(t, rt, "S1", okAlert(), slots[0])
	launch(t, rt, "S2", okAlert(), slots[1])

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for i, s := range slots {
		if s.Count() != 1 {
			t.Fatalf("slot %d: expected one result, got %d", i, s.Count())
		}
	}
	if n := len(rt.Units()); n != 0 {
		t.Fatalf("expected no units after shutdown, got %d", n)
	}

	tok, _ := rt.Handoffs().Store(okAlert())
	if _, err := rt.Dispatch(context.Background(), wire.LaunchRequest{Handoff: &tok}, platform.LaunchOptions{}); !errors.Is(err, platform.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestRuntime_RunStopsOnCancel(t *testing.T) {
	rt, _ := newRuntime(t)
	slot := hosttest.NewSlot()
	launch(t, rt, "run", okAlert(), slot)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- rt.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(timeout):
		t.Fatalf("run did not return")
	}
	if d := result.Decode(slot.Wait(t, timeout)); !d.IsCancelled("run") {
		t.Fatalf("expected cancelled, got %s", d.Code())
	}
}

func TestRuntime_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt, surfaces := newRuntime(t, platform.WithMetrics(reg))
	slot := hosttest.NewSlot()

	h, _ := rt.Host(launch(t, rt, "M", okAlert(), slot))
	surfaces.Last().Press(content.ButtonPositive)
	hosttest.WaitDone(t, h, timeout)

	n, err := testutil.GatherAndCount(reg, "dialog_results_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected result metric to be recorded")
	}
}

func TestOrigins(t *testing.T) {
	rt, _ := newRuntime(t)
	if platform.Background(rt).Runtime() != rt {
		t.Fatalf("background origin must carry runtime")
	}
	if _, ok := platform.Background(rt).(platform.ResultReceiver); ok {
		t.Fatalf("background origin must not receive results")
	}

	var got int
	o := platform.Interactive(rt, platform.ResultFunc(func(tag int, _ *result.Envelope) { got = tag }))
	recv, ok := o.(platform.ResultReceiver)
	if !ok {
		t.Fatalf("interactive origin must receive results")
	}
	recv.OnResult(result.RequestTag, &result.Envelope{})
	if got != result.RequestTag {
		t.Fatalf("tag = %d", got)
	}
}

func TestRuntime_CreationAborted(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	unit := content.UnitFunc(func(context.Context, content.Container, content.Finisher) error { return nil })
	tok, _ := rt.Handoffs().Store(unit)
	if _, err := rt.Registry().BeginShow(ctx, "abort"); err != nil {
		t.Fatalf("begin show: %v", err)
	}
	_, err := rt.Dispatch(ctx, wire.LaunchRequest{Handoff: &tok, Identifier: "abort"}, platform.LaunchOptions{})
	if !errors.Is(err, platform.ErrCreationAborted) || !errors.Is(err, host.ErrContainerMissing) {
		t.Fatalf("expected aborted creation wrapping ErrContainerMissing, got %v", err)
	}
	if _, found, _ := rt.Registry().Lookup(ctx, "abort"); found {
		t.Fatalf("aborted host must release its identifier")
	}
	if len(rt.Units()) != 0 {
		t.Fatalf("aborted host must not be tracked")
	}
}
