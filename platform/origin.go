package platform

import "github.com/ggoodman/dialog-session-go/result"

// Origin is the context a session is shown from.
type Origin interface {
	Runtime() *Runtime
}

// ResultReceiver is an Origin that wants the session result. A session shown
// from a receiver is attached to it and delivers its envelope with
// result.RequestTag.
type ResultReceiver interface {
	OnResult(tag int, env *result.Envelope)
}

// ResultFunc adapts a function to ResultReceiver.
type ResultFunc func(tag int, env *result.Envelope)

func (f ResultFunc) OnResult(tag int, env *result.Envelope) { f(tag, env) }

type background struct{ rt *Runtime }

func (b background) Runtime() *Runtime { return b.rt }

// Background returns an origin with no interest in results. Sessions shown
// from it run detached.
func Background(rt *Runtime) Origin { return background{rt: rt} }

type interactive struct {
	rt   *Runtime
	recv ResultReceiver
}

func (i interactive) Runtime() *Runtime { return i.rt }

func (i interactive) OnResult(tag int, env *result.Envelope) { i.recv.OnResult(tag, env) }

// Interactive returns an origin whose sessions report to recv.
func Interactive(rt *Runtime, recv ResultReceiver) Origin {
	return interactive{rt: rt, recv: recv}
}
