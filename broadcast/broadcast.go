// Package broadcast carries process-local, fire-and-forget messages to every
// currently subscribed dialog host. Delivery is at-most-once: a message
// published while nobody is subscribed is dropped.
package broadcast

import (
	"context"
	"errors"
)

// ActionDismiss asks the host showing Identifier to end its session.
const ActionDismiss = "dismiss"

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("broadcast: bus closed")

// Message is one broadcast.
type Message struct {
	Action     string `json:"action"`
	Identifier string `json:"identifier"`
}

// Handler receives messages for a subscription. Handlers must not block; a
// host typically enqueues the message into its own mailbox.
type Handler func(ctx context.Context, msg Message)

// Bus fans messages out to subscribers.
type Bus interface {
	// Publish delivers msg to every subscriber of msg.Action and reports how
	// many received it.
	Publish(ctx context.Context, msg Message) (delivered int, err error)

	// Subscribe registers handler for action until the returned subscription
	// is closed or ctx ends.
	Subscribe(ctx context.Context, action string, handler Handler) (Subscription, error)
}

// Subscription is an active registration on a Bus.
type Subscription interface {
	// Close unregisters the subscription. It is idempotent.
	Close() error
}
