// Package bus is the minimal publish/subscribe channel between job
// acceptance and the generation worker. Delivery is at-most-once with no
// persistence or acknowledgment: a message published while nothing is
// subscribed is lost.
package bus

import "context"

// Handler is invoked once per delivered message.
type Handler func(ctx context.Context, payload []byte)

type Bus interface {
	// Publish serializes payload and delivers it to current subscribers.
	Publish(ctx context.Context, channel string, payload any) error
	// Subscribe registers a handler for channel. It returns once the
	// subscription is established; delivery happens on a background
	// goroutine until ctx is canceled.
	Subscribe(ctx context.Context, channel string, h Handler) error
}
