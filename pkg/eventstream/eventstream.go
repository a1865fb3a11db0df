//nolint:revive // exported
package eventstream

import "context"

// Event pairs a topic with a payload. The audit sink publishes one event per
// state transition; subscribers filter by topic (vault).
type Event[Topic any, Payload any] struct {
	Topic   Topic
	Payload Payload
}

// TopicFilter selects which topics a subscriber receives. A nil filter
// receives everything.
type TopicFilter[Topic any] func(Topic) bool

// SyncStreamer is a generic in-process pub/sub used for fire-and-forget
// notification fan-out. Publish never blocks; slow subscribers drop events.
type SyncStreamer[Topic any, Payload any] interface {
	// Subscribe returns a read-only channel of events matching the filter.
	// The channel is closed when ctx is cancelled or the streamer shuts down.
	Subscribe(ctx context.Context, filter TopicFilter[Topic]) (<-chan Event[Topic, Payload], error)

	// Publish sends payloads to all matching subscribers without blocking.
	Publish(topic Topic, payloads ...Payload)

	// Shutdown closes all subscriber channels.
	Shutdown()
}
