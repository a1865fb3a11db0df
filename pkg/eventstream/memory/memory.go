//nolint:revive // exported
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bypptech/group-wallet-organizer/pkg/eventstream"
)

// Audit bursts (bulk expiry evaluation, collection imports) can publish many
// events quickly; a small buffer would drop them in non-blocking Publish.
const defaultSubscriberBuffer = 4096

var errStreamerClosed = errors.New("eventstream: streamer is shut down")

type subscriber[Topic any, Payload any] struct {
	ctx    context.Context
	filter eventstream.TopicFilter[Topic]
	ch     chan eventstream.Event[Topic, Payload]
	closed atomic.Bool
}

type inMemorySyncStreamer[Topic any, Payload any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[Topic, Payload]]struct{}
	closed      atomic.Bool
}

// NewInMemorySyncStreamer creates a new in-memory streamer that supports
// topic filtering.
func NewInMemorySyncStreamer[Topic any, Payload any]() eventstream.SyncStreamer[Topic, Payload] {
	return &inMemorySyncStreamer[Topic, Payload]{
		subscribers: make(map[*subscriber[Topic, Payload]]struct{}),
	}
}

func (s *inMemorySyncStreamer[Topic, Payload]) Publish(topic Topic, payloads ...Payload) {
	if s.closed.Load() {
		return
	}
	if len(payloads) == 0 {
		return
	}

	s.mu.RLock()
	subs := make([]*subscriber[Topic, Payload], 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		if sub.filter != nil && !sub.filter(topic) {
			continue
		}
		for _, payload := range payloads {
			event := eventstream.Event[Topic, Payload]{Topic: topic, Payload: payload}
			s.trySend(sub, event)
		}
	}
}

func (s *inMemorySyncStreamer[Topic, Payload]) trySend(sub *subscriber[Topic, Payload], event eventstream.Event[Topic, Payload]) {
	defer func() {
		// send on a channel being closed by an unsubscribing reader
		_ = recover()
	}()
	select {
	case sub.ch <- event:
	case <-sub.ctx.Done():
	default:
		// subscriber buffer full; event dropped
	}
}

func (s *inMemorySyncStreamer[Topic, Payload]) Subscribe(
	ctx context.Context,
	filter eventstream.TopicFilter[Topic],
) (<-chan eventstream.Event[Topic, Payload], error) {
	if s.closed.Load() {
		return nil, errStreamerClosed
	}

	if filter == nil {
		filter = func(Topic) bool { return true }
	}

	sub := &subscriber[Topic, Payload]{
		ctx:    ctx,
		filter: filter,
		ch:     make(chan eventstream.Event[Topic, Payload], defaultSubscriberBuffer),
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, errStreamerClosed
	}
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.remove(sub)
	}()

	return sub.ch, nil
}

func (s *inMemorySyncStreamer[Topic, Payload]) remove(sub *subscriber[Topic, Payload]) {
	s.mu.Lock()
	_, ok := s.subscribers[sub]
	if ok {
		delete(s.subscribers, sub)
	}
	s.mu.Unlock()

	if ok && sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

func (s *inMemorySyncStreamer[Topic, Payload]) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	subs := make([]*subscriber[Topic, Payload], 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscribers = make(map[*subscriber[Topic, Payload]]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
}
