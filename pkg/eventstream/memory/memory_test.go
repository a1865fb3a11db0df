package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bypptech/group-wallet-organizer/pkg/eventstream"
	"github.com/bypptech/group-wallet-organizer/pkg/eventstream/memory"
)

func recv(t *testing.T, ch <-chan eventstream.Event[string, int]) eventstream.Event[string, int] {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed before event arrived")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return eventstream.Event[string, int]{}
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	s := memory.NewInMemorySyncStreamer[string, int]()
	defer s.Shutdown()

	ch, err := s.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	s.Publish("vault-a", 1, 2)
	require.Equal(t, 1, recv(t, ch).Payload)
	require.Equal(t, 2, recv(t, ch).Payload)
}

func TestTopicFilter(t *testing.T) {
	s := memory.NewInMemorySyncStreamer[string, int]()
	defer s.Shutdown()

	ch, err := s.Subscribe(context.Background(), func(topic string) bool {
		return topic == "vault-a"
	})
	require.NoError(t, err)

	s.Publish("vault-b", 1)
	s.Publish("vault-a", 2)

	got := recv(t, ch)
	require.Equal(t, "vault-a", got.Topic)
	require.Equal(t, 2, got.Payload)
}

func TestSubscriberCancelClosesChannel(t *testing.T) {
	s := memory.NewInMemorySyncStreamer[string, int]()
	defer s.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Subscribe(ctx, nil)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestShutdown(t *testing.T) {
	s := memory.NewInMemorySyncStreamer[string, int]()

	ch, err := s.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	s.Shutdown()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after shutdown")
	}

	// publishing after shutdown is a silent no-op
	s.Publish("vault-a", 1)

	_, err = s.Subscribe(context.Background(), nil)
	require.Error(t, err)
}
