package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenCmd_ReturnsEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx, broker)
	broker.Publish(CreatedEvent, "payload")

	msg := listener.Listen()()
	event, ok := msg.(Event[string])
	require.True(t, ok)
	require.Equal(t, "payload", event.Payload)
}

func TestListenCmd_NilOnCancel(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	listener := NewListener(ctx, broker)
	cancel()

	done := make(chan struct{})
	var msg any
	go func() {
		defer close(done)
		msg = listener.Listen()()
	}()

	select {
	case <-done:
		require.Nil(t, msg)
	case <-time.After(time.Second):
		require.Fail(t, "Listen did not resolve after cancel")
	}
}
