package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: "mark", Body: []byte("2026-08-28")}))

	select {
	case msg := <-messages:
		assert.Equal(t, "mark", msg.Type)
		assert.Equal(t, "2026-08-28", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	err := q.Publish(ctx, Message{Type: "mark"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "mark", Body: []byte("2026-08-28")}
	got := deserialize(serialize(msg))
	assert.Equal(t, msg, got)

	// body containing the separator survives
	msg = Message{Type: "mark", Body: []byte("a|b")}
	got = deserialize(serialize(msg))
	assert.Equal(t, msg, got)

	// untyped payloads fall back to body-only
	got = deserialize("no-separator")
	assert.Empty(t, got.Type)
	assert.Equal(t, "no-separator", string(got.Body))
}
