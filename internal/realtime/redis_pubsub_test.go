package realtime

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	event   string
	payload []byte
}

func newTestPubSub(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPubSub(client, zap.NewNop())
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	ps := newTestPubSub(t)
	sessionID := uuid.New()

	got := make(chan received, 4)
	cancel, err := ps.SubscribeSession(sessionID, func(event string, payload []byte) {
		got <- received{event: event, payload: payload}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishSessionEvent(sessionID, "queue_updated", []byte(`{"queue_position":2}`)))

	select {
	case msg := <-got:
		assert.Equal(t, "queue_updated", msg.event)
		assert.JSONEq(t, `{"queue_position":2}`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSubscriptionsAreScopedToSession(t *testing.T) {
	ps := newTestPubSub(t)
	sessionA, sessionB := uuid.New(), uuid.New()

	got := make(chan received, 4)
	cancel, err := ps.SubscribeSession(sessionA, func(event string, payload []byte) {
		got <- received{event: event, payload: payload}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishSessionEvent(sessionB, "new_quiz", []byte(`{}`)))
	require.NoError(t, ps.PublishSessionEvent(sessionA, "new_question", []byte(`{}`)))

	select {
	case msg := <-got:
		assert.Equal(t, "new_question", msg.event, "other sessions' events must not leak in")
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	assert.Empty(t, got)
}

func TestCancelStopsDelivery(t *testing.T) {
	ps := newTestPubSub(t)
	sessionID := uuid.New()

	got := make(chan received, 4)
	cancel, err := ps.SubscribeSession(sessionID, func(event string, payload []byte) {
		got <- received{event: event}
	})
	require.NoError(t, err)

	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ps.PublishSessionEvent(sessionID, "queue_updated", []byte(`{}`)))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, got)
}
