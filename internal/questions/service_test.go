package questions

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppendsInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewService(nil, nil, client, nil)
	sessionID := uuid.New()
	ctx := context.Background()

	svc.appendTranscript(ctx, sessionID, "what is webrtc?", "")
	svc.appendTranscript(ctx, sessionID, "what is webrtc?", "a media transport stack")

	key := fmt.Sprintf("session:%s:questions", sessionID)
	entries, err := client.LRange(ctx, key, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Q:what is webrtc?|A:", entries[0])
	assert.Equal(t, "Q:what is webrtc?|A:a media transport stack", entries[1])
}

func TestTranscriptNoopWithoutRedis(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	// must not panic when no transcript store is configured
	svc.appendTranscript(context.Background(), uuid.New(), "q", "a")
}
