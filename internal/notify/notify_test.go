package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	require.NoError(t, LogNotifier{}.Notify(context.Background(), "judge@example.com", "hello"))
}

func TestRedisNotifier(t *testing.T) {
	addr := os.Getenv("JUDGE_ENGINE_TEST_REDIS")
	if addr == "" {
		t.Skip("JUDGE_ENGINE_TEST_REDIS not set, skipping")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := "judge-notifications-test-" + uuid.NewString()
	n, err := NewRedisNotifier(ctx, RedisConfig{Address: addr, Stream: stream})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = n.client.Del(context.Background(), stream).Err()
		_ = n.Close()
	})

	require.NoError(t, n.Ping(ctx))
	require.NoError(t, n.Notify(ctx, "judge@example.com", "You have been invited"))

	entries, err := n.client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "judge@example.com", entries[0].Values["recipient"])
	require.Equal(t, "You have been invited", entries[0].Values["message"])
}

func TestNewRedisNotifierFromClientDefaults(t *testing.T) {
	n := NewRedisNotifierFromClient(nil, "", 0)
	require.Equal(t, "judge-notifications", n.Stream())
	require.Equal(t, int64(10000), n.maxLen)
}
