package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxAttempts int, window time.Duration) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLoginLimiter(client, maxAttempts, window), mr
}

func TestLimiterBlocksAfterMaxFailures(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	require.False(t, limiter.TooManyFailures(ctx, "a@b.com"))

	for i := 0; i < 3; i++ {
		limiter.RecordFailure(ctx, "a@b.com")
	}
	require.True(t, limiter.TooManyFailures(ctx, "a@b.com"))
	require.False(t, limiter.TooManyFailures(ctx, "other@b.com"))
}

func TestLimiterResetClearsFailures(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "a@b.com")
	limiter.RecordFailure(ctx, "a@b.com")
	require.True(t, limiter.TooManyFailures(ctx, "a@b.com"))

	limiter.Reset(ctx, "a@b.com")
	require.False(t, limiter.TooManyFailures(ctx, "a@b.com"))
}

func TestLimiterWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "a@b.com")
	require.True(t, limiter.TooManyFailures(ctx, "a@b.com"))

	mr.FastForward(2 * time.Minute)
	require.False(t, limiter.TooManyFailures(ctx, "a@b.com"))
}

func TestLimiterIsCaseInsensitive(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "A@B.com")
	require.True(t, limiter.TooManyFailures(ctx, "a@b.com"))
}

func TestLimiterFailsOpenWithoutRedis(t *testing.T) {
	limiter := NewLoginLimiter(nil, 1, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "a@b.com")
	require.False(t, limiter.TooManyFailures(ctx, "a@b.com"))
}
