package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLimiter(client, 3, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "resend_code", "USER0001"))
	}
	assert.ErrorIs(t, l.Allow(ctx, "resend_code", "USER0001"), ErrTooManyRequests)

	// other keys and scopes have their own budget
	assert.NoError(t, l.Allow(ctx, "resend_code", "USER0002"))
	assert.NoError(t, l.Allow(ctx, "forgot_password", "USER0001"))

	assert.Equal(t, time.Minute, mr.TTL("medqueue:ratelimit:resend_code:user0001"))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Allow(ctx, "resend_code", "USER0001"))
}

func TestRedisLimiter_NormalizesKeys(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedisLimiter(client, 1, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "forgot_password", "Jane@Example.com"))
	assert.ErrorIs(t, l.Allow(ctx, "forgot_password", " jane@example.com "), ErrTooManyRequests)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLimiter(client, 1, time.Minute, zap.NewNop())
	mr.Close()

	assert.NoError(t, l.Allow(context.Background(), "resend_code", "USER0001"))
	assert.NoError(t, l.Allow(context.Background(), "resend_code", "USER0001"))
}

func TestRedisLimiter_RestoresMissingWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLimiter(client, 3, time.Minute, zap.NewNop())
	ctx := context.Background()

	// a counter left without a TTL
	require.NoError(t, mr.Set("medqueue:ratelimit:resend_code:user0001", "9"))

	assert.ErrorIs(t, l.Allow(ctx, "resend_code", "USER0001"), ErrTooManyRequests)
	assert.Equal(t, time.Minute, mr.TTL("medqueue:ratelimit:resend_code:user0001"))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Allow(ctx, "resend_code", "USER0001"))
}
