package lock

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexcity/internal/logger"
)

type locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

func exerciseLocker(t *testing.T, l locker) {
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "user-2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewMemoryLocker())
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseLocker(t, NewRedisLocker(client, logger.Nop()))
}

func TestRedisLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, logger.Nop())
	_, err := l.Acquire(context.Background(), "user-1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(context.Background(), "user-1", time.Second)
	require.NoError(t, err)
	release()
}

func TestRedisLockerLogsFailedRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	var buf bytes.Buffer
	l := NewRedisLocker(client, logger.NewWithWriter(&buf))
	release, err := l.Acquire(context.Background(), "user-1", time.Minute)
	require.NoError(t, err)

	mr.Close()
	release()

	lines := strings.TrimSpace(buf.String())
	require.NotEmpty(t, lines)
	assert.Contains(t, lines, `"level":"error"`)
	assert.Contains(t, lines, "Failed to release lock user-1")
	assert.Contains(t, lines, `"component":"lock"`)
}
