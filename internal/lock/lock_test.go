package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/logging"
)

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	release, err := l.Lock(ctx, AccountKey("acc-1"))
	require.NoError(t, err)

	// a different key is independent
	other, err := l.Lock(ctx, AccountKey("acc-2"))
	require.NoError(t, err)
	other()

	// the same key is held
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, AccountKey("acc-1"))
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release() // second call is a no-op

	again, err := l.Lock(ctx, AccountKey("acc-1"))
	require.NoError(t, err)
	again()
}

func TestLocal(t *testing.T) {
	exerciseLocker(t, NewLocal())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client, time.Minute, logging.Discard())
	l.poll = 5 * time.Millisecond
	exerciseLocker(t, l)
	assert.False(t, mr.Exists("lock:account:acc-1"))
}

func TestRedisReleaseKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client, time.Minute, logging.Discard())
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// lease expired and someone else took it
	mr.Set("lock:k", "someone-else")
	release()

	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedisRenewsHeldLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ttl := 90 * time.Millisecond
	l := NewRedis(client, ttl, logging.Discard())
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	// miniredis only ages keys on FastForward; a renewal resets the TTL
	mr.FastForward(80 * time.Millisecond)
	assert.Eventually(t, func() bool { return mr.TTL("lock:k") == ttl }, time.Second, 5*time.Millisecond)
	assert.True(t, mr.Exists("lock:k"))
}

func TestRedisExtendReportsLostLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client, time.Minute, logging.Discard())
	ctx := context.Background()

	mr.Set("lock:k", "mine")
	owned, err := l.Extend(ctx, "lock:k", "mine")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, time.Minute, mr.TTL("lock:k"))

	owned, err = l.Extend(ctx, "lock:k", "stale-token")
	require.NoError(t, err)
	assert.False(t, owned)
}
