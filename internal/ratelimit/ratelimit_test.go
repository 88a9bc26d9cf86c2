package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(max int, ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(Policy{RPS: 1, Burst: 2}, max, ttl)
	s.now = clock.now
	return s, clock
}

func TestMemoryStoreBurstAndRetryAfter(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := s.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := s.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	clock.advance(time.Second)
	d, _ = s.Allow(ctx, "ip")
	assert.True(t, d.Allowed, "через секунду корзина пополнилась на один токен")
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s, _ := newTestStore(10, time.Minute)
	ctx := context.Background()
	s.Allow(ctx, "a")
	s.Allow(ctx, "a")
	d, _ := s.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestMemoryStoreIsBounded(t *testing.T) {
	s, clock := newTestStore(3, time.Hour)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		s.Allow(ctx, fmt.Sprintf("k%d", i))
		clock.advance(time.Millisecond)
	}
	assert.Equal(t, 3, s.Len())
}

func TestMemoryStoreEvictsLeastRecentlySeen(t *testing.T) {
	s, clock := newTestStore(2, time.Hour)
	ctx := context.Background()

	s.Allow(ctx, "old")
	clock.advance(time.Second)
	s.Allow(ctx, "hot")
	s.Allow(ctx, "hot")
	clock.advance(time.Second)
	s.Allow(ctx, "old") // "old" снова свежий, "hot" теперь в хвосте
	clock.advance(time.Second)
	s.Allow(ctx, "new")

	d, _ := s.Allow(ctx, "hot")
	assert.True(t, d.Allowed, "вытеснённый ключ начинает с полной корзины")
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	ctx := context.Background()
	s.Allow(ctx, "ip")
	s.Allow(ctx, "ip")

	clock.advance(2 * time.Minute)
	d, _ := s.Allow(ctx, "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStorePurge(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	ctx := context.Background()
	s.Allow(ctx, "a")
	s.Allow(ctx, "b")
	clock.advance(30 * time.Second)
	s.Allow(ctx, "c")
	clock.advance(45 * time.Second)

	assert.Equal(t, 2, s.Purge())
	assert.Equal(t, 1, s.Len())
}

func TestSweepStopsOnCancel(t *testing.T) {
	s := NewMemoryStore(Policy{RPS: 1, Burst: 1}, 10, time.Millisecond)
	s.Allow(context.Background(), "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Sweep(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sweep не завершился после отмены контекста")
	}
}

// TestRedisStoreIntegration требует запущенный Redis и пропускается без него
func TestRedisStoreIntegration(t *testing.T) {
	store, err := NewRedisStore("redis://localhost:6379/0", Policy{RPS: 1, Burst: 1})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Skip("redis недоступен, интеграционный тест пропущен")
	}
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())

	d, err := store.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = store.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}
