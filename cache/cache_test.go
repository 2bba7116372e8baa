package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/mtgvault/cache"
	"github.com/padraicbc/mtgvault/db"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func stores(t *testing.T) map[string]func(c *clock) cache.Store {
	return map[string]func(c *clock) cache.Store{
		"memory": func(c *clock) cache.Store {
			return cache.NewMemory(cache.WithClock(c.now))
		},
		"db": func(c *clock) cache.Store {
			bdb, err := db.OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = bdb.Close() })
			require.NoError(t, db.CreateTables(context.Background(), bdb))
			return cache.NewDB(bdb, cache.WithClock(c.now))
		},
	}
}

func TestGetPut(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
			s := open(c)

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "k", []byte("v1"), time.Minute))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v1", string(v))

			require.NoError(t, s.Put(ctx, "k", []byte("v2"), time.Minute))
			v, _, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(v))

			c.advance(2 * time.Minute)
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestIncrement(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
			s := open(c)

			for want := int64(1); want <= 3; want++ {
				n, err := s.Increment(ctx, "requests", time.Hour)
				require.NoError(t, err)
				assert.Equal(t, want, n)
			}

			// Later increments keep the first expiry.
			c.advance(59 * time.Minute)
			n, err := s.Increment(ctx, "requests", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)

			c.advance(2 * time.Minute)
			n, err = s.Increment(ctx, "requests", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			_, ok, err := s.Get(ctx, "requests")
			require.NoError(t, err)
			assert.False(t, ok, "a counter is not a cached value")
		})
	}
}

func TestMemoryIncrementConcurrent(t *testing.T) {
	s := cache.NewMemory()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(context.Background(), "n", time.Hour)
		}()
	}
	wg.Wait()

	n, err := s.Increment(context.Background(), "n", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestDBPurge(t *testing.T) {
	ctx := context.Background()
	bdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.CreateTables(ctx, bdb))

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := cache.NewDB(bdb, cache.WithClock(c.now))
	require.NoError(t, s.Put(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, s.Put(ctx, "long", []byte("b"), time.Hour))

	c.advance(10 * time.Minute)
	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}
