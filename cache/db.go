package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/mtgvault/models"
)

// DB is a Store on the cache_entries table, shared by every process using
// the same database.
type DB struct {
	db  bun.IDB
	now func() time.Time
}

// NewDB returns a store backed by db.
func NewDB(db bun.IDB, opts ...Option) *DB {
	o := buildOptions(opts)
	return &DB{db: db, now: o.now}
}

// clock truncates to whole seconds so stored and compared timestamps share one
// text layout on SQLite.
func (s *DB) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func (s *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e := new(models.CacheEntry)
	err := s.db.NewSelect().Model(e).
		Where(`ce."key" = ?`, key).
		Where("ce.expires_at > ?", s.clock()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if e.Value == nil {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (s *DB) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if val == nil {
		val = []byte{}
	}
	e := &models.CacheEntry{Key: key, Value: val, ExpiresAt: s.clock().Add(ttl)}
	_, err := s.db.NewInsert().Model(e).
		On(`CONFLICT ("key") DO UPDATE`).
		Set("value = EXCLUDED.value").
		Set("counter = 0").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Increment is a single upsert statement, so concurrent callers never lose a count.
func (s *DB) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.clock()
	var n int64
	err := s.db.NewRaw(`INSERT INTO cache_entries ("key", counter, expires_at) VALUES (?, 1, ?)
ON CONFLICT ("key") DO UPDATE SET
	counter = CASE WHEN cache_entries.expires_at > ? THEN cache_entries.counter + 1 ELSE 1 END,
	expires_at = CASE WHEN cache_entries.expires_at > ? THEN cache_entries.expires_at ELSE EXCLUDED.expires_at END
RETURNING counter`, key, now.Add(ttl), now, now).Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("cache increment %s: %w", key, err)
	}
	return n, nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *DB) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().Model((*models.CacheEntry)(nil)).
		Where("expires_at <= ?", s.clock()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}
