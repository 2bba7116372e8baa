package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CacheEntry backs the database cache store. Counter rows keep their value in Counter.
type CacheEntry struct {
	bun.BaseModel `bun:"table:cache_entries,alias:ce"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     []byte    `bun:"value" json:"-"`
	Counter   int64     `bun:"counter,notnull,default:0" json:"counter"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expiresAt"`
}
