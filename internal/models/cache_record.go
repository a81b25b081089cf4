package models

import "time"

// CacheRecord represents a cached value stored in the durable fallback tier.
// Each cache family owns one record (or one per entity for prefixed families),
// shaped as {data, timestamp} on the wire.
type CacheRecord struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Data      []byte    `gorm:"type:blob"`
	StoredAt  time.Time `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
