package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rafflewave/lottosync/internal/models"
)

// DatabaseStore implements the durable cache tier on the embedded database.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// Set upserts the value for a given key with the supplied expiry window.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, storedAt time.Time, ttl time.Duration) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	expiry := time.Time{}
	if ttl > 0 {
		expiry = storedAt.Add(ttl)
	}

	record := models.CacheRecord{
		Key:       key,
		Data:      value,
		StoredAt:  storedAt,
		ExpiresAt: expiry,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "stored_at", "expires_at", "updated_at"}),
		}).Create(&record).Error
}

// Get retrieves a value by key, respecting expiry. Expired rows are removed
// lazily on read.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	if s == nil {
		return nil, time.Time{}, false, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var record models.CacheRecord
	err := s.db.WithContext(ctx).Take(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, time.Time{}, false, nil
	}

	return record.Data, record.StoredAt, true, nil
}

// Delete removes keys from the store, ignoring missing keys.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if len(keys) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.CacheRecord{}).Error
}

// DeleteByPrefix removes every key under a namespaced prefix.
func (s *DatabaseStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if prefix == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).
		Where("key LIKE ?", prefix+"%").
		Delete(&models.CacheRecord{}).Error
}

// PruneExpired removes rows whose expiry has passed and reports how many were
// deleted. Used by the maintenance cleaner.
func (s *DatabaseStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if now.IsZero() {
		now = time.Now()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, now).
		Delete(&models.CacheRecord{})
	return result.RowsAffected, result.Error
}
