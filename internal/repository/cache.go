package repository

import (
	"errors"
	"time"

	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheRepository backs the cache service with Postgres, so cached analyses
// survive restarts and are shared across instances.
type CacheRepository struct {
	DB *gorm.DB
}

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{DB: db}
}

// Get retrieves a cache entry. Misses return (nil, nil).
func (r *CacheRepository) Get(fingerprint string, category models.CacheCategory) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := r.DB.Where("fingerprint = ? AND category = ?", fingerprint, category).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Get().Error("failed to get cache entry", zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, err
	}
	return &entry, nil
}

// Put stores a cache entry, replacing any existing row for the same key.
func (r *CacheRepository) Put(entry *models.CacheEntry) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fingerprint = ? AND category = ?", entry.Fingerprint, entry.Category).
			Delete(&models.CacheEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		logger.Get().Error("failed to put cache entry", zap.String("fingerprint", entry.Fingerprint), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes one cache entry.
func (r *CacheRepository) Delete(fingerprint string, category models.CacheCategory) error {
	if err := r.DB.Where("fingerprint = ? AND category = ?", fingerprint, category).
		Delete(&models.CacheEntry{}).Error; err != nil {
		logger.Get().Error("failed to delete cache entry", zap.String("fingerprint", fingerprint), zap.Error(err))
		return err
	}
	return nil
}

// DeleteExpired removes entries past their TTL.
func (r *CacheRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.DB.Where("expires_at <= ?", now).Delete(&models.CacheEntry{})
	if result.Error != nil {
		logger.Get().Error("failed to delete expired cache entries", zap.Error(result.Error))
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

var _ cache.Store = (*CacheRepository)(nil)
