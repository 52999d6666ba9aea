package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Clock abstracts time for TTL checks so tests can advance it directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store is the persistence layer behind the cache service. Get returns
// (nil, nil) on a miss.
type Store interface {
	Get(fingerprint string, category models.CacheCategory) (*models.CacheEntry, error)
	Put(entry *models.CacheEntry) error
	Delete(fingerprint string, category models.CacheCategory) error
	DeleteExpired(now time.Time) (int64, error)
}

// TTLs carries the per-category retention windows.
type TTLs struct {
	Analysis  time.Duration
	Nutrition time.Duration
	Provider  time.Duration
}

// ttlFor returns the retention window for a category.
func (t TTLs) ttlFor(category models.CacheCategory) time.Duration {
	switch category {
	case models.CacheCategoryAnalysis:
		return t.Analysis
	case models.CacheCategoryNutrition:
		return t.Nutrition
	case models.CacheCategoryProvider:
		return t.Provider
	default:
		return t.Analysis
	}
}

// Service is the content-addressed cache. Concurrent computes for the same
// key are collapsed through a singleflight group so one miss triggers one
// upstream call.
type Service struct {
	store Store
	clock Clock
	ttls  TTLs
	group singleflight.Group
}

// NewService creates a cache service over the given store.
func NewService(store Store, clock Clock, ttls TTLs) *Service {
	return &Service{
		store: store,
		clock: clock,
		ttls:  ttls,
	}
}

// Get returns the cached payload, or (nil, nil) on a miss. Expired entries
// are evicted lazily on read.
func (s *Service) Get(fingerprint string, category models.CacheCategory) ([]byte, error) {
	entry, err := s.store.Get(fingerprint, category)
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	if entry.Expired(s.clock.Now()) {
		if err := s.store.Delete(fingerprint, category); err != nil {
			logger.Get().Warn("failed to evict expired cache entry",
				zap.String("fingerprint", fingerprint),
				zap.String("category", string(category)),
				zap.Error(err),
			)
		}
		return nil, nil
	}
	return entry.Payload, nil
}

// Put stores a payload under the category's TTL.
func (s *Service) Put(fingerprint string, category models.CacheCategory, payload []byte) error {
	now := s.clock.Now()
	entry := &models.CacheEntry{
		Fingerprint: fingerprint,
		Category:    category,
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttls.ttlFor(category)),
	}
	if err := s.store.Put(entry); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate removes one entry regardless of expiry.
func (s *Service) Invalidate(fingerprint string, category models.CacheCategory) error {
	return s.store.Delete(fingerprint, category)
}

// GetOrCompute returns the cached payload for the key, or runs compute and
// caches its result. Concurrent callers with the same key share one compute.
// The cache write happens only after compute succeeds, so a cancelled or
// failed compute never poisons the cache.
func (s *Service) GetOrCompute(ctx context.Context, fingerprint string, category models.CacheCategory, compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if payload, err := s.Get(fingerprint, category); err != nil {
		return nil, false, err
	} else if payload != nil {
		return payload, true, nil
	}

	key := string(category) + ":" + fingerprint
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have just
		// written the entry.
		if payload, err := s.Get(fingerprint, category); err == nil && payload != nil {
			return payload, nil
		}

		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Put(fingerprint, category, payload); err != nil {
			logger.Get().Warn("failed to cache computed result",
				zap.String("fingerprint", fingerprint),
				zap.String("category", string(category)),
				zap.Error(err),
			)
		}
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), shared, nil
}

// SweepExpired removes all expired entries in one pass.
func (s *Service) SweepExpired() (int64, error) {
	return s.store.DeleteExpired(s.clock.Now())
}

// StartSweeper runs periodic expiry sweeps until the context is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.SweepExpired()
				if err != nil {
					logger.Get().Error("cache sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Get().Info("cache sweep completed", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
