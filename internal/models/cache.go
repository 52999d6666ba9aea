package models

import "time"

// CacheCategory selects the TTL class for a cache entry.
type CacheCategory string

const (
	CacheCategoryAnalysis  CacheCategory = "analysis"
	CacheCategoryNutrition CacheCategory = "nutrition_lookup"
	CacheCategoryProvider  CacheCategory = "provider_response"
)

// CacheEntry is a content-addressed cache record. Entries are immutable:
// a fresh value for the same key replaces the row wholesale.
// Invariant: ExpiresAt is strictly after CreatedAt.
type CacheEntry struct {
	ID          uint          `gorm:"primarykey"`
	Fingerprint string        `gorm:"size:128;index:idx_cache_key,unique,composite:cache_key"`
	Category    CacheCategory `gorm:"size:32;index:idx_cache_key,unique,composite:cache_key"`
	Payload     []byte        `gorm:"type:bytea"`
	CreatedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
