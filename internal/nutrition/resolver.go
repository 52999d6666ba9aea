package nutrition

import (
	"context"
	"errors"
	"strings"

	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/util"
	"go.uber.org/zap"
)

// DefaultPortionG substitutes for items whose weight no provider estimated.
const DefaultPortionG = 100.0

// Resolver turns identified food items into aggregated meal nutrition.
// Per-food lookups are cached under the nutrition category so common foods
// rarely hit the upstream API.
type Resolver struct {
	lookup LookupProvider
	cache  *cache.Service
}

// NewResolver creates a Resolver. cache may be nil to disable lookup caching.
func NewResolver(lookup LookupProvider, cacheSvc *cache.Service) *Resolver {
	return &Resolver{lookup: lookup, cache: cacheSvc}
}

// Resolve computes nutrition for every item and sums the totals. An item the
// lookup cannot match contributes zero and is flagged rather than failing the
// whole meal.
func (r *Resolver) Resolve(ctx context.Context, items []models.FoodItem) (models.MealNutrition, error) {
	var meal models.MealNutrition

	for _, item := range items {
		record := models.NutritionRecord{Item: item.Name}

		if item.EstimatedWeightG != nil {
			record.WeightG = *item.EstimatedWeightG
		} else {
			record.WeightG = DefaultPortionG
			record.Estimated = true
			meal.Estimated = true
		}

		per100, err := r.lookupCached(ctx, item.Name)
		if err != nil {
			var miss LookupMissError
			if !errors.As(err, &miss) {
				return models.MealNutrition{}, err
			}
			record.Missing = true
			meal.MissingItems = append(meal.MissingItems, item.Name)
			meal.Records = append(meal.Records, record)
			continue
		}

		scale := record.WeightG / 100
		record.CaloriesKcal = per100.CaloriesKcal * scale
		record.ProteinG = per100.ProteinG * scale
		record.CarbsG = per100.CarbsG * scale
		record.FatG = per100.FatG * scale

		meal.CaloriesKcal += record.CaloriesKcal
		meal.ProteinG += record.ProteinG
		meal.CarbsG += record.CarbsG
		meal.FatG += record.FatG
		meal.Records = append(meal.Records, record)
	}

	return meal, nil
}

// lookupCached resolves per-100g data through the cache. The cache key is the
// normalized food name, so "Grilled Chicken" and "grilled  chicken" share an
// entry. A lookup miss is cached too, to spare the upstream repeated misses.
func (r *Resolver) lookupCached(ctx context.Context, name string) (*models.PerHundredGram, error) {
	if r.cache == nil {
		return r.lookup.LookupFood(ctx, name)
	}

	key := normalizeFoodName(name)
	payload, _, err := r.cache.GetOrCompute(ctx, key, models.CacheCategoryNutrition, func(ctx context.Context) ([]byte, error) {
		per100, err := r.lookup.LookupFood(ctx, name)
		if err != nil {
			var miss LookupMissError
			if errors.As(err, &miss) {
				return []byte("null"), nil
			}
			return nil, err
		}
		return util.SerializeToJSON(per100)
	})
	if err != nil {
		logger.Get().Warn("cached nutrition lookup failed",
			zap.String("item", name),
			zap.Error(err),
		)
		return nil, err
	}

	var per100 *models.PerHundredGram
	if err := util.DeserializeFromJSON(payload, &per100); err != nil {
		return nil, err
	}
	if per100 == nil {
		return nil, LookupMissError{Name: name}
	}
	return per100, nil
}

// normalizeFoodName lowercases and collapses whitespace for cache keying.
func normalizeFoodName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
