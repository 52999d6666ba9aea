package nutrition

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/models"
)

// stubLookup serves canned per-100g data and counts lookups.
type stubLookup struct {
	mu    sync.Mutex
	data  map[string]*models.PerHundredGram
	calls int
}

func (s *stubLookup) LookupFood(_ context.Context, name string) (*models.PerHundredGram, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if per100, ok := s.data[normalizeFoodName(name)]; ok {
		return per100, nil
	}
	return nil, LookupMissError{Name: name}
}

func (s *stubLookup) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLookup() *stubLookup {
	return &stubLookup{
		data: map[string]*models.PerHundredGram{
			"cooked rice":    {CaloriesKcal: 130, ProteinG: 2.7, CarbsG: 28, FatG: 0.3},
			"chicken breast": {CaloriesKcal: 165, ProteinG: 31, CarbsG: 0, FatG: 3.6},
		},
	}
}

func ptr(v float64) *float64 { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestResolve_ScalesLinearlyAndSums(t *testing.T) {
	resolver := NewResolver(testLookup(), nil)

	meal, err := resolver.Resolve(context.Background(), []models.FoodItem{
		{Name: "cooked rice", EstimatedWeightG: ptr(200)},
		{Name: "chicken breast", EstimatedWeightG: ptr(150)},
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// rice 200g: 260 kcal; chicken 150g: 247.5 kcal
	if !approxEqual(meal.CaloriesKcal, 260+247.5) {
		t.Errorf("CaloriesKcal = %v, want 507.5", meal.CaloriesKcal)
	}
	if !approxEqual(meal.ProteinG, 2.7*2+31*1.5) {
		t.Errorf("ProteinG = %v, want %v", meal.ProteinG, 2.7*2+31*1.5)
	}
	if meal.Estimated {
		t.Error("Estimated = true, want false when every weight was provided")
	}
	if len(meal.Records) != 2 {
		t.Errorf("Records = %d, want 2", len(meal.Records))
	}
}

func TestResolve_MissingWeightUsesDefaultPortion(t *testing.T) {
	resolver := NewResolver(testLookup(), nil)

	meal, err := resolver.Resolve(context.Background(), []models.FoodItem{
		{Name: "chicken breast"},
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !meal.Estimated {
		t.Error("Estimated = false, want true when the portion was defaulted")
	}
	if len(meal.Records) != 1 || meal.Records[0].WeightG != DefaultPortionG {
		t.Errorf("Records = %+v, want one record at %vg", meal.Records, DefaultPortionG)
	}
	// 100g at per-100g values: unchanged
	if !approxEqual(meal.CaloriesKcal, 165) {
		t.Errorf("CaloriesKcal = %v, want 165", meal.CaloriesKcal)
	}
}

func TestResolve_UnknownFoodContributesZeroAndIsFlagged(t *testing.T) {
	resolver := NewResolver(testLookup(), nil)

	meal, err := resolver.Resolve(context.Background(), []models.FoodItem{
		{Name: "cooked rice", EstimatedWeightG: ptr(100)},
		{Name: "mystery stew", EstimatedWeightG: ptr(300)},
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !approxEqual(meal.CaloriesKcal, 130) {
		t.Errorf("CaloriesKcal = %v, want 130 (missing item contributes zero)", meal.CaloriesKcal)
	}
	if len(meal.MissingItems) != 1 || meal.MissingItems[0] != "mystery stew" {
		t.Errorf("MissingItems = %v, want ['mystery stew']", meal.MissingItems)
	}
	if len(meal.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(meal.Records))
	}
	if !meal.Records[1].Missing {
		t.Error("missing item's record should be flagged")
	}
}

func TestResolve_LookupsAreCached(t *testing.T) {
	lookup := testLookup()
	cacheSvc := cache.NewService(cache.NewMemoryStore(), cache.SystemClock{}, cache.TTLs{
		Analysis:  time.Hour,
		Nutrition: 30 * time.Minute,
		Provider:  time.Hour,
	})
	resolver := NewResolver(lookup, cacheSvc)

	items := []models.FoodItem{{Name: "Cooked Rice", EstimatedWeightG: ptr(100)}}
	if _, err := resolver.Resolve(context.Background(), items); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// Different casing and spacing hit the same cache key.
	items = []models.FoodItem{{Name: "cooked  rice", EstimatedWeightG: ptr(200)}}
	if _, err := resolver.Resolve(context.Background(), items); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if lookup.Calls() != 1 {
		t.Errorf("lookup calls = %d, want 1", lookup.Calls())
	}
}

func TestResolve_MissesAreCachedToo(t *testing.T) {
	lookup := testLookup()
	cacheSvc := cache.NewService(cache.NewMemoryStore(), cache.SystemClock{}, cache.TTLs{
		Analysis:  time.Hour,
		Nutrition: 30 * time.Minute,
		Provider:  time.Hour,
	})
	resolver := NewResolver(lookup, cacheSvc)

	items := []models.FoodItem{{Name: "mystery stew", EstimatedWeightG: ptr(100)}}
	for i := 0; i < 2; i++ {
		meal, err := resolver.Resolve(context.Background(), items)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if len(meal.MissingItems) != 1 {
			t.Errorf("MissingItems = %v, want one entry", meal.MissingItems)
		}
	}

	if lookup.Calls() != 1 {
		t.Errorf("lookup calls = %d, want 1 (the miss should be cached)", lookup.Calls())
	}
}
