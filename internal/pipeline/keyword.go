package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/mealscan/mealscan-api/internal/models"
)

// lexiconEntry pairs a food keyword with its typical cooked portion weight.
type lexiconEntry struct {
	name     string
	portionG float64
}

// foodLexicon maps lowercase keywords to common foods. Weights are typical
// single portions, not nutritional references.
var foodLexicon = map[string]lexiconEntry{
	"chicken":   {"chicken breast", 150},
	"beef":      {"beef", 150},
	"steak":     {"beef steak", 200},
	"pork":      {"pork", 150},
	"bacon":     {"bacon", 30},
	"salmon":    {"salmon fillet", 140},
	"tuna":      {"tuna", 120},
	"fish":      {"white fish", 140},
	"shrimp":    {"shrimp", 100},
	"egg":       {"egg", 50},
	"eggs":      {"egg", 100},
	"tofu":      {"tofu", 120},
	"rice":      {"cooked rice", 180},
	"pasta":     {"cooked pasta", 180},
	"spaghetti": {"spaghetti", 180},
	"noodles":   {"noodles", 180},
	"bread":     {"bread", 60},
	"toast":     {"toast", 30},
	"bagel":     {"bagel", 95},
	"oatmeal":   {"oatmeal", 240},
	"cereal":    {"breakfast cereal", 40},
	"potato":    {"potato", 170},
	"fries":     {"french fries", 120},
	"quinoa":    {"cooked quinoa", 160},
	"salad":     {"mixed salad", 150},
	"broccoli":  {"broccoli", 90},
	"spinach":   {"spinach", 60},
	"carrot":    {"carrot", 60},
	"avocado":   {"avocado", 100},
	"beans":     {"beans", 130},
	"lentils":   {"cooked lentils", 150},
	"cheese":    {"cheese", 30},
	"yogurt":    {"yogurt", 170},
	"milk":      {"milk", 240},
	"apple":     {"apple", 180},
	"banana":    {"banana", 120},
	"orange":    {"orange", 130},
	"berries":   {"mixed berries", 100},
	"pizza":     {"pizza slice", 110},
	"burger":    {"hamburger", 220},
	"sandwich":  {"sandwich", 200},
	"burrito":   {"burrito", 300},
	"taco":      {"taco", 100},
	"sushi":     {"sushi roll", 180},
	"soup":      {"soup", 300},
	"curry":     {"curry", 280},
	"smoothie":  {"smoothie", 300},
	"pancakes":  {"pancakes", 150},
}

// KeywordMatcher is the terminal adapter in every cascade. It scans whatever
// text is available for known food words and always returns a result, so no
// submission leaves the pipeline empty-handed.
type KeywordMatcher struct{}

// NewKeywordMatcher creates the keyword fallback adapter.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{}
}

func (k *KeywordMatcher) ID() models.ProviderID { return models.ProviderKeywordMatch }

func (k *KeywordMatcher) Supports(models.Modality) bool { return true }

func (k *KeywordMatcher) Timeout() time.Duration { return time.Second }

func (k *KeywordMatcher) Analyze(_ context.Context, req *models.AnalysisRequest) models.ProviderResult {
	started := time.Now()

	var items []models.FoodItem
	seen := make(map[string]bool)
	for _, token := range tokenize(req.Text) {
		entry, ok := foodLexicon[token]
		if !ok || seen[entry.name] {
			continue
		}
		seen[entry.name] = true
		w := entry.portionG
		items = append(items, models.FoodItem{
			Name:             entry.name,
			EstimatedWeightG: &w,
		})
	}

	description := "Meal matched from description keywords."
	if len(items) == 0 {
		// Nothing recognizable: fall back to a generic single-item meal
		// so nutrition resolution still produces a rough figure.
		description = "Unrecognized meal, logged as a generic mixed meal."
		items = []models.FoodItem{{Name: "mixed meal"}}
	}

	return models.ProviderResult{
		Source:         models.ProviderKeywordMatch,
		RawDescription: description,
		Items:          items,
		LatencyMS:      time.Since(started).Milliseconds(),
		Succeeded:      true,
	}
}

// tokenize lowercases and splits text on non-letter boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
}

var _ Provider = (*KeywordMatcher)(nil)
