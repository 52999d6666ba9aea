package pipeline

import (
	"strings"

	"github.com/mealscan/mealscan-api/internal/models"
)

// ScoringWeights tunes the confidence evaluator. BaseTrust is the prior placed
// on each provider; the remaining weights reward detail in the result itself.
type ScoringWeights struct {
	BaseTrust    map[models.ProviderID]float64
	DetailWeight float64
	WeightBonus  float64
	MethodBonus  float64
	KeywordCap   float64
}

// DefaultScoringWeights returns the production weights. keywordCap bounds the
// score any keyword-matched result can earn, since it never saw the meal.
func DefaultScoringWeights(keywordCap float64) ScoringWeights {
	return ScoringWeights{
		BaseTrust: map[models.ProviderID]float64{
			models.ProviderClaudeVision: 0.92,
			models.ProviderOpenAIVision: 0.78,
			models.ProviderClaudeText:   0.74,
			models.ProviderWhisperText:  0.70,
			models.ProviderKeywordMatch: 0.50,
		},
		DetailWeight: 0.3,
		WeightBonus:  0.10,
		MethodBonus:  0.05,
		KeywordCap:   keywordCap,
	}
}

// Evaluator assigns a confidence score to provider results. Scoring is pure
// arithmetic over the result, so the same result always earns the same score.
type Evaluator struct {
	weights ScoringWeights
}

// NewEvaluator creates an Evaluator with the given weights.
func NewEvaluator(weights ScoringWeights) *Evaluator {
	return &Evaluator{weights: weights}
}

// Score computes the confidence for a single provider result. Failed results
// score zero.
func (e *Evaluator) Score(r models.ProviderResult) float64 {
	if !r.Succeeded {
		return 0
	}

	base, ok := e.weights.BaseTrust[r.Source]
	if !ok {
		base = 0.5
	}

	// Richer descriptions earn more of the provider's base trust. Twenty
	// words is treated as fully detailed.
	words := float64(len(strings.Fields(r.RawDescription)))
	detail := words / 20
	if detail > 1 {
		detail = 1
	}
	score := base * ((1 - e.weights.DetailWeight) + e.weights.DetailWeight*detail)

	if hasWeightEstimates(r.Items) {
		score += e.weights.WeightBonus
	}
	if hasCookingMethod(r.Items) {
		score += e.weights.MethodBonus
	}

	if r.Source == models.ProviderKeywordMatch && score > e.weights.KeywordCap {
		score = e.weights.KeywordCap
	}

	return clamp01(score)
}

// hasWeightEstimates reports whether at least one item carries a weight
// estimate.
func hasWeightEstimates(items []models.FoodItem) bool {
	for _, it := range items {
		if it.EstimatedWeightG != nil {
			return true
		}
	}
	return false
}

// hasCookingMethod reports whether any item names a cooking method.
func hasCookingMethod(items []models.FoodItem) bool {
	for _, it := range items {
		if it.CookingMethod != "" {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
