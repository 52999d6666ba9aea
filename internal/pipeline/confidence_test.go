package pipeline

import (
	"testing"

	"github.com/mealscan/mealscan-api/internal/models"
)

func detailedResult(source models.ProviderID) models.ProviderResult {
	chicken := 150.0
	rice := 200.0
	return models.ProviderResult{
		Source:         source,
		RawDescription: "A dinner plate with grilled chicken breast, steamed white rice, and a side of broccoli, all portions clearly visible and distinct.",
		Items: []models.FoodItem{
			{Name: "grilled chicken breast", EstimatedWeightG: &chicken, CookingMethod: "grilled"},
			{Name: "steamed white rice", EstimatedWeightG: &rice},
		},
		Succeeded: true,
	}
}

func TestScore_FailedResultScoresZero(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))
	result := detailedResult(models.ProviderClaudeVision)
	result.Succeeded = false

	if got := eval.Score(result); got != 0 {
		t.Errorf("Score = %v, want 0 for failed result", got)
	}
}

func TestScore_Deterministic(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))
	result := detailedResult(models.ProviderClaudeVision)

	first := eval.Score(result)
	second := eval.Score(result)
	if first != second {
		t.Errorf("Score not deterministic: %v vs %v", first, second)
	}
}

func TestScore_DetailedVisionClearsThreshold(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))
	result := detailedResult(models.ProviderClaudeVision)

	score := eval.Score(result)
	if score < 0.70 {
		t.Errorf("Score = %v, want >= 0.70 for a detailed vision result", score)
	}
	if score > 1 {
		t.Errorf("Score = %v, want <= 1", score)
	}
}

func TestScore_WeightEstimatesRaiseScore(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))

	withWeights := detailedResult(models.ProviderOpenAIVision)
	withoutWeights := detailedResult(models.ProviderOpenAIVision)
	for i := range withoutWeights.Items {
		withoutWeights.Items[i].EstimatedWeightG = nil
	}
	partialWeights := detailedResult(models.ProviderOpenAIVision)
	partialWeights.Items[1].EstimatedWeightG = nil

	if eval.Score(withWeights) <= eval.Score(withoutWeights) {
		t.Errorf("weight estimates should raise the score: with=%v without=%v",
			eval.Score(withWeights), eval.Score(withoutWeights))
	}
	// One explicit weight is enough to earn the bonus.
	if eval.Score(partialWeights) != eval.Score(withWeights) {
		t.Errorf("a single weighted item should earn the full bonus: partial=%v full=%v",
			eval.Score(partialWeights), eval.Score(withWeights))
	}
	if eval.Score(partialWeights) <= eval.Score(withoutWeights) {
		t.Errorf("partially weighted result should outscore the unweighted one: partial=%v without=%v",
			eval.Score(partialWeights), eval.Score(withoutWeights))
	}
}

func TestScore_ProviderOrderReflectsTrust(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))

	claude := eval.Score(detailedResult(models.ProviderClaudeVision))
	openai := eval.Score(detailedResult(models.ProviderOpenAIVision))
	if claude <= openai {
		t.Errorf("claude vision should outscore openai vision on the same result: %v vs %v", claude, openai)
	}
}

func TestScore_KeywordMatchIsCapped(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))

	// Even a maximally detailed keyword result stays under the cap.
	result := detailedResult(models.ProviderKeywordMatch)
	if got := eval.Score(result); got > 0.30 {
		t.Errorf("Score = %v, want <= 0.30 for keyword match", got)
	}
}

func TestScore_SparseDescriptionScoresLower(t *testing.T) {
	eval := NewEvaluator(DefaultScoringWeights(0.30))

	detailed := detailedResult(models.ProviderClaudeVision)
	sparse := detailedResult(models.ProviderClaudeVision)
	sparse.RawDescription = "Food."

	if eval.Score(sparse) >= eval.Score(detailed) {
		t.Errorf("sparse description should score lower: sparse=%v detailed=%v",
			eval.Score(sparse), eval.Score(detailed))
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-0.5); got != 0 {
		t.Errorf("clamp01(-0.5) = %v, want 0", got)
	}
	if got := clamp01(1.5); got != 1 {
		t.Errorf("clamp01(1.5) = %v, want 1", got)
	}
	if got := clamp01(0.42); got != 0.42 {
		t.Errorf("clamp01(0.42) = %v, want 0.42", got)
	}
}
