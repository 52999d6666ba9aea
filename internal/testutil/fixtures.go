package testutil

import (
	"time"

	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/config"
	"github.com/mealscan/mealscan-api/internal/models"
)

// TestObservation creates a detailed observation the way a vision provider
// would report a plated dinner.
func TestObservation() *ai.MealObservation {
	return &ai.MealObservation{
		Description: "A dinner plate with grilled chicken breast, steamed rice, and a side of broccoli with a light oil dressing.",
		Items: []ai.ObservedItem{
			{Name: "grilled chicken breast", EstimatedWeightG: 150, CookingMethod: "grilled"},
			{Name: "steamed white rice", EstimatedWeightG: 200, CookingMethod: "steamed"},
			{Name: "broccoli", EstimatedWeightG: 90, CookingMethod: "steamed"},
		},
	}
}

// TestProviderResult creates a confident result from the primary vision
// adapter.
func TestProviderResult() models.ProviderResult {
	chicken := 150.0
	rice := 200.0
	return models.ProviderResult{
		Source:         models.ProviderClaudeVision,
		RawDescription: "A dinner plate with grilled chicken breast and steamed rice, both portions clearly visible.",
		Items: []models.FoodItem{
			{Name: "grilled chicken breast", EstimatedWeightG: &chicken, CookingMethod: "grilled"},
			{Name: "steamed white rice", EstimatedWeightG: &rice, CookingMethod: "steamed"},
		},
		LatencyMS: 420,
		Succeeded: true,
	}
}

// TestVagueResult creates the kind of thin result that triggers clarification.
func TestVagueResult() models.ProviderResult {
	return models.ProviderResult{
		Source:         models.ProviderKeywordMatch,
		RawDescription: "Unrecognized meal, logged as a generic mixed meal.",
		Items: []models.FoodItem{
			{Name: "mixed meal"},
		},
		Succeeded: true,
	}
}

// TestPerHundredGram returns per-100g macros for a lean protein.
func TestPerHundredGram() *models.PerHundredGram {
	return &models.PerHundredGram{
		CaloriesKcal: 165,
		ProteinG:     31,
		CarbsG:       0,
		FatG:         3.6,
	}
}

// TestConfig returns a config with pipeline defaults filled in.
func TestConfig() *config.Config {
	return &config.Config{
		EnvVars: config.EnvVars{
			Port:                 "8080",
			JwtSecretKey:         "test-secret",
			ConfidenceThreshold:  0.70,
			KeywordConfidenceCap: 0.30,
			AnalysisCacheTTL:     time.Hour,
			NutritionCacheTTL:    30 * time.Minute,
			ProviderCacheTTL:     2 * time.Hour,
			ClarificationTTL:     5 * time.Minute,
			MaxImageBytes:        10 << 20,
			MaxAudioBytes:        25 << 20,
		},
	}
}

// JPEGHeader returns the magic bytes of a JPEG file, enough to pass media
// type detection in tests.
func JPEGHeader() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("test-image-body")...)
}

// WebMHeader returns the EBML magic bytes of a WebM audio file.
func WebMHeader() []byte {
	return append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("test-audio-body")...)
}
