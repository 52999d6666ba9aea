package ai

import "context"

// VisionProvider identifies foods in a meal photo.
type VisionProvider interface {
	AnalyzeMealImage(ctx context.Context, imageData []byte, hint string) (*MealObservation, error)
}

// TextProvider identifies foods in a free-text meal description.
type TextProvider interface {
	AnalyzeMealText(ctx context.Context, text string) (*MealObservation, error)
}

// ClarifyProvider composes the single follow-up question asked when an
// analysis comes back uncertain.
type ClarifyProvider interface {
	ComposeClarificationQuestion(ctx context.Context, description string, itemNames []string) (string, error)
}

// SpeechProvider handles speech-to-text (Whisper).
type SpeechProvider interface {
	TranscribeAudio(ctx context.Context, audioData []byte) (string, error)
}

// MealObservation is the structured output of any recognition call: what the
// provider believes is on the plate, before confidence scoring or nutrition
// resolution.
type MealObservation struct {
	Description string
	Items       []ObservedItem
}

// ObservedItem is a single food as reported by a provider. A zero weight
// means the provider did not estimate one.
type ObservedItem struct {
	Name             string
	EstimatedWeightG float64
	CookingMethod    string
}
