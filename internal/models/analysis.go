package models

// Modality identifies the kind of payload a user submitted.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// ProviderID identifies a recognition provider in the cascade.
type ProviderID string

const (
	ProviderClaudeVision ProviderID = "claude_vision"
	ProviderOpenAIVision ProviderID = "openai_vision"
	ProviderClaudeText   ProviderID = "claude_text"
	ProviderWhisperText  ProviderID = "whisper_text"
	ProviderKeywordMatch ProviderID = "keyword_match"
)

// ErrorKind classifies a provider failure. Failures are carried as data on the
// ProviderResult rather than raised, so the cascade is a plain loop.
type ErrorKind string

const (
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	ErrProviderTimeout     ErrorKind = "provider_timeout"
)

// AnalysisRequest is the canonical form of one meal submission. It is built
// once by the normalizer and never mutated afterwards; Fingerprint is the
// cache key for the whole request.
type AnalysisRequest struct {
	Modality    Modality
	ImageData   []byte
	AudioData   []byte
	Text        string // free text, image caption, or merged clarification context
	UserID      uint
	Fingerprint string
}

// FoodItem is one identified food with an optional weight estimate. A nil
// weight signals lower trustworthiness and feeds the confidence evaluator.
type FoodItem struct {
	Name             string   `json:"name"`
	EstimatedWeightG *float64 `json:"estimated_weight_g,omitempty"`
	CookingMethod    string   `json:"cooking_method,omitempty"`
}

// ProviderResult is the outcome of one adapter invocation. Produced once,
// never mutated. A failed invocation has Succeeded=false and an ErrorKind;
// it never carries a Go error across the adapter boundary.
type ProviderResult struct {
	Source         ProviderID `json:"source"`
	RawDescription string     `json:"raw_description"`
	Items          []FoodItem `json:"items"`
	Confidence     float64    `json:"confidence"`
	LatencyMS      int64      `json:"latency_ms"`
	Succeeded      bool       `json:"succeeded"`
	Error          ErrorKind  `json:"error,omitempty"`
}

// MealAnalysis is the final product of one orchestration pass: identified
// items plus aggregated nutrition and the confidence the result earned.
type MealAnalysis struct {
	Fingerprint   string        `json:"fingerprint"`
	Source        ProviderID    `json:"source"`
	Description   string        `json:"description"`
	Items         []FoodItem    `json:"items"`
	Nutrition     MealNutrition `json:"nutrition"`
	Confidence    float64       `json:"confidence"`
	LowConfidence bool          `json:"low_confidence"`
	Disclaimers   []string      `json:"disclaimers,omitempty"`
}

// ClarificationPrompt asks the user to disambiguate a low-confidence result.
type ClarificationPrompt struct {
	SessionKey string `json:"session_key"`
	Question   string `json:"question"`
}
