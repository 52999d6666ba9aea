package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/models"
)

// observationToResult converts a provider observation into a successful
// ProviderResult. A zero weight from the provider becomes a nil pointer,
// signalling that no estimate exists rather than a zero-gram portion.
func observationToResult(id models.ProviderID, obs *ai.MealObservation, started time.Time) models.ProviderResult {
	items := make([]models.FoodItem, len(obs.Items))
	for i, it := range obs.Items {
		item := models.FoodItem{
			Name:          it.Name,
			CookingMethod: it.CookingMethod,
		}
		if it.EstimatedWeightG > 0 {
			w := it.EstimatedWeightG
			item.EstimatedWeightG = &w
		}
		items[i] = item
	}
	return models.ProviderResult{
		Source:         id,
		RawDescription: obs.Description,
		Items:          items,
		LatencyMS:      time.Since(started).Milliseconds(),
		Succeeded:      true,
	}
}

// failureResult folds an adapter error into a failed ProviderResult, mapping a
// blown deadline onto the timeout kind and everything else onto unavailable.
func failureResult(id models.ProviderID, err error, started time.Time) models.ProviderResult {
	kind := models.ErrProviderUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = models.ErrProviderTimeout
	}
	return models.ProviderResult{
		Source:    id,
		LatencyMS: time.Since(started).Milliseconds(),
		Succeeded: false,
		Error:     kind,
	}
}

// VisionAdapter wraps a VisionProvider as a pipeline Provider.
type VisionAdapter struct {
	id      models.ProviderID
	vision  ai.VisionProvider
	timeout time.Duration
}

// NewVisionAdapter creates a vision adapter with a per-call timeout.
func NewVisionAdapter(id models.ProviderID, vision ai.VisionProvider, timeout time.Duration) *VisionAdapter {
	return &VisionAdapter{id: id, vision: vision, timeout: timeout}
}

func (a *VisionAdapter) ID() models.ProviderID { return a.id }

func (a *VisionAdapter) Supports(m models.Modality) bool { return m == models.ModalityImage }

func (a *VisionAdapter) Timeout() time.Duration { return a.timeout }

func (a *VisionAdapter) Analyze(ctx context.Context, req *models.AnalysisRequest) models.ProviderResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	obs, err := a.vision.AnalyzeMealImage(ctx, req.ImageData, req.Text)
	if err != nil {
		return failureResult(a.id, err, started)
	}
	return observationToResult(a.id, obs, started)
}

// TextAdapter wraps a TextProvider as a pipeline Provider. It also serves
// image submissions that carry a caption, so a described photo can still be
// analyzed when every vision provider is down.
type TextAdapter struct {
	id      models.ProviderID
	text    ai.TextProvider
	timeout time.Duration
}

// NewTextAdapter creates a text adapter with a per-call timeout.
func NewTextAdapter(id models.ProviderID, text ai.TextProvider, timeout time.Duration) *TextAdapter {
	return &TextAdapter{id: id, text: text, timeout: timeout}
}

func (a *TextAdapter) ID() models.ProviderID { return a.id }

func (a *TextAdapter) Supports(m models.Modality) bool {
	return m == models.ModalityText || m == models.ModalityImage
}

func (a *TextAdapter) Timeout() time.Duration { return a.timeout }

func (a *TextAdapter) Analyze(ctx context.Context, req *models.AnalysisRequest) models.ProviderResult {
	started := time.Now()
	if req.Text == "" {
		// An image without a caption gives the text provider nothing to
		// work with.
		return models.ProviderResult{
			Source:    a.id,
			Succeeded: false,
			Error:     models.ErrProviderUnavailable,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	obs, err := a.text.AnalyzeMealText(ctx, req.Text)
	if err != nil {
		return failureResult(a.id, err, started)
	}
	return observationToResult(a.id, obs, started)
}

// SpeechTextAdapter transcribes audio with a SpeechProvider and feeds the
// transcript through a TextProvider. Both calls share one timeout budget.
// The transcript is scrubbed like typed text before it reaches the provider;
// audio skips the normalizer's text path, so the censor runs here.
type SpeechTextAdapter struct {
	id        models.ProviderID
	speech    ai.SpeechProvider
	text      ai.TextProvider
	timeout   time.Duration
	profanity *goaway.ProfanityDetector
}

// NewSpeechTextAdapter creates the composed audio adapter.
func NewSpeechTextAdapter(id models.ProviderID, speech ai.SpeechProvider, text ai.TextProvider, timeout time.Duration) *SpeechTextAdapter {
	return &SpeechTextAdapter{
		id:        id,
		speech:    speech,
		text:      text,
		timeout:   timeout,
		profanity: goaway.NewProfanityDetector(),
	}
}

func (a *SpeechTextAdapter) ID() models.ProviderID { return a.id }

func (a *SpeechTextAdapter) Supports(m models.Modality) bool { return m == models.ModalityAudio }

func (a *SpeechTextAdapter) Timeout() time.Duration { return a.timeout }

func (a *SpeechTextAdapter) Analyze(ctx context.Context, req *models.AnalysisRequest) models.ProviderResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	transcript, err := a.speech.TranscribeAudio(ctx, req.AudioData)
	if err != nil {
		return failureResult(a.id, err, started)
	}
	transcript = strings.Join(strings.Fields(transcript), " ")
	if transcript == "" {
		// Nothing intelligible in the recording.
		return models.ProviderResult{
			Source:    a.id,
			LatencyMS: time.Since(started).Milliseconds(),
			Succeeded: false,
			Error:     models.ErrProviderUnavailable,
		}
	}
	transcript = a.profanity.Censor(transcript)

	obs, err := a.text.AnalyzeMealText(ctx, transcript)
	if err != nil {
		return failureResult(a.id, err, started)
	}
	return observationToResult(a.id, obs, started)
}

// Compile-time interface checks.
var (
	_ Provider = (*VisionAdapter)(nil)
	_ Provider = (*TextAdapter)(nil)
	_ Provider = (*SpeechTextAdapter)(nil)
)
