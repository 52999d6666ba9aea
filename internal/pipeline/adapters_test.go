package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/models"
)

// cannedSpeech returns a fixed transcript.
type cannedSpeech struct {
	transcript string
	err        error
}

func (c *cannedSpeech) TranscribeAudio(_ context.Context, _ []byte) (string, error) {
	return c.transcript, c.err
}

// capturingText records the text it was asked to analyze.
type capturingText struct {
	got string
}

func (c *capturingText) AnalyzeMealText(_ context.Context, text string) (*ai.MealObservation, error) {
	c.got = text
	return &ai.MealObservation{
		Description: text,
		Items:       []ai.ObservedItem{{Name: "fries", EstimatedWeightG: 120}},
	}, nil
}

func audioRequest() *models.AnalysisRequest {
	return &models.AnalysisRequest{
		Modality:  models.ModalityAudio,
		AudioData: []byte{0x1A, 0x45, 0xDF, 0xA3, 1, 2},
	}
}

func TestSpeechTextAdapter_ScrubsTranscript(t *testing.T) {
	text := &capturingText{}
	adapter := NewSpeechTextAdapter(models.ProviderWhisperText,
		&cannedSpeech{transcript: "I ate a shit   ton of   fries"}, text, time.Second)

	result := adapter.Analyze(context.Background(), audioRequest())
	if !result.Succeeded {
		t.Fatalf("Analyze failed: %v", result.Error)
	}
	if strings.Contains(text.got, "shit") {
		t.Errorf("transcript reached the provider uncensored: %q", text.got)
	}
	if strings.Contains(text.got, "  ") {
		t.Errorf("transcript whitespace not collapsed: %q", text.got)
	}
	if !strings.Contains(text.got, "fries") {
		t.Errorf("transcript content lost in scrubbing: %q", text.got)
	}
}

func TestSpeechTextAdapter_EmptyTranscriptFails(t *testing.T) {
	text := &capturingText{}
	adapter := NewSpeechTextAdapter(models.ProviderWhisperText,
		&cannedSpeech{transcript: "   "}, text, time.Second)

	result := adapter.Analyze(context.Background(), audioRequest())
	if result.Succeeded {
		t.Error("Succeeded = true, want failure for an empty transcript")
	}
	if text.got != "" {
		t.Errorf("text provider was called with %q, want no call", text.got)
	}
}
