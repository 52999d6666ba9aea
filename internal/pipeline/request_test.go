package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mealscan/mealscan-api/internal/models"
)

func jpegBytes(body string) []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte(body)...)
}

func webmBytes(body string) []byte {
	return append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte(body)...)
}

func TestNormalize_TextFingerprintIgnoresCaseAndSpacing(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)

	a, err := n.Normalize(context.Background(), RawSubmission{
		Modality: models.ModalityText,
		Text:     "Chicken  And Rice",
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	b, err := n.Normalize(context.Background(), RawSubmission{
		Modality: models.ModalityText,
		Text:     " chicken and   rice ",
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if a.Fingerprint != b.Fingerprint {
		t.Errorf("fingerprints differ for equivalent text: %q vs %q", a.Fingerprint, b.Fingerprint)
	}
}

func TestNormalize_CaptionChangesImageFingerprint(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)
	img := jpegBytes("same-image")

	plain, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityImage,
		ImageData: img,
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	captioned, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityImage,
		ImageData: img,
		Text:      "leftover curry",
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if plain.Fingerprint == captioned.Fingerprint {
		t.Error("fingerprints should differ when the caption differs")
	}
}

func TestNormalize_SameImageSameFingerprint(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)
	img := jpegBytes("same-image")

	a, _ := n.Normalize(context.Background(), RawSubmission{Modality: models.ModalityImage, ImageData: img})
	b, _ := n.Normalize(context.Background(), RawSubmission{Modality: models.ModalityImage, ImageData: img})
	if a == nil || b == nil || a.Fingerprint != b.Fingerprint {
		t.Error("identical images should share a fingerprint")
	}
}

func TestNormalize_EmptyTextRejected(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)

	_, err := n.Normalize(context.Background(), RawSubmission{
		Modality: models.ModalityText,
		Text:     "   ",
	})
	var ume UnsupportedMediaError
	if !errors.As(err, &ume) {
		t.Errorf("err = %v, want UnsupportedMediaError", err)
	}
}

func TestNormalize_OversizedImageRejected(t *testing.T) {
	n := NewNormalizer(16, 25<<20)

	_, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityImage,
		ImageData: jpegBytes("this body pushes the payload past sixteen bytes"),
	})
	var ume UnsupportedMediaError
	if !errors.As(err, &ume) {
		t.Errorf("err = %v, want UnsupportedMediaError", err)
	}
}

func TestNormalize_UnrecognizedImageRejected(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)

	_, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityImage,
		ImageData: []byte("definitely not an image"),
	})
	var ume UnsupportedMediaError
	if !errors.As(err, &ume) {
		t.Errorf("err = %v, want UnsupportedMediaError", err)
	}
}

func TestNormalize_WebMAudioAccepted(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)
	audio := webmBytes("audio-body")

	req, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityAudio,
		AudioData: audio,
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !bytes.Equal(req.AudioData, audio) {
		t.Error("audio data was altered by normalization")
	}
	if req.Fingerprint == "" {
		t.Error("fingerprint is empty")
	}
}

func TestNormalize_UnrecognizedAudioRejected(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)

	_, err := n.Normalize(context.Background(), RawSubmission{
		Modality:  models.ModalityAudio,
		AudioData: []byte("not a known container"),
	})
	var ume UnsupportedMediaError
	if !errors.As(err, &ume) {
		t.Errorf("err = %v, want UnsupportedMediaError", err)
	}
}

func TestNormalize_InvalidImageURLRejected(t *testing.T) {
	n := NewNormalizer(10<<20, 25<<20)

	_, err := n.Normalize(context.Background(), RawSubmission{
		Modality: models.ModalityImage,
		ImageURL: "not a url",
	})
	var ume UnsupportedMediaError
	if !errors.As(err, &ume) {
		t.Errorf("err = %v, want UnsupportedMediaError", err)
	}
}
