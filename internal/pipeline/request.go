package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/asaskevich/govalidator"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/util"
)

// UnsupportedMediaError rejects a submission whose payload is not an accepted
// format or exceeds the configured size ceiling. It is surfaced to the caller
// immediately and never retried.
type UnsupportedMediaError struct {
	Reason string
}

func (e UnsupportedMediaError) Error() string {
	return "unsupported media: " + e.Reason
}

// RawSubmission is one inbound meal submission before normalization. Images
// may arrive as inline bytes or as a fetchable URL.
type RawSubmission struct {
	Modality  models.Modality
	ImageData []byte
	ImageURL  string
	Text      string
	AudioData []byte
	UserID    uint
}

// Normalizer converts raw submissions into canonical AnalysisRequests with a
// deterministic fingerprint, so identical resubmissions hit the cache.
type Normalizer struct {
	maxImageBytes int64
	maxAudioBytes int64
	httpClient    *http.Client
	profanity     *goaway.ProfanityDetector
}

// NewNormalizer creates a Normalizer with the given payload size ceilings.
func NewNormalizer(maxImageBytes, maxAudioBytes int64) *Normalizer {
	return &Normalizer{
		maxImageBytes: maxImageBytes,
		maxAudioBytes: maxAudioBytes,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		profanity: goaway.NewProfanityDetector(),
	}
}

// Normalize validates a raw submission and produces the immutable
// AnalysisRequest for one orchestration pass.
func (n *Normalizer) Normalize(ctx context.Context, raw RawSubmission) (*models.AnalysisRequest, error) {
	req := &models.AnalysisRequest{
		Modality: raw.Modality,
		UserID:   raw.UserID,
	}

	switch raw.Modality {
	case models.ModalityImage:
		imageData := raw.ImageData
		if len(imageData) == 0 && raw.ImageURL != "" {
			fetched, err := n.fetchImage(ctx, raw.ImageURL)
			if err != nil {
				return nil, err
			}
			imageData = fetched
		}
		if len(imageData) == 0 {
			return nil, UnsupportedMediaError{Reason: "image payload is empty"}
		}
		if int64(len(imageData)) > n.maxImageBytes {
			return nil, UnsupportedMediaError{Reason: fmt.Sprintf("image exceeds %d byte limit", n.maxImageBytes)}
		}
		mediaType := util.DetectImageMediaType(imageData)
		if !util.IsSupportedImageType(mediaType) {
			return nil, UnsupportedMediaError{Reason: "unrecognized image format"}
		}
		req.ImageData = imageData
		req.Text = n.normalizeText(raw.Text) // optional caption

	case models.ModalityText:
		text := n.normalizeText(raw.Text)
		if text == "" {
			return nil, UnsupportedMediaError{Reason: "text payload is empty"}
		}
		req.Text = text

	case models.ModalityAudio:
		if len(raw.AudioData) == 0 {
			return nil, UnsupportedMediaError{Reason: "audio payload is empty"}
		}
		if int64(len(raw.AudioData)) > n.maxAudioBytes {
			return nil, UnsupportedMediaError{Reason: fmt.Sprintf("audio exceeds %d byte limit", n.maxAudioBytes)}
		}
		if util.DetectAudioMediaType(raw.AudioData) == "" {
			return nil, UnsupportedMediaError{Reason: "unrecognized audio container"}
		}
		req.AudioData = raw.AudioData

	default:
		return nil, UnsupportedMediaError{Reason: "unknown modality"}
	}

	req.Fingerprint = fingerprint(req)
	return req, nil
}

// normalizeText trims, collapses whitespace, and censors profanity before the
// text is sent to any external provider.
func (n *Normalizer) normalizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	return n.profanity.Censor(text)
}

// fetchImage downloads an image from a user-supplied URL, bounded by the
// image size ceiling.
func (n *Normalizer) fetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if !govalidator.IsURL(rawURL) || !strings.HasPrefix(rawURL, "http") {
		return nil, UnsupportedMediaError{Reason: "invalid image URL"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, UnsupportedMediaError{Reason: fmt.Sprintf("image URL returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > n.maxImageBytes {
		return nil, UnsupportedMediaError{Reason: fmt.Sprintf("image exceeds %d byte limit", n.maxImageBytes)}
	}
	return data, nil
}

// fingerprint hashes modality plus normalized payload, so the same meal
// submitted twice maps to the same cache key. The caption participates for
// images: a different caption is a different request.
func fingerprint(req *models.AnalysisRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Modality))
	h.Write([]byte{0})
	switch req.Modality {
	case models.ModalityImage:
		h.Write(req.ImageData)
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(req.Text)))
	case models.ModalityText:
		h.Write([]byte(strings.ToLower(req.Text)))
	case models.ModalityAudio:
		h.Write(req.AudioData)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsUnsupportedMedia reports whether err is an UnsupportedMediaError.
func IsUnsupportedMedia(err error) bool {
	var ume UnsupportedMediaError
	return errors.As(err, &ume)
}
