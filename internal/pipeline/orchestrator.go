package pipeline

import (
	"context"
	"errors"

	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"go.uber.org/zap"
)

// ErrNoProviders is returned when no provider in the cascade supports the
// request's modality. With the keyword matcher registered this cannot happen.
var ErrNoProviders = errors.New("no provider supports this modality")

// Orchestrator runs the provider cascade: adapters are tried in registration
// order, the first result at or above the confidence threshold wins, and the
// best result seen so far wins when nothing clears the bar.
type Orchestrator struct {
	providers []Provider
	evaluator *Evaluator
	threshold float64
}

// NewOrchestrator creates an Orchestrator over an ordered provider list.
func NewOrchestrator(providers []Provider, evaluator *Evaluator, threshold float64) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		evaluator: evaluator,
		threshold: threshold,
	}
}

// Run executes the cascade for one request. The returned lowConfidence flag is
// true when even the winning result stayed below the threshold.
func (o *Orchestrator) Run(ctx context.Context, req *models.AnalysisRequest) (models.ProviderResult, bool, error) {
	log := logger.WithFingerprint(req.Fingerprint)

	var best models.ProviderResult
	var attempted bool

	for _, p := range o.providers {
		if !p.Supports(req.Modality) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return models.ProviderResult{}, false, err
		}
		attempted = true

		result := p.Analyze(ctx, req)
		result.Confidence = o.evaluator.Score(result)

		if !result.Succeeded {
			log.Warn("provider failed, falling back",
				zap.String("provider", string(p.ID())),
				zap.String("error_kind", string(result.Error)),
				zap.Int64("latency_ms", result.LatencyMS),
			)
			continue
		}

		log.Info("provider result",
			zap.String("provider", string(p.ID())),
			zap.Float64("confidence", result.Confidence),
			zap.Int64("latency_ms", result.LatencyMS),
		)

		if result.Confidence >= o.threshold {
			return result, false, nil
		}
		// Strictly greater: on a tie the earlier adapter keeps the win.
		if result.Confidence > best.Confidence {
			best = result
		}
	}

	if !attempted {
		return models.ProviderResult{}, false, ErrNoProviders
	}
	if !best.Succeeded {
		return models.ProviderResult{}, false, errors.New("every provider in the cascade failed")
	}

	log.Info("cascade exhausted below threshold, keeping best result",
		zap.String("provider", string(best.Source)),
		zap.Float64("confidence", best.Confidence),
	)
	return best, true, nil
}
