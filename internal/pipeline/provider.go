package pipeline

import (
	"context"
	"time"

	"github.com/mealscan/mealscan-api/internal/models"
)

// Provider is the capability every recognition adapter implements. Adapters
// are stateless and safe for concurrent use by independent requests.
//
// Analyze never returns a Go error: transport, auth, quota, and deadline
// failures are folded into the returned ProviderResult so the orchestrator's
// cascade stays a plain loop over values.
type Provider interface {
	ID() models.ProviderID
	Supports(m models.Modality) bool
	Timeout() time.Duration
	Analyze(ctx context.Context, req *models.AnalysisRequest) models.ProviderResult
}
