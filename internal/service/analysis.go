package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/config"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/nutrition"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/repository"
	"github.com/mealscan/mealscan-api/internal/s3"
	"github.com/mealscan/mealscan-api/internal/util"
	"go.uber.org/zap"
)

// genericItemNames are provider outputs too vague to resolve nutrition against.
var genericItemNames = map[string]bool{
	"meal":       true,
	"mixed meal": true,
	"food":       true,
	"dish":       true,
	"snack":      true,
}

const fallbackClarifyQuestion = "Could you describe what's in this meal and roughly how much of each food?"

// AnalysisOutcome is the result of one submission: a completed analysis,
// possibly accompanied by a clarification prompt when the result is too
// uncertain to stand on its own.
type AnalysisOutcome struct {
	Analysis      *models.MealAnalysis        `json:"analysis"`
	Clarification *models.ClarificationPrompt `json:"clarification,omitempty"`
}

// AnalysisService drives the full recognition flow: normalization, the
// provider cascade, nutrition resolution, caching, meal history, and the
// clarification dialogue.
type AnalysisService struct {
	Cfg        *config.Config
	Normalizer *pipeline.Normalizer
	Orch       *pipeline.Orchestrator
	Resolver   *nutrition.Resolver
	Cache      *cache.Service
	Sessions   repository.SessionRepo
	MealLogs   repository.MealLogRepo
	Clarifier  ai.ClarifyProvider
	Clock      cache.Clock
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(cfg *config.Config, normalizer *pipeline.Normalizer, orch *pipeline.Orchestrator, resolver *nutrition.Resolver, cacheSvc *cache.Service, sessions repository.SessionRepo, mealLogs repository.MealLogRepo, clarifier ai.ClarifyProvider, clock cache.Clock) *AnalysisService {
	return &AnalysisService{
		Cfg:        cfg,
		Normalizer: normalizer,
		Orch:       orch,
		Resolver:   resolver,
		Cache:      cacheSvc,
		Sessions:   sessions,
		MealLogs:   mealLogs,
		Clarifier:  clarifier,
		Clock:      clock,
	}
}

// AnalyzeSubmission runs one raw submission through the full pipeline. A new
// submission supersedes any clarification still pending for the user, so a
// late reply to the old session key starts fresh instead of merging stale
// context.
func (s *AnalysisService) AnalyzeSubmission(ctx context.Context, raw pipeline.RawSubmission) (*AnalysisOutcome, error) {
	if s.Sessions != nil && raw.UserID != 0 {
		if err := s.Sessions.InvalidateUserSessions(raw.UserID); err != nil {
			return nil, fmt.Errorf("failed to supersede pending clarification: %w", err)
		}
	}
	return s.analyze(ctx, raw, true)
}

// ResolveClarification answers a pending clarification session. The user's
// reply is merged with the stored partial description and re-analyzed as text.
// A missing, expired, or foreign session is not an error: the reply is simply
// treated as a fresh text submission.
func (s *AnalysisService) ResolveClarification(ctx context.Context, userID uint, sessionKey, text string) (*AnalysisOutcome, error) {
	mergedText := text

	session, err := s.Sessions.GetActiveSessionByKey(sessionKey, s.Clock.Now())
	if err != nil {
		var nfe repository.NotFoundError
		if !errors.As(err, &nfe) {
			return nil, err
		}
		logger.Get().Info("clarification session unavailable, treating reply as fresh submission",
			zap.String("session_key", sessionKey))
		session = nil
	}

	if session != nil && session.UserID != userID {
		// Never let one user resolve another's session.
		session = nil
	}

	if session != nil {
		if session.Description != "" {
			mergedText = session.Description + ". " + text
		}
		if err := s.Sessions.MarkResolved(session.SessionKey); err != nil {
			logger.Get().Warn("failed to mark session resolved",
				zap.String("session_key", session.SessionKey), zap.Error(err))
		}
	}

	return s.analyze(ctx, pipeline.RawSubmission{
		Modality: models.ModalityText,
		Text:     mergedText,
		UserID:   userID,
	}, false)
}

// analyze is the single entry to the pipeline. allowClarify is false on the
// clarification round, so the dialogue never recurses: the second answer
// stands whatever its confidence.
func (s *AnalysisService) analyze(ctx context.Context, raw pipeline.RawSubmission, allowClarify bool) (*AnalysisOutcome, error) {
	req, err := s.Normalizer.Normalize(ctx, raw)
	if err != nil {
		return nil, err
	}

	payload, cached, err := s.Cache.GetOrCompute(ctx, req.Fingerprint, models.CacheCategoryAnalysis, func(ctx context.Context) ([]byte, error) {
		analysis, err := s.runPipeline(ctx, req)
		if err != nil {
			return nil, err
		}
		return util.SerializeToJSON(analysis)
	})
	if err != nil {
		return nil, err
	}

	var analysis models.MealAnalysis
	if err := util.DeserializeFromJSON(payload, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}

	if cached {
		logger.WithFingerprint(req.Fingerprint).Info("analysis served from cache")
	}

	s.recordMealLog(req, &analysis)

	outcome := &AnalysisOutcome{Analysis: &analysis}
	if allowClarify && s.needsClarification(&analysis) {
		prompt, err := s.openClarificationSession(ctx, req, &analysis)
		if err != nil {
			logger.WithFingerprint(req.Fingerprint).Warn("failed to open clarification session", zap.Error(err))
		} else {
			outcome.Clarification = prompt
		}
	}

	return outcome, nil
}

// runPipeline executes the provider cascade and resolves nutrition for the
// winning result. Runs once per fingerprint; subsequent identical submissions
// read the cached product.
func (s *AnalysisService) runPipeline(ctx context.Context, req *models.AnalysisRequest) (*models.MealAnalysis, error) {
	result, lowConfidence, err := s.Orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	// Keep the raw winning result around longer than the analysis itself:
	// it lets a re-analysis with different scoring skip the provider call.
	if rawPayload, err := util.SerializeToJSON(result); err == nil {
		if err := s.Cache.Put(req.Fingerprint, models.CacheCategoryProvider, rawPayload); err != nil {
			logger.WithFingerprint(req.Fingerprint).Warn("failed to cache provider result", zap.Error(err))
		}
	}

	meal, err := s.Resolver.Resolve(ctx, result.Items)
	if err != nil {
		return nil, fmt.Errorf("nutrition resolution failed: %w", err)
	}

	analysis := &models.MealAnalysis{
		Fingerprint:   req.Fingerprint,
		Source:        result.Source,
		Description:   result.RawDescription,
		Items:         result.Items,
		Nutrition:     meal,
		Confidence:    result.Confidence,
		LowConfidence: lowConfidence,
		Disclaimers:   buildDisclaimers(&meal, lowConfidence),
	}
	return analysis, nil
}

// buildDisclaimers explains every estimate or gap the numbers hide.
func buildDisclaimers(meal *models.MealNutrition, lowConfidence bool) []string {
	var disclaimers []string
	if meal.Estimated {
		disclaimers = append(disclaimers, "Some portion sizes were not identified; a standard 100g portion was assumed.")
	}
	if len(meal.MissingItems) > 0 {
		disclaimers = append(disclaimers, fmt.Sprintf("No nutrition data was found for: %s. Totals exclude these items.", strings.Join(meal.MissingItems, ", ")))
	}
	if lowConfidence {
		disclaimers = append(disclaimers, "This analysis is a rough estimate; the meal could not be identified with high confidence.")
	}
	return disclaimers
}

// needsClarification decides whether the analysis is too vague to log as-is.
func (s *AnalysisService) needsClarification(analysis *models.MealAnalysis) bool {
	if !analysis.LowConfidence {
		return false
	}
	if len(analysis.Items) == 0 {
		return true
	}
	for _, item := range analysis.Items {
		if item.EstimatedWeightG == nil {
			return true
		}
		if genericItemNames[strings.ToLower(item.Name)] {
			return true
		}
	}
	return false
}

// openClarificationSession stores the partial result and composes the
// follow-up question. A new session supersedes any pending one for the user.
func (s *AnalysisService) openClarificationSession(ctx context.Context, req *models.AnalysisRequest, analysis *models.MealAnalysis) (*models.ClarificationPrompt, error) {
	itemNames := make([]string, len(analysis.Items))
	for i, item := range analysis.Items {
		itemNames[i] = item.Name
	}

	question, err := s.Clarifier.ComposeClarificationQuestion(ctx, analysis.Description, itemNames)
	if err != nil {
		logger.WithFingerprint(req.Fingerprint).Warn("clarify provider failed, using fallback question", zap.Error(err))
		question = fallbackClarifyQuestion
	}

	partial, err := util.SerializeToJSON(analysis)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	session := &models.ClarificationSession{
		SessionKey:    uuid.New().String(),
		UserID:        req.UserID,
		Fingerprint:   req.Fingerprint,
		Description:   analysis.Description,
		PartialResult: partial,
		Question:      question,
		State:         models.SessionAwaitingClarification,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.Cfg.EnvVars.ClarificationTTL),
	}
	if err := s.Sessions.CreateSession(session); err != nil {
		return nil, err
	}

	return &models.ClarificationPrompt{
		SessionKey: session.SessionKey,
		Question:   question,
	}, nil
}

// recordMealLog persists the analysis to the user's history and archives the
// photo when a bucket is configured. History is best-effort: a storage
// failure never fails the analysis the user is waiting on.
func (s *AnalysisService) recordMealLog(req *models.AnalysisRequest, analysis *models.MealAnalysis) {
	if s.MealLogs == nil || req.UserID == 0 {
		return
	}

	itemsJSON, err := util.SerializeToJSON(analysis.Items)
	if err != nil {
		logger.WithFingerprint(req.Fingerprint).Warn("failed to serialize meal items", zap.Error(err))
		return
	}

	mealLog := &models.MealLog{
		UserID:        req.UserID,
		Fingerprint:   req.Fingerprint,
		Modality:      req.Modality,
		Source:        analysis.Source,
		Description:   analysis.Description,
		ItemsJSON:     itemsJSON,
		CaloriesKcal:  analysis.Nutrition.CaloriesKcal,
		ProteinG:      analysis.Nutrition.ProteinG,
		CarbsG:        analysis.Nutrition.CarbsG,
		FatG:          analysis.Nutrition.FatG,
		Confidence:    analysis.Confidence,
		LowConfidence: analysis.LowConfidence,
		Disclaimers:   pq.StringArray(analysis.Disclaimers),
	}
	if err := s.MealLogs.CreateMealLog(mealLog); err != nil {
		return
	}

	if req.Modality == models.ModalityImage && s.Cfg.S3Enabled() {
		go s.archivePhoto(mealLog.ID, req.ImageData, req.Fingerprint)
	}
}

// archivePhoto uploads the submitted photo to the archive bucket in the
// background and backfills the log entry's URL.
func (s *AnalysisService) archivePhoto(mealLogID uint, imageData []byte, fingerprint string) {
	ctx := context.Background()
	s3Key := s3.GenerateS3Key(mealLogID)
	location, err := s3.UploadMealPhotoToS3(ctx, s.Cfg, imageData, s3Key)
	if err != nil {
		logger.WithFingerprint(fingerprint).Warn("failed to archive meal photo", zap.Error(err))
		return
	}
	if err := s.MealLogs.UpdateMealLogPhotoURL(mealLogID, location); err != nil {
		logger.WithFingerprint(fingerprint).Warn("failed to record photo URL", zap.Error(err))
	}
}

// SweepExpired removes expired cache entries and clarification sessions in one
// pass. Called by the background sweeper and the internal maintenance route.
func (s *AnalysisService) SweepExpired() (int64, error) {
	removedEntries, err := s.Cache.SweepExpired()
	if err != nil {
		return 0, err
	}
	removedSessions, err := s.Sessions.DeleteExpired(s.Clock.Now())
	if err != nil {
		return removedEntries, err
	}
	return removedEntries + removedSessions, nil
}
