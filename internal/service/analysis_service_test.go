package service

import (
	"context"
	"testing"
	"time"

	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/nutrition"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/testutil"
)

const testUserID = uint(7)

type analysisFixture struct {
	svc      *AnalysisService
	sessions *testutil.MockSessionRepo
	mealLogs *testutil.MockMealLogRepo
	clock    *testutil.FakeClock
}

// newAnalysisFixture wires the service over stub providers and in-memory
// storage. The confident stub serves text, the vague one serves images.
func newAnalysisFixture(providers []pipeline.Provider) *analysisFixture {
	cfg := testutil.TestConfig()
	clock := testutil.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

	cacheSvc := cache.NewService(cache.NewMemoryStore(), clock, cache.TTLs{
		Analysis:  cfg.EnvVars.AnalysisCacheTTL,
		Nutrition: cfg.EnvVars.NutritionCacheTTL,
		Provider:  cfg.EnvVars.ProviderCacheTTL,
	})

	evaluator := pipeline.NewEvaluator(pipeline.DefaultScoringWeights(cfg.EnvVars.KeywordConfidenceCap))
	orch := pipeline.NewOrchestrator(providers, evaluator, cfg.EnvVars.ConfidenceThreshold)

	lookup := &testutil.MockLookupProvider{
		LookupFoodFunc: func(ctx context.Context, name string) (*models.PerHundredGram, error) {
			return testutil.TestPerHundredGram(), nil
		},
	}
	resolver := nutrition.NewResolver(lookup, cacheSvc)

	sessions := testutil.NewMockSessionRepo()
	mealLogs := testutil.NewMockMealLogRepo()
	clarifier := &testutil.MockClarifyProvider{
		ComposeClarificationQuestionFunc: func(ctx context.Context, description string, itemNames []string) (string, error) {
			return "What exactly was in the meal, and how much?", nil
		},
	}

	normalizer := pipeline.NewNormalizer(cfg.EnvVars.MaxImageBytes, cfg.EnvVars.MaxAudioBytes)
	svc := NewAnalysisService(cfg, normalizer, orch, resolver, cacheSvc, sessions, mealLogs, clarifier, clock)

	return &analysisFixture{
		svc:      svc,
		sessions: sessions,
		mealLogs: mealLogs,
		clock:    clock,
	}
}

func confidentTextStub() *testutil.StubProvider {
	return &testutil.StubProvider{
		IDValue:    models.ProviderClaudeText,
		Modalities: map[models.Modality]bool{models.ModalityText: true},
		Result:     testutil.TestProviderResult(),
	}
}

func vagueImageStub() *testutil.StubProvider {
	return &testutil.StubProvider{
		IDValue:    models.ProviderKeywordMatch,
		Modalities: map[models.Modality]bool{models.ModalityImage: true},
		Result:     testutil.TestVagueResult(),
	}
}

func textSubmission(text string) pipeline.RawSubmission {
	return pipeline.RawSubmission{
		Modality: models.ModalityText,
		Text:     text,
		UserID:   testUserID,
	}
}

func imageSubmission(body []byte) pipeline.RawSubmission {
	return pipeline.RawSubmission{
		Modality:  models.ModalityImage,
		ImageData: body,
		UserID:    testUserID,
	}
}

func TestAnalyzeSubmission_TextEndToEnd(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{confidentTextStub()})

	outcome, err := f.svc.AnalyzeSubmission(context.Background(), textSubmission("grilled chicken with rice"))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}

	analysis := outcome.Analysis
	if analysis == nil {
		t.Fatal("Analysis is nil")
	}
	if analysis.Source != models.ProviderClaudeText {
		t.Errorf("Source = %q, want claude_text", analysis.Source)
	}
	if analysis.LowConfidence {
		t.Error("LowConfidence = true, want false for a confident result")
	}
	if outcome.Clarification != nil {
		t.Error("Clarification set for a confident result")
	}

	// chicken 150g + rice 200g at 165 kcal per 100g
	want := 1.5*165 + 2.0*165
	if analysis.Nutrition.CaloriesKcal != want {
		t.Errorf("CaloriesKcal = %v, want %v", analysis.Nutrition.CaloriesKcal, want)
	}

	if f.mealLogs.Count() != 1 {
		t.Errorf("meal logs = %d, want 1", f.mealLogs.Count())
	}
}

func TestAnalyzeSubmission_CacheSkipsSecondPipelineRun(t *testing.T) {
	stub := confidentTextStub()
	f := newAnalysisFixture([]pipeline.Provider{stub})

	first, err := f.svc.AnalyzeSubmission(context.Background(), textSubmission("grilled chicken with rice"))
	if err != nil {
		t.Fatalf("first AnalyzeSubmission returned error: %v", err)
	}
	second, err := f.svc.AnalyzeSubmission(context.Background(), textSubmission("Grilled  Chicken with rice"))
	if err != nil {
		t.Fatalf("second AnalyzeSubmission returned error: %v", err)
	}

	if stub.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1 (second submission should hit the cache)", stub.Calls())
	}
	if first.Analysis.Fingerprint != second.Analysis.Fingerprint {
		t.Error("equivalent submissions should share a fingerprint")
	}
	// Both submissions still land in the history.
	if f.mealLogs.Count() != 2 {
		t.Errorf("meal logs = %d, want 2", f.mealLogs.Count())
	}
}

func TestAnalyzeSubmission_VagueResultOpensClarification(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub()})

	outcome, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}

	if outcome.Analysis == nil || !outcome.Analysis.LowConfidence {
		t.Fatal("expected a low-confidence analysis")
	}
	if outcome.Clarification == nil {
		t.Fatal("Clarification is nil, want a prompt for a vague result")
	}
	if outcome.Clarification.Question != "What exactly was in the meal, and how much?" {
		t.Errorf("Question = %q", outcome.Clarification.Question)
	}

	session := f.sessions.ActiveSessionFor(testUserID)
	if session == nil {
		t.Fatal("no awaiting session stored")
	}
	if session.SessionKey != outcome.Clarification.SessionKey {
		t.Error("session key mismatch between store and prompt")
	}
}

func TestResolveClarification_MergesAndResolves(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub(), confidentTextStub()})

	first, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}
	if first.Clarification == nil {
		t.Fatal("expected a clarification prompt")
	}

	outcome, err := f.svc.ResolveClarification(context.Background(), testUserID, first.Clarification.SessionKey, "it was grilled chicken and rice")
	if err != nil {
		t.Fatalf("ResolveClarification returned error: %v", err)
	}

	if outcome.Analysis == nil || outcome.Analysis.LowConfidence {
		t.Error("clarified analysis should be confident")
	}
	if outcome.Clarification != nil {
		t.Error("clarification round must not ask another question")
	}
	if f.sessions.ActiveSessionFor(testUserID) != nil {
		t.Error("session should no longer be awaiting")
	}
}

func TestResolveClarification_UnknownSessionTreatedAsFresh(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{confidentTextStub()})

	outcome, err := f.svc.ResolveClarification(context.Background(), testUserID, "no-such-session", "chicken and rice")
	if err != nil {
		t.Fatalf("ResolveClarification returned error: %v", err)
	}
	if outcome.Analysis == nil {
		t.Error("reply should be analyzed as a fresh text submission")
	}
}

func TestResolveClarification_ForeignSessionIgnored(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub(), confidentTextStub()})

	first, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}

	otherUser := uint(99)
	outcome, err := f.svc.ResolveClarification(context.Background(), otherUser, first.Clarification.SessionKey, "chicken and rice")
	if err != nil {
		t.Fatalf("ResolveClarification returned error: %v", err)
	}
	if outcome.Analysis == nil {
		t.Error("foreign reply should still be analyzed as fresh text")
	}

	// The owner's session is untouched.
	if f.sessions.ActiveSessionFor(testUserID) == nil {
		t.Error("owner's session should still be awaiting")
	}
}

func TestAnalyzeSubmission_NewSubmissionSupersedesSession(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub()})

	first, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("first AnalyzeSubmission returned error: %v", err)
	}

	secondImage := append(testutil.JPEGHeader(), []byte("different-meal")...)
	second, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(secondImage))
	if err != nil {
		t.Fatalf("second AnalyzeSubmission returned error: %v", err)
	}

	active := f.sessions.ActiveSessionFor(testUserID)
	if active == nil {
		t.Fatal("no awaiting session after second submission")
	}
	if active.SessionKey == first.Clarification.SessionKey {
		t.Error("first session should have been superseded")
	}
	if active.SessionKey != second.Clarification.SessionKey {
		t.Error("active session should belong to the second submission")
	}
}

func TestAnalyzeSubmission_ConfidentAnalysisInvalidatesPendingSession(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub(), confidentTextStub()})

	first, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("first AnalyzeSubmission returned error: %v", err)
	}
	if first.Clarification == nil {
		t.Fatal("expected a clarification prompt")
	}

	// A confident analysis opens no session of its own, but it must still
	// retire the pending one.
	if _, err := f.svc.AnalyzeSubmission(context.Background(), textSubmission("grilled chicken with rice")); err != nil {
		t.Fatalf("second AnalyzeSubmission returned error: %v", err)
	}
	if f.sessions.ActiveSessionFor(testUserID) != nil {
		t.Fatal("pending session still awaiting after a new analysis")
	}

	// A late reply to the stale key is plain text now, not a merge with the
	// old session's description.
	late, err := f.svc.ResolveClarification(context.Background(), testUserID, first.Clarification.SessionKey, "two eggs on toast")
	if err != nil {
		t.Fatalf("ResolveClarification returned error: %v", err)
	}
	fresh, err := f.svc.AnalyzeSubmission(context.Background(), textSubmission("two eggs on toast"))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}
	if late.Analysis.Fingerprint != fresh.Analysis.Fingerprint {
		t.Error("stale reply should be analyzed as plain text, without the superseded session's description")
	}
}

func TestResolveClarification_ExpiredSessionTreatedAsFresh(t *testing.T) {
	f := newAnalysisFixture([]pipeline.Provider{vagueImageStub(), confidentTextStub()})

	first, err := f.svc.AnalyzeSubmission(context.Background(), imageSubmission(testutil.JPEGHeader()))
	if err != nil {
		t.Fatalf("AnalyzeSubmission returned error: %v", err)
	}

	f.clock.Advance(6 * time.Minute) // past the 5m session TTL

	outcome, err := f.svc.ResolveClarification(context.Background(), testUserID, first.Clarification.SessionKey, "chicken and rice")
	if err != nil {
		t.Fatalf("ResolveClarification returned error: %v", err)
	}
	if outcome.Analysis == nil {
		t.Error("late reply should be analyzed as a fresh text submission")
	}
}
