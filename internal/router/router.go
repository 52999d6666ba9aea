package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/config"
	"github.com/mealscan/mealscan-api/internal/handlers"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/middleware"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/nutrition"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/repository"
	"github.com/mealscan/mealscan-api/internal/service"
	"github.com/mealscan/mealscan-api/internal/ws"
	"gorm.io/gorm"
)

// Per-provider call budgets. Vision calls carry image payloads and run on the
// larger models, so they get the longest leash.
const (
	visionTimeout = 45 * time.Second
	textTimeout   = 30 * time.Second
	speechTimeout = 60 * time.Second
)

// SetupRouter sets up the Gin router and wires the analysis pipeline.
func SetupRouter(cfg *config.Config, database *gorm.DB) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = []string{
		"https://api.mealscan.app",
		"https://mealscan.app",
		"https://www.mealscan.app",
	}
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// AI provider setup
	claudeVision := ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	claudeText := ai.NewAnthropicLightProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	openaiVision := ai.NewOpenAIVisionProvider(cfg.EnvVars.OpenAIAPIKey)
	whisper := ai.NewWhisperProvider(cfg.EnvVars.OpenAIAPIKey)

	// Cascade order is fallback order: the most trusted adapter per modality
	// runs first, the keyword matcher catches whatever is left.
	providers := []pipeline.Provider{
		pipeline.NewVisionAdapter(models.ProviderClaudeVision, claudeVision, visionTimeout),
		pipeline.NewVisionAdapter(models.ProviderOpenAIVision, openaiVision, visionTimeout),
		pipeline.NewTextAdapter(models.ProviderClaudeText, claudeText, textTimeout),
		pipeline.NewSpeechTextAdapter(models.ProviderWhisperText, whisper, claudeText, speechTimeout),
		pipeline.NewKeywordMatcher(),
	}

	evaluator := pipeline.NewEvaluator(pipeline.DefaultScoringWeights(cfg.EnvVars.KeywordConfidenceCap))
	orch := pipeline.NewOrchestrator(providers, evaluator, cfg.EnvVars.ConfidenceThreshold)

	// Cache setup, backed by Postgres so entries are shared across instances
	cacheRepo := repository.NewCacheRepository(database)
	clock := cache.SystemClock{}
	cacheSvc := cache.NewService(cacheRepo, clock, cache.TTLs{
		Analysis:  cfg.EnvVars.AnalysisCacheTTL,
		Nutrition: cfg.EnvVars.NutritionCacheTTL,
		Provider:  cfg.EnvVars.ProviderCacheTTL,
	})
	cacheSvc.StartSweeper(context.Background(), 10*time.Minute)

	// Nutrition resolution
	lookup := nutrition.NewOpenFoodFactsClient()
	resolver := nutrition.NewResolver(lookup, cacheSvc)

	// Analysis pipeline setup
	normalizer := pipeline.NewNormalizer(cfg.EnvVars.MaxImageBytes, cfg.EnvVars.MaxAudioBytes)
	sessionRepo := repository.NewSessionRepository(database)
	mealLogRepo := repository.NewMealLogRepository(database)
	analysisService := service.NewAnalysisService(cfg, normalizer, orch, resolver, cacheSvc, sessionRepo, mealLogRepo, claudeText, clock)
	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	mealHandler := handlers.NewMealHandler(mealLogRepo, analysisService)

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))

		// Meal analysis routes

		// Analyze a photo, text, or audio meal submission
		apiProtected.POST("/meals/analyze", middleware.RateLimitByIP(5, 10*time.Minute, 30*time.Minute), analysisHandler.AnalyzeMeal)
		// Answer a pending clarification question
		apiProtected.POST("/meals/clarify", analysisHandler.ClarifyMeal)

		// Meal history routes

		// List the authenticated user's meal history
		apiProtected.GET("/meals", mealHandler.ListMeals)
		// Get a single logged meal by its ID
		apiProtected.GET("/meals/:meal_id", mealHandler.GetMeal)
	}

	// Internal maintenance routes, guarded by the identifier header
	internal := r.Group("/internal")
	{
		internal.Use(middleware.CheckIDHeader(cfg.EnvVars.IDHeader))
		internal.POST("/sweep", mealHandler.SweepExpired)
	}

	// WebSocket routes (authenticated via query param token)
	hub := ws.NewHub()
	go hub.Run()
	voiceHandler := ws.NewVoiceHandler(hub, cfg.EnvVars.JwtSecretKey, analysisService)
	r.GET("/v1/ws/voice", voiceHandler.HandleVoiceLog)

	return r
}
