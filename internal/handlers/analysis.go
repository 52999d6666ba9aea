package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/service"
	"github.com/mealscan/mealscan-api/internal/util"
	"go.uber.org/zap"
)

// AnalysisHandler handles meal analysis requests.
type AnalysisHandler struct {
	Service *service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(svc *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{Service: svc}
}

// analyzeJSONRequest is the JSON body accepted by AnalyzeMeal when no
// multipart file is attached.
type analyzeJSONRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

// clarifyRequest answers a pending clarification question.
type clarifyRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

// AnalyzeMeal handles POST /v1/meals/analyze. It accepts a multipart form
// with a "photo" or "audio" file (plus optional "caption"), or a JSON body
// with either free text or a fetchable image URL.
func (h *AnalysisHandler) AnalyzeMeal(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	raw, ok := h.buildSubmission(c, userID)
	if !ok {
		return
	}

	outcome, err := h.Service.AnalyzeSubmission(c.Request.Context(), raw)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ClarifyMeal handles POST /v1/meals/clarify.
func (h *AnalysisHandler) ClarifyMeal(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req clarifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_key and text are required"})
		return
	}

	outcome, err := h.Service.ResolveClarification(c.Request.Context(), userID, req.SessionKey, req.Text)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// buildSubmission assembles a RawSubmission from either form. On failure it
// writes the error response and returns ok=false.
func (h *AnalysisHandler) buildSubmission(c *gin.Context, userID uint) (pipeline.RawSubmission, bool) {
	if photo, _, err := c.Request.FormFile("photo"); err == nil {
		defer photo.Close()
		imgBytes, err := io.ReadAll(photo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read photo"})
			return pipeline.RawSubmission{}, false
		}
		return pipeline.RawSubmission{
			Modality:  models.ModalityImage,
			ImageData: imgBytes,
			Text:      c.PostForm("caption"),
			UserID:    userID,
		}, true
	}

	if audio, _, err := c.Request.FormFile("audio"); err == nil {
		defer audio.Close()
		audioBytes, err := io.ReadAll(audio)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audio"})
			return pipeline.RawSubmission{}, false
		}
		return pipeline.RawSubmission{
			Modality:  models.ModalityAudio,
			AudioData: audioBytes,
			UserID:    userID,
		}, true
	}

	var req analyzeJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a photo or audio file, or a JSON body with text or image_url"})
		return pipeline.RawSubmission{}, false
	}

	if req.ImageURL != "" {
		return pipeline.RawSubmission{
			Modality: models.ModalityImage,
			ImageURL: req.ImageURL,
			Text:     req.Caption,
			UserID:   userID,
		}, true
	}
	if req.Text != "" {
		return pipeline.RawSubmission{
			Modality: models.ModalityText,
			Text:     req.Text,
			UserID:   userID,
		}, true
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "Submission is empty"})
	return pipeline.RawSubmission{}, false
}

// writeAnalysisError maps pipeline errors onto HTTP responses.
func (h *AnalysisHandler) writeAnalysisError(c *gin.Context, err error) {
	var ume pipeline.UnsupportedMediaError
	if errors.As(err, &ume) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ume.Error()})
		return
	}
	logger.Get().Error("meal analysis failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze meal"})
}
