package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/repository"
	"github.com/mealscan/mealscan-api/internal/service"
	"github.com/mealscan/mealscan-api/internal/util"
	"go.uber.org/zap"
)

// MealHandler serves the persisted meal history.
type MealHandler struct {
	MealLogs repository.MealLogRepo
	Service  *service.AnalysisService
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(mealLogs repository.MealLogRepo, svc *service.AnalysisService) *MealHandler {
	return &MealHandler{MealLogs: mealLogs, Service: svc}
}

// ListMeals handles GET /v1/meals
func (h *MealHandler) ListMeals(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	page, perPage := parsePageParams(c.Query("page"), c.Query("per_page"))

	logs, total, err := h.MealLogs.GetUserMealLogs(userID, page, perPage)
	if err != nil {
		logger.Get().Error("failed to list meals", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals":    logs,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetMeal handles GET /v1/meals/:meal_id
func (h *MealHandler) GetMeal(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mealID, err := parseUintParam(c.Param("meal_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal ID"})
		return
	}

	mealLog, err := h.MealLogs.GetMealLogByID(mealID)
	if err != nil {
		var nfe repository.NotFoundError
		if errors.As(err, &nfe) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
			return
		}
		logger.Get().Error("failed to get meal", zap.Uint("meal_id", mealID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get meal"})
		return
	}

	if mealLog.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
		return
	}

	c.JSON(http.StatusOK, mealLog)
}

// SweepExpired handles POST /internal/sweep, the guarded maintenance route.
func (h *MealHandler) SweepExpired(c *gin.Context) {
	removed, err := h.Service.SweepExpired()
	if err != nil {
		logger.Get().Error("sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
