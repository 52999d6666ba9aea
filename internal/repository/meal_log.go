package repository

import (
	"errors"

	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MealLogRepository is a repository for persisted meal history.
type MealLogRepository struct {
	DB *gorm.DB
}

// NewMealLogRepository creates a new MealLogRepository.
func NewMealLogRepository(db *gorm.DB) *MealLogRepository {
	return &MealLogRepository{DB: db}
}

// CreateMealLog stores a new meal log entry.
func (r *MealLogRepository) CreateMealLog(log *models.MealLog) error {
	if err := r.DB.Create(log).Error; err != nil {
		logger.Get().Error("failed to create meal log", zap.Uint("user_id", log.UserID), zap.Error(err))
		return err
	}
	return nil
}

// GetUserMealLogs retrieves one page of the user's meal history, newest first,
// along with the total count.
func (r *MealLogRepository) GetUserMealLogs(userID uint, page, perPage int) ([]models.MealLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := r.DB.Model(&models.MealLog{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		logger.Get().Error("failed to count meal logs", zap.Uint("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	var logs []models.MealLog
	if err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&logs).Error; err != nil {
		logger.Get().Error("failed to get meal logs", zap.Uint("user_id", userID), zap.Error(err))
		return nil, 0, err
	}
	return logs, total, nil
}

// GetMealLogByID retrieves a single meal log entry.
func (r *MealLogRepository) GetMealLogByID(id uint) (*models.MealLog, error) {
	var log models.MealLog
	if err := r.DB.First(&log, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("meal log not found")
		}
		logger.Get().Error("failed to get meal log", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &log, nil
}

// UpdateMealLogPhotoURL records the archived photo location after upload.
func (r *MealLogRepository) UpdateMealLogPhotoURL(id uint, photoURL string) error {
	if err := r.DB.Model(&models.MealLog{}).
		Where("id = ?", id).
		Update("photo_url", photoURL).Error; err != nil {
		logger.Get().Error("failed to update meal log photo URL", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

var _ MealLogRepo = (*MealLogRepository)(nil)
