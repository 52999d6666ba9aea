package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// MealLog is a persisted record of one completed analysis, kept so users can
// browse their meal history.
type MealLog struct {
	gorm.Model
	UserID        uint           `gorm:"index"`
	Fingerprint   string         `gorm:"size:128;index"`
	Modality      Modality       `gorm:"size:16"`
	Source        ProviderID     `gorm:"size:32"`
	Description   string
	ItemsJSON     []byte         `gorm:"type:bytea"` // serialized []FoodItem
	CaloriesKcal  float64
	ProteinG      float64
	CarbsG        float64
	FatG          float64
	Confidence    float64
	LowConfidence bool
	Disclaimers   pq.StringArray `gorm:"type:text[]"`
	PhotoURL      string
}
