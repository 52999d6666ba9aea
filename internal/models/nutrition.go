package models

// PerHundredGram holds macro values per 100g of a food, as returned by the
// nutrition lookup provider.
type PerHundredGram struct {
	CaloriesKcal   float64            `json:"calories_kcal"`
	ProteinG       float64            `json:"protein_g"`
	CarbsG         float64            `json:"carbs_g"`
	FatG           float64            `json:"fat_g"`
	Micronutrients map[string]float64 `json:"micronutrients,omitempty"`
}

// NutritionRecord is the resolved nutrition for a single food item, scaled
// linearly from per-100g values by the item's weight. Estimated is set when
// the default portion was substituted for a missing weight; Missing is set
// when the lookup found no match and the record contributes zero.
type NutritionRecord struct {
	Item         string  `json:"item"`
	WeightG      float64 `json:"weight_g"`
	Estimated    bool    `json:"estimated"`
	Missing      bool    `json:"missing"`
	CaloriesKcal float64 `json:"calories_kcal"`
	ProteinG     float64 `json:"protein_g"`
	CarbsG       float64 `json:"carbs_g"`
	FatG         float64 `json:"fat_g"`
}

// MealNutrition is the per-item records summed into one meal total.
type MealNutrition struct {
	CaloriesKcal float64           `json:"calories_kcal"`
	ProteinG     float64           `json:"protein_g"`
	CarbsG       float64           `json:"carbs_g"`
	FatG         float64           `json:"fat_g"`
	Records      []NutritionRecord `json:"records,omitempty"`
	Estimated    bool              `json:"estimated"`
	MissingItems []string          `json:"missing_items,omitempty"`
}
