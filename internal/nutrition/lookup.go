package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mealscan/mealscan-api/internal/models"
)

// LookupMissError reports that no nutrition data exists for a food name.
type LookupMissError struct {
	Name string
}

func (e LookupMissError) Error() string {
	return "no nutrition data found for: " + e.Name
}

// LookupProvider resolves per-100g nutrition for a food name.
type LookupProvider interface {
	LookupFood(ctx context.Context, name string) (*models.PerHundredGram, error)
}

// OpenFoodFactsClient looks up foods against the Open Food Facts search API.
type OpenFoodFactsClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenFoodFactsClient creates a lookup client with a bounded HTTP timeout.
func NewOpenFoodFactsClient() *OpenFoodFactsClient {
	return &OpenFoodFactsClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://world.openfoodfacts.org",
	}
}

// offSearchResponse mirrors the slice of the search payload we consume.
type offSearchResponse struct {
	Products []struct {
		ProductName string                     `json:"product_name"`
		Nutriments  map[string]json.RawMessage `json:"nutriments"`
	} `json:"products"`
}

// LookupFood searches Open Food Facts and returns per-100g macros from the
// first product that carries calorie data.
func (c *OpenFoodFactsClient) LookupFood(ctx context.Context, name string) (*models.PerHundredGram, error) {
	endpoint := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=5",
		c.baseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("User-Agent", "mealscan-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nutrition lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nutrition lookup returned status %d", resp.StatusCode)
	}

	var search offSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	for _, product := range search.Products {
		kcal := nutrimentFloat(product.Nutriments, "energy-kcal_100g")
		if kcal <= 0 {
			continue
		}
		return &models.PerHundredGram{
			CaloriesKcal: kcal,
			ProteinG:     nutrimentFloat(product.Nutriments, "proteins_100g"),
			CarbsG:       nutrimentFloat(product.Nutriments, "carbohydrates_100g"),
			FatG:         nutrimentFloat(product.Nutriments, "fat_100g"),
		}, nil
	}

	return nil, LookupMissError{Name: name}
}

// nutrimentFloat coerces a nutriment value that the API returns as either a
// number or a numeric string.
func nutrimentFloat(nutriments map[string]json.RawMessage, key string) float64 {
	raw, ok := nutriments[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var sf float64
		if _, err := fmt.Sscanf(s, "%f", &sf); err == nil {
			return sf
		}
	}
	return 0
}

var _ LookupProvider = (*OpenFoodFactsClient)(nil)
