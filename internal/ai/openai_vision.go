package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIVisionProvider implements VisionProvider using GPT-4o-mini vision.
// It is the cheaper, less detailed fallback behind the Claude vision adapter.
type OpenAIVisionProvider struct {
	apiKey string
}

// NewOpenAIVisionProvider creates a new OpenAI vision provider.
func NewOpenAIVisionProvider(apiKey string) *OpenAIVisionProvider {
	return &OpenAIVisionProvider{apiKey: apiKey}
}

const openAIVisionSystemPrompt = `You identify foods in meal photos. Respond with ONLY a JSON object:
{"description": "<one sentence describing the meal>", "items": [{"name": "<specific food name>", "estimated_weight_g": <number or 0 if unknown>, "cooking_method": "<method or empty string>"}]}`

// visionJSONResult mirrors the JSON the model is instructed to return.
type visionJSONResult struct {
	Description string `json:"description"`
	Items       []struct {
		Name             string  `json:"name"`
		EstimatedWeightG float64 `json:"estimated_weight_g"`
		CookingMethod    string  `json:"cooking_method"`
	} `json:"items"`
}

// AnalyzeMealImage identifies foods in a photo via the chat vision API.
func (p *OpenAIVisionProvider) AnalyzeMealImage(ctx context.Context, imageData []byte, hint string) (*MealObservation, error) {
	if len(imageData) == 0 {
		return nil, errors.New("image data is empty")
	}

	mediaType := util.DetectImageMediaType(imageData)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(imageData))

	userText := "Identify the foods in this photo."
	if hint != "" {
		userText += " Caption from the user: " + hint
	}

	client := openai.NewClient(p.apiKey)
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     openai.GPT4oMini,
			MaxTokens: 1024,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: openAIVisionSystemPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailLow,
							},
						},
						{
							Type: openai.ChatMessagePartTypeText,
							Text: userText,
						},
					},
				},
			},
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, errors.New("OpenAI vision returned no choices")
			}
			return parseVisionJSON(resp.Choices[0].Message.Content)
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("OpenAI vision API error: %w", err)
		}

		logger.Get().Warn("OpenAI vision API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return nil, fmt.Errorf("OpenAI vision API: exhausted %d retries: %w", maxRetries, lastErr)
}

// parseVisionJSON parses the model's JSON reply, tolerating a markdown fence.
func parseVisionJSON(content string) (*MealObservation, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result visionJSONResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse vision response: %w", err)
	}

	items := make([]ObservedItem, len(result.Items))
	for i, it := range result.Items {
		items[i] = ObservedItem{
			Name:             it.Name,
			EstimatedWeightG: it.EstimatedWeightG,
			CookingMethod:    it.CookingMethod,
		}
	}
	return &MealObservation{
		Description: result.Description,
		Items:       items,
	}, nil
}

// classifyOpenAIError determines whether an OpenAI API error is retryable.
func classifyOpenAIError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return true, 2 * time.Second
		case 500, 502, 503:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}
