package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mealscan/mealscan-api/internal/config"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/util"
	"go.uber.org/zap"
)

// AnthropicProvider implements VisionProvider, TextProvider and
// ClarifyProvider using Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	prompts *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API key
// and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.ModelClaude3_5Sonnet20241022,
		prompts: prompts,
	}
}

// NewAnthropicLightProvider creates an AnthropicProvider using the cheaper
// Haiku model. Used for text-only recognition and clarification questions,
// where cost matters more than maximum quality.
func NewAnthropicLightProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.Model("claude-haiku-4-5-20251001"),
		prompts: prompts,
	}
}

// logMealTool builds the Claude tool definition that forces structured meal
// output.
func logMealTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "log_meal",
			Description: anthropic.String("Log the foods identified in the meal with weight and cooking-method estimates."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"description": map[string]interface{}{
						"type":        "string",
						"description": "One or two sentences describing the whole meal, naming each food and any visible preparation detail",
					},
					"items": map[string]interface{}{
						"type":        "array",
						"description": "One entry per distinct food in the meal",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name":               map[string]interface{}{"type": "string", "description": "Specific food name, e.g. 'grilled chicken breast', never a category like 'meat'"},
								"estimated_weight_g": map[string]interface{}{"type": "number", "description": "Estimated cooked weight in grams; omit if no reasonable estimate is possible"},
								"cooking_method":     map[string]interface{}{"type": "string", "description": "Cooking method if identifiable", "enum": []string{"grilled", "fried", "deep-fried", "steamed", "baked", "roasted", "boiled", "raw", "saute", "smoked"}},
							},
						},
					},
				},
			},
		},
	}
}

// mealToolResult is the JSON structure returned by the log_meal tool call.
type mealToolResult struct {
	Description string `json:"description"`
	Items       []struct {
		Name             string  `json:"name"`
		EstimatedWeightG float64 `json:"estimated_weight_g"`
		CookingMethod    string  `json:"cooking_method"`
	} `json:"items"`
}

func toolResultToObservation(tr *mealToolResult) *MealObservation {
	items := make([]ObservedItem, len(tr.Items))
	for i, it := range tr.Items {
		items[i] = ObservedItem{
			Name:             it.Name,
			EstimatedWeightG: it.EstimatedWeightG,
			CookingMethod:    it.CookingMethod,
		}
	}
	return &MealObservation{
		Description: tr.Description,
		Items:       items,
	}
}

// newUserMessage creates a user message param with the given content blocks.
func newUserMessage(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	}
}

// createMessageWithRetry wraps the Claude API call with exponential backoff.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 5
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("claude API error: %w", err)
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := waitTime * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return true, 2 * time.Second
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return true, 2 * time.Second
		case http.StatusUnauthorized:
			return false, 0
		default:
			return false, 0
		}
	}
	return false, 0
}

// extractMealFromToolUse parses the tool-use content block returned by Claude.
func extractMealFromToolUse(msg *anthropic.Message) (*MealObservation, error) {
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			raw, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			var tr mealToolResult
			if err := json.Unmarshal(raw, &tr); err != nil {
				return nil, fmt.Errorf("failed to parse log_meal tool result: %w", err)
			}
			return toolResultToObservation(&tr), nil
		}
	}
	return nil, errors.New("no tool_use block found in Claude response")
}

// extractTextContent returns the concatenated text blocks from a Claude response.
func extractTextContent(msg *anthropic.Message) (string, error) {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("no text content in Claude response")
	}
	return text, nil
}

// AnalyzeMealImage identifies foods in a meal photo via Claude tool use.
func (p *AnthropicProvider) AnalyzeMealImage(ctx context.Context, imageData []byte, hint string) (*MealObservation, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Analysis.Vision.System, map[string]interface{}{
		"Hint": hint,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(imageData)
	mediaType := util.DetectImageMediaType(imageData)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(
				anthropic.ContentBlockParamUnion{
					OfRequestImageBlock: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfBase64ImageSource: &anthropic.Base64ImageSourceParam{
								MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
								Data:      b64,
							},
						},
					},
				},
				anthropic.NewTextBlock(strings.TrimSpace(p.prompts.Analysis.Vision.User)),
			),
		},
		Tools: []anthropic.ToolUnionParam{logMealTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "log_meal",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return extractMealFromToolUse(resp)
}

// AnalyzeMealText identifies foods in a free-text meal description.
func (p *AnthropicProvider) AnalyzeMealText(ctx context.Context, text string) (*MealObservation, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Analysis.Text.System, nil)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(p.prompts.Analysis.Text.User, map[string]interface{}{
		"Text": text,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Tools: []anthropic.ToolUnionParam{logMealTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "log_meal",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return extractMealFromToolUse(resp)
}

// ComposeClarificationQuestion asks Claude for the single most useful
// follow-up question about an uncertain analysis.
func (p *AnthropicProvider) ComposeClarificationQuestion(ctx context.Context, description string, itemNames []string) (string, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Clarify.System, nil)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	userText := fmt.Sprintf("Uncertain analysis: %s\nIdentified items: %s", description, strings.Join(itemNames, ", "))

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userText)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	return extractTextContent(resp)
}
