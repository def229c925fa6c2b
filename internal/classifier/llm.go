package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// DefaultModel is used when no model is configured
const DefaultModel = "claude-sonnet-4-5-20250929"

const systemPrompt = `You triage customer support tickets.
Classify the ticket into exactly one category: Technical, Billing or Legal.
Rate urgency from 0 (can wait) to 1 (service is down or customer is blocked).
Reply with a single JSON object and nothing else:
{"category": "<Technical|Billing|Legal>", "urgency_score": <number between 0 and 1>}`

// LLM classifies tickets through the Anthropic Messages API. It is the
// primary classifier: accurate but slow and occasionally unavailable.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    zerolog.Logger
}

// NewLLM creates an Anthropic-backed classifier
func NewLLM(apiKey, model string, logger zerolog.Logger) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &LLM{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 256,
		logger:    logger.With().Str("component", "llm_classifier").Str("model", model).Logger(),
	}, nil
}

// Classify asks the model for a category and urgency. Any transport error or
// malformed answer is returned as an error so the breaker can count it.
func (c *LLM) Classify(ctx context.Context, text string) (types.Classification, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return types.Classification{}, fmt.Errorf("anthropic API error: %w", err)
	}

	c.logger.Debug().
		Int64("tokens_in", message.Usage.InputTokens).
		Int64("tokens_out", message.Usage.OutputTokens).
		Msg("classification response")

	for _, block := range message.Content {
		if block.Type == "text" {
			return interpret(text, block.Text)
		}
	}
	return types.Classification{}, fmt.Errorf("no text content in anthropic response")
}

type modelAnswer struct {
	Category     string   `json:"category"`
	UrgencyScore *float64 `json:"urgency_score"`
}

// interpret parses a model reply for ticket text. The reply may wrap the JSON
// object in prose or a code fence.
func interpret(text, reply string) (types.Classification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return types.Classification{}, fmt.Errorf("no JSON object in model reply")
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(reply[start:end+1]), &answer); err != nil {
		return types.Classification{}, fmt.Errorf("invalid model reply: %w", err)
	}

	category, ok := parseCategory(answer.Category)
	if !ok {
		return types.Classification{}, fmt.Errorf("unknown category %q", answer.Category)
	}
	if answer.UrgencyScore == nil {
		return types.Classification{}, fmt.Errorf("model reply missing urgency_score")
	}

	urgency := *answer.UrgencyScore
	if urgency < 0 {
		urgency = 0
	}
	if urgency > 1 {
		urgency = 1
	}

	return types.Classification{
		Category:     category,
		UrgencyScore: bumpUrgency(text, urgency),
	}, nil
}

func parseCategory(s string) (types.Category, bool) {
	for _, c := range types.AllCategories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}
