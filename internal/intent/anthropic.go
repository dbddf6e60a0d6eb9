package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"voice-agent-service/internal/models"
)

// AnthropicClassifier implements Classifier against the Anthropic
// Messages API.
type AnthropicClassifier struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClassifier creates a classifier using the given model.
func NewAnthropicClassifier(apiKey, model string) *AnthropicClassifier {
	return &AnthropicClassifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

const intentPromptTemplate = `You are a voice assistant that only answers questions about country and state capitals.

User input: %q

Determine if the user is asking about a country or US state capital.

Rules:
1. If the user is asking about a country capital, respond with: CAPITAL_QUERY:COUNTRY:<country_name>
2. If the user is asking about a US state capital, respond with: CAPITAL_QUERY:STATE:<state_name>
3. If the user is asking about anything else, respond with: OTHER_QUERY

Examples:
- "What is the capital of France?" -> CAPITAL_QUERY:COUNTRY:France
- "What's the capital of California?" -> CAPITAL_QUERY:STATE:California
- "What's the weather like?" -> OTHER_QUERY
- "Tell me about history" -> OTHER_QUERY

Response:`

// ClassifyIntent asks the model for a single-line verdict and parses it.
func (c *AnthropicClassifier) ClassifyIntent(ctx context.Context, text string) (models.IntentResult, error) {
	out, err := c.complete(ctx, fmt.Sprintf(intentPromptTemplate, text), 100, 0.1)
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("classify intent: %w", err)
	}
	return ParseIntentResponse(out), nil
}

const answerPromptTemplate = `Generate a natural, conversational response for a voice assistant.

Context: User asked about the capital of %s (%s)

Capital: %s

Generate a friendly, conversational response that states the capital. Keep it concise for voice interaction.

Response:`

// GenerateAnswer asks the model to phrase the answer conversationally.
func (c *AnthropicClassifier) GenerateAnswer(ctx context.Context, queryType models.QueryType, entity, capital string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf(answerPromptTemplate, entity, queryType, capital), 50, 0.7)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return out, nil
}

func (c *AnthropicClassifier) complete(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// ParseIntentResponse decodes the model's verdict line. Anything that
// does not match the capital-query shape is treated as an out-of-domain
// query.
func ParseIntentResponse(response string) models.IntentResult {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "CAPITAL_QUERY:") {
		return models.IntentResult{QueryType: models.QueryOther}
	}

	parts := strings.SplitN(response, ":", 3)
	if len(parts) < 3 {
		return models.IntentResult{QueryType: models.QueryOther}
	}

	entity := strings.TrimSpace(parts[2])
	switch strings.ToUpper(strings.TrimSpace(parts[1])) {
	case "COUNTRY":
		return models.IntentResult{QueryType: models.QueryCountry, Entity: entity}
	case "STATE":
		return models.IntentResult{QueryType: models.QueryState, Entity: entity}
	default:
		return models.IntentResult{QueryType: models.QueryOther}
	}
}
