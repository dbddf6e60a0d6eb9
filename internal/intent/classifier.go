// Package intent classifies transcripts and resolves capital answers.
package intent

import (
	"context"

	"voice-agent-service/internal/models"
)

// Classifier is the LLM boundary. One classification call per utterance,
// no internal retries.
type Classifier interface {
	// ClassifyIntent determines whether text asks for a country or US
	// state capital and extracts the entity name.
	ClassifyIntent(ctx context.Context, text string) (models.IntentResult, error)

	// GenerateAnswer phrases a short conversational answer for a
	// resolved capital.
	GenerateAnswer(ctx context.Context, queryType models.QueryType, entity, capital string) (string, error)
}
