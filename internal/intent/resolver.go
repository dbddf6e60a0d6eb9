package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/observability/metrics"
)

// Fixed user-visible responses. The out-of-domain message is distinct
// from the not-found message so callers can tell "we don't do that"
// apart from "we do that, but don't know this one".
const (
	UnsupportedQueryResponse = "I'm sorry, but I can only provide information about country and state capitals. For other questions, this information is not available."
	UnclearEntityResponse    = "I'm sorry, I couldn't understand which country or state you're asking about."
)

// NotFoundResponse formats the fixed unknown-entity message.
func NotFoundResponse(entity string) string {
	return fmt.Sprintf("I'm sorry, I don't have information about the capital of %s.", entity)
}

// FallbackAnswer formats the deterministic answer used when the LLM
// phrasing call fails.
func FallbackAnswer(entity, capital string) string {
	return fmt.Sprintf("The capital of %s is %s.", entity, capital)
}

// Resolver turns a transcript into an answer via the classifier and the
// capitals table. Classification failures degrade to an out-of-domain
// verdict; they never fail the pipeline.
type Resolver struct {
	classifier Classifier
	table      *capitals.Table
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewResolver wires a classifier to the lookup table.
func NewResolver(classifier Classifier, table *capitals.Table) *Resolver {
	return &Resolver{
		classifier: classifier,
		table:      table,
		log:        logging.WithComponent("intent-resolver"),
		metrics:    metrics.DefaultMetrics,
	}
}

// Resolve classifies text and produces the response. The returned
// capital is empty unless a lookup succeeded. An Other verdict never
// consults the table.
func (r *Resolver) Resolve(ctx context.Context, text string) (response string, ir models.IntentResult, capital string) {
	start := time.Now()
	ir, err := r.classifier.ClassifyIntent(ctx, text)
	if err != nil {
		r.log.Warn().Err(err).Msg("Classifier failed, treating query as out of domain")
		ir = models.IntentResult{QueryType: models.QueryOther}
	}
	r.metrics.RecordIntent(string(ir.QueryType), time.Since(start).Seconds())

	if ir.QueryType == models.QueryOther {
		return UnsupportedQueryResponse, ir, ""
	}

	if ir.Entity == "" {
		return UnclearEntityResponse, ir, ""
	}

	capital, found := r.table.Lookup(ir.QueryType, ir.Entity)
	if !found {
		r.metrics.RecordLookupMiss()
		r.log.Info().Str("queryType", string(ir.QueryType)).Str("entity", ir.Entity).Msg("Entity not in capitals table")
		return NotFoundResponse(ir.Entity), ir, ""
	}

	answer, err := r.classifier.GenerateAnswer(ctx, ir.QueryType, ir.Entity, capital)
	if err != nil || answer == "" {
		if err != nil {
			r.log.Warn().Err(err).Msg("Answer phrasing failed, using fallback template")
		}
		answer = FallbackAnswer(ir.Entity, capital)
	}

	return answer, ir, capital
}
