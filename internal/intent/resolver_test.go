package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/models"
)

type fakeClassifier struct {
	result      models.IntentResult
	classifyErr error

	answer    string
	answerErr error

	classifyCalls int
	answerCalls   int
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, text string) (models.IntentResult, error) {
	f.classifyCalls++
	return f.result, f.classifyErr
}

func (f *fakeClassifier) GenerateAnswer(ctx context.Context, queryType models.QueryType, entity, capital string) (string, error) {
	f.answerCalls++
	if f.answerErr != nil {
		return "", f.answerErr
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return FallbackAnswer(entity, capital), nil
}

func newResolver(t *testing.T, c Classifier) *Resolver {
	t.Helper()
	table, err := capitals.Load()
	if err != nil {
		t.Fatalf("capitals.Load failed: %v", err)
	}
	return NewResolver(c, table)
}

func TestResolve_CountryCapital(t *testing.T) {
	c := &fakeClassifier{result: models.IntentResult{QueryType: models.QueryCountry, Entity: "France"}}
	r := newResolver(t, c)

	response, ir, capital := r.Resolve(context.Background(), "What is the capital of France?")

	if capital != "Paris" {
		t.Errorf("capital = %q, want Paris", capital)
	}
	if ir.QueryType != models.QueryCountry || ir.Entity != "France" {
		t.Errorf("unexpected intent: %+v", ir)
	}
	if response != "The capital of France is Paris." {
		t.Errorf("response = %q", response)
	}
}

func TestResolve_OtherSkipsLookup(t *testing.T) {
	c := &fakeClassifier{result: models.IntentResult{QueryType: models.QueryOther}}
	r := newResolver(t, c)

	response, ir, capital := r.Resolve(context.Background(), "What's the weather today?")

	if response != UnsupportedQueryResponse {
		t.Errorf("response = %q", response)
	}
	if ir.QueryType != models.QueryOther || capital != "" {
		t.Errorf("unexpected outcome: %+v, capital %q", ir, capital)
	}
	if c.answerCalls != 0 {
		t.Error("answer phrasing must not run for out-of-domain queries")
	}
}

func TestResolve_ClassifierErrorDegradesToOther(t *testing.T) {
	c := &fakeClassifier{classifyErr: errors.New("model unreachable")}
	r := newResolver(t, c)

	response, ir, _ := r.Resolve(context.Background(), "capital of France")

	if ir.QueryType != models.QueryOther {
		t.Errorf("queryType = %s, want other", ir.QueryType)
	}
	if response != UnsupportedQueryResponse {
		t.Errorf("response = %q", response)
	}
}

func TestResolve_UnknownEntity(t *testing.T) {
	c := &fakeClassifier{result: models.IntentResult{QueryType: models.QueryCountry, Entity: "Atlantis"}}
	r := newResolver(t, c)

	response, _, capital := r.Resolve(context.Background(), "capital of Atlantis")

	if capital != "" {
		t.Errorf("capital = %q, want empty", capital)
	}
	if !strings.Contains(response, "Atlantis") || response == UnsupportedQueryResponse {
		t.Errorf("not-found response must name the entity and differ from the out-of-domain message, got %q", response)
	}
}

func TestResolve_MissingEntity(t *testing.T) {
	c := &fakeClassifier{result: models.IntentResult{QueryType: models.QueryState}}
	r := newResolver(t, c)

	response, _, _ := r.Resolve(context.Background(), "what's the capital?")

	if response != UnclearEntityResponse {
		t.Errorf("response = %q", response)
	}
}

func TestResolve_PhrasingFailureUsesTemplate(t *testing.T) {
	c := &fakeClassifier{
		result:    models.IntentResult{QueryType: models.QueryState, Entity: "Texas"},
		answerErr: errors.New("model unreachable"),
	}
	r := newResolver(t, c)

	response, _, capital := r.Resolve(context.Background(), "capital of Texas")

	if capital != "Austin" {
		t.Errorf("capital = %q, want Austin", capital)
	}
	if response != "The capital of Texas is Austin." {
		t.Errorf("response = %q", response)
	}
}

func TestParseIntentResponse(t *testing.T) {
	tests := []struct {
		in   string
		want models.IntentResult
	}{
		{"CAPITAL_QUERY:COUNTRY:France", models.IntentResult{QueryType: models.QueryCountry, Entity: "France"}},
		{"  CAPITAL_QUERY:STATE:New York  ", models.IntentResult{QueryType: models.QueryState, Entity: "New York"}},
		{"OTHER_QUERY", models.IntentResult{QueryType: models.QueryOther}},
		{"CAPITAL_QUERY:PLANET:Mars", models.IntentResult{QueryType: models.QueryOther}},
		{"CAPITAL_QUERY:", models.IntentResult{QueryType: models.QueryOther}},
		{"some rambling answer", models.IntentResult{QueryType: models.QueryOther}},
	}

	for _, tt := range tests {
		if got := ParseIntentResponse(tt.in); got != tt.want {
			t.Errorf("ParseIntentResponse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
