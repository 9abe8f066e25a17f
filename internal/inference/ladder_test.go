package inference

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/halvext/drift/internal/profile"
)

// fakeService scripts per-call responses: each Infer pops the next entry.
type fakeService struct {
	responses []fakeResponse
	calls     []Request
	healthy   bool
	recreates int
}

type fakeResponse struct {
	raw json.RawMessage
	err error
}

func (f *fakeService) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.raw, next.err
}

func (f *fakeService) Healthy(ctx context.Context) bool   { return f.healthy }
func (f *fakeService) Recreate(ctx context.Context) error { f.recreates++; f.healthy = true; return nil }
func (f *fakeService) Close() error                       { return nil }

func TestClassifyQuery_StructuredSuccess(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{raw: json.RawMessage(`{"intent":"instructional","topics":[{"topic":"go","weight":0.8},{"topic":"databases","weight":0.2}],"confidence":0.9,"specificity":0.85}`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.ClassifyQuery(context.Background(), "how to use sqlite from go")

	if got.Intent != profile.IntentInstructional {
		t.Errorf("Intent = %q, want instructional", got.Intent)
	}
	if got.Confidence != 0.9 || got.Specificity != 0.85 {
		t.Errorf("Confidence/Specificity = %v/%v", got.Confidence, got.Specificity)
	}
	if len(got.Topics) != 2 || got.Topics[0].Topic != "go" {
		t.Errorf("Topics = %v", got.Topics)
	}
	if len(svc.calls) != 1 {
		t.Errorf("calls = %d, want 1 (structured only)", len(svc.calls))
	}
	if svc.calls[0].Schema == nil {
		t.Error("first call should carry a schema")
	}
}

func TestClassifyQuery_FreeTextRecovery(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{err: errors.New("structured output unsupported")},
		{raw: json.RawMessage(`"Here you go: {\"intent\":\"transactional\",\"topics\":[{\"topic\":\"Shopping\",\"weight\":1}],\"confidence\":0.7,\"specificity\":0.6}"`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.ClassifyQuery(context.Background(), "best price noise cancelling headphones")

	if got.Intent != profile.IntentTransactional {
		t.Errorf("Intent = %q, want transactional (recovered from free text)", got.Intent)
	}
	if len(svc.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(svc.calls))
	}
	if svc.calls[1].Schema != nil {
		t.Error("second call should be free text")
	}
}

func TestClassifyQuery_HeuristicFallback(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{err: errors.New("down")},
		{err: errors.New("still down")},
	}}
	c := NewClassifier(svc, nil)

	got := c.ClassifyQuery(context.Background(), "how to fix kernel panic")

	if got.Intent != profile.IntentInstructional {
		t.Errorf("Intent = %q, want heuristic instructional", got.Intent)
	}
	if got.Confidence != heuristicConfidence {
		t.Errorf("Confidence = %v, want heuristic %v", got.Confidence, heuristicConfidence)
	}
}

func TestClassifyQuery_NilServiceUsesHeuristic(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.ClassifyQuery(context.Background(), "buy a bike")

	if got.Intent != profile.IntentTransactional {
		t.Errorf("Intent = %q, want transactional via heuristic", got.Intent)
	}
}

func TestClassifyQuery_EmptyQueryStaticDefault(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.ClassifyQuery(context.Background(), "   ")

	if got.Intent != profile.IntentInformational {
		t.Errorf("Intent = %q", got.Intent)
	}
	if len(got.Topics) != 1 || got.Topics[0].Topic != profile.DefaultTopic {
		t.Errorf("Topics = %v, want static General", got.Topics)
	}
}

func TestClassifyQuery_InvalidIntentRejected(t *testing.T) {
	// Structured result with a bogus intent falls through to heuristic
	svc := &fakeService{responses: []fakeResponse{
		{raw: json.RawMessage(`{"intent":"curious","topics":[{"topic":"a","weight":1}],"confidence":0.9,"specificity":0.9}`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.ClassifyQuery(context.Background(), "how to brew coffee")

	if got.Confidence != heuristicConfidence {
		t.Errorf("invalid structured intent should fall back to heuristic, got %+v", got)
	}
}

func TestClassifyQuery_ConfidenceClamped(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{raw: json.RawMessage(`{"intent":"informational","topics":[{"topic":"a","weight":1}],"confidence":3.5,"specificity":-1}`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.ClassifyQuery(context.Background(), "something")

	if got.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", got.Confidence)
	}
	if got.Specificity != 0 {
		t.Errorf("Specificity = %v, want clamped to 0", got.Specificity)
	}
}

func TestPageTopics_Structured(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{raw: json.RawMessage(`{"topics":[{"topic":"Science","weight":0.7},{"topic":"News","weight":0.3}]}`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.PageTopics(context.Background(), "nature.com", "new results in particle physics")

	if len(got) != 2 || got[0].Topic != "Science" {
		t.Errorf("Topics = %v", got)
	}
	sum := 0.0
	for _, tw := range got {
		sum += tw.Weight
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("weights sum = %v", sum)
	}
}

func TestPageTopics_HeuristicFallback(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{err: errors.New("down")},
		{err: errors.New("down")},
	}}
	c := NewClassifier(svc, nil)

	got := c.PageTopics(context.Background(), "example.com", "stock market invest bank analysis")

	found := false
	for _, tw := range got {
		if tw.Topic == "Finance" {
			found = true
		}
	}
	if !found {
		t.Errorf("Topics = %v, want Finance via heuristic", got)
	}
}

func TestSummarize_ModelText(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{raw: json.RawMessage(`"You mostly read about Go and databases."`)},
	}}
	c := NewClassifier(svc, nil)

	got := c.Summarize(context.Background(), SummaryInput{
		DominantTopic: "go",
		TopTopics:     []profile.TopicWeight{{Topic: "go", Weight: 0.8}},
		IntentFocus:   profile.IntentInformational,
		SessionsSeen:  5,
		Confidence:    0.625,
	})

	if got != "You mostly read about Go and databases." {
		t.Errorf("got %q", got)
	}
}

func TestSummarize_TemplateFallback(t *testing.T) {
	svc := &fakeService{responses: []fakeResponse{
		{err: errors.New("down")},
	}}
	c := NewClassifier(svc, nil)

	got := c.Summarize(context.Background(), SummaryInput{
		DominantTopic: "Technology",
		TopTopics: []profile.TopicWeight{
			{Topic: "Technology", Weight: 0.6},
			{Topic: "Science", Weight: 0.4},
		},
		IntentFocus:  profile.IntentInformational,
		SessionsSeen: 3,
		Confidence:   0.375,
	})

	if !strings.Contains(got, "Technology") || !strings.Contains(got, "Science") {
		t.Errorf("template summary missing topics: %q", got)
	}
	if !strings.Contains(got, "3 sessions") {
		t.Errorf("template summary missing session count: %q", got)
	}
}

func TestSummarize_EmptyProfile(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Summarize(context.Background(), SummaryInput{})

	if !strings.Contains(got, "Not enough activity") {
		t.Errorf("got %q", got)
	}
}
