package inference

import (
	"testing"

	"github.com/halvext/drift/internal/profile"
)

func TestHeuristicClassify_Intent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"buy mechanical keyboard cheap", profile.IntentTransactional},
		{"how to configure sqlite wal mode", profile.IntentInstructional},
		{"github login", profile.IntentNavigational},
		{"history of the roman empire", profile.IntentInformational},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := HeuristicClassify(tt.query)
			if got.Intent != tt.want {
				t.Errorf("Intent = %q, want %q", got.Intent, tt.want)
			}
		})
	}
}

func TestHeuristicClassify_LowConfidence(t *testing.T) {
	got := HeuristicClassify("anything at all")
	if got.Confidence >= 0.5 {
		t.Errorf("Confidence = %v, heuristic results must stay below the seed threshold", got.Confidence)
	}
}

func TestHeuristicClassify_Specificity(t *testing.T) {
	vague := HeuristicClassify("golang")
	specific := HeuristicClassify("golang sqlite wal busy timeout fix")

	if vague.Specificity >= specific.Specificity {
		t.Errorf("specificity should grow with term count: %v vs %v", vague.Specificity, specific.Specificity)
	}
	if specific.Specificity > 1 {
		t.Errorf("Specificity = %v, want ≤ 1", specific.Specificity)
	}
}

func TestHeuristicClassify_TopicsNormalized(t *testing.T) {
	got := HeuristicClassify("database server programming api")

	sum := 0.0
	for _, tw := range got.Topics {
		sum += tw.Weight
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("topic weights sum = %v, want 1.0±0.01", sum)
	}
}

func TestHeuristicClassify_NoCueFallsBackToGeneral(t *testing.T) {
	got := HeuristicClassify("zzzz qqqq")
	if len(got.Topics) != 1 || got.Topics[0].Topic != profile.DefaultTopic {
		t.Errorf("Topics = %v, want General", got.Topics)
	}
}

func TestHeuristicPageTopics(t *testing.T) {
	topics := HeuristicPageTopics("stackoverflow.com", "how do I tune database server code for my api")
	found := false
	for _, tw := range topics {
		if tw.Topic == "Technology" {
			found = true
		}
	}
	if !found {
		t.Errorf("Topics = %v, want Technology present", topics)
	}

	general := HeuristicPageTopics("", "")
	if len(general) != 1 || general[0].Topic != profile.DefaultTopic {
		t.Errorf("empty page should score General, got %v", general)
	}
}
