package profile

import (
	"math"
	"testing"
)

func TestValidate_EmptyTemplate(t *testing.T) {
	if err := Validate(EmptyProfile()); err != nil {
		t.Errorf("empty template should validate, got %v", err)
	}
}

func TestValidate_SeededProfile(t *testing.T) {
	p := Merge(EmptyProfile(), snapshotWithTopic("go", 5, 0.8, testNow))
	if err := Validate(p); err != nil {
		t.Errorf("seeded profile should validate, got %v", err)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"nil topics", func(p *Profile) { p.Topics = nil }},
		{"nil intents", func(p *Profile) { p.IntentAggregate = nil }},
		{"negative sessions", func(p *Profile) { p.SessionsSeen = -1 }},
		{"NaN topic score", func(p *Profile) { p.Topics["x"] = math.NaN() }},
		{"negative topic score", func(p *Profile) { p.Topics["x"] = -1 }},
		{"infinite intent score", func(p *Profile) { p.IntentAggregate["x"] = math.Inf(1) }},
		{"empty topic name", func(p *Profile) { p.Topics[""] = 1 }},
		{"confidence above one", func(p *Profile) { p.Confidence = 1.5 }},
		{"negative focus", func(p *Profile) { p.EWMAFocus = -0.1 }},
		{"depth above one", func(p *Profile) { p.EWMADepth = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := EmptyProfile()
			tt.mutate(&p)
			if err := Validate(p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
