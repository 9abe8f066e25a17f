package profile

import (
	"fmt"
	"math"
)

// Validate checks the structural integrity of a profile record before it is
// persisted. A violation means the record must not be written; callers reset
// to the empty template instead.
func Validate(p Profile) error {
	if p.Topics == nil {
		return fmt.Errorf("topics map is nil")
	}
	if p.IntentAggregate == nil {
		return fmt.Errorf("intent aggregate map is nil")
	}
	if p.SessionsSeen < 0 {
		return fmt.Errorf("sessions_seen is negative: %d", p.SessionsSeen)
	}

	for topic, v := range p.Topics {
		if topic == "" {
			return fmt.Errorf("empty topic name")
		}
		if !finiteNonNegative(v) {
			return fmt.Errorf("topic %q has invalid score %v", topic, v)
		}
	}
	for intent, v := range p.IntentAggregate {
		if intent == "" {
			return fmt.Errorf("empty intent name")
		}
		if !finiteNonNegative(v) {
			return fmt.Errorf("intent %q has invalid score %v", intent, v)
		}
	}

	for name, v := range map[string]float64{
		"ewma_focus": p.EWMAFocus,
		"ewma_depth": p.EWMADepth,
		"confidence": p.Confidence,
	} {
		if !finiteNonNegative(v) || v > 1 {
			return fmt.Errorf("%s out of range: %v", name, v)
		}
	}

	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
