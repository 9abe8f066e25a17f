package profile

import (
	"math"
	"time"
)

// Fixed contribution weights for merging search-derived and page-derived
// topic scores.
const (
	searchContribution = 0.4
	pageContribution   = 0.6
)

// searchNominalMinutes is the fixed engagement weight assigned to a search
// event when averaging per-event confidence.
const searchNominalMinutes = 0.5

// intentMultiplier boosts informational and instructional queries, which
// signal deliberate research rather than routine navigation.
var intentMultiplier = map[string]float64{
	IntentInformational: 1.2,
	IntentInstructional: 1.2,
	IntentTransactional: 1.0,
	IntentNavigational:  1.0,
}

// BuildSnapshot aggregates a closed session's events into an immutable
// short-term profile. Called exactly once per session.
//
// A session with no events yields the neutral sentinel snapshot: empty
// topics, dominant topic "General", zero engagement confidence, intent
// "unknown". Cold-start merge rejects it.
func BuildSnapshot(sessionID string, searches []SearchEvent, pages []PageEvent, now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:        sessionID,
		SessionLengthMin: 1,
		DominantTopic:    DefaultTopic,
		IntentFocus:      IntentUnknown,
		CalculatedAt:     now,
	}

	if len(searches) == 0 && len(pages) == 0 {
		return snap
	}

	searchTopics := searchTopicScores(searches)
	pageTopics := pageTopicScores(pages)

	merged := make(map[string]float64, len(searchTopics)+len(pageTopics))
	for topic, v := range searchTopics {
		merged[topic] += searchContribution * v
	}
	for topic, v := range pageTopics {
		merged[topic] += pageContribution * v
	}

	weights := Normalize(merged)
	if len(weights) > 0 {
		snap.Topics = make(map[string]TopicScore, len(weights))
		for topic, w := range weights {
			snap.Topics[topic] = TopicScore{RawScore: merged[topic], NormalizedWeight: w}
		}
		snap.DominantTopic = dominantTopic(weights)
		snap.DiversityEntropy = diversityEntropy(weights)
	}

	snap.EngagementConfidence = engagementConfidence(searches, pages)
	snap.IntentFocus, snap.IntentScores = intentFocus(searches)
	snap.SessionLengthMin = sessionLengthMin(searches, pages)

	return snap
}

// searchQuality scores an enriched search event. Unenriched events score 0.
func searchQuality(e SearchEvent) float64 {
	if e.Enrichment == nil {
		return 0
	}
	mult, ok := intentMultiplier[e.Enrichment.Intent]
	if !ok {
		mult = 1.0
	}
	return e.Enrichment.Specificity * e.Enrichment.Confidence * mult
}

// distribute spreads quality across topics proportional to each topic's own
// weight, accumulating additively into acc.
func distribute(acc map[string]float64, topics []TopicWeight, quality float64) {
	if quality <= 0 {
		return
	}
	total := 0.0
	for _, tw := range topics {
		if tw.Weight > 0 {
			total += tw.Weight
		}
	}
	if total <= 0 {
		return
	}
	for _, tw := range topics {
		if tw.Weight <= 0 {
			continue
		}
		acc[tw.Topic] += quality * tw.Weight / total
	}
}

func searchTopicScores(searches []SearchEvent) map[string]float64 {
	acc := map[string]float64{}
	for _, e := range searches {
		if e.Enrichment == nil {
			continue
		}
		distribute(acc, e.Enrichment.Topics, searchQuality(e))
	}
	return acc
}

func pageTopicScores(pages []PageEvent) map[string]float64 {
	acc := map[string]float64{}
	for _, p := range pages {
		distribute(acc, p.Topics, p.Engagement.EngagementScore/100)
	}
	return acc
}

// engagementConfidence computes the minute-weighted average of per-event
// confidence. Page confidence is the engagement score rescaled to [0,1];
// search confidence comes from enrichment. Events without a confidence signal
// are excluded from both numerator and denominator.
func engagementConfidence(searches []SearchEvent, pages []PageEvent) float64 {
	num := 0.0
	den := 0.0

	for _, e := range searches {
		if e.Enrichment == nil {
			continue
		}
		num += searchNominalMinutes * e.Enrichment.Confidence
		den += searchNominalMinutes
	}

	for _, p := range pages {
		if p.Engagement.ActiveTimeSeconds <= 0 && p.Engagement.EngagementScore <= 0 {
			continue
		}
		minutes := p.Engagement.ActiveTimeSeconds / 60
		num += minutes * (p.Engagement.EngagementScore / 100)
		den += minutes
	}

	if den <= 0 {
		return 0
	}
	return clamp01(num / den)
}

// intentFocus accumulates quality-weighted tallies per intent type, normalizes
// them to sum to 1, and picks the maximum.
func intentFocus(searches []SearchEvent) (string, map[string]float64) {
	tallies := map[string]float64{}
	for _, e := range searches {
		q := searchQuality(e)
		if q <= 0 {
			continue
		}
		tallies[e.Enrichment.Intent] += q
	}

	scores := Normalize(tallies)
	if len(scores) == 0 {
		return IntentUnknown, nil
	}

	focus := IntentUnknown
	best := -1.0
	for intent, w := range scores {
		if w > best || (w == best && intent < focus) {
			focus = intent
			best = w
		}
	}
	return focus, scores
}

// sessionLengthMin is the larger of total active page time and the wall-clock
// span of the session, floored at one minute.
func sessionLengthMin(searches []SearchEvent, pages []PageEvent) float64 {
	active := 0.0
	for _, p := range pages {
		active += p.Engagement.ActiveTimeSeconds / 60
	}

	var earliest, latest time.Time
	observe := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
		if latest.IsZero() || t.After(latest) {
			latest = t
		}
	}
	for _, e := range searches {
		observe(e.At)
	}
	for _, p := range pages {
		observe(p.StartedAt)
		observe(p.EndedAt)
	}

	span := 0.0
	if !earliest.IsZero() {
		span = latest.Sub(earliest).Minutes()
	}

	return math.Max(math.Max(active, span), 1)
}

// diversityEntropy is the Shannon entropy of the normalized weights divided
// by log2(n), clamped to [0,1]. Zero when fewer than two topics are present.
func diversityEntropy(weights map[string]float64) float64 {
	if len(weights) < 2 {
		return 0
	}
	h := 0.0
	for _, w := range weights {
		if w > 0 {
			h -= w * math.Log2(w)
		}
	}
	return clamp01(h / math.Log2(float64(len(weights))))
}

func dominantTopic(weights map[string]float64) string {
	topic := DefaultTopic
	best := -1.0
	for t, w := range weights {
		if w > best || (w == best && t < topic) {
			topic = t
			best = w
		}
	}
	return topic
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
