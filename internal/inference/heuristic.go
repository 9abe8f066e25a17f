package inference

import (
	"strings"

	"github.com/halvext/drift/internal/profile"
)

// Local heuristic scoring: the second-to-last rung of the fallback ladder.
// Deliberately crude; it only needs to be better than nothing when the model
// runner is down.

// heuristicConfidence is the fixed confidence assigned to heuristic results,
// low enough that a heuristic-only session never seeds the long-term profile.
const heuristicConfidence = 0.35

// intentCues maps query phrasings to intent classes. Checked in order;
// informational is the default.
var intentCues = []struct {
	intent string
	terms  []string
}{
	{profile.IntentTransactional, []string{"buy", "price", "cheap", "deal", "order", "discount", "coupon"}},
	{profile.IntentInstructional, []string{"how to", "how do", "tutorial", "guide", "install", "setup", "fix", "example"}},
	{profile.IntentNavigational, []string{"login", "sign in", "www.", ".com", ".org", "official site", "homepage"}},
}

// topicCues maps coarse topic buckets to trigger terms.
var topicCues = map[string][]string{
	"Technology":    {"software", "code", "programming", "api", "server", "linux", "app", "computer", "database"},
	"Finance":       {"stock", "invest", "bank", "loan", "tax", "crypto", "budget", "mortgage"},
	"Health":        {"symptom", "doctor", "medicine", "diet", "exercise", "sleep", "therapy"},
	"Travel":        {"flight", "hotel", "visa", "itinerary", "airport", "destination"},
	"Entertainment": {"movie", "music", "game", "show", "stream", "episode", "trailer"},
	"Science":       {"research", "study", "physics", "biology", "chemistry", "theory", "experiment"},
	"News":          {"election", "breaking", "headline", "politics", "economy"},
	"Shopping":      {"review", "compare", "best", "vs", "alternative", "recommendation"},
}

// HeuristicClassify scores a query without the model: keyword-cued intent,
// term-bucket topics, and specificity from query length.
func HeuristicClassify(query string) *profile.Enrichment {
	q := strings.ToLower(query)

	intent := profile.IntentInformational
	for _, cue := range intentCues {
		for _, term := range cue.terms {
			if strings.Contains(q, term) {
				intent = cue.intent
				break
			}
		}
		if intent != profile.IntentInformational {
			break
		}
	}

	topics := heuristicTopics(q)
	if len(topics) == 0 {
		topics = []profile.TopicWeight{{Topic: profile.DefaultTopic, Weight: 1}}
	}

	return &profile.Enrichment{
		Intent:      intent,
		Topics:      topics,
		Confidence:  heuristicConfidence,
		Specificity: specificity(query),
	}
}

// HeuristicPageTopics scores page text (domain plus content sample) against
// the topic buckets.
func HeuristicPageTopics(domain, contentSample string) []profile.TopicWeight {
	text := strings.ToLower(domain + " " + contentSample)
	topics := heuristicTopics(text)
	if len(topics) == 0 {
		return []profile.TopicWeight{{Topic: profile.DefaultTopic, Weight: 1}}
	}
	return topics
}

// heuristicTopics counts cue hits per bucket and normalizes to weights.
func heuristicTopics(text string) []profile.TopicWeight {
	hits := map[string]float64{}
	for topic, terms := range topicCues {
		for _, term := range terms {
			if strings.Contains(text, term) {
				hits[topic]++
			}
		}
	}

	weights := profile.Normalize(hits)
	if len(weights) == 0 {
		return nil
	}
	topics := make([]profile.TopicWeight, 0, len(weights))
	for topic, w := range weights {
		topics = append(topics, profile.TopicWeight{Topic: topic, Weight: w})
	}
	return topics
}

// specificity grows with term count: one-word queries are vague, five or
// more terms is as specific as the heuristic will credit.
func specificity(query string) float64 {
	terms := len(strings.Fields(query))
	if terms <= 0 {
		return 0
	}
	s := float64(terms) / 5
	if s > 1 {
		s = 1
	}
	return s
}
