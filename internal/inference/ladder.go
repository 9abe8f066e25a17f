package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/halvext/drift/internal/profile"
)

// classifySchema is the structured-output contract for query classification.
const classifySchema = `{
	"type": "object",
	"properties": {
		"intent": {"type": "string", "enum": ["informational", "instructional", "transactional", "navigational"]},
		"topics": {"type": "array", "items": {"type": "object", "properties": {"topic": {"type": "string"}, "weight": {"type": "number"}}}},
		"confidence": {"type": "number"},
		"specificity": {"type": "number"}
	},
	"required": ["intent", "topics", "confidence", "specificity"]
}`

// pageTopicsSchema is the structured-output contract for page topic scoring.
const pageTopicsSchema = `{
	"type": "object",
	"properties": {
		"topics": {"type": "array", "items": {"type": "object", "properties": {"topic": {"type": "string"}, "weight": {"type": "number"}}}}
	},
	"required": ["topics"]
}`

// Classifier walks the fallback ladder for each enrichment kind.
// A nil service skips straight to the heuristic rungs.
type Classifier struct {
	svc    Service
	logger *log.Logger
}

// NewClassifier creates a classifier over the given service.
func NewClassifier(svc Service, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Classifier{svc: svc, logger: logger}
}

// ClassifyQuery enriches a search query. Never fails: the ladder bottoms out
// at a static default.
func (c *Classifier) ClassifyQuery(ctx context.Context, query string) *profile.Enrichment {
	if strings.TrimSpace(query) == "" {
		return staticEnrichment()
	}

	prompt := fmt.Sprintf(
		"Classify this search query. Return intent (informational, instructional, transactional, or navigational), topic domains with weights, confidence, and specificity.\nQuery: %s",
		query,
	)

	if raw, ok := c.structured(ctx, prompt, classifySchema); ok {
		if e := parseEnrichment(raw); e != nil {
			return e
		}
		c.logger.Warn("structured classification unparseable, falling back", "query_len", len(query))
	}

	return HeuristicClassify(query)
}

// PageTopics infers topic domains for a visited page.
func (c *Classifier) PageTopics(ctx context.Context, domain, contentSample string) []profile.TopicWeight {
	if domain == "" && contentSample == "" {
		return []profile.TopicWeight{{Topic: profile.DefaultTopic, Weight: 1}}
	}

	sample := contentSample
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	prompt := fmt.Sprintf(
		"Score the topic domains of this web page. Return topics with weights summing to 1.\nDomain: %s\nContent: %s",
		domain, sample,
	)

	if raw, ok := c.structured(ctx, prompt, pageTopicsSchema); ok {
		var parsed struct {
			Topics []profile.TopicWeight `json:"topics"`
		}
		if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Topics) > 0 {
			return sanitizeTopics(parsed.Topics)
		}
		c.logger.Warn("structured page topics unparseable, falling back", "domain", domain)
	}

	return HeuristicPageTopics(domain, contentSample)
}

// SummaryInput is the profile view handed to Summarize.
type SummaryInput struct {
	DominantTopic string
	TopTopics     []profile.TopicWeight
	IntentFocus   string
	SessionsSeen  int
	Confidence    float64
}

// Summarize produces a short natural-language profile summary. The wording is
// model-dependent; the heuristic rung yields a deterministic template.
func (c *Classifier) Summarize(ctx context.Context, in SummaryInput) string {
	if in.SessionsSeen == 0 {
		return "Not enough activity recorded yet to summarize."
	}

	topics := make([]string, 0, len(in.TopTopics))
	for _, tw := range in.TopTopics {
		topics = append(topics, fmt.Sprintf("%s (%.0f%%)", tw.Topic, tw.Weight*100))
	}
	prompt := fmt.Sprintf(
		"Write a two-sentence summary of this user's browsing interests. Top topics: %s. Intent focus: %s. Sessions observed: %d.",
		strings.Join(topics, ", "), in.IntentFocus, in.SessionsSeen,
	)

	// Free-text rung only: summaries have no structured contract.
	if c.svc != nil {
		raw, err := c.svc.Infer(ctx, Request{Prompt: prompt})
		if err == nil {
			var text string
			if json.Unmarshal(raw, &text) == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
			// Some runners return the text unquoted
			if t := strings.TrimSpace(string(raw)); t != "" && !strings.HasPrefix(t, "{") {
				return t
			}
		} else {
			c.logger.Warn("summary inference failed, using template", "err", err)
		}
	}

	return templateSummary(in)
}

// structured runs the first two rungs: a structured-output call, then a
// free-text call with JSON extraction. Returns false when both rungs fail.
func (c *Classifier) structured(ctx context.Context, prompt, schema string) (json.RawMessage, bool) {
	if c.svc == nil {
		return nil, false
	}

	raw, err := c.svc.Infer(ctx, Request{Prompt: prompt, Schema: json.RawMessage(schema)})
	if err == nil && len(raw) > 0 {
		return raw, true
	}
	if err != nil {
		c.logger.Warn("structured inference failed, trying free text", "err", err)
	}

	raw, err = c.svc.Infer(ctx, Request{Prompt: prompt + "\nRespond with a single JSON object."})
	if err != nil {
		c.logger.Warn("free-text inference failed, using local heuristic", "err", err)
		return nil, false
	}

	// The free-text result may be a JSON-encoded string wrapping the object.
	text := string(raw)
	var unquoted string
	if json.Unmarshal(raw, &unquoted) == nil {
		text = unquoted
	}
	if obj, ok := ExtractJSONObject(text); ok {
		return obj, true
	}
	c.logger.Warn("no JSON object found in free-text response, using local heuristic")
	return nil, false
}

// parseEnrichment validates a structured classification result.
// Returns nil when the payload is unusable.
func parseEnrichment(raw json.RawMessage) *profile.Enrichment {
	var parsed struct {
		Intent      string                `json:"intent"`
		Topics      []profile.TopicWeight `json:"topics"`
		Confidence  float64               `json:"confidence"`
		Specificity float64               `json:"specificity"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}

	switch parsed.Intent {
	case profile.IntentInformational, profile.IntentInstructional,
		profile.IntentTransactional, profile.IntentNavigational:
	default:
		return nil
	}
	if len(parsed.Topics) == 0 {
		return nil
	}

	return &profile.Enrichment{
		Intent:      parsed.Intent,
		Topics:      sanitizeTopics(parsed.Topics),
		Confidence:  clamp01(parsed.Confidence),
		Specificity: clamp01(parsed.Specificity),
	}
}

// sanitizeTopics drops empty or non-positive entries and renormalizes.
func sanitizeTopics(topics []profile.TopicWeight) []profile.TopicWeight {
	raw := map[string]float64{}
	for _, tw := range topics {
		if tw.Topic == "" || tw.Weight <= 0 {
			continue
		}
		raw[tw.Topic] += tw.Weight
	}
	weights := profile.Normalize(raw)
	if len(weights) == 0 {
		return []profile.TopicWeight{{Topic: profile.DefaultTopic, Weight: 1}}
	}
	out := make([]profile.TopicWeight, 0, len(weights))
	for topic, w := range weights {
		out = append(out, profile.TopicWeight{Topic: topic, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// staticEnrichment is the ladder's bottom rung.
func staticEnrichment() *profile.Enrichment {
	return &profile.Enrichment{
		Intent:      profile.IntentInformational,
		Topics:      []profile.TopicWeight{{Topic: profile.DefaultTopic, Weight: 1}},
		Confidence:  0.2,
		Specificity: 0.2,
	}
}

// templateSummary is the deterministic summary used when inference is down.
func templateSummary(in SummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent activity centers on %s", in.DominantTopic)
	if len(in.TopTopics) > 1 {
		others := make([]string, 0, len(in.TopTopics)-1)
		for _, tw := range in.TopTopics[1:] {
			others = append(others, tw.Topic)
		}
		fmt.Fprintf(&b, ", with interest in %s", strings.Join(others, ", "))
	}
	fmt.Fprintf(&b, ". Across %d sessions the dominant intent is %s (profile confidence %.0f%%).",
		in.SessionsSeen, in.IntentFocus, in.Confidence*100)
	return b.String()
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
