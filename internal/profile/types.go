package profile

import "time"

// Intent classifications for search events.
const (
	IntentInformational = "informational"
	IntentInstructional = "instructional"
	IntentTransactional = "transactional"
	IntentNavigational  = "navigational"
	IntentUnknown       = "unknown"
)

// DefaultTopic is the dominant topic reported when a session has no topic data.
const DefaultTopic = "General"

// MaxSessions is the session count at which profile confidence saturates at 1.0.
const MaxSessions = 8

// HistoryCap is the maximum number of session snapshots retained.
const HistoryCap = 50

// TopicWeight is a category label with an associated relevance weight.
type TopicWeight struct {
	Topic  string  `json:"topic"`
	Weight float64 `json:"weight"`
}

// Enrichment holds inference-derived classification for a search event.
// Immutable once attached.
type Enrichment struct {
	Intent      string        `json:"intent"`
	Topics      []TopicWeight `json:"topics,omitempty"`
	Confidence  float64       `json:"confidence"`  // [0,1]
	Specificity float64       `json:"specificity"` // [0,1]
}

// SearchEvent is a single query issued during a session.
type SearchEvent struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	TabID      string      `json:"tab_id,omitempty"`
	Query      string      `json:"query"`
	At         time.Time   `json:"at"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}

// Engagement holds interaction signals collected while a page was open.
type Engagement struct {
	ActiveTimeSeconds float64 `json:"active_time_seconds"`
	ScrollDepth       float64 `json:"scroll_depth"` // [0,100]
	Clicks            int     `json:"clicks"`
	Copies            int     `json:"copies"`
	Pastes            int     `json:"pastes"`
	Highlights        int     `json:"highlights"`
	TabSwitches       int     `json:"tab_switches"`
	EngagementScore   float64 `json:"engagement_score"` // [0,100]
}

// PageEvent is a single page visit with engagement signals.
type PageEvent struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	TabID         string        `json:"tab_id,omitempty"`
	URL           string        `json:"url"`
	Domain        string        `json:"domain"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Engagement    Engagement    `json:"engagement"`
	ContentSample string        `json:"content_sample,omitempty"`
	Topics        []TopicWeight `json:"topics,omitempty"`
}

// TopicScore pairs a topic's raw merged score with its normalized share.
// The raw value preserves momentum; the normalized value is the per-session view.
type TopicScore struct {
	RawScore         float64 `json:"raw_score"`
	NormalizedWeight float64 `json:"normalized_weight"`
}

// Snapshot is the immutable short-term profile built once per closed session.
type Snapshot struct {
	SessionID            string                `json:"session_id"`
	SessionLengthMin     float64               `json:"session_length_min"`
	EngagementConfidence float64               `json:"engagement_confidence"` // [0,1]
	DiversityEntropy     float64               `json:"diversity_entropy"`     // [0,1]
	DominantTopic        string                `json:"dominant_topic"`
	IntentFocus          string                `json:"intent_focus"`
	IntentScores         map[string]float64    `json:"intent_scores,omitempty"`
	Topics               map[string]TopicScore `json:"topics,omitempty"`
	CalculatedAt         time.Time             `json:"calculated_at"`
}

// Empty reports whether the snapshot is the neutral sentinel produced for a
// session with no events. Cold-start merge must reject these.
func (s Snapshot) Empty() bool {
	return len(s.Topics) == 0 && s.EngagementConfidence == 0
}

// Profile is the durable long-term profile, one per user.
// Topic scores are raw and unnormalized; they accumulate across sessions and
// are attenuated only by exponential time decay.
type Profile struct {
	Topics          map[string]float64 `json:"topics"`
	SessionsSeen    int                `json:"sessions_seen"`
	EWMAFocus       float64            `json:"ewma_focus"` // [0,1]
	EWMADepth       float64            `json:"ewma_depth"` // [0,1]
	IntentAggregate map[string]float64 `json:"intent_aggregate"`
	LastUpdated     *time.Time         `json:"last_updated,omitempty"`
	Confidence      float64            `json:"confidence"` // min(1, sessions_seen/MaxSessions)
}

// EmptyProfile returns the empty long-term profile template.
func EmptyProfile() Profile {
	return Profile{
		Topics:          map[string]float64{},
		IntentAggregate: map[string]float64{},
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.Topics = make(map[string]float64, len(p.Topics))
	for k, v := range p.Topics {
		out.Topics[k] = v
	}
	out.IntentAggregate = make(map[string]float64, len(p.IntentAggregate))
	for k, v := range p.IntentAggregate {
		out.IntentAggregate[k] = v
	}
	if p.LastUpdated != nil {
		t := *p.LastUpdated
		out.LastUpdated = &t
	}
	return out
}
