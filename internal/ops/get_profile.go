package ops

import (
	"database/sql"
	"sort"
	"time"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/profile"
)

// TopicView pairs a topic's raw accumulated score with its normalized share.
type TopicView struct {
	Topic    string  `json:"topic"`
	RawScore float64 `json:"raw_score"`
	Weight   float64 `json:"weight"`
}

// ProfileView is the derived read model of the long-term profile.
type ProfileView struct {
	SessionsSeen    int                `json:"sessions_seen"`
	Confidence      float64            `json:"confidence"`
	EWMAFocus       float64            `json:"ewma_focus"`
	EWMADepth       float64            `json:"ewma_depth"`
	IntentFocus     string             `json:"intent_focus"`
	IntentAggregate map[string]float64 `json:"intent_aggregate,omitempty"`
	TopTopics       []TopicView        `json:"top_topics,omitempty"`
	LastUpdated     *time.Time         `json:"last_updated,omitempty"`
}

// GetProfileOutput contains the result of the GetProfile operation.
type GetProfileOutput struct {
	Found   bool        `json:"found"`
	Profile ProfileView `json:"profile"`
}

// GetProfile returns the long-term profile as a derived view. Found is false
// before the first qualifying session has been merged.
func GetProfile(database *sql.DB) (*GetProfileOutput, error) {
	p, found, err := db.GetProfile(database)
	if err != nil {
		return nil, err
	}
	return &GetProfileOutput{
		Found:   found,
		Profile: buildProfileView(p),
	}, nil
}

// buildProfileView projects raw topic scores through the normalizer and picks
// the leading intent.
func buildProfileView(p profile.Profile) ProfileView {
	weights := profile.Normalize(p.Topics)
	topics := make([]TopicView, 0, len(weights))
	for topic, w := range weights {
		topics = append(topics, TopicView{
			Topic:    topic,
			RawScore: p.Topics[topic],
			Weight:   w,
		})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Weight != topics[j].Weight {
			return topics[i].Weight > topics[j].Weight
		}
		return topics[i].Topic < topics[j].Topic
	})

	focus := profile.IntentUnknown
	best := 0.0
	for intent, v := range p.IntentAggregate {
		if v <= 0 {
			continue
		}
		if v > best || (v == best && intent < focus) {
			focus = intent
			best = v
		}
	}

	return ProfileView{
		SessionsSeen:    p.SessionsSeen,
		Confidence:      p.Confidence,
		EWMAFocus:       p.EWMAFocus,
		EWMADepth:       p.EWMADepth,
		IntentFocus:     focus,
		IntentAggregate: p.IntentAggregate,
		TopTopics:       topics,
		LastUpdated:     p.LastUpdated,
	}
}
