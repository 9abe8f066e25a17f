package ops

import (
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/profile"
)

// RecordPageInput contains parameters for the RecordPage operation.
type RecordPageInput struct {
	SessionID     string
	TabID         string
	URL           string     // required
	Domain        string     // derived from URL if empty
	StartedAt     *time.Time // default: now
	EndedAt       *time.Time // default: StartedAt
	Engagement    profile.Engagement
	ContentSample string
}

// RecordPageOutput contains the result of the RecordPage operation.
type RecordPageOutput struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Domain    string `json:"domain"`
}

// RecordPage stores a page visit with its engagement signals. Topic
// enrichment is deferred: the background poller batches it behind the gate.
func RecordPage(database *sql.DB, input RecordPageInput) (*RecordPageOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}

	domain := strings.TrimSpace(input.Domain)
	if domain == "" {
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Hostname() == "" {
			return nil, errors.NewInvalidRequest("url is not parseable and no domain was given")
		}
		domain = parsed.Hostname()
	}

	if err := validateEngagement(input.Engagement); err != nil {
		return nil, err
	}

	closed, err := db.SessionClosed(database, sessionID)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, errors.NewSessionClosed(sessionID)
	}

	startedAt := eventTime(input.StartedAt)
	endedAt := startedAt
	if input.EndedAt != nil && !input.EndedAt.IsZero() {
		endedAt = *input.EndedAt
	}
	if endedAt.Before(startedAt) {
		return nil, errors.NewInvalidRequest("ended_at precedes started_at")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	event := &profile.PageEvent{
		ID:            id,
		SessionID:     sessionID,
		TabID:         strings.TrimSpace(input.TabID),
		URL:           rawURL,
		Domain:        domain,
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		Engagement:    input.Engagement,
		ContentSample: input.ContentSample,
	}
	if err := db.InsertPageEvent(database, event); err != nil {
		return nil, err
	}

	return &RecordPageOutput{
		ID:        id,
		SessionID: sessionID,
		Domain:    domain,
	}, nil
}

func validateEngagement(e profile.Engagement) error {
	if e.ActiveTimeSeconds < 0 {
		return errors.NewInvalidRequest("active_time_seconds must not be negative")
	}
	if e.ScrollDepth < 0 || e.ScrollDepth > 100 {
		return errors.NewInvalidRequest("scroll_depth must be in [0,100]")
	}
	if e.EngagementScore < 0 || e.EngagementScore > 100 {
		return errors.NewInvalidRequest("engagement_score must be in [0,100]")
	}
	if e.Clicks < 0 || e.Copies < 0 || e.Pastes < 0 || e.Highlights < 0 || e.TabSwitches < 0 {
		return errors.NewInvalidRequest("interaction counts must not be negative")
	}
	return nil
}
