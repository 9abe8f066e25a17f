package ops

import (
	"database/sql"
	"strings"
	"time"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/profile"
)

// RecordSearchInput contains parameters for the RecordSearch operation.
type RecordSearchInput struct {
	SessionID string
	TabID     string
	Query     string     // required
	At        *time.Time // default: now
}

// RecordSearchOutput contains the result of the RecordSearch operation.
type RecordSearchOutput struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	// EnrichmentQueued reports whether a classification task was submitted.
	EnrichmentQueued bool `json:"enrichment_queued"`
}

// RecordSearch stores a search event and queues its classification.
// Recording never waits on inference; enrichment lands asynchronously.
func RecordSearch(database *sql.DB, eng *engine.Engine, input RecordSearchInput) (*RecordSearchOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}

	closed, err := db.SessionClosed(database, sessionID)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, errors.NewSessionClosed(sessionID)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	event := &profile.SearchEvent{
		ID:        id,
		SessionID: sessionID,
		TabID:     strings.TrimSpace(input.TabID),
		Query:     query,
		At:        eventTime(input.At),
	}
	if err := db.InsertSearchEvent(database, event); err != nil {
		return nil, err
	}

	queued := false
	if eng != nil {
		eng.SubmitClassify(event.ID, event.Query, event.TabID)
		queued = true
	}

	return &RecordSearchOutput{
		ID:               id,
		SessionID:        sessionID,
		EnrichmentQueued: queued,
	}, nil
}
