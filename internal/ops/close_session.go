package ops

import (
	"database/sql"
	"time"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/profile"
)

// CloseSessionInput contains parameters for the CloseSession operation.
type CloseSessionInput struct {
	SessionID string
	At        *time.Time // default: now
}

// CloseSessionOutput contains the result of the CloseSession operation.
type CloseSessionOutput struct {
	SessionID string           `json:"session_id"`
	Snapshot  profile.Snapshot `json:"snapshot"`
	Profile   ProfileView      `json:"profile"`

	// EmptySnapshot is true when the session produced no usable topic signal.
	// The sentinel snapshot still enters history but never seeds a profile.
	EmptySnapshot bool `json:"empty_snapshot"`
}

// CloseSession finalizes a session: it aggregates the session's events into an
// immutable snapshot, folds the snapshot into the long-term profile, and
// appends it to the history ring. Each session closes exactly once; the
// closed-session ledger rejects repeats.
func CloseSession(database *sql.DB, eng *engine.Engine, input CloseSessionInput) (*CloseSessionOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	searches, err := db.SearchEventsBySession(database, sessionID)
	if err != nil {
		return nil, err
	}
	pages, err := db.PageEventsBySession(database, sessionID)
	if err != nil {
		return nil, err
	}
	if len(searches) == 0 && len(pages) == 0 {
		closed, err := db.SessionClosed(database, sessionID)
		if err != nil {
			return nil, err
		}
		if closed {
			return nil, errors.NewSessionClosed(sessionID)
		}
		return nil, errors.NewEmptySession(sessionID)
	}

	at := eventTime(input.At)
	if err := db.MarkSessionClosed(database, sessionID, at); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewSessionClosed(sessionID)
		}
		return nil, err
	}

	snap := profile.BuildSnapshot(sessionID, searches, pages, at)
	merged, err := eng.ApplySnapshot(snap)
	if err != nil {
		// The ledger row was only a concurrency guard; release it so a
		// retry can still merge this session's events.
		if rbErr := db.UnmarkSessionClosed(database, sessionID); rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}

	return &CloseSessionOutput{
		SessionID:     sessionID,
		Snapshot:      snap,
		Profile:       buildProfileView(merged),
		EmptySnapshot: snap.Empty(),
	}, nil
}
