package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/profile"
)

// lastSnapshotKey is the meta key holding the most recent snapshot's session ID.
const lastSnapshotKey = "last_snapshot"

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.DriftError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertSearchEvent stores a new search event.
func InsertSearchEvent(db *sql.DB, e *profile.SearchEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(
		`INSERT INTO search_events (id, session_id, at, data_json) VALUES (?, ?, ?, ?)`,
		e.ID, e.SessionID, e.At.UnixMilli(), string(data),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// InsertPageEvent stores a new page event.
func InsertPageEvent(db *sql.DB, p *profile.PageEvent) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(
		`INSERT INTO page_events (id, session_id, started_at, data_json) VALUES (?, ?, ?, ?)`,
		p.ID, p.SessionID, p.StartedAt.UnixMilli(), string(data),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// SetSearchEnrichment attaches inference-derived classification to a stored
// search event. Events are enriched at most once; a second attempt is a no-op
// so the first classification stays immutable.
func SetSearchEnrichment(db *sql.DB, id string, enrichment *profile.Enrichment) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRow(`SELECT data_json FROM search_events WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return errors.NewNotFound(id)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	var e profile.SearchEvent
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return errors.NewInternal(err)
	}
	if e.Enrichment != nil {
		return nil
	}
	e.Enrichment = enrichment

	updated, err := json.Marshal(&e)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.Exec(`UPDATE search_events SET data_json = ? WHERE id = ?`, string(updated), id); err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SetPageTopics attaches inferred topic domains to a stored page event.
// Like search enrichment, topics are written at most once.
func SetPageTopics(db *sql.DB, id string, topics []profile.TopicWeight) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRow(`SELECT data_json FROM page_events WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return errors.NewNotFound(id)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	var p profile.PageEvent
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return errors.NewInternal(err)
	}
	if len(p.Topics) > 0 {
		return nil
	}
	p.Topics = topics

	updated, err := json.Marshal(&p)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.Exec(`UPDATE page_events SET data_json = ? WHERE id = ?`, string(updated), id); err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SearchEventsBySession returns all search events for a session in event order.
func SearchEventsBySession(db *sql.DB, sessionID string) ([]profile.SearchEvent, error) {
	rows, err := db.Query(
		`SELECT data_json FROM search_events WHERE session_id = ? ORDER BY at, id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []profile.SearchEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var e profile.SearchEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, errors.NewInternal(err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// PageEventsBySession returns all page events for a session in event order.
func PageEventsBySession(db *sql.DB, sessionID string) ([]profile.PageEvent, error) {
	rows, err := db.Query(
		`SELECT data_json FROM page_events WHERE session_id = ? ORDER BY started_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []profile.PageEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var p profile.PageEvent
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, errors.NewInternal(err)
		}
		events = append(events, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// UnenrichedSearchEvents returns search events from open sessions that have
// no enrichment yet, oldest first, up to limit.
func UnenrichedSearchEvents(db *sql.DB, limit int) ([]profile.SearchEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT e.data_json FROM search_events e
		LEFT JOIN sessions s ON s.id = e.session_id
		WHERE s.id IS NULL ORDER BY e.at, e.id`,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []profile.SearchEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var e profile.SearchEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, errors.NewInternal(err)
		}
		// Enrichment lives in the JSON entity, so filtering happens here.
		if e.Enrichment != nil {
			continue
		}
		events = append(events, e)
		if len(events) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// UnenrichedPageEvents returns page events from open sessions that have no
// topic scores yet, oldest first, up to limit.
func UnenrichedPageEvents(db *sql.DB, limit int) ([]profile.PageEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT p.data_json FROM page_events p
		LEFT JOIN sessions s ON s.id = p.session_id
		WHERE s.id IS NULL ORDER BY p.started_at, p.id`,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []profile.PageEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var p profile.PageEvent
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, errors.NewInternal(err)
		}
		if len(p.Topics) > 0 {
			continue
		}
		events = append(events, p)
		if len(events) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// EventCounts reports stored totals for the status view.
func EventCounts(db *sql.DB) (searches, pages, sessions int, err error) {
	if err = db.QueryRow(`SELECT COUNT(*) FROM search_events`).Scan(&searches); err != nil {
		return 0, 0, 0, errors.NewInternal(err)
	}
	if err = db.QueryRow(`SELECT COUNT(*) FROM page_events`).Scan(&pages); err != nil {
		return 0, 0, 0, errors.NewInternal(err)
	}
	if err = db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessions); err != nil {
		return 0, 0, 0, errors.NewInternal(err)
	}
	return searches, pages, sessions, nil
}

// SessionClosed reports whether a session has already been closed.
func SessionClosed(db *sql.DB, sessionID string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// MarkSessionClosed records the session in the closed-session ledger.
// Returns ErrUniqueConstraint if the session was already closed, which is how
// the exactly-once close guarantee is enforced.
func MarkSessionClosed(db *sql.DB, sessionID string, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (id, closed_at) VALUES (?, ?)`,
		sessionID, at.UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UnmarkSessionClosed removes a session from the closed-session ledger.
// Used to roll back a close whose profile merge failed, so a retry can
// still fold the session's events into the profile.
func UnmarkSessionClosed(db *sql.DB, sessionID string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetProfile loads the long-term profile. The second return value is false
// when no profile has been persisted yet.
func GetProfile(db *sql.DB) (profile.Profile, bool, error) {
	var data string
	err := db.QueryRow(`SELECT data_json FROM profile WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return profile.EmptyProfile(), false, nil
	}
	if err != nil {
		return profile.Profile{}, false, errors.NewInternal(err)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return profile.Profile{}, false, errors.NewInternal(err)
	}
	// Maps may round-trip as null; restore the template shape.
	if p.Topics == nil {
		p.Topics = map[string]float64{}
	}
	if p.IntentAggregate == nil {
		p.IntentAggregate = map[string]float64{}
	}
	return p, true, nil
}

// PutProfile persists the long-term profile as a single-row upsert.
func PutProfile(db *sql.DB, p profile.Profile, at time.Time) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(`
		INSERT INTO profile (id, data_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data_json = excluded.data_json, updated_at = excluded.updated_at`,
		string(data), at.UnixMilli(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AppendSnapshot adds a session snapshot to the history ring, prunes entries
// beyond the cap, and updates the last-snapshot pointer. Snapshots are
// immutable once written; re-appending the same session is a conflict.
func AppendSnapshot(db *sql.DB, snap profile.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewInternal(err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO snapshots (session_id, taken_at, data_json) VALUES (?, ?, ?)`,
		snap.SessionID, snap.CalculatedAt.UnixMilli(), string(data),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	_, err = tx.Exec(`
		DELETE FROM snapshots WHERE session_id NOT IN (
			SELECT session_id FROM snapshots ORDER BY taken_at DESC, rowid DESC LIMIT ?
		)`, profile.HistoryCap,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastSnapshotKey, snap.SessionID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots, most recent first.
func RecentSnapshots(db *sql.DB, limit int) ([]profile.Snapshot, error) {
	if limit <= 0 || limit > profile.HistoryCap {
		limit = profile.HistoryCap
	}

	rows, err := db.Query(
		`SELECT data_json FROM snapshots ORDER BY taken_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var snaps []profile.Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var s profile.Snapshot
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, errors.NewInternal(err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return snaps, nil
}

// LastSnapshot returns the snapshot the last-snapshot pointer refers to,
// or nil if no session has been closed yet.
func LastSnapshot(db *sql.DB) (*profile.Snapshot, error) {
	var sessionID string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, lastSnapshotKey).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var data string
	err = db.QueryRow(`SELECT data_json FROM snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		// Pointer survived a prune; treat as no last snapshot.
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var s profile.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &s, nil
}

// ResetProfile wipes the profile, snapshot history, and last-snapshot pointer.
// Raw events and the closed-session ledger are retained.
func ResetProfile(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM profile`); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.Exec(`DELETE FROM snapshots`); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.Exec(`DELETE FROM meta WHERE key = ?`, lastSnapshotKey); err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
