package ops

import (
	"database/sql"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/profile"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit int // default: DefaultHistoryLimit, capped at MaxHistoryLimit
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Snapshots []profile.Snapshot `json:"snapshots"`
	Count     int                `json:"count"`
}

// History returns recent session snapshots, most recent first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	snaps, err := db.RecentSnapshots(database, limit)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []profile.Snapshot{}
	}

	return &HistoryOutput{
		Snapshots: snaps,
		Count:     len(snaps),
	}, nil
}
