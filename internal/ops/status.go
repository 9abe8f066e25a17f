package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
)

// StatusOutput contains the result of the Status operation.
type StatusOutput struct {
	QueueDepth       int  `json:"queue_depth"`
	WorkerBusy       bool `json:"worker_busy"`
	Halted           bool `json:"halted"`
	InferenceHealthy bool `json:"inference_healthy"`

	SearchEvents   int `json:"search_events"`
	PageEvents     int `json:"page_events"`
	SessionsClosed int `json:"sessions_closed"`

	ProfileFound bool       `json:"profile_found"`
	SessionsSeen int        `json:"sessions_seen"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// Status reports scheduler, inference, and store health in one view.
func Status(ctx context.Context, database *sql.DB, eng *engine.Engine) (*StatusOutput, error) {
	searches, pages, sessions, err := db.EventCounts(database)
	if err != nil {
		return nil, err
	}

	p, found, err := db.GetProfile(database)
	if err != nil {
		return nil, err
	}

	depth, busy, halted := eng.SchedulerStats()

	return &StatusOutput{
		QueueDepth:       depth,
		WorkerBusy:       busy,
		Halted:           halted,
		InferenceHealthy: eng.InferenceHealthy(ctx),
		SearchEvents:     searches,
		PageEvents:       pages,
		SessionsClosed:   sessions,
		ProfileFound:     found,
		SessionsSeen:     p.SessionsSeen,
		LastUpdated:      p.LastUpdated,
	}, nil
}
