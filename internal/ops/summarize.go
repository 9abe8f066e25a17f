package ops

import (
	"context"
	"database/sql"

	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
)

// SummarizeOutput contains the result of the Summarize operation.
type SummarizeOutput struct {
	Summary      string  `json:"summary"`
	SessionsSeen int     `json:"sessions_seen"`
	Confidence   float64 `json:"confidence"`
}

// Summarize generates a natural-language description of the current profile.
// The summary flows through the scheduler, so it serializes with enrichment
// work; when inference is down the deterministic template text is returned.
// Nothing is stored.
func Summarize(ctx context.Context, database *sql.DB, eng *engine.Engine) (*SummarizeOutput, error) {
	p, _, err := db.GetProfile(database)
	if err != nil {
		return nil, err
	}

	text, err := eng.Summarize(ctx, p)
	if err != nil {
		return nil, err
	}

	return &SummarizeOutput{
		Summary:      text,
		SessionsSeen: p.SessionsSeen,
		Confidence:   p.Confidence,
	}, nil
}
