package ops

import (
	"database/sql"

	"github.com/halvext/drift/internal/db"
)

// ResetOutput contains the result of the Reset operation.
type ResetOutput struct {
	Reset bool `json:"reset"`
}

// Reset wipes the long-term profile and snapshot history. Raw events and the
// closed-session ledger are retained, so past sessions stay closed.
func Reset(database *sql.DB) (*ResetOutput, error) {
	if err := db.ResetProfile(database); err != nil {
		return nil, err
	}
	return &ResetOutput{Reset: true}, nil
}
