package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/halvext/drift/internal/errors"
)

// History limits
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// requireSessionID validates and normalizes a session identifier.
func requireSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("session_id is required")
	}
	return id, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// eventTime resolves an optional caller-supplied timestamp.
func eventTime(at *time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return time.Now()
}
