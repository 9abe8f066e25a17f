// Package inference talks to the local model runner and degrades gracefully
// when it is unavailable.
//
// Every enrichment request walks a fallback ladder: a structured-output call
// first, then a free-text call with best-effort JSON extraction, then a local
// heuristic, and finally a static default. Each rung logs and is non-fatal to
// the caller.
package inference

import (
	"context"
	"encoding/json"
)

// Request is a single inference call.
type Request struct {
	// Prompt is the instruction given to the model.
	Prompt string `json:"prompt"`

	// Schema, when present, asks the runner for structured output conforming
	// to the given JSON schema. Absent means free text.
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Service is the shared inference resource. Implementations must tolerate
// concurrent Healthy/Recreate calls but may assume Infer is serialized by the
// scheduler (at most one in-flight call).
type Service interface {
	// Infer runs one inference round trip. For structured requests the result
	// is the model's JSON output; for free-text requests it is a JSON string.
	Infer(ctx context.Context, req Request) (json.RawMessage, error)

	// Healthy reports whether the resource can currently serve calls.
	Healthy(ctx context.Context) bool

	// Recreate tears down and re-establishes the resource.
	Recreate(ctx context.Context) error

	// Close releases the resource.
	Close() error
}
