package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/ops"
	"github.com/halvext/drift/internal/profile"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	eng *engine.Engine
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, eng *engine.Engine) *Handlers {
	return &Handlers{db: db, cfg: cfg, eng: eng}
}

// Request types for each tool

// RecordSearchRequest represents the arguments for record_search.
type RecordSearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	TabID     string `json:"tab_id,omitempty"`
	At        string `json:"at,omitempty"`
}

// RecordPageRequest represents the arguments for record_page.
type RecordPageRequest struct {
	SessionID     string             `json:"session_id"`
	URL           string             `json:"url"`
	Domain        string             `json:"domain,omitempty"`
	TabID         string             `json:"tab_id,omitempty"`
	StartedAt     string             `json:"started_at,omitempty"`
	EndedAt       string             `json:"ended_at,omitempty"`
	Engagement    profile.Engagement `json:"engagement,omitempty"`
	ContentSample string             `json:"content_sample,omitempty"`
}

// CloseSessionRequest represents the arguments for session_close.
type CloseSessionRequest struct {
	SessionID string `json:"session_id"`
	At        string `json:"at,omitempty"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// parseTime parses an optional RFC 3339 timestamp argument.
func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.NewInvalidRequest(field + " must be RFC 3339")
	}
	return &t, nil
}

// Handler implementations

// HandleRecordSearch handles the record_search tool call.
func (h *Handlers) HandleRecordSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordSearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	at, err := parseTime("at", input.At)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RecordSearch(h.db, h.eng, ops.RecordSearchInput{
		SessionID: input.SessionID,
		TabID:     input.TabID,
		Query:     input.Query,
		At:        at,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecordPage handles the record_page tool call.
func (h *Handlers) HandleRecordPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordPageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	startedAt, err := parseTime("started_at", input.StartedAt)
	if err != nil {
		return errorResult(err), nil
	}
	endedAt, err := parseTime("ended_at", input.EndedAt)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RecordPage(h.db, ops.RecordPageInput{
		SessionID:     input.SessionID,
		TabID:         input.TabID,
		URL:           input.URL,
		Domain:        input.Domain,
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		Engagement:    input.Engagement,
		ContentSample: input.ContentSample,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCloseSession handles the session_close tool call.
func (h *Handlers) HandleCloseSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CloseSessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	at, err := parseTime("at", input.At)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.CloseSession(h.db, h.eng, ops.CloseSessionInput{
		SessionID: input.SessionID,
		At:        at,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGetProfile handles the get tool call.
func (h *Handlers) HandleGetProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetProfile(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSummary handles the summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Summarize(ctx, h.db, h.eng)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.db, h.eng)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReset handles the reset tool call.
func (h *Handlers) HandleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Reset(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL text.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if dErr, ok := err.(*errors.DriftError); ok {
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": dErr.Message,
			"status":  dErr.Status,
		}
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
