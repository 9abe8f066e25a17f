package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
)

// testSetup creates a temporary database, config, and engine for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, *Handlers) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	eng := engine.New(database, cfg, nil, nil)
	return database, cfg, NewHandlers(database, cfg, eng)
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultJSON decodes the first text content of a tool result.
func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text.Text)
	}
	return out
}

// errorCode extracts the error code from an IsError result.
func errorCode(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if !res.IsError {
		t.Fatal("expected an error result")
	}
	payload := resultJSON(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no error object: %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestRegistry_AllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 8 {
		t.Errorf("len = %d, want 8", len(names))
	}
	for _, name := range names {
		if GetTypeForTool(name) != "profile" {
			t.Errorf("tool %q does not follow the profile_ prefix", name)
		}
	}
}

func TestRegistry_ValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"profile_get", "note_store"})
	if len(unknown) != 1 || unknown[0] != "note_store" {
		t.Errorf("unknown = %v", unknown)
	}
}

func TestRegistry_ValidateDisabledTypes(t *testing.T) {
	unknown := ValidateDisabledTypes([]string{"profile", "note"})
	if len(unknown) != 1 || unknown[0] != "note" {
		t.Errorf("unknown = %v", unknown)
	}
}

func TestRegistry_ExpandTypesToTools(t *testing.T) {
	tools := ExpandTypesToTools([]string{"profile"})
	if len(tools) != len(toolRegistry) {
		t.Errorf("expanded %d tools, want all %d", len(tools), len(toolRegistry))
	}
	if got := ExpandTypesToTools(nil); got != nil {
		t.Errorf("nil types should expand to nil, got %v", got)
	}
}

func TestHandleRecordSearch(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleRecordSearch(context.Background(), makeRequest(map[string]any{
		"session_id": "s1",
		"query":      "how to test mcp handlers",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, res))
	}
	out := resultJSON(t, res)
	if out["id"] == "" || out["session_id"] != "s1" {
		t.Errorf("out = %v", out)
	}
}

func TestHandleRecordSearch_MissingQuery(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleRecordSearch(context.Background(), makeRequest(map[string]any{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, res); code != "INVALID_REQUEST" {
		t.Errorf("code = %q", code)
	}
}

func TestHandleRecordSearch_BadTimestamp(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleRecordSearch(context.Background(), makeRequest(map[string]any{
		"session_id": "s1",
		"query":      "q",
		"at":         "yesterday",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, res); code != "INVALID_REQUEST" {
		t.Errorf("code = %q", code)
	}
}

func TestHandleRecordPage(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleRecordPage(context.Background(), makeRequest(map[string]any{
		"session_id": "s1",
		"url":        "https://news.example.com/story",
		"engagement": map[string]any{
			"active_time_seconds": 120.0,
			"scroll_depth":        60.0,
			"engagement_score":    55.0,
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, res))
	}
	out := resultJSON(t, res)
	if out["domain"] != "news.example.com" {
		t.Errorf("out = %v", out)
	}
}

func TestHandleCloseSession_Lifecycle(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()

	res, err := h.HandleRecordPage(ctx, makeRequest(map[string]any{
		"session_id": "s1",
		"url":        "https://docs.example.com/guide",
		"started_at": time.Now().Add(-5 * time.Minute).Format(time.RFC3339),
		"engagement": map[string]any{
			"active_time_seconds": 240.0,
			"engagement_score":    75.0,
		},
	}))
	if err != nil || res.IsError {
		t.Fatalf("record page: %v %v", err, res)
	}

	res, err = h.HandleCloseSession(ctx, makeRequest(map[string]any{"session_id": "s1"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("close: %v", resultJSON(t, res))
	}

	// Second close hits the ledger.
	res, err = h.HandleCloseSession(ctx, makeRequest(map[string]any{"session_id": "s1"}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, res); code != "SESSION_CLOSED" {
		t.Errorf("code = %q", code)
	}

	res, err = h.HandleStatus(ctx, makeRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("status: %v %v", err, res)
	}
	out := resultJSON(t, res)
	if out["sessions_closed"].(float64) != 1 {
		t.Errorf("status = %v", out)
	}
}

func TestHandleCloseSession_Empty(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleCloseSession(context.Background(), makeRequest(map[string]any{
		"session_id": "ghost",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, res); code != "EMPTY_SESSION" {
		t.Errorf("code = %q", code)
	}
}

func TestHandleGetProfile_Fresh(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleGetProfile(context.Background(), makeRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("get: %v %v", err, res)
	}
	out := resultJSON(t, res)
	if out["found"] != false {
		t.Errorf("out = %v", out)
	}
}

func TestHandleHistory(t *testing.T) {
	_, _, h := testSetup(t)

	res, err := h.HandleHistory(context.Background(), makeRequest(map[string]any{"limit": 5.0}))
	if err != nil || res.IsError {
		t.Fatalf("history: %v %v", err, res)
	}
	out := resultJSON(t, res)
	if out["count"].(float64) != 0 {
		t.Errorf("out = %v", out)
	}
}

func TestHandleSummaryAndReset(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()

	res, err := h.HandleSummary(ctx, makeRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("summary: %v %v", err, res)
	}
	out := resultJSON(t, res)
	if out["summary"] == "" {
		t.Errorf("out = %v", out)
	}

	res, err = h.HandleReset(ctx, makeRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("reset: %v %v", err, res)
	}
	if out := resultJSON(t, res); out["reset"] != true {
		t.Errorf("out = %v", out)
	}
}

func TestNewServer_DisablesTools(t *testing.T) {
	database, cfg, _ := testSetup(t)
	cfg.DisabledTools = []string{"profile_reset"}

	eng := engine.New(database, cfg, nil, nil)
	s := NewServer(database, cfg, eng, "test")
	if s == nil {
		t.Fatal("nil server")
	}
}
