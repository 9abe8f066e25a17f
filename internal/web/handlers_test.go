package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/ops"
	"github.com/halvext/drift/internal/profile"
)

func testServer(t *testing.T) (*sql.DB, *engine.Engine, http.Handler) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	eng := engine.New(database, cfg, nil, nil)
	srv := NewServer(database, cfg, eng, "test", "127.0.0.1", 0)
	return database, eng, srv.Handler
}

// seedProfile closes one engaged session so the profile exists.
func seedProfile(t *testing.T, database *sql.DB, eng *engine.Engine) {
	t.Helper()

	id := "01SEEDSEEDSEEDSEEDSEEDSEED"
	if err := db.InsertSearchEvent(database, &profile.SearchEvent{
		ID:        id,
		SessionID: "seed-session",
		Query:     "deep dive on storage engines",
		At:        time.Now().Add(-10 * time.Minute),
		Enrichment: &profile.Enrichment{
			Intent:      profile.IntentInformational,
			Topics:      []profile.TopicWeight{{Topic: "Technology", Weight: 1}},
			Confidence:  0.9,
			Specificity: 0.8,
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ops.CloseSession(database, eng, ops.CloseSessionInput{SessionID: "seed-session"}); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOverview_Empty(t *testing.T) {
	_, _, h := testServer(t)

	rec := get(t, h, "/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No profile yet") {
		t.Error("empty state not rendered")
	}
}

func TestOverview_WithProfile(t *testing.T) {
	database, eng, h := testServer(t)
	seedProfile(t, database, eng)

	rec := get(t, h, "/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Technology") {
		t.Error("top topic missing from overview")
	}
	if !strings.Contains(body, "informational") {
		t.Error("intent focus missing from overview")
	}
}

func TestHistory(t *testing.T) {
	database, eng, h := testServer(t)
	seedProfile(t, database, eng)

	rec := get(t, h, "/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "seed-session") {
		t.Error("snapshot row missing from history")
	}
}

func TestRootRedirect(t *testing.T) {
	_, _, h := testServer(t)

	rec := get(t, h, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/overview" {
		t.Errorf("Location = %q", loc)
	}
}

func TestProfileJSON(t *testing.T) {
	database, eng, h := testServer(t)
	seedProfile(t, database, eng)

	rec := get(t, h, "/api/profile")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out ops.GetProfileOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !out.Found || out.Profile.SessionsSeen != 1 {
		t.Errorf("out = %+v", out)
	}
}

func TestStatusJSON(t *testing.T) {
	_, _, h := testServer(t)

	rec := get(t, h, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out ops.StatusOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !out.InferenceHealthy {
		t.Error("heuristic-only mode should report healthy")
	}
}

func TestReset(t *testing.T) {
	database, eng, h := testServer(t)
	seedProfile(t, database, eng)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}

	out, err := ops.GetProfile(database)
	if err != nil {
		t.Fatal(err)
	}
	if out.Found {
		t.Error("profile survived reset")
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, _, h := testServer(t)

	rec := get(t, h, "/overview")
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options missing")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP missing")
	}
}
