package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	eng      *engine.Engine
	renderer *Renderer
}

// HandleOverview handles GET /overview, the profile dashboard.
func (h *Handlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	profileOut, err := ops.GetProfile(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	statusOut, err := ops.Status(r.Context(), h.db, h.eng)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := OverviewPageData{
		PageData: PageData{
			Title:   "Profile",
			Version: h.renderer.version,
			Nav:     "overview",
		},
		Found:   profileOut.Found,
		Profile: profileOut.Profile,
		Status:  statusOut,
	}

	if profileOut.Found {
		sumOut, err := ops.Summarize(r.Context(), h.db, h.eng)
		if err == nil {
			data.SummaryHTML = renderMarkdown(sumOut.Summary)
		}
		// A failed summary degrades to an empty section rather than a 5xx.
	}

	h.renderer.renderPage(w, r, "overview", data)
}

// HandleHistory handles GET /history, listing recent session snapshots.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", ops.DefaultHistoryLimit)

	result, err := ops.History(h.db, ops.HistoryInput{Limit: limit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Snapshots: result.Snapshots,
		Count:     result.Count,
	})
}

// HandleProfileJSON handles GET /api/profile, the raw profile view.
func (h *Handlers) HandleProfileJSON(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetProfile(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleStatusJSON handles GET /api/status, scheduler and store health.
func (h *Handlers) HandleStatusJSON(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Status(r.Context(), h.db, h.eng)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleReset handles POST /reset, wiping the profile and history.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if _, err := ops.Reset(h.db); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/overview", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
