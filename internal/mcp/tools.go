package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Names follow the "profile_action" pattern so type-level
// disabling can match on the prefix.

var recordSearchToolDef = mcp.NewTool("profile_record_search",
	mcp.WithDescription("Record a search query in an open browsing session. Classification (intent, topics) is inferred asynchronously."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session the query belongs to")),
	mcp.WithString("query", mcp.Required(), mcp.Description("The search query text")),
	mcp.WithString("tab_id", mcp.Description("Originating tab, if known")),
	mcp.WithString("at", mcp.Description("Event time, RFC 3339 (default: now)")),
)

var recordPageToolDef = mcp.NewTool("profile_record_page",
	mcp.WithDescription("Record a page visit with engagement signals. Topic scoring is inferred in the background."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session the visit belongs to")),
	mcp.WithString("url", mcp.Required(), mcp.Description("Page URL")),
	mcp.WithString("domain", mcp.Description("Page domain (derived from the URL if omitted)")),
	mcp.WithString("tab_id", mcp.Description("Originating tab, if known")),
	mcp.WithString("started_at", mcp.Description("Visit start, RFC 3339 (default: now)")),
	mcp.WithString("ended_at", mcp.Description("Visit end, RFC 3339 (default: started_at)")),
	mcp.WithObject("engagement", mcp.Description("Engagement signals: active_time_seconds, scroll_depth [0-100], clicks, copies, pastes, highlights, tab_switches, engagement_score [0-100]")),
	mcp.WithString("content_sample", mcp.Description("Text excerpt used for topic inference")),
)

var closeSessionToolDef = mcp.NewTool("profile_session_close",
	mcp.WithDescription("Close a session exactly once: aggregate its events into an immutable snapshot and fold it into the long-term profile."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to close")),
	mcp.WithString("at", mcp.Description("Close time, RFC 3339 (default: now)")),
)

var getProfileToolDef = mcp.NewTool("profile_get",
	mcp.WithDescription("Get the long-term profile: top topics by normalized share, intent focus, confidence."),
)

var historyToolDef = mcp.NewTool("profile_history",
	mcp.WithDescription("List recent session snapshots, most recent first."),
	mcp.WithNumber("limit", mcp.Description("Maximum snapshots to return (default 10, max 50)")),
)

var summaryToolDef = mcp.NewTool("profile_summary",
	mcp.WithDescription("Generate a natural-language summary of the profile. Falls back to deterministic text when inference is unavailable."),
)

var statusToolDef = mcp.NewTool("profile_status",
	mcp.WithDescription("Report scheduler queue depth, inference health, and store counts."),
)

var resetToolDef = mcp.NewTool("profile_reset",
	mcp.WithDescription("Reset the long-term profile and snapshot history. Raw events and closed sessions are retained."),
)
