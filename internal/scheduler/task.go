package scheduler

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/inference"
)

// TaskType is the closed set of enrichment task kinds.
type TaskType string

const (
	// TaskClassifyQuery infers intent and topic domains for a search event.
	TaskClassifyQuery TaskType = "classify_query"

	// TaskPageTopics infers topic domains for a visited page.
	TaskPageTopics TaskType = "page_topics"

	// TaskSummarize generates a natural-language profile summary.
	TaskSummarize TaskType = "summarize"
)

// Priority bands, 1 highest to 4 lowest.
const (
	PriorityInteractive = 1
	PriorityEnrichment  = 2
	PrioritySummary     = 3
	PriorityBackground  = 4
)

// ClassifyQueryPayload asks for search-event enrichment.
type ClassifyQueryPayload struct {
	EventID string
	Query   string
}

// PageTopicsPayload asks for page topic scoring.
type PageTopicsPayload struct {
	EventID       string
	Domain        string
	ContentSample string
}

// SummarizePayload asks for a profile summary.
type SummarizePayload struct {
	Input inference.SummaryInput
}

// Task is one unit of enrichment work. Consumed at most once.
type Task struct {
	ID        string
	Type      TaskType
	Priority  int
	Payload   any
	TabID     string
	CreatedAt time.Time
}

// Result is the outcome delivered to the submitter. Exactly one Result is
// sent per task, success or failure.
type Result struct {
	OK   bool
	Data any
	Err  string
}

// NewTaskID generates a ULID for a task.
func NewTaskID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

// validateTask checks type, priority band, and payload shape at submission
// time so handlers never see a malformed task.
func validateTask(t Task) error {
	if t.ID == "" {
		return errors.NewInvalidRequest("task id is required")
	}
	if t.Priority < PriorityInteractive || t.Priority > PriorityBackground {
		return errors.NewInvalidRequest("priority must be between 1 and 4")
	}

	switch t.Type {
	case TaskClassifyQuery:
		p, ok := t.Payload.(ClassifyQueryPayload)
		if !ok {
			return errors.NewInvalidRequest("classify_query requires ClassifyQueryPayload")
		}
		if p.Query == "" {
			return errors.NewInvalidRequest("classify_query payload needs a query")
		}
	case TaskPageTopics:
		p, ok := t.Payload.(PageTopicsPayload)
		if !ok {
			return errors.NewInvalidRequest("page_topics requires PageTopicsPayload")
		}
		if p.EventID == "" {
			return errors.NewInvalidRequest("page_topics payload needs an event id")
		}
	case TaskSummarize:
		if _, ok := t.Payload.(SummarizePayload); !ok {
			return errors.NewInvalidRequest("summarize requires SummarizePayload")
		}
	default:
		return errors.NewInvalidRequest("unknown task type: " + string(t.Type))
	}

	return nil
}
