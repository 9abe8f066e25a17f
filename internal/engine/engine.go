package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/inference"
	"github.com/halvext/drift/internal/profile"
	"github.com/halvext/drift/internal/scheduler"
)

// summaryTimeout bounds how long a caller waits for a summary task.
const summaryTimeout = 90 * time.Second

// backgroundBatchLimit caps how many deferred enrichments one poll releases.
const backgroundBatchLimit = 20

// Engine wires storage, the task scheduler, and the inference ladder into
// the profile pipeline. All inference flows through the scheduler's single
// worker; all long-term profile writes flow through ApplySnapshot.
type Engine struct {
	database *sql.DB
	cfg      *config.Config
	svc      inference.Service
	class    *inference.Classifier
	sched    *scheduler.Scheduler
	gate     *scheduler.Gate
	logger   *log.Logger

	// profileMu serializes read-merge-write cycles on the long-term profile.
	profileMu sync.Mutex
}

// New creates an engine over an initialized database. svc may be nil; the
// pipeline then runs on heuristics alone.
func New(database *sql.DB, cfg *config.Config, svc inference.Service, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	e := &Engine{
		database: database,
		cfg:      cfg,
		svc:      svc,
		class:    inference.NewClassifier(svc, logger),
		logger:   logger,
	}
	e.sched = scheduler.New(svc, e.execute, logger)
	e.gate = scheduler.NewGate(e.sched, cfg.QueueDepthThreshold, cfg.MinBatchSize)
	return e
}

// StartPoller launches the background poller and returns immediately.
// The poller stops when ctx is cancelled.
func (e *Engine) StartPoller(ctx context.Context, interval time.Duration) {
	p := scheduler.NewPoller(e.sched, e.gate, e, interval, e.logger)
	go p.Run(ctx)
}

// Close releases the inference service, if any.
func (e *Engine) Close() error {
	if e.svc == nil {
		return nil
	}
	return e.svc.Close()
}

// execute is the scheduler's sole task handler.
func (e *Engine) execute(ctx context.Context, t scheduler.Task) (any, error) {
	switch t.Type {
	case scheduler.TaskClassifyQuery:
		p := t.Payload.(scheduler.ClassifyQueryPayload)
		enr := e.class.ClassifyQuery(ctx, p.Query)
		if err := db.SetSearchEnrichment(e.database, p.EventID, enr); err != nil {
			return nil, err
		}
		return enr, nil

	case scheduler.TaskPageTopics:
		p := t.Payload.(scheduler.PageTopicsPayload)
		topics := e.class.PageTopics(ctx, p.Domain, p.ContentSample)
		if err := db.SetPageTopics(e.database, p.EventID, topics); err != nil {
			return nil, err
		}
		return topics, nil

	case scheduler.TaskSummarize:
		p := t.Payload.(scheduler.SummarizePayload)
		return e.class.Summarize(ctx, p.Input), nil

	default:
		return nil, errors.NewInternal(fmt.Errorf("unhandled task type %q", t.Type))
	}
}

// SubmitClassify queues search-event enrichment. Failures are logged, not
// surfaced: the recording path must never block on inference.
func (e *Engine) SubmitClassify(eventID, query, tabID string) {
	_, err := e.sched.Submit(scheduler.Task{
		ID:       scheduler.NewTaskID(),
		Type:     scheduler.TaskClassifyQuery,
		Priority: scheduler.PriorityEnrichment,
		Payload:  scheduler.ClassifyQueryPayload{EventID: eventID, Query: query},
		TabID:    tabID,
	})
	if err != nil {
		e.logger.Warn("classify submission rejected", "event", eventID, "err", err)
	}
}

// Summarize produces a natural-language summary of the profile through the
// scheduler, so it serializes with enrichment work.
func (e *Engine) Summarize(ctx context.Context, p profile.Profile) (string, error) {
	ch, err := e.sched.Submit(scheduler.Task{
		ID:       scheduler.NewTaskID(),
		Type:     scheduler.TaskSummarize,
		Priority: scheduler.PrioritySummary,
		Payload:  scheduler.SummarizePayload{Input: SummaryInput(p)},
	})
	if err != nil {
		return "", err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, summaryTimeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		if !res.OK {
			return "", errors.NewInferenceUnavailable(res.Err)
		}
		text, _ := res.Data.(string)
		return text, nil
	case <-ctx.Done():
		return "", errors.NewInferenceUnavailable("summary timed out")
	}
}

// PendingBatch implements scheduler.BatchSource: deferred low-priority
// enrichment for events in still-open sessions.
func (e *Engine) PendingBatch(ctx context.Context) ([]scheduler.Task, error) {
	var tasks []scheduler.Task

	pages, err := db.UnenrichedPageEvents(e.database, backgroundBatchLimit)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		tasks = append(tasks, scheduler.Task{
			ID:       scheduler.NewTaskID(),
			Type:     scheduler.TaskPageTopics,
			Priority: scheduler.PriorityBackground,
			Payload: scheduler.PageTopicsPayload{
				EventID:       p.ID,
				Domain:        p.Domain,
				ContentSample: p.ContentSample,
			},
			TabID: p.TabID,
		})
	}

	// Searches whose priority-2 task was lost (restart, halt) get retried
	// in the background band.
	searches, err := db.UnenrichedSearchEvents(e.database, backgroundBatchLimit-len(tasks))
	if err != nil {
		return nil, err
	}
	for _, s := range searches {
		tasks = append(tasks, scheduler.Task{
			ID:       scheduler.NewTaskID(),
			Type:     scheduler.TaskClassifyQuery,
			Priority: scheduler.PriorityBackground,
			Payload:  scheduler.ClassifyQueryPayload{EventID: s.ID, Query: s.Query},
			TabID:    s.TabID,
		})
	}

	return tasks, nil
}

// ApplySnapshot folds a session snapshot into the long-term profile and
// records it in the history ring. Single writer: concurrent closes serialize
// here. A stored profile that fails validation is discarded and rebuilt from
// the snapshot alone; if even that result is invalid, the merge is aborted.
func (e *Engine) ApplySnapshot(snap profile.Snapshot) (profile.Profile, error) {
	e.profileMu.Lock()
	defer e.profileMu.Unlock()

	old, _, err := db.GetProfile(e.database)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := profile.Validate(old); err != nil {
		e.logger.Error("stored profile failed validation, rebuilding", "err", err)
		old = profile.EmptyProfile()
	}

	merged := profile.Merge(old, snap)
	if err := profile.Validate(merged); err != nil {
		e.logger.Error("merged profile failed validation, retrying from empty", "err", err)
		merged = profile.Merge(profile.EmptyProfile(), snap)
		if err := profile.Validate(merged); err != nil {
			return profile.Profile{}, errors.NewProfileCorrupt(err.Error())
		}
	}

	if err := db.PutProfile(e.database, merged, snap.CalculatedAt); err != nil {
		return profile.Profile{}, err
	}
	if err := db.AppendSnapshot(e.database, snap); err != nil {
		return profile.Profile{}, err
	}
	return merged, nil
}

// SchedulerStats exposes queue state for the status surface.
func (e *Engine) SchedulerStats() (depth int, busy, halted bool) {
	return e.sched.Stats()
}

// InferenceHealthy reports the current service health. True when no
// external runner is configured.
func (e *Engine) InferenceHealthy(ctx context.Context) bool {
	if e.svc == nil {
		return true
	}
	return e.svc.Healthy(ctx)
}

// SummaryInput projects the long-term profile into the view Summarize
// prompts with: top normalized topics and the leading intent.
func SummaryInput(p profile.Profile) inference.SummaryInput {
	weights := profile.Normalize(p.Topics)
	top := make([]profile.TopicWeight, 0, len(weights))
	for topic, w := range weights {
		top = append(top, profile.TopicWeight{Topic: topic, Weight: w})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Weight != top[j].Weight {
			return top[i].Weight > top[j].Weight
		}
		return top[i].Topic < top[j].Topic
	})
	if len(top) > 5 {
		top = top[:5]
	}

	dominant := profile.DefaultTopic
	if len(top) > 0 {
		dominant = top[0].Topic
	}

	focus := profile.IntentUnknown
	best := 0.0
	for intent, v := range p.IntentAggregate {
		if v <= 0 {
			continue
		}
		if v > best || (v == best && intent < focus) {
			focus = intent
			best = v
		}
	}

	return inference.SummaryInput{
		DominantTopic: dominant,
		TopTopics:     top,
		IntentFocus:   focus,
		SessionsSeen:  p.SessionsSeen,
		Confidence:    p.Confidence,
	}
}
