// Package pipeline sequences the fetch, validate, persist, and query stages
// end to end.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vectral/post-analytics/internal/deadletter"
	"github.com/vectral/post-analytics/internal/fetch"
	"github.com/vectral/post-analytics/internal/logging"
	"github.com/vectral/post-analytics/internal/models"
	"github.com/vectral/post-analytics/internal/query"
	"github.com/vectral/post-analytics/internal/schema"
	"github.com/vectral/post-analytics/internal/storage"
	"github.com/vectral/post-analytics/internal/validate"
)

// State names the pipeline's position. Failed is terminal and reachable from
// any non-terminal state; record-level validation rejects never cause it.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateQuerying   State = "querying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Fetcher is the orchestrator's view of the HTTP layer.
type Fetcher interface {
	Fetch(ctx context.Context, resource string) ([]models.RawDocument, error)
}

// EntityCounts reports accepted vs rejected records for one entity type.
type EntityCounts struct {
	Accepted int
	Rejected int
}

// Report is the aggregate outcome of one run. On failure it still carries
// whatever counts were known when the failing stage aborted.
type Report struct {
	RunID       string
	State       State
	FailedAt    State
	Posts       EntityCounts
	Users       EntityCounts
	Results     []query.Result
	QueryErrors []error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Opts contains the dependencies for an Orchestrator.
type Opts struct {
	Fetcher Fetcher
	Store   storage.Store
	Sink    deadletter.Sink
	TopN    int
	Logger  *log.Logger
}

// Orchestrator drives a single synchronous pipeline run. Each stage runs to
// completion before the next starts; a stage-level error aborts the rest of
// the run. Instances are not safe for concurrent use.
type Orchestrator struct {
	fetcher Fetcher
	store   storage.Store
	sink    deadletter.Sink
	topN    int
	logger  *log.Logger
	state   State
}

// New creates an Orchestrator with the provided dependencies.
func New(opts Opts) *Orchestrator {
	if opts.Sink == nil {
		opts.Sink = deadletter.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil)
	}

	return &Orchestrator{
		fetcher: opts.Fetcher,
		store:   opts.Store,
		sink:    opts.Sink,
		topN:    opts.TopN,
		logger:  opts.Logger.With("component", "pipeline"),
		state:   StateIdle,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State { return o.state }

// Run executes the full pipeline: fetch posts, fetch users, validate both,
// initialize the store, persist both, record the run, run the queries. The
// returned Report is non-nil even when Run fails.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With("run_id", report.RunID)

	o.transition(StateFetching, logger)
	postDocs, err := o.fetcher.Fetch(ctx, fetch.ResourcePosts)
	if err != nil {
		return o.fail(report, logger, err)
	}
	userDocs, err := o.fetcher.Fetch(ctx, fetch.ResourceUsers)
	if err != nil {
		return o.fail(report, logger, err)
	}

	o.transition(StateValidating, logger)
	posts := validate.All(postDocs, schema.ParsePost)
	users := validate.All(userDocs, schema.ParseUser)
	report.Posts = EntityCounts{Accepted: len(posts.Accepted), Rejected: len(posts.Rejected)}
	report.Users = EntityCounts{Accepted: len(users.Accepted), Rejected: len(users.Rejected)}
	o.archive(ctx, logger, report.RunID, "posts", posts.Rejected)
	o.archive(ctx, logger, report.RunID, "users", users.Rejected)
	logger.Info("validated documents",
		"posts_accepted", report.Posts.Accepted, "posts_rejected", report.Posts.Rejected,
		"users_accepted", report.Users.Accepted, "users_rejected", report.Users.Rejected)

	o.transition(StatePersisting, logger)
	if err := o.store.Init(ctx); err != nil {
		return o.fail(report, logger, err)
	}
	if err := o.store.InsertPosts(ctx, posts.Accepted); err != nil {
		return o.fail(report, logger, err)
	}
	if err := o.store.InsertUsers(ctx, users.Accepted); err != nil {
		return o.fail(report, logger, err)
	}

	o.transition(StateQuerying, logger)
	engine := query.NewEngine(o.store.Handle(), o.topN)
	report.Results, report.QueryErrors = engine.RunAll(ctx)
	for _, qerr := range report.QueryErrors {
		logger.Error("query failed", "error", qerr)
	}

	report.CompletedAt = time.Now().UTC()

	// Run bookkeeping is best-effort; history must not fail a finished run.
	if err := o.store.RecordRun(ctx, summaryOf(report)); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}

	o.transition(StateDone, logger)
	report.State = StateDone
	return report, nil
}

func (o *Orchestrator) transition(next State, logger *log.Logger) {
	logger.Debug("state transition", "from", o.state, "to", next)
	o.state = next
}

func (o *Orchestrator) fail(report *Report, logger *log.Logger, err error) (*Report, error) {
	report.FailedAt = o.state
	report.State = StateFailed
	report.CompletedAt = time.Now().UTC()
	o.state = StateFailed

	logger.Error("pipeline failed", "stage", report.FailedAt, "error", err)
	return report, fmt.Errorf("pipeline failed during %s: %w", report.FailedAt, err)
}

func (o *Orchestrator) archive(ctx context.Context, logger *log.Logger, runID, entity string, rejects []validate.Reject) {
	if len(rejects) == 0 {
		return
	}
	if err := o.sink.Archive(ctx, runID, entity, rejects); err != nil {
		logger.Warn("failed to archive rejects", "entity", entity, "error", err)
	}
}

func summaryOf(report *Report) models.RunSummary {
	return models.RunSummary{
		RunID:         report.RunID,
		StartedAt:     report.StartedAt,
		CompletedAt:   report.CompletedAt,
		PostsAccepted: report.Posts.Accepted,
		PostsRejected: report.Posts.Rejected,
		UsersAccepted: report.Users.Accepted,
		UsersRejected: report.Users.Rejected,
	}
}
