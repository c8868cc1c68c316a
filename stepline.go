package stepline

import (
	"context"
	"database/sql"

	"github.com/mharju/stepline/internal/journal"
	"github.com/mharju/stepline/pkg/flow"
)

// Re-export key types so users don't need to dig into pkg/flow.

type (
	Task                 = flow.Task
	Step                 = flow.Step
	StepRef              = flow.StepRef
	Handler              = flow.Handler
	Continuation         = flow.Continuation
	Branch               = flow.Branch
	BranchDone           = flow.BranchDone
	Iterator             = flow.Iterator
	StepDefinition       = flow.StepDefinition
	TaskDefinition       = flow.TaskDefinition
	Result               = flow.Result
	Status               = flow.Status
	RunRecord            = flow.RunRecord
	RunEvent             = flow.RunEvent
	RunFilter            = flow.RunFilter
	EventType            = flow.EventType
	Option               = flow.Option
	Observer             = flow.Observer
	LoggingObserver      = flow.LoggingObserver
	BasicMetrics         = flow.BasicMetrics
	BasicMetricsSnapshot = flow.BasicMetricsSnapshot
	CompositeObserver    = flow.CompositeObserver
	NoopObserver         = flow.NoopObserver
)

// Re-export constructors and helpers.

var (
	NewTask      = flow.NewTask
	WithObserver = flow.WithObserver
	WithDebug    = flow.WithDebug
	WithRunID    = flow.WithRunID

	ByName   = flow.ByName
	ByIndex  = flow.ByIndex
	ByOffset = flow.ByOffset

	NewLoggingObserver   = flow.NewLoggingObserver
	NewCompositeObserver = flow.NewCompositeObserver
)

// Re-export status values for convenience.

const (
	StatusPending   = flow.StatusPending
	StatusRunning   = flow.StatusRunning
	StatusCompleted = flow.StatusCompleted
	StatusFailed    = flow.StatusFailed
)

// Re-export run history event types.

const (
	EventTaskStarted   = flow.EventTaskStarted
	EventTaskCompleted = flow.EventTaskCompleted
	EventTaskFailed    = flow.EventTaskFailed
	EventStepStarted   = flow.EventStepStarted
	EventStepDone      = flow.EventStepDone
	EventStepFailed    = flow.EventStepFailed
	EventJump          = flow.EventJump
)

// ErrRunNotFound is returned by Journal lookups for unknown run IDs.
var ErrRunNotFound = journal.ErrRunNotFound

// Run builds a one-off Task from def and runs it to termination.
func Run(ctx context.Context, def TaskDefinition, args ...any) (*Result, error) {
	t, err := flow.NewTask(def)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, args...)
}

// Journal records run history (one record per run plus an event stream) and
// exposes read APIs over it. Attach it to tasks via Observer, or hand it to
// a Runner with WithJournal.
type Journal struct {
	store journal.Store
}

// NewMemoryJournal returns a Journal backed entirely by in-memory storage.
// It is non-durable; use it for tests and development.
func NewMemoryJournal() *Journal {
	return &Journal{store: journal.NewMemoryStore()}
}

// NewSQLiteJournal returns a Journal that persists run history in a SQLite
// database.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:stepline.db?_journal=WAL")
//	jrn, err := stepline.NewSQLiteJournal(db)
func NewSQLiteJournal(db *sql.DB) (*Journal, error) {
	store, err := journal.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return &Journal{store: store}, nil
}

// Observer returns a flow.Observer that records run history into this
// journal. Combine it with other observers via NewCompositeObserver.
func (j *Journal) Observer() Observer {
	return journal.NewRecorder(j.store)
}

// GetRun fetches a run record by ID.
func (j *Journal) GetRun(id string) (*RunRecord, error) {
	return j.store.GetRun(id)
}

// ListRuns lists recorded runs according to the given filter.
func (j *Journal) ListRuns(filter RunFilter) ([]*RunRecord, error) {
	return j.store.ListRuns(filter)
}

// ListEvents returns a run's history events in chronological order.
func (j *Journal) ListEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	return j.store.ListEvents(ctx, runID)
}
