package stepline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mharju/stepline/internal/runqueue"
	"github.com/mharju/stepline/pkg/flow"
)

// Runner holds a registry of task definitions and runs them, synchronously
// via Run or asynchronously via Start plus a pool of worker goroutines
// consuming an in-memory queue.
//
// Typical usage:
//
//	jrn := stepline.NewMemoryJournal()
//	runner := stepline.NewRunner(stepline.WithJournal(jrn))
//	_ = runner.Register(stepline.New("backup").Step(...).Definition())
//
//	// Synchronous run (no queue/worker involved):
//	res, err := runner.Run(ctx, "backup")
//
//	// Asynchronous run:
//	_ = runner.StartWorkers(ctx, 2)
//	runID, _ := runner.Start(ctx, "backup")
//	res, err := runner.WaitForRun(ctx, runID)
//	runner.Stop()
type Runner struct {
	journal  *Journal
	observer flow.Observer
	queue    runqueue.Queue

	mu      sync.Mutex
	defs    map[string]flow.TaskDefinition
	pending map[string]*pendingRun
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type pendingRun struct {
	done chan struct{}
	res  *Result
	err  error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJournal attaches a Journal; every run executed by the Runner is
// recorded into it.
func WithJournal(j *Journal) RunnerOption {
	return func(r *Runner) {
		r.journal = j
	}
}

// WithRunnerObserver attaches an Observer to every run executed by the
// Runner, in addition to the journal's recorder.
func WithRunnerObserver(obs Observer) RunnerOption {
	return func(r *Runner) {
		if obs != nil {
			r.observer = obs
		}
	}
}

// NewRunner constructs a Runner with an in-memory start queue.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		queue:    runqueue.NewInMemoryQueue(1024),
		observer: flow.NoopObserver{},
		defs:     make(map[string]flow.TaskDefinition),
		pending:  make(map[string]*pendingRun),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.journal != nil {
		r.observer = flow.NewCompositeObserver(r.journal.Observer(), r.observer)
	}
	return r
}

// NewSQLiteRunner constructs a durable Runner: the run journal and the start
// queue are both persisted in the given SQLite database, so run history and
// enqueued-but-unprocessed starts survive process restarts.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:stepline.db?_journal=WAL")
//	runner, err := stepline.NewSQLiteRunner(db)
func NewSQLiteRunner(db *sql.DB, opts ...RunnerOption) (*Runner, error) {
	jrn, err := NewSQLiteJournal(db)
	if err != nil {
		return nil, err
	}
	queue, err := runqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}

	r := NewRunner(append([]RunnerOption{WithJournal(jrn)}, opts...)...)
	r.queue = queue
	return r, nil
}

// Register adds a task definition to the registry. Names are unique.
func (r *Runner) Register(def TaskDefinition) error {
	if def.Name == "" {
		return errors.New("stepline: task name is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("stepline: task %q must have at least one step", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("stepline: task already registered: %s", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Run executes a registered task synchronously, blocking until termination.
func (r *Runner) Run(ctx context.Context, name string, args ...any) (*Result, error) {
	def, err := r.definition(name)
	if err != nil {
		return nil, err
	}
	t, err := flow.NewTask(def, flow.WithObserver(r.observer))
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, args...)
}

// Start enqueues an asynchronous run of a registered task and returns its
// run ID. A worker started via StartWorkers picks it up; the outcome is
// available through WaitForRun.
func (r *Runner) Start(ctx context.Context, name string, args ...any) (string, error) {
	if _, err := r.definition(name); err != nil {
		return "", err
	}

	runID := uuid.NewString()

	r.mu.Lock()
	r.pending[runID] = &pendingRun{done: make(chan struct{})}
	r.mu.Unlock()

	err := r.queue.Enqueue(ctx, runqueue.StartRequest{
		RunID:      runID,
		TaskName:   name,
		Args:       args,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		r.mu.Lock()
		delete(r.pending, runID)
		r.mu.Unlock()
		return "", err
	}
	return runID, nil
}

// WaitForRun blocks until the run started via Start terminates, returning
// its result and terminal error. The outcome is consumed by the first
// successful wait; a second WaitForRun for the same run ID reports an
// unknown run. Journaled history remains available through GetRun.
func (r *Runner) WaitForRun(ctx context.Context, runID string) (*Result, error) {
	r.mu.Lock()
	p, ok := r.pending[runID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("stepline: unknown run: %s", runID)
	}

	select {
	case <-p.done:
		r.mu.Lock()
		delete(r.pending, runID)
		r.mu.Unlock()
		return p.res, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously
// dequeue start requests until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *Runner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("stepline: Runner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				req, err := r.queue.Dequeue(ctx)
				if err != nil {
					// Cancellation is the worker's clean shutdown signal.
					return
				}
				r.process(ctx, req)
			}
		}()
	}

	return nil
}

func (r *Runner) process(ctx context.Context, req *runqueue.StartRequest) {
	res, err := r.runRequest(ctx, req)

	r.mu.Lock()
	p, ok := r.pending[req.RunID]
	r.mu.Unlock()
	if !ok {
		return
	}
	p.res = res
	p.err = err
	close(p.done)
}

func (r *Runner) runRequest(ctx context.Context, req *runqueue.StartRequest) (*Result, error) {
	def, err := r.definition(req.TaskName)
	if err != nil {
		return nil, err
	}
	t, err := flow.NewTask(def,
		flow.WithObserver(r.observer),
		flow.WithRunID(req.RunID),
	)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, req.Args...)
}

// Stop cancels all worker goroutines started by StartWorkers and waits for
// them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

// GetRun fetches a run record from the attached journal.
func (r *Runner) GetRun(id string) (*RunRecord, error) {
	j, err := r.requireJournal()
	if err != nil {
		return nil, err
	}
	return j.GetRun(id)
}

// ListRuns lists journaled runs according to the given filter.
func (r *Runner) ListRuns(filter RunFilter) ([]*RunRecord, error) {
	j, err := r.requireJournal()
	if err != nil {
		return nil, err
	}
	return j.ListRuns(filter)
}

// ListEvents returns a journaled run's history events.
func (r *Runner) ListEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	j, err := r.requireJournal()
	if err != nil {
		return nil, err
	}
	return j.ListEvents(ctx, runID)
}

func (r *Runner) requireJournal() (*Journal, error) {
	if r.journal == nil {
		return nil, errors.New("stepline: no journal configured")
	}
	return r.journal, nil
}

func (r *Runner) definition(name string) (flow.TaskDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[name]
	if !ok {
		return flow.TaskDefinition{}, fmt.Errorf("stepline: unknown task: %s", name)
	}
	return def, nil
}
