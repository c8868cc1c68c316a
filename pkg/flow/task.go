package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// ErrTaskAlreadyStarted is returned by Run when a Task is run a second time.
// A Task executes exactly once; build a new Task to run the same definition
// again.
var ErrTaskAlreadyStarted = errors.New("task already started")

// Handler is the user-supplied logic for a single step. It receives the Step
// handle bound to this invocation plus any arguments forwarded by the
// previous step (prefixed by the step's KnownArgs).
//
// A handler signals completion explicitly by calling one of the Step's
// control methods (Done, Next, Jump, End); returning from the handler without
// doing so suspends the task until a retained Step handle (or a callback
// produced by Wrap) completes it later.
type Handler func(s *Step, args ...any)

// Continuation is an explicit continuation for DoneWith: it is invoked with
// the completing Step and the arguments forwarded by the completion.
type Continuation func(s *Step, args ...any)

// StepDefinition describes a named step.
type StepDefinition struct {
	Name   string
	Handle Handler

	// KnownArgs are bound at declaration time and are prepended ahead of the
	// runtime arguments when the handler is invoked.
	KnownArgs []any
}

// TaskDefinition describes a task as an ordered sequence of steps. Step
// order is declaration order, and step indices are stable for the lifetime
// of any Task built from the definition.
type TaskDefinition struct {
	Name  string
	Steps []StepDefinition
}

// Result holds the outcome of a completed run: the values the steps emitted
// via Fulfill, in emission order.
type Result struct {
	RunID  string
	Values []any
}

// Task is a single runnable instance of a TaskDefinition. It owns the step
// cursor, the shared variable store, and the result accumulation. A Task runs
// once and reaches exactly one terminal state.
//
// Completion calls may arrive from any goroutine (timer and I/O callbacks
// typically do), so all mutable state is mutex-guarded. Completions arriving
// after the task has terminated are no-ops.
type Task struct {
	name     string
	steps    []StepDefinition
	byName   map[string]int
	runID    string
	observer Observer

	debug bool

	mu       sync.Mutex
	ctx      context.Context
	status   Status
	cursor   int
	vars     map[string]any
	results  []any
	err      error
	started  bool
	finished chan struct{}
}

// Option configures a Task.
type Option func(*Task)

// WithObserver attaches an Observer that receives run lifecycle callbacks.
func WithObserver(obs Observer) Option {
	return func(t *Task) {
		if obs != nil {
			t.observer = obs
		}
	}
}

// WithDebug enables diagnostic tracing: step completions, jumps, and the
// terminal transition are logged through a LoggingObserver in addition to
// any observer configured via WithObserver, regardless of option order.
func WithDebug() Option {
	return func(t *Task) {
		t.debug = true
	}
}

// WithRunID overrides the generated run ID. Useful when an external system
// (queue, journal) allocated the ID before the task was built.
func WithRunID(id string) Option {
	return func(t *Task) {
		if id != "" {
			t.runID = id
		}
	}
}

// NewTask builds a runnable Task from a definition.
//
// The definition must have a name, at least one step, and every step must
// have a unique non-empty name and a non-nil handler.
func NewTask(def TaskDefinition, opts ...Option) (*Task, error) {
	if def.Name == "" {
		return nil, errors.New("task name is required")
	}
	if len(def.Steps) == 0 {
		return nil, errors.New("task must have at least one step")
	}

	byName := make(map[string]int, len(def.Steps))
	for i, sd := range def.Steps {
		if sd.Name == "" {
			return nil, fmt.Errorf("step %d has no name", i)
		}
		if sd.Handle == nil {
			return nil, fmt.Errorf("step %q has nil handler", sd.Name)
		}
		if _, dup := byName[sd.Name]; dup {
			return nil, fmt.Errorf("duplicate step name %q", sd.Name)
		}
		byName[sd.Name] = i
	}

	t := &Task{
		name:     def.Name,
		steps:    def.Steps,
		byName:   byName,
		runID:    uuid.NewString(),
		observer: NoopObserver{},
		status:   StatusPending,
		vars:     make(map[string]any),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.debug {
		t.observer = NewCompositeObserver(NewLoggingObserver(nil), t.observer)
	}
	return t, nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// RunID returns the identifier of this run.
func (t *Task) RunID() string { return t.runID }

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CurrentStep returns the index of the step the cursor points at.
func (t *Task) CurrentStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Err returns the terminal error, if any. Nil while the task is running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Results returns a copy of the values emitted via Fulfill so far, in
// emission order.
func (t *Task) Results() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.results))
	copy(out, t.results)
	return out
}

// Run starts the task at step 0 and blocks until it terminates or ctx is
// cancelled. The optional args are forwarded to the first step's handler
// after its KnownArgs.
//
// Run returns the accumulated Result together with the terminal error (nil
// when the task ran off the end of its step sequence or a step called End
// with no error). Cancelling ctx terminates the run with ctx.Err(); step
// completions arriving afterwards are ignored.
func (t *Task) Run(ctx context.Context, args ...any) (*Result, error) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil, ErrTaskAlreadyStarted
	}
	t.started = true
	t.status = StatusRunning
	t.ctx = ctx
	t.mu.Unlock()

	t.observer.OnTaskStart(ctx, t)
	t.runFrom(0, args)

	select {
	case <-t.finished:
	case <-ctx.Done():
		t.finish("", ctx.Err())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	res := &Result{
		RunID:  t.runID,
		Values: make([]any, len(t.results)),
	}
	copy(res.Values, t.results)
	return res, t.err
}

// runFrom moves the cursor to index and invokes that step's handler with the
// step's known arguments followed by args. It is a no-op once the task has
// terminated. An out-of-range index means a bad jump target and panics.
func (t *Task) runFrom(index int, args []any) {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return
	}
	if index < 0 || index >= len(t.steps) {
		n := len(t.steps)
		t.mu.Unlock()
		panic(fmt.Sprintf("flow: step index %d out of range for task %q (%d steps)", index, t.name, n))
	}
	t.cursor = index
	def := t.steps[index]
	ctx := t.ctx
	t.mu.Unlock()

	s := &Step{task: t, name: def.Name, index: index}
	t.observer.OnStepStart(ctx, t, def.Name, index)

	callArgs := make([]any, 0, len(def.KnownArgs)+len(args))
	callArgs = append(callArgs, def.KnownArgs...)
	callArgs = append(callArgs, args...)
	def.Handle(s, callArgs...)
}

// resolve maps a StepRef to an absolute step index. Relative offsets are
// resolved against the current cursor.
func (t *Task) resolve(ref StepRef) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ref.kind {
	case refName:
		i, ok := t.byName[ref.name]
		return i, ok
	case refIndex:
		if ref.n >= 0 && ref.n < len(t.steps) {
			return ref.n, true
		}
		return 0, false
	case refOffset:
		i := t.cursor + ref.n
		if i >= 0 && i < len(t.steps) {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// emitFulfillment appends a value to the run's results. No-op after
// termination.
func (t *Task) emitFulfillment(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRunning {
		return
	}
	t.results = append(t.results, v)
}

// finish moves the task to its terminal state. The first call wins; any
// later completion, from whichever goroutine, is a no-op.
func (t *Task) finish(stepName string, err error) {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.status = StatusFailed
	} else {
		t.status = StatusCompleted
	}
	t.err = err
	ctx := t.ctx
	t.mu.Unlock()

	t.observer.OnTaskFinished(ctx, t, stepName, err)
	close(t.finished)
}

func (t *Task) runContext() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx != nil {
		return t.ctx
	}
	return context.Background()
}
