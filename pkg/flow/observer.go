package flow

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives callbacks from a running task for logging, metrics, and
// run journaling. It doubles as the debug sink: WithDebug routes these same
// callbacks through a LoggingObserver.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay task execution. Callbacks may arrive
// from whichever goroutine completed a step.
type Observer interface {
	// OnTaskStart is called once when the task is run, before step 0.
	OnTaskStart(ctx context.Context, t *Task)

	// OnTaskFinished is called exactly once when the task reaches its
	// terminal state. lastStep names the step that signalled termination
	// ("" when the run context was cancelled); err is nil for graceful
	// completion.
	OnTaskFinished(ctx context.Context, t *Task, lastStep string, err error)

	// OnStepStart is called before a step's handler is invoked.
	OnStepStart(ctx context.Context, t *Task, stepName string, stepIndex int)

	// OnStepDone is called when a step signals completion through Done or
	// DoneWith, for both successes and failures (err != nil).
	OnStepDone(ctx context.Context, t *Task, stepName string, stepIndex int, err error)

	// OnJump is called when a step requests a jump, after the target has
	// resolved. from == to marks a self-jump, which the task ignores.
	OnJump(ctx context.Context, t *Task, from, to int, target string)
}

// NoopObserver is an Observer that does nothing. It is the default when no
// observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnTaskStart(ctx context.Context, t *Task)                              {}
func (NoopObserver) OnTaskFinished(ctx context.Context, t *Task, lastStep string, e error) {}
func (NoopObserver) OnStepStart(ctx context.Context, t *Task, stepName string, idx int)    {}
func (NoopObserver) OnStepDone(ctx context.Context, t *Task, stepName string, idx int, e error) {
}
func (NoopObserver) OnJump(ctx context.Context, t *Task, from, to int, target string) {}

// CompositeObserver fans out callbacks to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards callbacks to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o == nil {
			continue
		}
		if _, noop := o.(NoopObserver); noop {
			continue
		}
		filtered = append(filtered, o)
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTaskStart(ctx context.Context, t *Task) {
	for _, o := range c.observers {
		o.OnTaskStart(ctx, t)
	}
}

func (c *CompositeObserver) OnTaskFinished(ctx context.Context, t *Task, lastStep string, err error) {
	for _, o := range c.observers {
		o.OnTaskFinished(ctx, t, lastStep, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, t *Task, stepName string, idx int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, t, stepName, idx)
	}
}

func (c *CompositeObserver) OnStepDone(ctx context.Context, t *Task, stepName string, idx int, err error) {
	for _, o := range c.observers {
		o.OnStepDone(ctx, t, stepName, idx, err)
	}
}

func (c *CompositeObserver) OnJump(ctx context.Context, t *Task, from, to int, target string) {
	for _, o := range c.observers {
		o.OnJump(ctx, t, from, to, target)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs task and step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnTaskStart(ctx context.Context, t *Task) {
	o.Logger.InfoContext(ctx, "task_start",
		slog.String("task", t.Name()),
		slog.String("run_id", t.RunID()),
	)
}

func (o *LoggingObserver) OnTaskFinished(ctx context.Context, t *Task, lastStep string, err error) {
	if err != nil {
		o.Logger.ErrorContext(ctx, "task_failed",
			slog.String("task", t.Name()),
			slog.String("run_id", t.RunID()),
			slog.String("step", lastStep),
			slog.Any("error", err),
		)
		return
	}
	o.Logger.InfoContext(ctx, "task_completed",
		slog.String("task", t.Name()),
		slog.String("run_id", t.RunID()),
		slog.String("step", lastStep),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, t *Task, stepName string, idx int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("task", t.Name()),
		slog.String("run_id", t.RunID()),
		slog.String("step", stepName),
		slog.Int("step_index", idx),
	)
}

func (o *LoggingObserver) OnStepDone(ctx context.Context, t *Task, stepName string, idx int, err error) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_done",
		slog.String("task", t.Name()),
		slog.String("run_id", t.RunID()),
		slog.String("step", stepName),
		slog.Int("step_index", idx),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnJump(ctx context.Context, t *Task, from, to int, target string) {
	msg := "jump"
	if from == to {
		// Self-jumps are ignored by the task; log them anyway since they
		// usually indicate a declaration bug.
		msg = "self_jump_ignored"
	}
	o.Logger.DebugContext(ctx, msg,
		slog.String("task", t.Name()),
		slog.String("run_id", t.RunID()),
		slog.Int("from", from),
		slog.Int("to", to),
		slog.String("target", target),
	)
}

// BasicMetrics collects simple counters across runs. It implements Observer
// and can be combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	tasksStarted   atomic.Int64
	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64
	stepsDone      atomic.Int64
	stepsFailed    atomic.Int64
	jumps          atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	TasksStarted   int64
	TasksCompleted int64
	TasksFailed    int64
	RunningTasks   int64

	StepsDone   int64
	StepsFailed int64
	Jumps       int64
}

func (m *BasicMetrics) OnTaskStart(ctx context.Context, t *Task) {
	m.tasksStarted.Add(1)
}

func (m *BasicMetrics) OnTaskFinished(ctx context.Context, t *Task, lastStep string, err error) {
	if err != nil {
		m.tasksFailed.Add(1)
		return
	}
	m.tasksCompleted.Add(1)
}

func (m *BasicMetrics) OnStepDone(ctx context.Context, t *Task, stepName string, idx int, err error) {
	if err != nil {
		m.stepsFailed.Add(1)
		return
	}
	m.stepsDone.Add(1)
}

func (m *BasicMetrics) OnJump(ctx context.Context, t *Task, from, to int, target string) {
	if from != to {
		m.jumps.Add(1)
	}
}

// Snapshot returns a snapshot of the current counters.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.tasksStarted.Load()
	completed := m.tasksCompleted.Load()
	failed := m.tasksFailed.Load()

	return BasicMetricsSnapshot{
		TasksStarted:   started,
		TasksCompleted: completed,
		TasksFailed:    failed,
		RunningTasks:   started - completed - failed,
		StepsDone:      m.stepsDone.Load(),
		StepsFailed:    m.stepsFailed.Load(),
		Jumps:          m.jumps.Load(),
	}
}
