package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/mharju/stepline/pkg/flow"
)

// Recorder is a flow.Observer that journals run records and events into a
// Store. Store errors do not interrupt task execution; journaling is
// best-effort by design.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Ensure Recorder implements flow.Observer.
var _ flow.Observer = (*Recorder)(nil)

func (r *Recorder) OnTaskStart(ctx context.Context, t *flow.Task) {
	now := time.Now()
	_ = r.store.SaveRun(&flow.RunRecord{
		RunID:     t.RunID(),
		TaskName:  t.Name(),
		Status:    flow.StatusRunning,
		StartedAt: now,
	})
	_ = r.store.AppendEvent(ctx, flow.RunEvent{
		RunID:    t.RunID(),
		At:       now,
		Type:     flow.EventTaskStarted,
		TaskName: t.Name(),
		Step:     -1,
	})
}

func (r *Recorder) OnTaskFinished(ctx context.Context, t *flow.Task, lastStep string, err error) {
	now := time.Now()

	run, getErr := r.store.GetRun(t.RunID())
	if getErr != nil {
		run = &flow.RunRecord{
			RunID:     t.RunID(),
			TaskName:  t.Name(),
			StartedAt: now,
		}
		_ = r.store.SaveRun(run)
	}

	run.Results = t.Results()
	run.FinishedAt = now
	if err != nil {
		run.Status = flow.StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = flow.StatusCompleted
		run.Error = ""
	}
	_ = r.store.UpdateRun(run)

	ev := flow.RunEvent{
		RunID:    t.RunID(),
		At:       now,
		TaskName: t.Name(),
		Step:     -1,
		StepName: lastStep,
	}
	if err != nil {
		ev.Type = flow.EventTaskFailed
		ev.Detail = err.Error()
	} else {
		ev.Type = flow.EventTaskCompleted
	}
	_ = r.store.AppendEvent(ctx, ev)
}

func (r *Recorder) OnStepStart(ctx context.Context, t *flow.Task, stepName string, idx int) {
	_ = r.store.AppendEvent(ctx, flow.RunEvent{
		RunID:    t.RunID(),
		Type:     flow.EventStepStarted,
		TaskName: t.Name(),
		Step:     idx,
		StepName: stepName,
	})
}

func (r *Recorder) OnStepDone(ctx context.Context, t *flow.Task, stepName string, idx int, err error) {
	ev := flow.RunEvent{
		RunID:    t.RunID(),
		Type:     flow.EventStepDone,
		TaskName: t.Name(),
		Step:     idx,
		StepName: stepName,
	}
	if err != nil {
		ev.Type = flow.EventStepFailed
		ev.Detail = err.Error()
	}
	_ = r.store.AppendEvent(ctx, ev)
}

func (r *Recorder) OnJump(ctx context.Context, t *flow.Task, from, to int, target string) {
	_ = r.store.AppendEvent(ctx, flow.RunEvent{
		RunID:    t.RunID(),
		Type:     flow.EventJump,
		TaskName: t.Name(),
		Step:     to,
		StepName: target,
		Detail:   fmt.Sprintf("from %d to %d", from, to),
	})
}
