package flow

import "time"

// EventType identifies a run history event.
type EventType string

const (
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"

	EventStepStarted EventType = "step.started"
	EventStepDone    EventType = "step.done"
	EventStepFailed  EventType = "step.failed"

	EventJump EventType = "jump"
)

// RunEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type RunEvent struct {
	RunID string
	At    time.Time
	Type  EventType

	// Optional context.
	TaskName string
	Step     int
	StepName string

	// Small, human-oriented details (e.g. jump target, error string).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string
}

// RunRecord is the journaled summary of one task run.
type RunRecord struct {
	RunID    string
	TaskName string
	Status   Status

	// Results holds the run's fulfillments, in emission order. Populated
	// when the run terminates.
	Results []any

	// Error is the terminal error message, empty on success.
	Error string

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFilter selects runs from a journal store. Zero values mean "no filter"
// for that field.
type RunFilter struct {
	TaskName string
	Status   Status
}
