// Package journal persists task run history: one RunRecord per run plus an
// append-only event stream. Stores back the read APIs exposed by the
// stepline package and the Recorder observer that feeds them.
package journal

import (
	"context"
	"errors"

	"github.com/mharju/stepline/pkg/flow"
)

// ErrRunNotFound is returned when a run record is not found.
var ErrRunNotFound = errors.New("run not found")

// Store handles storage of run records and run events.
type Store interface {
	SaveRun(run *flow.RunRecord) error
	UpdateRun(run *flow.RunRecord) error
	GetRun(id string) (*flow.RunRecord, error)
	ListRuns(filter flow.RunFilter) ([]*flow.RunRecord, error)

	// AppendEvent appends an event to a run's history.
	AppendEvent(ctx context.Context, ev flow.RunEvent) error
	// ListEvents returns all events for a run in chronological order.
	ListEvents(ctx context.Context, runID string) ([]flow.RunEvent, error)
}

func matches(run *flow.RunRecord, filter flow.RunFilter) bool {
	if filter.TaskName != "" && run.TaskName != filter.TaskName {
		return false
	}
	if filter.Status != "" && run.Status != filter.Status {
		return false
	}
	return true
}
