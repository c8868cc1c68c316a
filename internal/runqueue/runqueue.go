// Package runqueue provides the start-request queue consumed by Runner
// workers for asynchronous task starts.
package runqueue

import (
	"context"
	"time"
)

// StartRequest asks a worker to run a registered task definition.
type StartRequest struct {
	// RunID is allocated by the enqueuer so the caller can track the run
	// before a worker picks it up.
	RunID string

	TaskName string
	Args     []any

	EnqueuedAt time.Time
}

// Queue is a simple async start-request queue interface.
type Queue interface {
	// Enqueue adds a request to the queue. It should respect ctx for
	// cancellation.
	Enqueue(ctx context.Context, req StartRequest) error

	// Dequeue removes and returns the next request, blocking until one is
	// available or the context is cancelled.
	Dequeue(ctx context.Context) (*StartRequest, error)

	// Len returns the approximate number of requests queued.
	Len() int
}
