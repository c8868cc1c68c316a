package runqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestSQLiteQueue(t *testing.T) *SQLiteQueue {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}
	return q
}

func TestSQLiteQueue_FIFOWithArgsRoundTrip(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := StartRequest{
			RunID:    fmt.Sprintf("run-%d", i),
			TaskName: "backup",
			Args:     []any{"seed", i},
		}
		if err := q.Enqueue(ctx, req); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len %d, want 3", q.Len())
	}

	for i := 0; i < 3; i++ {
		req, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if want := fmt.Sprintf("run-%d", i); req.RunID != want {
			t.Fatalf("got %q, want %q", req.RunID, want)
		}
		if req.TaskName != "backup" {
			t.Fatalf("task name %q, want backup", req.TaskName)
		}
		if !reflect.DeepEqual(req.Args, []any{"seed", i}) {
			t.Fatalf("args %v, want [seed %d]", req.Args, i)
		}
		if req.EnqueuedAt.IsZero() {
			t.Fatalf("enqueued_at not restored")
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len %d, want 0", q.Len())
	}
}

func TestSQLiteQueue_NilArgsStayNil(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, StartRequest{RunID: "r", TaskName: "t"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	req, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if req.Args != nil {
		t.Fatalf("args %v, want nil", req.Args)
	}
}

func TestSQLiteQueue_DequeueBlocksUntilRequestArrives(t *testing.T) {
	q := newTestSQLiteQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resultCh := make(chan *StartRequest, 1)
	errCh := make(chan error, 1)
	go func() {
		req, err := q.Dequeue(ctx)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- req
	}()

	time.Sleep(50 * time.Millisecond)
	if err := q.Enqueue(context.Background(), StartRequest{RunID: "late", TaskName: "t"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("dequeue returned error: %v", err)
	case req := <-resultCh:
		if req.RunID != "late" {
			t.Fatalf("unexpected request: %+v", req)
		}
	case <-ctx.Done():
		t.Fatalf("timeout waiting for dequeue")
	}
}

func TestSQLiteQueue_DequeueHonorsContextCancellation(t *testing.T) {
	q := newTestSQLiteQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestSQLiteQueue_ConcurrentDequeueNoDuplicates(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := q.Enqueue(ctx, StartRequest{RunID: "only", TaskName: "t"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results := make(chan *StartRequest, 2)
	deq := func() {
		req, _ := q.Dequeue(ctx)
		results <- req
	}
	go deq()
	go deq()

	count := 0
	for i := 0; i < 2; i++ {
		if req := <-results; req != nil {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one dequeued request, got %d", count)
	}
}

func TestSQLiteQueue_RequestsSurviveReopen(t *testing.T) {
	db, err := sql.Open("sqlite", "file:requeue?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}
	if err := q.Enqueue(context.Background(), StartRequest{RunID: "durable", TaskName: "t"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A fresh queue over the same database sees the request.
	q2, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue (reopen) failed: %v", err)
	}
	req, err := q2.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if req.RunID != "durable" {
		t.Fatalf("got %q, want durable", req.RunID)
	}
}
