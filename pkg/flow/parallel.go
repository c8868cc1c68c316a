package flow

import (
	"fmt"
	"sync"
)

// Branch is one unit of concurrent sub-work inside a step. It receives a
// completion callback bound to its own index in the fan-out; the branch must
// call it exactly once.
type Branch func(done BranchDone)

// BranchDone reports a branch's outcome.
type BranchDone func(err error, result any)

// Iterator applies per-item work in ParallelEach. Like a Branch, it must
// call done exactly once per item.
type Iterator func(item any, done BranchDone)

// Parallel fans out the branches, each on its own goroutine, and completes
// this step via Done once they have been aggregated: Done(err) on the first
// error observed from any branch, or Done(nil, results) once every branch
// has succeeded. results is a []any aligned by branch index regardless of
// completion order.
//
// First error wins: later branch outcomes, error or success, are dropped.
// There is no cancellation channel, so branches still in flight when an
// error is reported run to completion; their side effects are not revoked.
// A nil branch is a declaration error and panics.
func (s *Step) Parallel(branches ...Branch) {
	s.fanOut(branches, nil)
}

// ParallelWith is Parallel with an explicit continuation, aggregated through
// DoneWith instead of Done.
func (s *Step) ParallelWith(cont Continuation, branches ...Branch) {
	s.fanOut(branches, cont)
}

// ParallelEach fans out iter over items, one branch per item, with Parallel's
// aggregation semantics. A nil iterator is a declaration error and panics.
func (s *Step) ParallelEach(items []any, iter Iterator) {
	s.fanOut(eachBranches(s, items, iter), nil)
}

// ParallelEachWith is ParallelEach with an explicit continuation.
func (s *Step) ParallelEachWith(cont Continuation, items []any, iter Iterator) {
	s.fanOut(eachBranches(s, items, iter), cont)
}

func eachBranches(s *Step, items []any, iter Iterator) []Branch {
	if iter == nil {
		panic(fmt.Sprintf("flow: step %q parallel iterator is nil", s.name))
	}
	branches := make([]Branch, len(items))
	for i, item := range items {
		item := item
		branches[i] = func(done BranchDone) {
			iter(item, done)
		}
	}
	return branches
}

func (s *Step) fanOut(branches []Branch, cont Continuation) {
	for i, b := range branches {
		if b == nil {
			panic(fmt.Sprintf("flow: step %q parallel branch %d is nil", s.name, i))
		}
	}
	if len(branches) == 0 {
		s.DoneWith(nil, cont, []any{})
		return
	}

	agg := &aggregator{
		step:      s,
		cont:      cont,
		results:   make([]any, len(branches)),
		reported:  make([]bool, len(branches)),
		remaining: len(branches),
	}
	for i, b := range branches {
		go b(agg.branchDone(i))
	}
}

// aggregator collects branch outcomes and delivers exactly one completion to
// the owning step.
type aggregator struct {
	step *Step
	cont Continuation

	mu        sync.Mutex
	results   []any
	reported  []bool
	remaining int
	settled   bool
}

func (a *aggregator) branchDone(i int) BranchDone {
	return func(err error, result any) {
		a.mu.Lock()
		if a.settled || a.reported[i] {
			a.mu.Unlock()
			return
		}
		a.reported[i] = true

		if err != nil {
			a.settled = true
			a.mu.Unlock()
			a.step.DoneWith(err, a.cont)
			return
		}

		a.results[i] = result
		a.remaining--
		last := a.remaining == 0
		if last {
			a.settled = true
		}
		a.mu.Unlock()

		if last {
			a.step.DoneWith(nil, a.cont, a.results)
		}
	}
}
