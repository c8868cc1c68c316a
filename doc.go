// Package stepline provides a lightweight, embeddable task-execution engine
// for Go, built around explicit step completion.
//
// A task is an ordered list of named steps. Each step performs one
// (typically asynchronous) unit of work and explicitly signals completion
// through the Step handle it receives, which advances execution to the next
// step, jumps to an arbitrary step, or terminates the task. Nothing advances
// until a step says so, which makes stepline a good fit for callback-driven
// work: timers, I/O completions, or any API that reports back later.
//
// # Core Concepts
//
// The stepline programming model is intentionally small and idiomatic:
//
//  1. Task
//  2. Step
//  3. TaskBuilder
//  4. Runner
//  5. Journal
//
// # Task and Step
//
// A Task runs its steps one at a time, starting at step 0. The step's
// handler receives a Step handle bound to that invocation:
//
//	task := stepline.New("backup").
//	    Step("load", func(s *stepline.Step, args ...any) {
//	        s.SetVar("x", 10)
//	        s.Next()
//	    }).
//	    Step("process", func(s *stepline.Step, args ...any) {
//	        s.SetVar("x", s.Var("x").(int) * 2)
//	        s.Next()
//	    }).
//	    Step("save", func(s *stepline.Step, args ...any) {
//	        s.Fulfill(s.Var("x"))
//	        s.Next()
//	    }).
//	    MustTask()
//
//	res, err := task.Run(ctx)
//	// err == nil, res.Values == []any{20}
//
// The handle offers:
//
//   - Done / DoneWith: error-first completion; an error always terminates
//     the task, success advances (or invokes an explicit continuation).
//   - Next / Jump / End: flow control, including non-linear transfers by
//     step name, absolute index, or relative offset.
//   - Parallel: fan-out/fan-in with index-aligned results and
//     first-error-wins aggregation.
//   - Var / SetVar and Fulfill: per-task shared state and result emission.
//   - Wrap: the step's completion as a plain callback function, for APIs
//     that invoke their callback detached from any receiver.
//
// Running off the end of the sequence is normal successful termination.
// Errors are fatal to the whole task; there is no per-step recovery.
//
// # TaskBuilder
//
// TaskBuilder is the declarative surface for building task definitions. It
// validates the declaration as it is built and panics on defects such as
// duplicate step names, since those are programming errors.
//
// # Runner
//
// Runner keeps a registry of task definitions and executes them, either
// synchronously (Run) or asynchronously via an in-memory start queue and a
// pool of worker goroutines (Start / StartWorkers / WaitForRun).
//
// # Journal
//
// Journal records run history: one record per run plus an append-only event
// stream, backed by in-memory storage or SQLite. Attach it to a Runner, or
// directly to a Task via its Observer.
//
// Observers are the general extension point for logging and metrics:
// structured slog logging, basic in-process counters, and a Prometheus
// exporter ship in the box.
//
// For examples, see the package examples or the project README.
package stepline
