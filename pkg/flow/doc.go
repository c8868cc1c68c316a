// Package flow contains the core building blocks of the stepline task
// engine: tasks, steps, jump references, and observers.
//
// Most users interact with the higher-level stepline package, which
// re-exports selected types and helpers from this package. The flow package
// is intended for advanced use cases, custom integrations, or contributors
// extending the engine itself.
//
// # Concepts
//
// A Task owns an ordered sequence of named steps and runs them one at a
// time. Each step's Handler receives a Step handle and signals completion
// explicitly through it; a handler that returns without completing suspends
// the task until a retained handle (or a Wrap callback) completes it from a
// later callback, such as a timer or an I/O completion.
//
// Completion decides what happens next:
//
//   - Done / DoneWith advance on success and terminate the task on error.
//     Errors are always fatal to the task; there is no per-step recovery.
//   - Next runs the following step, or ends the task when none remains.
//   - Jump transfers control to an arbitrary step by name (ByName), absolute
//     index (ByIndex), or offset from the current index (ByOffset).
//   - End terminates the task unconditionally.
//
// Steps of the same task share a variable store (Var / SetVar) and a result
// accumulation (Fulfill); the accumulated values are returned from Run in
// emission order.
//
// Parallel fans out concurrent branches with index-aligned result collection
// and first-error-wins aggregation. Branches are never cancelled: once
// dispatched, a branch runs to completion even when the aggregate outcome
// has already been decided.
//
// # Scheduling
//
// Transitions between steps are strictly sequential: the next handler is not
// invoked until the current step signals completion. Only Parallel issues
// work concurrently, and only its final aggregation re-enters the single
// control flow. A step completion may arrive from any goroutine; the task
// serializes state access internally, and completions arriving after the
// task has terminated are ignored.
//
// # Errors
//
// Step-level errors terminate the task and surface from Task.Run. Defects in
// a task's declaration, such as a jump to an unknown step or a nil parallel
// branch, panic: they indicate a bug in the program, not a runtime failure.
package flow
