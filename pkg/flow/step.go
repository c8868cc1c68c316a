package flow

import "fmt"

// Step is the control handle passed to a step's handler. It is bound to one
// (task, index) pair and stays valid after the handler returns, so it can be
// captured by closures that complete the step from a later callback.
//
// Exactly one of Done, Next, Jump, or End should complete each step
// invocation. Completions after the task has terminated are ignored.
type Step struct {
	task  *Task
	name  string
	index int
}

// Name returns the step's name.
func (s *Step) Name() string { return s.name }

// Index returns the step's position in the task's step sequence.
func (s *Step) Index() int { return s.index }

// Task returns the owning task.
func (s *Step) Task() *Task { return s.task }

// Done is the universal completion entry point. A non-nil err terminates the
// task via End; a nil err advances to the following step, forwarding args.
func (s *Step) Done(err error, args ...any) {
	s.DoneWith(err, nil, args...)
}

// DoneWith completes the step with an explicit continuation. A non-nil err
// terminates the task unconditionally and the continuation is discarded;
// there is no per-step error recovery. With a nil err the continuation is
// invoked with this step and args; a nil continuation advances to the
// following step.
func (s *Step) DoneWith(err error, cont Continuation, args ...any) {
	t := s.task
	t.mu.Lock()
	running := t.status == StatusRunning
	t.mu.Unlock()
	if !running {
		// Late completion from an in-flight callback; nothing to advance
		// and nothing to report.
		return
	}
	t.observer.OnStepDone(t.runContext(), t, s.name, s.index, err)

	if err != nil {
		s.End(err)
		return
	}
	if cont != nil {
		cont(s, args...)
		return
	}
	s.Next(args...)
}

// Wrap returns this step's completion as a plain function, for handing to
// APIs that invoke their callback detached from any receiver:
//
//	s.Wrap()(err, results...) is equivalent to s.Done(err, results...)
func (s *Step) Wrap() func(err error, args ...any) {
	return s.Done
}

// WrapWith is the DoneWith analogue of Wrap: the returned function completes
// the step through the given continuation.
func (s *Step) WrapWith(cont Continuation) func(err error, args ...any) {
	return func(err error, args ...any) {
		s.DoneWith(err, cont, args...)
	}
}

// Fulfill appends each value to the task's result accumulation. It does not
// affect flow control: a step may fulfill any number of times and must still
// complete separately.
func (s *Step) Fulfill(values ...any) {
	for _, v := range values {
		s.task.emitFulfillment(v)
	}
}

// Var reads a key from the task's shared variable store, returning nil when
// the key is absent.
func (s *Step) Var(key string) any {
	v, _ := s.LookupVar(key)
	return v
}

// LookupVar reads a key from the shared variable store, reporting whether it
// was present.
func (s *Step) LookupVar(key string) (any, bool) {
	t := s.task
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.vars[key]
	return v, ok
}

// SetVar writes a key in the task's shared variable store and returns the
// written value. The store is shared by all steps of the same task and is
// the mechanism for passing state between non-adjacent steps.
func (s *Step) SetVar(key string, value any) any {
	t := s.task
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vars[key] = value
	return value
}

// Jump transfers control to the referenced step, forwarding args to its
// handler. An invalid or unresolvable ref is a declaration error and panics
// without moving the cursor. Jumping to the currently executing index is a
// no-op; the observer still sees the attempt (from == to), since reaching it
// usually indicates a logic bug in the task's declaration.
func (s *Step) Jump(ref StepRef, args ...any) {
	t := s.task

	if ref.kind == refInvalid {
		panic(fmt.Sprintf("flow: step %q jump requires a target", s.name))
	}
	target, ok := t.resolve(ref)
	if !ok {
		panic(fmt.Sprintf("flow: step %q jump to unknown step %s of task %q", s.name, ref, t.name))
	}

	t.mu.Lock()
	current := t.cursor
	t.mu.Unlock()

	t.observer.OnJump(t.runContext(), t, current, target, t.steps[target].Name)
	if target == current {
		return
	}
	t.runFrom(target, args)
}

// Next advances to the following step, forwarding args. Running off the end
// of the sequence is normal successful termination, ending the task with no
// error.
func (s *Step) Next(args ...any) {
	t := s.task
	t.mu.Lock()
	next := t.cursor + 1
	last := next >= len(t.steps)
	t.mu.Unlock()

	if last {
		s.End(nil)
		return
	}
	t.runFrom(next, args)
}

// End terminates the task with err (nil for graceful completion). This is
// the single termination path: error completions and running past the last
// step both route through it. Only the first terminal signal takes effect.
func (s *Step) End(err error) {
	s.task.finish(s.name, err)
}
