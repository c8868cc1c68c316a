package stepline

import (
	"context"
	"fmt"

	"github.com/mharju/stepline/pkg/flow"
)

// TaskBuilder provides a fluent API for declaring tasks:
//
//	task, err := stepline.New("backup").
//	    Step("load", load).
//	    Step("process", process).
//	    Step("save", save).
//	    Task()
//
//	res, err := task.Run(ctx)
//
// Declaration defects (empty or duplicate step names, nil handlers) panic at
// declaration time: they indicate a bug in the program, not a runtime
// failure.
type TaskBuilder struct {
	def  flow.TaskDefinition
	seen map[string]struct{}
}

// New creates a new task builder with the given name.
func New(name string) *TaskBuilder {
	return &TaskBuilder{
		def: flow.TaskDefinition{
			Name:  name,
			Steps: make([]flow.StepDefinition, 0),
		},
		seen: make(map[string]struct{}),
	}
}

// Name returns the task name.
func (b *TaskBuilder) Name() string {
	return b.def.Name
}

// Definition returns the underlying TaskDefinition.
// Typically used when interacting with lower-level APIs.
func (b *TaskBuilder) Definition() TaskDefinition {
	return b.def
}

// Step appends a step to the task.
func (b *TaskBuilder) Step(name string, h Handler) *TaskBuilder {
	return b.StepArgs(name, h)
}

// StepArgs appends a step with declaration-time arguments. The known args
// are prepended ahead of whatever the previous step forwarded when the
// handler is invoked.
func (b *TaskBuilder) StepArgs(name string, h Handler, knownArgs ...any) *TaskBuilder {
	if name == "" {
		panic("stepline: step name must not be empty")
	}
	if h == nil {
		panic(fmt.Sprintf("stepline: step %q has nil handler", name))
	}
	if _, dup := b.seen[name]; dup {
		panic(fmt.Sprintf("stepline: duplicate step name %q", name))
	}
	b.seen[name] = struct{}{}

	b.def.Steps = append(b.def.Steps, flow.StepDefinition{
		Name:      name,
		Handle:    h,
		KnownArgs: knownArgs,
	})
	return b
}

// Task builds a runnable Task from the declared steps.
func (b *TaskBuilder) Task(opts ...Option) (*Task, error) {
	return flow.NewTask(b.def, opts...)
}

// MustTask is like Task but panics on error.
// Useful for initialization in main().
func (b *TaskBuilder) MustTask(opts ...Option) *Task {
	t, err := b.Task(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Run builds the task and runs it to termination in one call.
func (b *TaskBuilder) Run(ctx context.Context, args ...any) (*Result, error) {
	t, err := b.Task()
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, args...)
}
