package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/mharju/stepline/pkg/flow"
)

func TestRecorder_JournalsSuccessfulRun(t *testing.T) {
	store := NewMemoryStore()

	def := flow.TaskDefinition{
		Name: "export",
		Steps: []flow.StepDefinition{
			{Name: "collect", Handle: func(s *flow.Step, args ...any) {
				s.Fulfill("rows")
				s.Done(nil)
			}},
			{Name: "write", Handle: func(s *flow.Step, args ...any) { s.Done(nil) }},
		},
	}

	task, err := flow.NewTask(def, flow.WithObserver(NewRecorder(store)))
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	run, err := store.GetRun(task.RunID())
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != flow.StatusCompleted {
		t.Fatalf("status %q, want %q", run.Status, flow.StatusCompleted)
	}
	if run.Error != "" {
		t.Fatalf("error %q, want empty", run.Error)
	}
	if len(run.Results) != 1 || run.Results[0] != "rows" {
		t.Fatalf("results %v, want [rows]", run.Results)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("finished_at %v before started_at %v", run.FinishedAt, run.StartedAt)
	}

	events, err := store.ListEvents(context.Background(), task.RunID())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []flow.EventType{
		flow.EventTaskStarted,
		flow.EventStepStarted, flow.EventStepDone,
		flow.EventStepStarted, flow.EventStepDone,
		flow.EventTaskCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(want), eventTypes(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Fatalf("event %d type %q, want %q", i, events[i].Type, typ)
		}
	}
	if last := events[len(events)-1]; last.StepName != "write" {
		t.Fatalf("terminal event step %q, want %q", last.StepName, "write")
	}
}

func TestRecorder_JournalsFailureWithDetail(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("disk full")

	def := flow.TaskDefinition{
		Name: "export",
		Steps: []flow.StepDefinition{
			{Name: "collect", Handle: func(s *flow.Step, args ...any) { s.Done(boom) }},
			{Name: "write", Handle: func(s *flow.Step, args ...any) { s.Done(nil) }},
		},
	}

	task, err := flow.NewTask(def, flow.WithObserver(NewRecorder(store)))
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if _, err := task.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("run err = %v, want %v", err, boom)
	}

	run, err := store.GetRun(task.RunID())
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != flow.StatusFailed {
		t.Fatalf("status %q, want %q", run.Status, flow.StatusFailed)
	}
	if run.Error != "disk full" {
		t.Fatalf("error %q, want %q", run.Error, "disk full")
	}

	events, err := store.ListEvents(context.Background(), task.RunID())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []flow.EventType{
		flow.EventTaskStarted,
		flow.EventStepStarted, flow.EventStepFailed,
		flow.EventTaskFailed,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(want), eventTypes(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Fatalf("event %d type %q, want %q", i, events[i].Type, typ)
		}
	}
	if events[2].Detail != "disk full" || events[3].Detail != "disk full" {
		t.Fatalf("failure detail not recorded: %+v %+v", events[2], events[3])
	}
}

func TestRecorder_JournalsJumps(t *testing.T) {
	store := NewMemoryStore()

	def := flow.TaskDefinition{
		Name: "branchy",
		Steps: []flow.StepDefinition{
			{Name: "route", Handle: func(s *flow.Step, args ...any) { s.Jump(flow.ByName("finish")) }},
			{Name: "skipped", Handle: func(s *flow.Step, args ...any) { s.Done(nil) }},
			{Name: "finish", Handle: func(s *flow.Step, args ...any) { s.Done(nil) }},
		},
	}

	task, err := flow.NewTask(def, flow.WithObserver(NewRecorder(store)))
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	events, err := store.ListEvents(context.Background(), task.RunID())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var jump *flow.RunEvent
	for i := range events {
		if events[i].Type == flow.EventJump {
			jump = &events[i]
			break
		}
	}
	if jump == nil {
		t.Fatalf("no jump event journaled: %v", eventTypes(events))
	}
	if jump.Step != 2 || jump.StepName != "finish" || jump.Detail != "from 0 to 2" {
		t.Fatalf("unexpected jump event: %+v", jump)
	}
}

func eventTypes(events []flow.RunEvent) []flow.EventType {
	types := make([]flow.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
