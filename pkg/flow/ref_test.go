package flow

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, got none", contains)
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, contains) {
			t.Fatalf("panic %v, want message containing %q", r, contains)
		}
	}()
	fn()
}

func TestJump_ByNameSkipsInterveningSteps(t *testing.T) {
	var order []string

	def := defWithSteps("jump-name",
		StepDefinition{Name: "a", Handle: func(s *Step, args ...any) {
			order = append(order, s.Name())
			s.Jump(ByName("c"), "hello")
		}},
		StepDefinition{Name: "b", Handle: passThrough(&order)},
		StepDefinition{Name: "c", Handle: func(s *Step, args ...any) {
			order = append(order, s.Name())
			if len(args) != 1 || args[0] != "hello" {
				t.Errorf("jump args %v, want [hello]", args)
			}
			s.Next()
		}},
	)

	task, _ := NewTask(def)
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "c"}) {
		t.Fatalf("order %v, want [a c]", order)
	}
}

func TestJump_ByAbsoluteIndex(t *testing.T) {
	var order []string

	def := defWithSteps("jump-index",
		StepDefinition{Name: "a", Handle: func(s *Step, args ...any) {
			order = append(order, s.Name())
			s.Jump(ByIndex(2))
		}},
		StepDefinition{Name: "b", Handle: passThrough(&order)},
		StepDefinition{Name: "c", Handle: passThrough(&order)},
	)

	task, _ := NewTask(def)
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "c"}) {
		t.Fatalf("order %v, want [a c]", order)
	}
}

func TestJump_ByNegativeOffsetResolvesRelativeToCursor(t *testing.T) {
	var order []string
	revisited := false

	def := defWithSteps("jump-offset",
		StepDefinition{Name: "first", Handle: passThrough(&order)},
		StepDefinition{Name: "second", Handle: func(s *Step, args ...any) {
			order = append(order, s.Name())
			if !revisited {
				revisited = true
				// From index 1, offset -1 must land on index 0.
				s.Jump(ByOffset(-1))
				return
			}
			s.Next()
		}},
	)

	task, _ := NewTask(def)
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", "first", "second"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order %v, want %v", order, want)
	}
}

func TestJump_ToCurrentIndexIsNoOp(t *testing.T) {
	invocations := 0

	def := defWithSteps("self-jump",
		StepDefinition{Name: "only", Handle: func(s *Step, args ...any) {
			invocations++
			s.Jump(ByIndex(0)) // self-jump: must not re-invoke the handler
			s.Next()
		}},
	)

	task, _ := NewTask(def)
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invocations != 1 {
		t.Fatalf("handler invoked %d times, want 1", invocations)
	}
}

func TestJump_UnknownNamePanicsWithoutAdvancingCursor(t *testing.T) {
	var order []string

	def := defWithSteps("bad-jump",
		StepDefinition{Name: "a", Handle: func(s *Step, args ...any) {
			order = append(order, s.Name())
			func() {
				defer func() { _ = recover() }()
				s.Jump(ByName("nope"))
			}()
			// The failed jump must not have moved the cursor.
			if s.Task().CurrentStep() != 0 {
				t.Errorf("cursor moved to %d after failed jump", s.Task().CurrentStep())
			}
			s.Next()
		}},
		StepDefinition{Name: "b", Handle: passThrough(&order)},
	)

	task, _ := NewTask(def)
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("order %v, want [a b]", order)
	}
}

func TestJump_DeclarationErrorsPanic(t *testing.T) {
	run := func(ref StepRef) func() {
		return func() {
			def := defWithSteps("panics",
				StepDefinition{Name: "a", Handle: func(s *Step, args ...any) {
					s.Jump(ref)
				}},
				StepDefinition{Name: "b", Handle: func(s *Step, args ...any) { s.Next() }},
			)
			task, _ := NewTask(def)
			_, _ = task.Run(context.Background())
		}
	}

	expectPanic(t, "jump requires a target", run(StepRef{}))
	expectPanic(t, "unknown step", run(ByName("missing")))
	expectPanic(t, "unknown step", run(ByIndex(5)))
	expectPanic(t, "unknown step", run(ByIndex(-1)))
	expectPanic(t, "unknown step", run(ByOffset(-3)))
}

func TestStepRef_String(t *testing.T) {
	cases := []struct {
		ref  StepRef
		want string
	}{
		{ByName("load"), `"load"`},
		{ByIndex(3), "[3]"},
		{ByOffset(-2), "[-2]"},
		{StepRef{}, "<invalid>"},
	}
	for _, tc := range cases {
		if got := tc.ref.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}
