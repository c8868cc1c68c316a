package flow

import "fmt"

type refKind int

const (
	refInvalid refKind = iota
	refName
	refIndex
	refOffset
)

// StepRef identifies a jump target: a step name, an absolute index, or an
// offset relative to the currently executing index. The zero value is
// invalid; jumping to it panics.
type StepRef struct {
	kind refKind
	name string
	n    int
}

// ByName references a step by its declared name.
func ByName(name string) StepRef {
	return StepRef{kind: refName, name: name}
}

// ByIndex references a step by absolute index. Negative indices never
// resolve; use ByOffset for relative targets.
func ByIndex(i int) StepRef {
	return StepRef{kind: refIndex, n: i}
}

// ByOffset references a step relative to the currently executing index:
// ByOffset(-2) from index 5 resolves to index 3.
func ByOffset(d int) StepRef {
	return StepRef{kind: refOffset, n: d}
}

func (r StepRef) String() string {
	switch r.kind {
	case refName:
		return fmt.Sprintf("%q", r.name)
	case refIndex:
		return fmt.Sprintf("[%d]", r.n)
	case refOffset:
		return fmt.Sprintf("[%+d]", r.n)
	default:
		return "<invalid>"
	}
}
