package layout

import (
	"fmt"
	"strings"

	"github.com/ousttrue/pycpptool/internal/source"
)

// LayoutErrorKind enumerates the ways layout resolution can fail.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveValue means an aggregate contains itself by
	// value, directly or through nested members, so its size is
	// infinite.
	LayoutErrRecursiveValue LayoutErrorKind = iota + 1
	// LayoutErrBitfieldOverflow means a bit-field declares more bits
	// than its backing type can hold.
	LayoutErrBitfieldOverflow
	// LayoutErrNotAggregate means a struct-only operation was asked of
	// a non-aggregate node.
	LayoutErrNotAggregate
)

// LayoutError is a fatal layout failure. A wrong offset silently baked
// into generated code is worse than no output, so these abort the run
// instead of degrading.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  string
	Field string
	Cycle []string // member chain for LayoutErrRecursiveValue
	Bits  int      // declared width for LayoutErrBitfieldOverflow
	Span  source.Span
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil layout error>"
	}
	switch e.Kind {
	case LayoutErrRecursiveValue:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type %s has infinite size", e.Type)
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(e.Cycle, " -> "))
	case LayoutErrBitfieldOverflow:
		return fmt.Sprintf("bit-field %s.%s declares %d bits, more than its backing type holds", e.Type, e.Field, e.Bits)
	case LayoutErrNotAggregate:
		return fmt.Sprintf("%s is not a struct or union", e.Type)
	default:
		return fmt.Sprintf("layout error (kind=%d, type=%s)", e.Kind, e.Type)
	}
}
