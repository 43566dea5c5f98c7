// Package decl defines the declaration-cursor data model the front end
// produces and the rest of the pipeline consumes. Cursors are plain
// data: the graph builder never touches the parser, and tests fabricate
// cursors directly.
package decl

import (
	"github.com/ousttrue/pycpptool/internal/source"
)

// Cursor is one declaration (or declaration part) extracted from a
// header. The meaning of Spelling and Children depends on Kind:
//
//   - KindStruct/KindUnion: Children hold fields, methods, bases and
//     nested anonymous aggregates; Annotations may carry a GUID macro.
//   - KindEnum: Children are KindEnumConst cursors.
//   - KindTypedef: Spelling is the underlying C type; for function
//     pointer typedefs FuncPtr is set, Spelling is the return type and
//     Children are KindParam cursors.
//   - KindField: Spelling is the declared C type, Bits >= 0 for
//     bitfields; an unnamed aggregate-typed field carries the nested
//     cursor as its single child.
//   - KindMethod/KindFunction: Spelling is the return type, Children
//     are KindParam cursors.
//   - KindInclude: Name is the include target, System distinguishes
//     <...> from "...".
//   - KindMacro: Name plus a folded Value when HasValue is set.
//
// All fields are exported so cached cursor batches serialize as-is.
type Cursor struct {
	Kind     Kind
	Name     string
	Spelling string
	File     source.FileID
	Span     source.Span

	// Bits is the declared bitfield width; -1 when the field is not a
	// bitfield. Zero is meaningful (closes the storage unit).
	Bits int

	// Value carries a folded constant for enum members and macros.
	Value    int64
	HasValue bool

	// Pack is the #pragma pack bound in effect at the declaration,
	// 0 when none.
	Pack int

	Virtual  bool
	Variadic bool
	FuncPtr  bool
	System   bool
	HasBody  bool

	Annotations []string
	Children    []Cursor
}

// IsAnonymous reports whether the cursor declares an unnamed type.
func (c *Cursor) IsAnonymous() bool {
	return c.Name == ""
}

// ChildrenOfKind returns the direct children of the given kind, in
// declaration order.
func (c *Cursor) ChildrenOfKind(k Kind) []Cursor {
	var out []Cursor
	for i := range c.Children {
		if c.Children[i].Kind == k {
			out = append(out, c.Children[i])
		}
	}
	return out
}

// CountKind reports how many direct children have the given kind.
func (c *Cursor) CountKind(k Kind) int {
	n := 0
	for i := range c.Children {
		if c.Children[i].Kind == k {
			n++
		}
	}
	return n
}
