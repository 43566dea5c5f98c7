package typegraph

import (
	"github.com/ousttrue/pycpptool/internal/source"
)

// NodeID indexes a node inside its Graph. The zero value is reserved
// so that an unset reference is never a valid node.
type NodeID uint32

const InvalidNode NodeID = 0

// Kind discriminates the TypeNode payload.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindTypedef
	KindEnum
	KindStruct
	KindUnion
	KindPointer
	KindArray
	KindFuncPtr
	KindInterface
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindPrimitive: "primitive",
	KindTypedef:   "typedef",
	KindEnum:      "enum",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindPointer:   "pointer",
	KindArray:     "array",
	KindFuncPtr:   "funcptr",
	KindInterface: "interface",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// PrimKind is a platform-independent primitive class. Concrete sizes
// come from the layout profile.
type PrimKind uint8

const (
	PrimVoid PrimKind = iota
	PrimBool
	PrimChar
	PrimSChar
	PrimUChar
	PrimShort
	PrimUShort
	PrimInt
	PrimUInt
	PrimLong
	PrimULong
	PrimLongLong
	PrimULongLong
	PrimFloat
	PrimDouble
	PrimLongDouble
	PrimWChar
	PrimIntPtr
	PrimUIntPtr
)

var primNames = [...]string{
	PrimVoid:       "void",
	PrimBool:       "bool",
	PrimChar:       "char",
	PrimSChar:      "signed char",
	PrimUChar:      "unsigned char",
	PrimShort:      "short",
	PrimUShort:     "unsigned short",
	PrimInt:        "int",
	PrimUInt:       "unsigned int",
	PrimLong:       "long",
	PrimULong:      "unsigned long",
	PrimLongLong:   "long long",
	PrimULongLong:  "unsigned long long",
	PrimFloat:      "float",
	PrimDouble:     "double",
	PrimLongDouble: "long double",
	PrimWChar:      "wchar_t",
	PrimIntPtr:     "intptr_t",
	PrimUIntPtr:    "uintptr_t",
}

func (p PrimKind) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "void"
}

// Field is a member of a struct or union. Anonymous aggregate members
// have an empty Name and a Type pointing at a synthetic node.
type Field struct {
	Name string
	Type NodeID

	// Bits is the bitfield width, -1 for plain fields. Zero closes the
	// current storage unit without declaring a member.
	Bits int
}

// EnumMember is one enumerator with its folded value.
type EnumMember struct {
	Name  string
	Value int64
}

// Param is a function or method parameter.
type Param struct {
	Name string
	Type NodeID
}

// Method is a virtual method declared directly on an interface.
// Inherited methods stay on the declaring base.
type Method struct {
	Name     string
	Ret      NodeID
	Params   []Param
	Variadic bool
}

// TypeNode is one node of the type graph. Which fields are meaningful
// depends on Kind; everything else stays at its zero value.
type TypeNode struct {
	Kind Kind

	// Name is the declared or synthesized type name. Derived nodes
	// (pointers, arrays, anonymous function pointers) have none.
	Name string

	File source.FileID
	Span source.Span

	// KindPrimitive
	Prim PrimKind

	// KindPointer and KindArray element, KindTypedef underlying type.
	Elem NodeID

	// KindArray extent. Zero with Flexible set means a flexible array
	// member.
	Count    int
	Flexible bool

	// KindPointer: the pointee is const qualified.
	Const bool

	// KindStruct and KindUnion.
	Fields []Field
	Pack   int

	// KindEnum.
	Members []EnumMember

	// KindFuncPtr and KindInterface methods share Param/return shape.
	Ret      NodeID
	Params   []Param
	Variadic bool

	// KindInterface. Bases holds every declared base so the
	// linearizer can reject shapes it does not support; COM interfaces
	// have at most one.
	Bases    []NodeID
	Methods  []Method
	GUIDText string

	// Defined is false for forward declarations that never got a body.
	Defined bool

	// Synthetic names were generated for anonymous aggregates.
	Synthetic bool

	// Builtin types come from the well-known table, not from an owned
	// header, and are not re-emitted.
	Builtin bool
}

// Base returns the single declared base, or InvalidNode.
func (n *TypeNode) Base() NodeID {
	if len(n.Bases) > 0 {
		return n.Bases[0]
	}
	return InvalidNode
}

// IsAggregate reports whether the node has struct or union layout.
func (n *TypeNode) IsAggregate() bool {
	return n.Kind == KindStruct || n.Kind == KindUnion
}
