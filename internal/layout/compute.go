package layout

import (
	"fmt"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

func (e *LayoutEngine) computeLayout(id typegraph.NodeID, state *layoutState) (TypeLayout, *LayoutError) {
	n := e.Graph.Get(id)
	switch n.Kind {
	case typegraph.KindPrimitive:
		size, align := e.Profile.Primitive(n.Prim)
		return TypeLayout{Size: size, Align: maxInt(align, 1)}, nil
	case typegraph.KindTypedef:
		return e.layoutOf(n.Elem, state)
	case typegraph.KindEnum:
		if n.Elem != typegraph.InvalidNode {
			return e.layoutOf(n.Elem, state)
		}
		return TypeLayout{Size: e.Profile.EnumSize, Align: e.Profile.EnumSize}, nil
	case typegraph.KindPointer, typegraph.KindFuncPtr:
		return e.ptrLayout(), nil
	case typegraph.KindInterface:
		// A COM interface value is exactly one vtable pointer; it is
		// only ever used behind a pointer anyway.
		return e.ptrLayout(), nil
	case typegraph.KindArray:
		return e.arrayLayout(n, state)
	case typegraph.KindStruct, typegraph.KindUnion:
		if !n.Defined {
			return e.opaqueLayout(id), nil
		}
		if n.Kind == typegraph.KindUnion {
			return e.unionLayout(n, state)
		}
		return e.structLayout(n, state)
	}
	return TypeLayout{Size: 0, Align: 1}, nil
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	return TypeLayout{Size: e.Profile.PtrSize, Align: e.Profile.PtrAlign}
}

// opaqueLayout stands in for an aggregate that no owned header ever
// defines. Such types only appear behind pointers in practice, so a
// pointer-sized placeholder keeps the run alive; the warning tells the
// user which types those are.
func (e *LayoutEngine) opaqueLayout(id typegraph.NodeID) TypeLayout {
	n := e.Graph.Get(id)
	e.rep.Report(diag.GraphOpaqueFallback, diag.SevWarning, n.Span,
		fmt.Sprintf("type %s is never defined; using an opaque pointer-sized layout", n.Name), nil)
	return e.ptrLayout()
}

func (e *LayoutEngine) arrayLayout(n *typegraph.TypeNode, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(n.Elem, state)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	align := maxInt(el.Align, 1)
	stride := roundUp(el.Size, align)
	if n.Flexible {
		return TypeLayout{Size: 0, Align: align, Flexible: true}, nil
	}
	return TypeLayout{Size: stride * n.Count, Align: align}, nil
}

// structLayout places fields the way MSVC does: each field lands at
// the next offset aligned to min(natural alignment, pack), adjacent
// bit-fields share a storage unit while their backing types have the
// same size and bits remain, and the total size rounds up to the
// struct alignment.
func (e *LayoutEngine) structLayout(n *typegraph.TypeNode, state *layoutState) (TypeLayout, *LayoutError) {
	var (
		fields   []FieldLayout
		size     = 0
		align    = 1
		flexible = false

		// Open bit-field storage unit; unitSize 0 means closed.
		unitSize   = 0
		unitOffset = 0
		bitPos     = 0
	)
	closeUnit := func() {
		unitSize = 0
		bitPos = 0
	}

	for i := range n.Fields {
		f := &n.Fields[i]

		if e.isAnonymousMember(f) {
			closeUnit()
			sub, err := e.layoutOf(f.Type, state)
			if err != nil {
				return TypeLayout{}, err
			}
			memberAlign := capAlign(maxInt(sub.Align, 1), n.Pack)
			off := roundUp(size, memberAlign)
			for _, sf := range sub.Fields {
				sf.Offset += off
				fields = append(fields, sf)
			}
			size = off + sub.Size
			align = maxInt(align, memberAlign)
			continue
		}

		if f.Bits >= 0 {
			bl, err := e.layoutOf(f.Type, state)
			if err != nil {
				return TypeLayout{}, err
			}
			backing := maxInt(bl.Size, 1)
			backingAlign := capAlign(maxInt(bl.Align, 1), n.Pack)
			unitBits := backing * 8
			if f.Bits > unitBits {
				return TypeLayout{}, &LayoutError{
					Kind:  LayoutErrBitfieldOverflow,
					Type:  n.Name,
					Field: f.Name,
					Bits:  f.Bits,
					Span:  n.Span,
				}
			}
			if f.Bits == 0 {
				// Zero-width bit-field: close the unit so the next
				// field starts fresh.
				closeUnit()
				continue
			}
			if unitSize != backing || bitPos+f.Bits > unitBits {
				closeUnit()
				unitOffset = roundUp(size, backingAlign)
				unitSize = backing
				size = unitOffset + backing
				align = maxInt(align, backingAlign)
			}
			if f.Name != "" {
				fields = append(fields, FieldLayout{
					Name:   f.Name,
					Type:   f.Type,
					Offset: unitOffset,
					Bits:   f.Bits,
					BitOff: bitPos,
				})
			}
			bitPos += f.Bits
			continue
		}

		closeUnit()
		fl, err := e.layoutOf(f.Type, state)
		if err != nil {
			return TypeLayout{}, err
		}
		if fl.Flexible {
			flexible = true
			if i != len(n.Fields)-1 {
				e.rep.Report(diag.LayoutFlexibleArray, diag.SevWarning, n.Span,
					fmt.Sprintf("flexible array member %s is not the last field of %s", f.Name, n.Name), nil)
			}
		}
		memberAlign := capAlign(maxInt(fl.Align, 1), n.Pack)
		off := roundUp(size, memberAlign)
		fields = append(fields, FieldLayout{Name: f.Name, Type: f.Type, Offset: off, Bits: -1})
		size = off + fl.Size
		align = maxInt(align, memberAlign)
	}

	size = roundUp(size, align)
	if size == 0 && !flexible {
		// MSVC gives memberless aggregates one byte so instances have
		// distinct addresses.
		size = 1
	}
	if fields == nil {
		fields = []FieldLayout{}
	}
	return TypeLayout{Size: size, Align: align, Fields: fields, Flexible: flexible}, nil
}

// unionLayout places every member at offset zero and takes the maximum
// size and alignment.
func (e *LayoutEngine) unionLayout(n *typegraph.TypeNode, state *layoutState) (TypeLayout, *LayoutError) {
	var (
		fields []FieldLayout
		size   = 0
		align  = 1
	)

	for i := range n.Fields {
		f := &n.Fields[i]

		if e.isAnonymousMember(f) {
			sub, err := e.layoutOf(f.Type, state)
			if err != nil {
				return TypeLayout{}, err
			}
			fields = append(fields, sub.Fields...)
			size = maxInt(size, sub.Size)
			align = maxInt(align, capAlign(maxInt(sub.Align, 1), n.Pack))
			continue
		}

		bl, err := e.layoutOf(f.Type, state)
		if err != nil {
			return TypeLayout{}, err
		}
		memberAlign := capAlign(maxInt(bl.Align, 1), n.Pack)
		if f.Bits > 0 {
			backing := maxInt(bl.Size, 1)
			if f.Bits > backing*8 {
				return TypeLayout{}, &LayoutError{
					Kind:  LayoutErrBitfieldOverflow,
					Type:  n.Name,
					Field: f.Name,
					Bits:  f.Bits,
					Span:  n.Span,
				}
			}
			if f.Name != "" {
				fields = append(fields, FieldLayout{Name: f.Name, Type: f.Type, Bits: f.Bits})
			}
			size = maxInt(size, backing)
			align = maxInt(align, memberAlign)
			continue
		}
		if f.Bits == 0 {
			continue
		}
		fields = append(fields, FieldLayout{Name: f.Name, Type: f.Type, Bits: -1})
		size = maxInt(size, bl.Size)
		align = maxInt(align, memberAlign)
	}

	size = roundUp(size, align)
	if size == 0 {
		size = 1
	}
	if fields == nil {
		fields = []FieldLayout{}
	}
	return TypeLayout{Size: size, Align: align, Fields: fields, Union: true}, nil
}

// isAnonymousMember reports whether f is an unnamed member of
// synthetic aggregate type, which layout flattens into the enclosing
// aggregate.
func (e *LayoutEngine) isAnonymousMember(f *typegraph.Field) bool {
	if f.Name != "" || f.Bits >= 0 {
		return false
	}
	ft := e.Graph.Get(f.Type)
	return ft.Synthetic && ft.IsAggregate()
}

func capAlign(align, pack int) int {
	if pack > 0 && align > pack {
		return pack
	}
	return align
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
