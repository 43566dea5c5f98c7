package emit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// DLang renders one D module per header unit plus a shared prelude
// module carrying the well-known Windows declarations and opaque
// forward types. D structs keep the structural nesting of the source
// (anonymous unions stay anonymous unions), so the D compiler arrives
// at the same layout the resolver computed.
type DLang struct{}

func (DLang) Target() string { return "d" }

func (DLang) Emit(m *Model) ([]File, error) {
	files := make([]File, 0, len(m.Graph.Units())+1)

	pre := &dEmitter{m: m}
	pre.emitPrelude()
	files = append(files, File{Path: "prelude.d", Text: pre.buf.String()})

	units := m.Graph.Units()
	for i := range units {
		e := &dEmitter{m: m, unit: &units[i]}
		e.emitModule()
		files = append(files, File{Path: units[i].Stem + ".d", Text: e.buf.String()})
	}
	return files, nil
}

type dEmitter struct {
	m    *Model
	unit *typegraph.Unit
	buf  strings.Builder
	padN int
}

func (e *dEmitter) emitModule() {
	fmt.Fprintf(&e.buf, "// generated by cpptool from %s; do not edit.\n", e.unit.Path)
	fmt.Fprintf(&e.buf, "module %s.%s;\n\n", e.m.Prefix, e.unit.Stem)
	fmt.Fprintf(&e.buf, "public import %s.prelude;\n", e.m.Prefix)
	for _, inc := range e.unit.Includes {
		fmt.Fprintf(&e.buf, "public import %s.%s;\n", e.m.Prefix, inc)
	}
	if e.unitHasBitfields() {
		e.buf.WriteString("import std.bitmanip : bitfields;\n")
	}
	e.buf.WriteString("\nextern (Windows):\n")

	for _, c := range e.unit.Consts {
		fmt.Fprintf(&e.buf, "\nenum %s = %s;", escapeD(c.Name), dValue(c.Value))
	}
	if len(e.unit.Consts) > 0 {
		e.buf.WriteString("\n")
	}

	for _, id := range e.unit.Types {
		e.emitType(id)
	}

	for i := range e.unit.Funcs {
		f := &e.unit.Funcs[i]
		fmt.Fprintf(&e.buf, "\n%s %s(%s);\n", e.typeD(f.Ret), escapeD(f.Name), e.paramListD(f.Params, f.Variadic))
	}
}

// emitPrelude writes the module every generated module imports: alias
// lines for the well-known typedefs the run materialized, definitions
// for the well-known aggregates and interfaces, and opaque struct
// stubs for types that are referenced but never defined.
func (e *dEmitter) emitPrelude() {
	e.buf.WriteString("// generated by cpptool; shared declarations for every module. do not edit.\n")
	fmt.Fprintf(&e.buf, "module %s.prelude;\n\nextern (Windows):\n", e.m.Prefix)

	g := e.m.Graph
	if _, ok := g.LookupName("GUID"); !ok && graphHasInterface(g) {
		// iid constants need the struct even when no header spelled it
		e.buf.WriteString("\nstruct GUID\n{\n    uint Data1;\n    ushort Data2;\n    ushort Data3;\n    ubyte[8] Data4;\n}\n")
	}
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		n := g.Get(id)
		if n.Synthetic || n.Name == "" {
			continue
		}
		switch {
		case n.Builtin && n.Kind == typegraph.KindTypedef:
			fmt.Fprintf(&e.buf, "\nalias %s = %s;", escapeD(n.Name), e.typeD(n.Elem))
		case n.Builtin && n.IsAggregate():
			e.emitAggregate(id, n)
		case n.Builtin && n.Kind == typegraph.KindInterface:
			e.emitInterface(id, n)
		case !n.Defined && !n.Builtin && n.IsAggregate():
			fmt.Fprintf(&e.buf, "\nstruct %s;", escapeD(n.Name))
		}
	}
	e.buf.WriteString("\n")
}

func (e *dEmitter) emitType(id typegraph.NodeID) {
	n := e.m.Graph.Get(id)
	switch n.Kind {
	case typegraph.KindStruct, typegraph.KindUnion:
		e.emitAggregate(id, n)
	case typegraph.KindInterface:
		e.emitInterface(id, n)
	case typegraph.KindEnum:
		e.emitEnum(n)
	case typegraph.KindTypedef:
		fmt.Fprintf(&e.buf, "\nalias %s = %s;\n", escapeD(n.Name), e.typeD(n.Elem))
	case typegraph.KindFuncPtr:
		fmt.Fprintf(&e.buf, "\nalias %s = extern (Windows) %s function(%s);\n",
			escapeD(n.Name), e.typeD(n.Ret), e.paramListD(n.Params, n.Variadic))
	}
}

func (e *dEmitter) emitAggregate(id typegraph.NodeID, n *typegraph.TypeNode) {
	keyword := "struct"
	if n.Kind == typegraph.KindUnion {
		keyword = "union"
	}
	e.padN = 0
	fmt.Fprintf(&e.buf, "\n%s %s\n{\n", keyword, escapeD(n.Name))
	if n.Pack > 0 {
		fmt.Fprintf(&e.buf, "align (%d):\n", n.Pack)
	}
	e.emitMembers(id, n.Fields, 1)
	e.buf.WriteString("}\n")
}

// emitMembers renders one nesting level of an aggregate. Anonymous
// members open an inline anonymous block, named members of unnamed
// types get a nested type declaration, and bit-field runs become
// std.bitmanip mixins grouped by resolved storage unit.
func (e *dEmitter) emitMembers(owner typegraph.NodeID, fields []typegraph.Field, depth int) {
	pad := strings.Repeat("    ", depth)

	for i := 0; i < len(fields); i++ {
		f := &fields[i]
		ft := e.m.Graph.Get(f.Type)

		if f.Bits >= 0 {
			run := fields[i:]
			end := 0
			for end < len(run) && run[end].Bits >= 0 {
				end++
			}
			next := -1
			if i+end < len(fields) && fields[i+end].Name != "" {
				for _, lf := range e.m.layoutOf(owner).Fields {
					if lf.Name == fields[i+end].Name && lf.Bits < 0 {
						next = lf.Offset
						break
					}
				}
			}
			e.emitBitfieldRun(owner, run[:end], next, pad)
			i += end - 1
			continue
		}

		if ft.Synthetic && ft.IsAggregate() {
			keyword := "struct"
			if ft.Kind == typegraph.KindUnion {
				keyword = "union"
			}
			if f.Name == "" {
				fmt.Fprintf(&e.buf, "%s%s\n%s{\n", pad, keyword, pad)
				e.emitMembers(f.Type, ft.Fields, depth+1)
				fmt.Fprintf(&e.buf, "%s}\n", pad)
			} else {
				fmt.Fprintf(&e.buf, "%s%s %s\n%s{\n", pad, keyword, escapeD(ft.Name), pad)
				e.emitMembers(f.Type, ft.Fields, depth+1)
				fmt.Fprintf(&e.buf, "%s}\n", pad)
				fmt.Fprintf(&e.buf, "%s%s %s;\n", pad, escapeD(ft.Name), escapeD(f.Name))
			}
			continue
		}

		fmt.Fprintf(&e.buf, "%s%s %s;\n", pad, e.typeD(f.Type), escapeD(f.Name))
	}
}

// emitBitfieldRun renders consecutive bit-field members. Members
// sharing a resolved storage unit go into one bitfields mixin, with
// padding entries reproducing the resolved bit positions; gaps from
// unnamed-only units become byte fillers so later offsets line up.
func (e *dEmitter) emitBitfieldRun(owner typegraph.NodeID, run []typegraph.Field, nextOffset int, pad string) {
	placed := make(map[string]layout.FieldLayout, len(run))
	for _, lf := range e.m.layoutOf(owner).Fields {
		if lf.Bits >= 0 {
			placed[lf.Name] = lf
		}
	}

	type unit struct {
		offset  int
		backing int
		entries []string
	}
	var units []unit

	i := 0
	for i < len(run) {
		if run[i].Name == "" {
			i++
			continue
		}
		unitOffset := placed[run[i].Name].Offset
		group := []typegraph.Field{run[i]}
		j := i + 1
		for j < len(run) {
			if run[j].Name == "" {
				j++
				continue
			}
			if placed[run[j].Name].Offset != unitOffset {
				break
			}
			group = append(group, run[j])
			j++
		}

		backing := e.m.layoutOf(group[0].Type).Size
		bits := backing * 8
		used := 0
		var entries []string
		for _, gf := range group {
			if at := placed[gf.Name].BitOff; at > used {
				entries = append(entries, fmt.Sprintf("%s, \"\", %d", e.typeD(gf.Type), at-used))
				used = at
			}
			entries = append(entries, fmt.Sprintf("%s, %q, %d", e.typeD(gf.Type), gf.Name, gf.Bits))
			used += gf.Bits
		}
		if used < bits {
			entries = append(entries, fmt.Sprintf("%s, \"\", %d", e.typeD(group[0].Type), bits-used))
		}
		units = append(units, unit{offset: unitOffset, backing: backing, entries: entries})
		i = j
	}

	for k, u := range units {
		fmt.Fprintf(&e.buf, "%smixin(bitfields!(\n", pad)
		for n, en := range u.entries {
			fmt.Fprintf(&e.buf, "%s    %s", pad, en)
			if n < len(u.entries)-1 {
				e.buf.WriteString(",\n")
			}
		}
		e.buf.WriteString("));\n")

		end := u.offset + u.backing
		next := nextOffset
		if k+1 < len(units) {
			next = units[k+1].offset
		}
		if next > end {
			fmt.Fprintf(&e.buf, "%subyte[%d] _pad%d;\n", pad, next-end, e.padN)
			e.padN++
		}
	}
}

func (e *dEmitter) emitEnum(n *typegraph.TypeNode) {
	fmt.Fprintf(&e.buf, "\nenum %s", escapeD(n.Name))
	if n.Elem != typegraph.InvalidNode {
		fmt.Fprintf(&e.buf, " : %s", e.typeD(n.Elem))
	}
	e.buf.WriteString("\n{\n")
	names := enumMemberNames(n.Name, n.Members)
	for i, m := range n.Members {
		fmt.Fprintf(&e.buf, "    %s = %s,\n", escapeD(names[i]), dValue(m.Value))
	}
	e.buf.WriteString("}\n")
}

func (e *dEmitter) emitInterface(id typegraph.NodeID, n *typegraph.TypeNode) {
	fmt.Fprintf(&e.buf, "\ninterface %s", escapeD(n.Name))
	if base := n.Base(); base != typegraph.InvalidNode {
		fmt.Fprintf(&e.buf, " : %s", escapeD(e.m.Graph.Get(base).Name))
	}
	e.buf.WriteString("\n{\n")

	if u, ok := e.m.Table.GUID(id); ok {
		fmt.Fprintf(&e.buf, "    static immutable iid = %s;\n", dGUIDLiteral(u))
		if len(n.Methods) > 0 {
			e.buf.WriteString("\n")
		}
	}

	for i := range n.Methods {
		mth := &n.Methods[i]
		fmt.Fprintf(&e.buf, "    %s %s(%s);\n", e.typeD(mth.Ret), escapeD(mth.Name), e.paramListD(mth.Params, mth.Variadic))
	}
	e.buf.WriteString("}\n")
}

func (e *dEmitter) paramListD(params []typegraph.Param, variadic bool) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.typeD(p.Type))
		if p.Name != "" {
			sb.WriteString(" ")
			sb.WriteString(escapeD(p.Name))
		}
	}
	if variadic {
		if len(params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	return sb.String()
}

// typeD renders a node as a D type. A pointer to a COM interface
// drops one level of indirection because D interfaces are reference
// types already.
func (e *dEmitter) typeD(id typegraph.NodeID) string {
	n := e.m.Graph.Get(id)
	switch n.Kind {
	case typegraph.KindPrimitive:
		return dPrim(n.Prim)
	case typegraph.KindTypedef, typegraph.KindEnum, typegraph.KindFuncPtr, typegraph.KindInterface:
		return escapeD(n.Name)
	case typegraph.KindStruct, typegraph.KindUnion:
		return escapeD(n.Name)
	case typegraph.KindPointer:
		if e.chaseKind(n.Elem) == typegraph.KindInterface {
			return e.typeD(n.Elem)
		}
		inner := e.typeD(n.Elem)
		if n.Const {
			return fmt.Sprintf("const(%s)*", inner)
		}
		return inner + "*"
	case typegraph.KindArray:
		return fmt.Sprintf("%s[%d]", e.typeD(n.Elem), n.Count)
	}
	return "void"
}

// chaseKind resolves typedef chains to the kind that matters for
// rendering decisions.
func (e *dEmitter) chaseKind(id typegraph.NodeID) typegraph.Kind {
	for {
		n := e.m.Graph.Get(id)
		if n.Kind != typegraph.KindTypedef {
			return n.Kind
		}
		id = n.Elem
	}
}

func (e *dEmitter) unitHasBitfields() bool {
	seen := make(map[typegraph.NodeID]bool)
	var walk func(id typegraph.NodeID) bool
	walk = func(id typegraph.NodeID) bool {
		if seen[id] {
			return false
		}
		seen[id] = true
		n := e.m.Graph.Get(id)
		for i := range n.Fields {
			if n.Fields[i].Bits >= 0 {
				return true
			}
			ft := e.m.Graph.Get(n.Fields[i].Type)
			if ft.Synthetic && ft.IsAggregate() && walk(n.Fields[i].Type) {
				return true
			}
		}
		return false
	}
	for _, id := range e.unit.Types {
		if walk(id) {
			return true
		}
	}
	return false
}

func graphHasInterface(g *typegraph.Graph) bool {
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		if g.Get(id).Kind == typegraph.KindInterface {
			return true
		}
	}
	return false
}

func dPrim(p typegraph.PrimKind) string {
	switch p {
	case typegraph.PrimVoid:
		return "void"
	case typegraph.PrimBool:
		return "bool"
	case typegraph.PrimChar:
		return "char"
	case typegraph.PrimSChar:
		return "byte"
	case typegraph.PrimUChar:
		return "ubyte"
	case typegraph.PrimShort:
		return "short"
	case typegraph.PrimUShort:
		return "ushort"
	case typegraph.PrimInt, typegraph.PrimLong:
		return "int"
	case typegraph.PrimUInt, typegraph.PrimULong:
		return "uint"
	case typegraph.PrimLongLong:
		return "long"
	case typegraph.PrimULongLong:
		return "ulong"
	case typegraph.PrimFloat:
		return "float"
	case typegraph.PrimDouble, typegraph.PrimLongDouble:
		return "double"
	case typegraph.PrimWChar:
		return "wchar"
	case typegraph.PrimIntPtr:
		return "ptrdiff_t"
	case typegraph.PrimUIntPtr:
		return "size_t"
	}
	return "void"
}

// dValue formats a constant; flag-like values read better in hex.
func dValue(v int64) string {
	if v > 9 {
		return fmt.Sprintf("0x%x", v)
	}
	return fmt.Sprintf("%d", v)
}

func dGUIDLiteral(u uuid.UUID) string {
	d1 := uint32(u[0])<<24 | uint32(u[1])<<16 | uint32(u[2])<<8 | uint32(u[3])
	d2 := uint16(u[4])<<8 | uint16(u[5])
	d3 := uint16(u[6])<<8 | uint16(u[7])
	var tail strings.Builder
	for i := 8; i < 16; i++ {
		if i > 8 {
			tail.WriteString(", ")
		}
		fmt.Fprintf(&tail, "0x%02x", u[i])
	}
	return fmt.Sprintf("GUID(0x%08x, 0x%04x, 0x%04x, [%s])", d1, d2, d3, tail.String())
}
