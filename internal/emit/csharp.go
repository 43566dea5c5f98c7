package emit

import (
	"fmt"
	"math"
	"strings"

	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// CSharp renders one C# source per header unit plus a Prelude.cs with
// the shared well-known declarations. Plain structs stay
// LayoutKind.Sequential; anything with a union or anonymous member
// flattens to LayoutKind.Explicit using the resolved offsets verbatim.
type CSharp struct{}

func (CSharp) Target() string { return "csharp" }

func (CSharp) Emit(m *Model) ([]File, error) {
	files := make([]File, 0, len(m.Graph.Units())+1)

	pre := &csEmitter{m: m}
	pre.emitPrelude()
	files = append(files, File{Path: "Prelude.cs", Text: pre.buf.String()})

	units := m.Graph.Units()
	for i := range units {
		e := &csEmitter{m: m, queuedSet: make(map[typegraph.NodeID]bool)}
		e.unit = &units[i]
		e.emitUnit()
		files = append(files, File{Path: units[i].Stem + ".cs", Text: e.buf.String()})
	}
	return files, nil
}

type csEmitter struct {
	m    *Model
	unit *typegraph.Unit
	buf  strings.Builder

	// named members of anonymous aggregates reference synthetic types
	// that no unit claims; they queue here and emit after the claimed
	// types.
	queued    []typegraph.NodeID
	queuedSet map[typegraph.NodeID]bool
	padN      int
}

func (e *csEmitter) emitUnit() {
	fmt.Fprintf(&e.buf, "// generated by cpptool from %s; do not edit.\n", e.unit.Path)
	e.buf.WriteString("using System;\nusing System.Runtime.InteropServices;\n\n")
	fmt.Fprintf(&e.buf, "namespace %s\n{\n", e.m.Prefix)

	for _, id := range e.unit.Types {
		e.emitType(id)
	}
	for len(e.queued) > 0 {
		id := e.queued[0]
		e.queued = e.queued[1:]
		e.emitType(id)
	}

	if len(e.unit.Consts) > 0 || len(e.unit.Funcs) > 0 {
		fmt.Fprintf(&e.buf, "\n    public static class %s\n    {\n", csClassName(e.unit.Stem))
		for _, c := range e.unit.Consts {
			fmt.Fprintf(&e.buf, "        public const %s %s = %s;\n", csConstType(c.Value), escapeCS(c.Name), csValue(c.Value))
		}
		if len(e.unit.Consts) > 0 && len(e.unit.Funcs) > 0 {
			e.buf.WriteString("\n")
		}
		for i := range e.unit.Funcs {
			f := &e.unit.Funcs[i]
			if i > 0 {
				e.buf.WriteString("\n")
			}
			fmt.Fprintf(&e.buf, "        [DllImport(%q, ExactSpelling = true)]\n", e.m.dllFor(e.unit.Stem))
			fmt.Fprintf(&e.buf, "        public static extern %s %s(%s);\n",
				e.retCS(f.Ret), escapeCS(f.Name), e.paramListCS(f.Params, f.Variadic))
		}
		e.buf.WriteString("    }\n")
	}

	e.buf.WriteString("}\n")
}

// emitPrelude writes the well-known aggregates the run materialized
// and the two root COM interfaces. GUID never appears here: it maps to
// System.Guid.
func (e *csEmitter) emitPrelude() {
	e.buf.WriteString("// generated by cpptool; shared declarations for every unit. do not edit.\n")
	e.buf.WriteString("using System;\nusing System.Runtime.InteropServices;\n\n")
	fmt.Fprintf(&e.buf, "namespace %s\n{\n", e.m.Prefix)

	g := e.m.Graph
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		n := g.Get(id)
		if !n.Builtin || n.Name == "GUID" {
			continue
		}
		switch {
		case n.IsAggregate():
			e.emitStruct(id, n)
		case n.Kind == typegraph.KindInterface:
			// Root interfaces emit empty: InterfaceType already
			// accounts for their slots, and redeclaring them would
			// shift every derived method.
			guid := ""
			if u, ok := e.m.Table.GUID(id); ok {
				guid = u.String()
			}
			kind := "InterfaceIsIUnknown"
			if n.Name == "IDispatch" {
				kind = "InterfaceIsIDispatch"
			}
			fmt.Fprintf(&e.buf, "\n    [ComImport, Guid(%q), InterfaceType(ComInterfaceType.%s)]\n", guid, kind)
			fmt.Fprintf(&e.buf, "    public interface %s\n    {\n    }\n", escapeCS(n.Name))
		}
	}
	e.buf.WriteString("}\n")
}

func (e *csEmitter) emitType(id typegraph.NodeID) {
	n := e.m.Graph.Get(id)
	switch n.Kind {
	case typegraph.KindStruct, typegraph.KindUnion:
		e.emitStruct(id, n)
	case typegraph.KindInterface:
		e.emitInterface(id, n)
	case typegraph.KindEnum:
		e.emitEnum(n)
	case typegraph.KindFuncPtr:
		fmt.Fprintf(&e.buf, "\n    [UnmanagedFunctionPointer(CallingConvention.Winapi)]\n")
		fmt.Fprintf(&e.buf, "    public delegate %s %s(%s);\n",
			e.retCS(n.Ret), escapeCS(n.Name), e.paramListCS(n.Params, n.Variadic))
	case typegraph.KindTypedef:
		// typedefs resolve structurally at every use site; nothing to
		// declare.
	}
}

func (e *csEmitter) emitStruct(id typegraph.NodeID, n *typegraph.TypeNode) {
	explicit := n.Kind == typegraph.KindUnion || e.hasAnonymousMember(n)

	attrs := "LayoutKind.Sequential"
	if explicit {
		attrs = "LayoutKind.Explicit"
	}
	if n.Pack > 0 {
		attrs += fmt.Sprintf(", Pack = %d", n.Pack)
	}
	attrs += ", CharSet = CharSet.Unicode"

	e.padN = 0
	fmt.Fprintf(&e.buf, "\n    [StructLayout(%s)]\n", attrs)
	fmt.Fprintf(&e.buf, "    public struct %s\n    {\n", escapeCS(n.Name))
	if explicit {
		e.emitExplicitFields(id)
	} else {
		e.emitSequentialFields(id, n)
	}
	e.buf.WriteString("    }\n")
}

// emitSequentialFields renders graph fields in declaration order; the
// CLR applies the same placement rules the resolver did, so offsets
// agree without spelling them out.
func (e *csEmitter) emitSequentialFields(id typegraph.NodeID, n *typegraph.TypeNode) {
	for i := 0; i < len(n.Fields); i++ {
		f := &n.Fields[i]

		if f.Bits >= 0 {
			run := n.Fields[i:]
			end := 0
			for end < len(run) && run[end].Bits >= 0 {
				end++
			}
			e.emitBitfieldUnits(id, run[:end], false)
			i += end - 1
			continue
		}

		ft := e.m.Graph.Get(f.Type)
		if ft.Synthetic && ft.IsAggregate() {
			e.queue(f.Type)
			fmt.Fprintf(&e.buf, "        public %s %s;\n", escapeCS(ft.Name), escapeCS(f.Name))
			continue
		}
		e.emitField(f.Name, f.Type, -1)
	}
}

// emitExplicitFields renders the flattened layout with absolute
// offsets on every member.
func (e *csEmitter) emitExplicitFields(id typegraph.NodeID) {
	flat := e.m.layoutOf(id).Fields
	for i := 0; i < len(flat); i++ {
		f := flat[i]

		if f.Bits >= 0 {
			unit := []typegraph.Field{}
			j := i
			for j < len(flat) && flat[j].Bits >= 0 && flat[j].Offset == f.Offset {
				unit = append(unit, typegraph.Field{Name: flat[j].Name, Type: flat[j].Type, Bits: flat[j].Bits})
				j++
			}
			e.emitBitfieldUnit(unit, f.Offset, true)
			i = j - 1
			continue
		}

		ft := e.m.Graph.Get(f.Type)
		if ft.Synthetic && ft.IsAggregate() {
			e.queue(f.Type)
			fmt.Fprintf(&e.buf, "        [FieldOffset(%d)] public %s %s;\n", f.Offset, escapeCS(ft.Name), escapeCS(f.Name))
			continue
		}
		e.emitField(f.Name, f.Type, f.Offset)
	}
}

// emitField writes one plain member; offset -1 means sequential mode.
func (e *csEmitter) emitField(name string, typ typegraph.NodeID, offset int) {
	prefix := "        "
	at := ""
	if offset >= 0 {
		at = fmt.Sprintf("[FieldOffset(%d)] ", offset)
	}

	if elem, count, flexible := e.arrayShape(typ); count > 0 || flexible {
		if flexible {
			fmt.Fprintf(&e.buf, "%s// flexible tail: %s %s[];\n", prefix, e.valueCS(elem), name)
			return
		}
		fmt.Fprintf(&e.buf, "%s%s[MarshalAs(UnmanagedType.ByValArray, SizeConst = %d)]\n", prefix, at, count)
		fmt.Fprintf(&e.buf, "%spublic %s[] %s;\n", prefix, e.valueCS(elem), escapeCS(name))
		return
	}

	fmt.Fprintf(&e.buf, "%s%spublic %s %s;\n", prefix, at, e.valueCS(typ), escapeCS(name))
}

// arrayShape flattens nested fixed arrays into one element count, the
// shape ByValArray expects.
func (e *csEmitter) arrayShape(id typegraph.NodeID) (elem typegraph.NodeID, count int, flexible bool) {
	n := e.m.Graph.Get(e.chase(id))
	if n.Kind != typegraph.KindArray {
		return id, 0, false
	}
	if n.Flexible {
		return n.Elem, 0, true
	}
	count = n.Count
	elem = n.Elem
	for {
		en := e.m.Graph.Get(e.chase(elem))
		if en.Kind != typegraph.KindArray {
			return elem, count, false
		}
		count *= en.Count
		elem = en.Elem
	}
}

func (e *csEmitter) emitBitfieldUnits(owner typegraph.NodeID, run []typegraph.Field, explicit bool) {
	offsets := make(map[string]int, len(run))
	for _, lf := range e.m.layoutOf(owner).Fields {
		if lf.Bits >= 0 {
			offsets[lf.Name] = lf.Offset
		}
	}
	i := 0
	for i < len(run) {
		if run[i].Name == "" {
			i++
			continue
		}
		at := offsets[run[i].Name]
		unit := []typegraph.Field{run[i]}
		j := i + 1
		for j < len(run) {
			if run[j].Name == "" {
				j++
				continue
			}
			if offsets[run[j].Name] != at {
				break
			}
			unit = append(unit, run[j])
			j++
		}
		if !explicit {
			at = -1
		}
		e.emitBitfieldUnit(unit, at, explicit)
		i = j
	}
}

// emitBitfieldUnit renders one storage unit as a raw backing field;
// the comment preserves the member names and widths.
func (e *csEmitter) emitBitfieldUnit(unit []typegraph.Field, offset int, explicit bool) {
	parts := make([]string, 0, len(unit))
	for _, f := range unit {
		parts = append(parts, fmt.Sprintf("%s : %d", f.Name, f.Bits))
	}
	at := ""
	if explicit && offset >= 0 {
		at = fmt.Sprintf("[FieldOffset(%d)] ", offset)
	}
	fmt.Fprintf(&e.buf, "        %spublic %s _bits%d; // %s\n",
		at, e.valueCS(unit[0].Type), e.padN, strings.Join(parts, ", "))
	e.padN++
}

func (e *csEmitter) emitEnum(n *typegraph.TypeNode) {
	base := e.enumBaseCS(n)
	fmt.Fprintf(&e.buf, "\n    public enum %s", escapeCS(n.Name))
	if base != "" {
		fmt.Fprintf(&e.buf, " : %s", base)
	}
	e.buf.WriteString("\n    {\n")
	names := enumMemberNames(n.Name, n.Members)
	for i, m := range n.Members {
		fmt.Fprintf(&e.buf, "        %s = %s,\n", escapeCS(names[i]), csValue(m.Value))
	}
	e.buf.WriteString("    }\n")
}

// enumBaseCS picks the underlying type: the declared base when the
// header spelled one, otherwise whatever the values need beyond int.
func (e *csEmitter) enumBaseCS(n *typegraph.TypeNode) string {
	if n.Elem != typegraph.InvalidNode {
		if t := e.valueCS(n.Elem); t != "int" {
			return t
		}
		return ""
	}
	fitsInt, fitsUint := true, true
	for _, m := range n.Members {
		if m.Value < math.MinInt32 || m.Value > math.MaxInt32 {
			fitsInt = false
		}
		if m.Value < 0 || m.Value > math.MaxUint32 {
			fitsUint = false
		}
	}
	switch {
	case fitsInt:
		return ""
	case fitsUint:
		return "uint"
	default:
		return "long"
	}
}

func (e *csEmitter) emitInterface(id typegraph.NodeID, n *typegraph.TypeNode) {
	guid, hasGUID := e.m.Table.GUID(id)

	e.buf.WriteString("\n")
	if hasGUID {
		fmt.Fprintf(&e.buf, "    [ComImport, Guid(%q), InterfaceType(ComInterfaceType.%s)]\n",
			guid.String(), e.comInterfaceType(id))
	} else {
		fmt.Fprintf(&e.buf, "    // %s: no IID in the source header; shape only\n", n.Name)
	}
	fmt.Fprintf(&e.buf, "    public interface %s", escapeCS(n.Name))
	if base := n.Base(); base != typegraph.InvalidNode {
		bn := e.m.Graph.Get(base)
		if bn.Kind == typegraph.KindInterface {
			fmt.Fprintf(&e.buf, " : %s", escapeCS(bn.Name))
		}
	}
	e.buf.WriteString("\n    {\n")
	for i := range n.Methods {
		mth := &n.Methods[i]
		if i > 0 {
			e.buf.WriteString("\n")
		}
		e.buf.WriteString("        [PreserveSig]\n")
		fmt.Fprintf(&e.buf, "        %s %s(%s);\n", e.retCS(mth.Ret), escapeCS(mth.Name), e.paramListCS(mth.Params, mth.Variadic))
	}
	e.buf.WriteString("    }\n")
}

// comInterfaceType walks to the root of the base chain: dispatch
// interfaces marshal differently.
func (e *csEmitter) comInterfaceType(id typegraph.NodeID) string {
	seen := make(map[typegraph.NodeID]bool)
	for id != typegraph.InvalidNode && !seen[id] {
		seen[id] = true
		n := e.m.Graph.Get(id)
		if n.Name == "IDispatch" {
			return "InterfaceIsIDispatch"
		}
		if n.Kind != typegraph.KindInterface {
			break
		}
		id = n.Base()
	}
	return "InterfaceIsIUnknown"
}

func (e *csEmitter) paramListCS(params []typegraph.Param, variadic bool) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.paramCS(p))
	}
	if variadic {
		if len(params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("__arglist")
	}
	return sb.String()
}

// paramCS maps one C parameter to interop-friendly C#. Pointers carry
// the intent: interface out-params, string buffers, by-ref structs.
func (e *csEmitter) paramCS(p typegraph.Param) string {
	name := escapeCS(p.Name)
	if p.Name == "" {
		name = "arg"
	}
	n := e.m.Graph.Get(e.chase(p.Type))

	if n.Kind == typegraph.KindPointer {
		pt := e.m.Graph.Get(e.chase(n.Elem))
		switch {
		case pt.Kind == typegraph.KindInterface:
			return fmt.Sprintf("%s %s", escapeCS(pt.Name), name)
		case pt.Kind == typegraph.KindPointer:
			inner := e.m.Graph.Get(e.chase(pt.Elem))
			if inner.Kind == typegraph.KindInterface {
				return fmt.Sprintf("out %s %s", escapeCS(inner.Name), name)
			}
			return fmt.Sprintf("out IntPtr %s", name)
		case pt.Kind == typegraph.KindPrimitive && pt.Prim == typegraph.PrimVoid:
			return fmt.Sprintf("IntPtr %s", name)
		case pt.Kind == typegraph.KindPrimitive && pt.Prim == typegraph.PrimWChar && n.Const:
			return fmt.Sprintf("[MarshalAs(UnmanagedType.LPWStr)] string %s", name)
		case pt.Kind == typegraph.KindPrimitive && pt.Prim == typegraph.PrimChar && n.Const:
			return fmt.Sprintf("[MarshalAs(UnmanagedType.LPStr)] string %s", name)
		case pt.Name == "GUID":
			return fmt.Sprintf("ref Guid %s", name)
		case pt.Kind == typegraph.KindStruct && !pt.Defined:
			return fmt.Sprintf("IntPtr %s", name)
		default:
			return fmt.Sprintf("ref %s %s", e.valueCS(n.Elem), name)
		}
	}

	if n.Kind == typegraph.KindArray {
		elem, _, _ := e.arrayShape(p.Type)
		return fmt.Sprintf("[MarshalAs(UnmanagedType.LPArray)] %s[] %s", e.valueCS(elem), name)
	}

	return fmt.Sprintf("%s %s", e.valueCS(p.Type), name)
}

// retCS renders a return type; pointer returns stay IntPtr under
// PreserveSig.
func (e *csEmitter) retCS(id typegraph.NodeID) string {
	n := e.m.Graph.Get(e.chase(id))
	switch n.Kind {
	case typegraph.KindPointer, typegraph.KindFuncPtr, typegraph.KindInterface:
		return "IntPtr"
	}
	return e.valueCS(id)
}

// valueCS renders a node as a C# value type, typedefs resolved away.
func (e *csEmitter) valueCS(id typegraph.NodeID) string {
	n := e.m.Graph.Get(e.chase(id))
	switch n.Kind {
	case typegraph.KindPrimitive:
		return csPrim(n.Prim)
	case typegraph.KindEnum:
		return escapeCS(n.Name)
	case typegraph.KindStruct, typegraph.KindUnion:
		if n.Name == "GUID" {
			return "Guid"
		}
		if !n.Defined && !n.Builtin {
			// opaque: only its address is ever meaningful
			return "IntPtr"
		}
		return escapeCS(n.Name)
	case typegraph.KindInterface:
		return escapeCS(n.Name)
	case typegraph.KindPointer, typegraph.KindFuncPtr:
		return "IntPtr"
	case typegraph.KindArray:
		return e.valueCS(n.Elem)
	}
	return "IntPtr"
}

// chase resolves typedef chains; C# has no module-scoped alias, so
// every typedef renders as its target.
func (e *csEmitter) chase(id typegraph.NodeID) typegraph.NodeID {
	for {
		n := e.m.Graph.Get(id)
		if n.Kind != typegraph.KindTypedef {
			return id
		}
		id = n.Elem
	}
}

func (e *csEmitter) hasAnonymousMember(n *typegraph.TypeNode) bool {
	for i := range n.Fields {
		f := &n.Fields[i]
		if f.Name != "" || f.Bits >= 0 {
			continue
		}
		ft := e.m.Graph.Get(f.Type)
		if ft.Synthetic && ft.IsAggregate() {
			return true
		}
	}
	return false
}

func (e *csEmitter) queue(id typegraph.NodeID) {
	if e.queuedSet[id] {
		return
	}
	e.queuedSet[id] = true
	e.queued = append(e.queued, id)
}

func csPrim(p typegraph.PrimKind) string {
	switch p {
	case typegraph.PrimVoid:
		return "void"
	case typegraph.PrimBool:
		// C++ bool is one byte; the default bool marshaling is four
		return "byte"
	case typegraph.PrimChar, typegraph.PrimSChar:
		return "sbyte"
	case typegraph.PrimUChar:
		return "byte"
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
		return "char"
	case typegraph.PrimIntPtr:
		return "IntPtr"
	case typegraph.PrimUIntPtr:
		return "UIntPtr"
	}
	return "IntPtr"
}

func csValue(v int64) string {
	if v > 9 {
		return fmt.Sprintf("0x%x", v)
	}
	return fmt.Sprintf("%d", v)
}

func csConstType(v int64) string {
	switch {
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return "int"
	case v >= 0 && v <= math.MaxUint32:
		return "uint"
	default:
		return "long"
	}
}

// csClassName turns a header stem into a type name: dxgi becomes
// Dxgi, d2d1_1 becomes D2d1_1.
func csClassName(stem string) string {
	if stem == "" {
		return "Api"
	}
	parts := strings.Split(stem, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "_")
}
