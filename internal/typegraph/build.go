package typegraph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

// UnresolvedReferenceError aborts a run: a well-known type mapping
// needs a name that neither the type tables nor any owned header
// supplies. Plain owned-set gaps never raise it; they degrade to
// opaque placeholder nodes instead.
type UnresolvedReferenceError struct {
	Name string
	Use  source.Span
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved type reference %q", e.Name)
}

// Options configures a Builder.
type Options struct {
	Reporter diag.Reporter

	// WellKnown extends the built-in name table. Values are C type
	// spellings, e.g. "HPALETTE": "void *".
	WellKnown map[string]string
}

// UnitInput is one parsed header in include order.
type UnitInput struct {
	Path     string
	Stem     string
	File     source.FileID
	Includes []string
	Cursors  []decl.Cursor
}

// Builder accumulates parsed headers into a deduplicated type graph.
// Headers must be added in deterministic (include walk) order; node
// identity falls out of that order.
type Builder struct {
	graph *Graph
	rep   diag.Reporter
	extra map[string]string

	handles map[string]struct{}

	// unresolved tracks names that were referenced but never declared,
	// keyed to their first use. They stay in the graph as opaque
	// placeholders.
	unresolved map[string]source.Span

	// required maps a base name some well-known mapping resolved
	// through to the mapping that needs it. A required name that is
	// still undeclared at Finish fails the build instead of degrading.
	required map[string]string

	// claimed guards each emitted type against appearing in two units.
	claimed map[NodeID]struct{}
}

func NewBuilder(opts Options) *Builder {
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	handles := make(map[string]struct{}, len(wellKnownHandles))
	for _, h := range wellKnownHandles {
		handles[h] = struct{}{}
	}
	return &Builder{
		graph:      New(),
		rep:        rep,
		extra:      opts.WellKnown,
		handles:    handles,
		unresolved: make(map[string]source.Span),
		required:   make(map[string]string),
		claimed:    make(map[NodeID]struct{}),
	}
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph { return b.graph }

// AddUnit folds one parsed header into the graph.
func (b *Builder) AddUnit(in UnitInput) {
	unit := b.graph.addUnit(Unit{
		File:     in.File,
		Path:     in.Path,
		Stem:     in.Stem,
		Includes: in.Includes,
	})
	for i := range in.Cursors {
		b.addTop(unit, &in.Cursors[i])
	}
}

// Finish settles every name that was referenced but never declared.
// They degrade to opaque placeholder nodes and warn, except when a
// well-known mapping depends on one: a mapping with nothing behind it
// fails the build.
func (b *Builder) Finish() (*Graph, error) {
	var failed []string
	for base := range b.required {
		if _, gap := b.unresolved[base]; gap {
			failed = append(failed, base)
		}
	}
	sort.Strings(failed)

	warn := make([]string, 0, len(b.unresolved))
	for name := range b.unresolved {
		if _, bad := b.required[name]; bad {
			continue
		}
		warn = append(warn, name)
	}
	sort.Strings(warn)
	for _, name := range warn {
		b.rep.Report(diag.GraphOpaqueFallback, diag.SevWarning, b.unresolved[name],
			fmt.Sprintf("type %s is not declared by any owned header; emitting an opaque placeholder", name), nil)
	}

	if len(failed) == 0 {
		return b.graph, nil
	}
	for _, base := range failed {
		b.rep.Report(diag.GraphMissingWellKnown, diag.SevError, b.unresolved[base],
			fmt.Sprintf("the mapping for %s needs type %s, which neither the type tables nor any owned header supplies", b.required[base], base), nil)
	}
	return b.graph, &UnresolvedReferenceError{Name: failed[0], Use: b.unresolved[failed[0]]}
}

func (b *Builder) addTop(unit *Unit, cur *decl.Cursor) {
	switch cur.Kind {
	case decl.KindStruct, decl.KindUnion:
		if cur.Name == "" {
			return
		}
		b.addAggregate(unit, cur)
	case decl.KindEnum:
		b.addEnum(unit, cur)
	case decl.KindTypedef:
		b.addTypedef(unit, cur)
	case decl.KindFunction:
		b.addFunc(unit, cur)
	case decl.KindMacro:
		if cur.HasValue {
			unit.Consts = append(unit.Consts, Const{Name: cur.Name, Value: cur.Value})
		}
	case decl.KindInclude:
		// ownership was decided during ingest
	}
}

func (b *Builder) claim(unit *Unit, id NodeID) {
	if _, ok := b.claimed[id]; ok {
		return
	}
	b.claimed[id] = struct{}{}
	unit.Types = append(unit.Types, id)
}

// declared interns the named placeholder for a declaration and clears
// it from the unresolved set.
func (b *Builder) declared(name string, kind Kind, file source.FileID, span source.Span) NodeID {
	id := b.graph.intern(nameKey(name), TypeNode{
		Kind: kind,
		Name: name,
		File: file,
		Span: span,
	})
	delete(b.unresolved, name)
	return id
}

// ---- aggregates ----

func isInterfaceCursor(cur *decl.Cursor) bool {
	if len(cur.Annotations) > 0 {
		return true
	}
	for i := range cur.Children {
		switch cur.Children[i].Kind {
		case decl.KindBase:
			return true
		case decl.KindMethod:
			if cur.Children[i].Virtual {
				return true
			}
		}
	}
	return false
}

func (b *Builder) addAggregate(unit *Unit, cur *decl.Cursor) NodeID {
	kind := KindStruct
	if cur.Kind == decl.KindUnion {
		kind = KindUnion
	}
	id := b.declared(cur.Name, kind, cur.File, cur.Span)
	if !cur.HasBody {
		return id
	}
	if b.graph.Get(id).Defined {
		b.rep.Report(diag.GraphDuplicateDef, diag.SevWarning, cur.Span,
			fmt.Sprintf("type %s is defined more than once; keeping the first definition", cur.Name), nil)
		return id
	}
	if isInterfaceCursor(cur) {
		b.fillInterface(id, cur)
	} else {
		b.fillAggregate(unit, id, kind, cur)
	}
	b.claim(unit, id)
	return id
}

// fillAggregate resolves the members of a struct or union definition
// and upgrades the node in place. Node pointers are re-fetched after
// resolution because interning may grow the node slice.
func (b *Builder) fillAggregate(unit *Unit, id NodeID, kind Kind, cur *decl.Cursor) {
	name := cur.Name
	var fields []Field
	for i := range cur.Children {
		ch := &cur.Children[i]
		switch ch.Kind {
		case decl.KindField:
			if len(ch.Children) == 1 && isAggregateKind(ch.Children[0].Kind) {
				nested := &ch.Children[0]
				tid := b.addMemberType(unit, nested, name, len(fields))
				fields = append(fields, Field{Name: ch.Name, Type: tid, Bits: -1})
				continue
			}
			if ch.Spelling == "" {
				continue
			}
			fields = append(fields, Field{
				Name: ch.Name,
				Type: b.resolveSpelling(ch.Spelling, ch.Span),
				Bits: ch.Bits,
			})
		case decl.KindStruct, decl.KindUnion:
			// a named nested type declaration; hoist to the unit
			if ch.Name != "" {
				b.addAggregate(unit, ch)
			}
		case decl.KindEnum:
			b.addEnum(unit, ch)
		}
	}
	n := b.graph.Get(id)
	n.Kind = kind
	n.Fields = fields
	n.Pack = cur.Pack
	n.File = cur.File
	n.Span = cur.Span
	n.Defined = true
}

// addMemberType interns the type of an aggregate-typed member. An
// anonymous aggregate gets a deterministic name derived from the
// enclosing type and the member index.
func (b *Builder) addMemberType(unit *Unit, nested *decl.Cursor, enclosing string, index int) NodeID {
	if nested.Name != "" {
		return b.addAggregate(unit, nested)
	}
	kind := KindStruct
	if nested.Kind == decl.KindUnion {
		kind = KindUnion
	}
	synthetic := enclosing + "__anon" + strconv.Itoa(index)
	id := b.graph.append(TypeNode{
		Kind:      kind,
		Name:      synthetic,
		File:      nested.File,
		Span:      nested.Span,
		Synthetic: true,
	})
	b.fillAggregate(unit, id, kind, &decl.Cursor{
		Kind:     nested.Kind,
		Name:     synthetic,
		File:     nested.File,
		Span:     nested.Span,
		Pack:     nested.Pack,
		HasBody:  true,
		Children: nested.Children,
	})
	return id
}

func isAggregateKind(k decl.Kind) bool {
	return k == decl.KindStruct || k == decl.KindUnion
}

func (b *Builder) fillInterface(id NodeID, cur *decl.Cursor) {
	var bases []NodeID
	var methods []Method
	guid := ""
	if len(cur.Annotations) > 0 {
		guid = cur.Annotations[0]
	}
	for i := range cur.Children {
		ch := &cur.Children[i]
		switch ch.Kind {
		case decl.KindBase:
			if bid, ok := b.resolveBaseName(ch.Name); ok {
				bases = append(bases, bid)
			} else {
				bases = append(bases, b.referencePlaceholder(ch.Name, ch.Span))
			}
		case decl.KindMethod:
			if !ch.Virtual {
				continue
			}
			methods = append(methods, Method{
				Name:     ch.Name,
				Ret:      b.resolveSpelling(ch.Spelling, ch.Span),
				Params:   b.resolveParams(ch.Children),
				Variadic: ch.Variadic,
			})
		}
	}
	n := b.graph.Get(id)
	n.Kind = KindInterface
	n.Bases = bases
	n.Methods = methods
	n.GUIDText = guid
	n.File = cur.File
	n.Span = cur.Span
	n.Defined = true
}

// ---- enums ----

func (b *Builder) addEnum(unit *Unit, cur *decl.Cursor) {
	members := make([]EnumMember, 0, len(cur.Children))
	for i := range cur.Children {
		ch := &cur.Children[i]
		if ch.Kind != decl.KindEnumConst || !ch.HasValue {
			continue
		}
		members = append(members, EnumMember{Name: ch.Name, Value: ch.Value})
	}

	if cur.Name == "" {
		// anonymous enums only contribute constants
		for _, m := range members {
			unit.Consts = append(unit.Consts, Const{Name: m.Name, Value: m.Value})
		}
		return
	}

	id := b.declared(cur.Name, KindEnum, cur.File, cur.Span)
	if !cur.HasBody {
		return
	}
	if b.graph.Get(id).Defined {
		b.rep.Report(diag.GraphDuplicateDef, diag.SevWarning, cur.Span,
			fmt.Sprintf("type %s is defined more than once; keeping the first definition", cur.Name), nil)
		return
	}
	base := InvalidNode
	if cur.Spelling != "" {
		if p, ok := primSpellings[cur.Spelling]; ok {
			base = b.graph.Primitive(p)
		}
	}
	n := b.graph.Get(id)
	n.Kind = KindEnum
	n.Members = members
	n.Elem = base
	n.File = cur.File
	n.Span = cur.Span
	n.Defined = true
	b.claim(unit, id)
}

// ---- typedefs ----

func (b *Builder) addTypedef(unit *Unit, cur *decl.Cursor) {
	if cur.FuncPtr {
		ret := b.resolveSpelling(cur.Spelling, cur.Span)
		params := b.resolveParams(cur.Children)
		id := b.declared(cur.Name, KindFuncPtr, cur.File, cur.Span)
		if b.graph.Get(id).Defined {
			return
		}
		n := b.graph.Get(id)
		n.Kind = KindFuncPtr
		n.Ret = ret
		n.Params = params
		n.Variadic = cur.Variadic
		n.Defined = true
		b.claim(unit, id)
		return
	}

	elem := b.resolveSpelling(cur.Spelling, cur.Span)
	id := b.declared(cur.Name, KindTypedef, cur.File, cur.Span)
	if b.graph.Get(id).Defined {
		return
	}
	n := b.graph.Get(id)
	n.Kind = KindTypedef
	n.Elem = elem
	n.Defined = true
	b.claim(unit, id)
}

// ---- functions ----

func (b *Builder) addFunc(unit *Unit, cur *decl.Cursor) {
	unit.Funcs = append(unit.Funcs, FreeFunc{
		Name:     cur.Name,
		Ret:      b.resolveSpelling(cur.Spelling, cur.Span),
		Params:   b.resolveParams(cur.Children),
		Variadic: cur.Variadic,
		Span:     cur.Span,
	})
}

func (b *Builder) resolveParams(children []decl.Cursor) []Param {
	var out []Param
	for i := range children {
		ch := &children[i]
		if ch.Kind != decl.KindParam {
			continue
		}
		out = append(out, Param{Name: ch.Name, Type: b.resolveSpelling(ch.Spelling, ch.Span)})
	}
	return out
}

// ---- reference resolution ----

// resolveSpelling interns the node for a declared C type spelling.
// Unknown base names degrade to opaque placeholder nodes, warned about
// at Finish; a spelling the parser cannot read degrades to void* with
// a warning.
func (b *Builder) resolveSpelling(s string, use source.Span) NodeID {
	sp, ok := parseSpelling(s)
	if !ok {
		b.rep.Report(diag.GraphBadSpelling, diag.SevWarning, use,
			fmt.Sprintf("cannot read type spelling %q; treating it as void*", s), nil)
		return b.graph.PointerTo(b.graph.Primitive(PrimVoid), false)
	}

	id, known := b.resolveBaseName(sp.base)
	if !known {
		id = b.referencePlaceholder(sp.base, use)
	}

	if sp.ptrs > 0 {
		id = b.graph.PointerTo(id, sp.konst)
		for i := 1; i < sp.ptrs; i++ {
			id = b.graph.PointerTo(id, false)
		}
	}
	for i := len(sp.extents) - 1; i >= 0; i-- {
		id = b.graph.ArrayOf(sp.extents[i], id)
	}
	return id
}

// referencePlaceholder interns a named placeholder for a use of a name
// with no declaration yet, and remembers the first use site.
func (b *Builder) referencePlaceholder(name string, use source.Span) NodeID {
	if id, ok := b.graph.LookupName(name); ok {
		return id
	}
	id := b.graph.intern(nameKey(name), TypeNode{
		Kind: KindStruct,
		Name: name,
		File: use.File,
		Span: use,
	})
	if _, seen := b.unresolved[name]; !seen {
		b.unresolved[name] = use
	}
	return id
}

// resolveBaseName resolves a bare type name against primitives, prior
// declarations and the well-known table, in that order.
func (b *Builder) resolveBaseName(name string) (NodeID, bool) {
	if p, ok := primSpellings[name]; ok {
		return b.graph.Primitive(p), true
	}
	if id, ok := b.graph.LookupName(name); ok {
		if !b.graph.Get(id).Defined {
			b.materializeWellKnown(name, id)
		}
		return id, true
	}
	if !b.isWellKnown(name) {
		return InvalidNode, false
	}
	id := b.graph.intern(nameKey(name), TypeNode{Kind: KindStruct, Name: name})
	b.materializeWellKnown(name, id)
	return id, true
}

func (b *Builder) isWellKnown(name string) bool {
	if _, ok := b.extra[name]; ok {
		return true
	}
	if _, ok := wellKnownSpellings[name]; ok {
		return true
	}
	if _, ok := b.handles[name]; ok {
		return true
	}
	if _, ok := wellKnownStructs[name]; ok {
		return true
	}
	_, ok := wellKnownInterfaces[name]
	return ok
}

// materializeWellKnown upgrades the placeholder id with the well-known
// meaning of name, when it has one. User extensions shadow built-ins.
func (b *Builder) materializeWellKnown(name string, id NodeID) {
	if sp, ok := b.extra[name]; ok {
		b.fillBuiltinTypedef(id, sp)
		// A user mapping may point at another named type. Mappings do
		// not degrade to opaque; the base must exist by the end of the
		// build.
		if parsed, readable := parseSpelling(sp); readable {
			_, prim := primSpellings[parsed.base]
			if !prim && !b.isWellKnown(parsed.base) {
				if _, seen := b.required[parsed.base]; !seen {
					b.required[parsed.base] = name
				}
			}
		}
		return
	}
	if sp, ok := wellKnownSpellings[name]; ok {
		b.fillBuiltinTypedef(id, sp)
		return
	}
	if _, ok := b.handles[name]; ok {
		b.fillBuiltinTypedef(id, "void *")
		return
	}
	if spec, ok := wellKnownStructs[name]; ok {
		fields := make([]Field, 0, len(spec))
		for _, f := range spec {
			fields = append(fields, Field{
				Name: f.name,
				Type: b.resolveSpelling(f.spelling, source.Span{}),
				Bits: -1,
			})
		}
		n := b.graph.Get(id)
		n.Kind = KindStruct
		n.Fields = fields
		n.Builtin = true
		n.Defined = true
		return
	}
	if spec, ok := wellKnownInterfaces[name]; ok {
		var bases []NodeID
		if spec.base != "" {
			if bid, ok := b.resolveBaseName(spec.base); ok {
				bases = append(bases, bid)
			}
		}
		methods := make([]Method, 0, len(spec.methods))
		for _, m := range spec.methods {
			params := make([]Param, 0, len(m.params))
			for _, p := range m.params {
				params = append(params, Param{Name: p.name, Type: b.resolveSpelling(p.spelling, source.Span{})})
			}
			methods = append(methods, Method{
				Name:   m.name,
				Ret:    b.resolveSpelling(m.ret, source.Span{}),
				Params: params,
			})
		}
		n := b.graph.Get(id)
		n.Kind = KindInterface
		n.Bases = bases
		n.Methods = methods
		n.GUIDText = spec.guid
		n.Builtin = true
		n.Defined = true
	}
}

func (b *Builder) fillBuiltinTypedef(id NodeID, spelling string) {
	elem := b.resolveSpelling(spelling, source.Span{})
	n := b.graph.Get(id)
	n.Kind = KindTypedef
	n.Elem = elem
	n.Builtin = true
	n.Defined = true
}
