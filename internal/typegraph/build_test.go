package typegraph_test

import (
	"errors"
	"testing"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

func field(name, spelling string) decl.Cursor {
	return decl.Cursor{Kind: decl.KindField, Name: name, Spelling: spelling, Bits: -1}
}

func bitfield(name, spelling string, bits int) decl.Cursor {
	return decl.Cursor{Kind: decl.KindField, Name: name, Spelling: spelling, Bits: bits}
}

func structCursor(name string, children ...decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindStruct, Name: name, HasBody: true, Bits: -1, Children: children}
}

func unionCursor(name string, children ...decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindUnion, Name: name, HasBody: true, Bits: -1, Children: children}
}

func anonMember(nested decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindField, Bits: -1, Children: []decl.Cursor{nested}}
}

func build(t *testing.T, cursors ...decl.Cursor) *typegraph.Graph {
	t.Helper()
	b := typegraph.NewBuilder(typegraph.Options{})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", Cursors: cursors})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return g
}

func mustLookup(t *testing.T, g *typegraph.Graph, name string) typegraph.NodeID {
	t.Helper()
	id, ok := g.LookupName(name)
	if !ok {
		t.Fatalf("type %s not in graph", name)
	}
	return id
}

func TestBuildStructFields(t *testing.T) {
	g := build(t,
		structCursor("DXGI_SAMPLE_DESC",
			field("Count", "UINT"),
			field("Quality", "UINT"),
		),
	)
	id := mustLookup(t, g, "DXGI_SAMPLE_DESC")
	n := g.Get(id)
	if n.Kind != typegraph.KindStruct || !n.Defined {
		t.Fatalf("node = %s defined %v", n.Kind, n.Defined)
	}
	if len(n.Fields) != 2 {
		t.Fatalf("fields = %d", len(n.Fields))
	}
	if n.Fields[0].Type != n.Fields[1].Type {
		t.Error("same spelling resolved to different nodes")
	}
	ft := g.Get(n.Fields[0].Type)
	if ft.Kind != typegraph.KindTypedef || ft.Name != "UINT" || !ft.Builtin {
		t.Errorf("UINT resolved to %s %q builtin=%v", ft.Kind, ft.Name, ft.Builtin)
	}
	if g.Get(ft.Elem).Prim != typegraph.PrimUInt {
		t.Error("UINT does not alias unsigned int")
	}
}

func TestBuildDedupAcrossUnits(t *testing.T) {
	b := typegraph.NewBuilder(typegraph.Options{})
	b.AddUnit(typegraph.UnitInput{Path: "a.h", Stem: "a", Cursors: []decl.Cursor{
		structCursor("A", field("p", "UINT *")),
	}})
	b.AddUnit(typegraph.UnitInput{Path: "b.h", Stem: "b", Cursors: []decl.Cursor{
		structCursor("B", field("q", "UINT *")),
	}})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	a := g.Get(mustLookup(t, g, "A"))
	bb := g.Get(mustLookup(t, g, "B"))
	if a.Fields[0].Type != bb.Fields[0].Type {
		t.Error("identical derivations interned separately")
	}
}

func TestBuildForwardUpgradeKeepsIdentity(t *testing.T) {
	b := typegraph.NewBuilder(typegraph.Options{})
	b.AddUnit(typegraph.UnitInput{Path: "list.h", Stem: "list", Cursors: []decl.Cursor{
		{Kind: decl.KindStruct, Name: "Node", Bits: -1}, // forward
		structCursor("List", field("head", "Node *")),
	}})
	g := b.Graph()
	early := mustLookup(t, g, "Node")
	if g.Get(early).Defined {
		t.Fatal("placeholder marked defined")
	}
	b.AddUnit(typegraph.UnitInput{Path: "node.h", Stem: "node", Cursors: []decl.Cursor{
		structCursor("Node", field("v", "int")),
	}})
	if _, err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	late := mustLookup(t, g, "Node")
	if late != early {
		t.Fatalf("definition moved the node: %d -> %d", early, late)
	}
	n := g.Get(late)
	if !n.Defined || len(n.Fields) != 1 {
		t.Fatalf("upgrade incomplete: defined=%v fields=%d", n.Defined, len(n.Fields))
	}
	head := g.Get(mustLookup(t, g, "List")).Fields[0]
	if g.Get(head.Type).Elem != late {
		t.Error("pointer taken before the definition points elsewhere")
	}
}

func TestBuildSyntheticNames(t *testing.T) {
	g := build(t,
		structCursor("D2D_MATRIX_3X2_F",
			anonMember(unionCursor("",
				anonMember(structCursor("",
					field("m11", "FLOAT"),
					field("m12", "FLOAT"),
				)),
				field("m", "FLOAT[2]"),
			)),
		),
	)
	outer := g.Get(mustLookup(t, g, "D2D_MATRIX_3X2_F"))
	if len(outer.Fields) != 1 || outer.Fields[0].Name != "" {
		t.Fatalf("outer fields = %+v", outer.Fields)
	}
	u := g.Get(outer.Fields[0].Type)
	if u.Kind != typegraph.KindUnion || !u.Synthetic {
		t.Fatalf("anon member type = %s synthetic=%v", u.Kind, u.Synthetic)
	}
	if u.Name != "D2D_MATRIX_3X2_F__anon0" {
		t.Errorf("union name = %q", u.Name)
	}
	if len(u.Fields) != 2 {
		t.Fatalf("union fields = %d", len(u.Fields))
	}
	arm := g.Get(u.Fields[0].Type)
	if arm.Name != "D2D_MATRIX_3X2_F__anon0__anon0" {
		t.Errorf("nested arm name = %q", arm.Name)
	}
}

func TestBuildTypedefPreserved(t *testing.T) {
	g := build(t,
		structCursor("DXGI_RGB", field("Red", "float")),
		decl.Cursor{Kind: decl.KindTypedef, Name: "PDXGI_RGB", Spelling: "DXGI_RGB *", Bits: -1},
	)
	td := g.Get(mustLookup(t, g, "PDXGI_RGB"))
	if td.Kind != typegraph.KindTypedef {
		t.Fatalf("kind = %s", td.Kind)
	}
	ptr := g.Get(td.Elem)
	if ptr.Kind != typegraph.KindPointer {
		t.Fatalf("underlying = %s", ptr.Kind)
	}
	if ptr.Elem != mustLookup(t, g, "DXGI_RGB") {
		t.Error("pointer element is not the struct node")
	}
}

func TestBuildInterface(t *testing.T) {
	method := func(name, ret string, params ...decl.Cursor) decl.Cursor {
		return decl.Cursor{Kind: decl.KindMethod, Name: name, Spelling: ret, Virtual: true, Bits: -1, Children: params}
	}
	param := func(name, spelling string) decl.Cursor {
		return decl.Cursor{Kind: decl.KindParam, Name: name, Spelling: spelling, Bits: -1}
	}
	iface := structCursor("IDXGIObject",
		decl.Cursor{Kind: decl.KindBase, Name: "IUnknown", Bits: -1},
		method("GetParent", "HRESULT", param("riid", "REFIID"), param("ppParent", "void **")),
	)
	iface.Annotations = []string{`MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`}

	g := build(t, iface)
	n := g.Get(mustLookup(t, g, "IDXGIObject"))
	if n.Kind != typegraph.KindInterface {
		t.Fatalf("kind = %s", n.Kind)
	}
	if n.GUIDText == "" {
		t.Error("annotation lost")
	}
	if len(n.Bases) != 1 {
		t.Fatalf("bases = %d", len(n.Bases))
	}
	base := g.Get(n.Bases[0])
	if base.Name != "IUnknown" || base.Kind != typegraph.KindInterface || !base.Builtin {
		t.Fatalf("base = %q %s builtin=%v", base.Name, base.Kind, base.Builtin)
	}
	if len(base.Methods) != 3 || base.Methods[0].Name != "QueryInterface" {
		t.Errorf("IUnknown methods = %v", base.Methods)
	}
	if len(n.Methods) != 1 || n.Methods[0].Name != "GetParent" {
		t.Fatalf("methods = %v", n.Methods)
	}
	if len(n.Methods[0].Params) != 2 {
		t.Errorf("params = %d", len(n.Methods[0].Params))
	}
}

func TestBuildUndeclaredDegradesToOpaque(t *testing.T) {
	bag := diag.NewBag(16)
	b := typegraph.NewBuilder(typegraph.Options{Reporter: diag.BagReporter{Bag: bag}})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", Cursors: []decl.Cursor{
		structCursor("S", field("x", "MYSTERY_TYPE")),
	}})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	n := g.Get(mustLookup(t, g, "MYSTERY_TYPE"))
	if n.Kind != typegraph.KindStruct || n.Defined {
		t.Fatalf("placeholder = %s defined=%v", n.Kind, n.Defined)
	}
	if bag.HasErrors() {
		t.Error("owned-set gap must stay a warning")
	}
	warned := false
	for _, d := range bag.Items() {
		if d.Code == diag.GraphOpaqueFallback {
			warned = true
		}
	}
	if !warned {
		t.Error("no opaque placeholder warning reported")
	}
}

func TestBuildMappingToMissingTypeFails(t *testing.T) {
	bag := diag.NewBag(16)
	b := typegraph.NewBuilder(typegraph.Options{
		Reporter:  diag.BagReporter{Bag: bag},
		WellKnown: map[string]string{"HFOO": "FOO_CTX"},
	})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", Cursors: []decl.Cursor{
		structCursor("S", field("raw", "FOO_CTX"), field("h", "HFOO")),
	}})
	_, err := b.Finish()
	var unres *typegraph.UnresolvedReferenceError
	if !errors.As(err, &unres) {
		t.Fatalf("err = %v", err)
	}
	if unres.Name != "FOO_CTX" {
		t.Errorf("name = %q", unres.Name)
	}
	if !bag.HasErrors() {
		t.Error("no error diagnostic reported")
	}
}

func TestBuildMappingToForwardDeclaredType(t *testing.T) {
	b := typegraph.NewBuilder(typegraph.Options{
		WellKnown: map[string]string{"HFOO": "FOO_CTX"},
	})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", Cursors: []decl.Cursor{
		{Kind: decl.KindStruct, Name: "FOO_CTX", Bits: -1}, // forward only
		structCursor("S", field("h", "HFOO")),
	}})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	n := g.Get(mustLookup(t, g, "HFOO"))
	if n.Kind != typegraph.KindTypedef || !n.Builtin {
		t.Fatalf("mapping = %s builtin=%v", n.Kind, n.Builtin)
	}
}

func TestBuildWellKnownExtension(t *testing.T) {
	b := typegraph.NewBuilder(typegraph.Options{
		WellKnown: map[string]string{"MYSTERY_TYPE": "unsigned int"},
	})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", Cursors: []decl.Cursor{
		structCursor("S", field("x", "MYSTERY_TYPE")),
	}})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	n := g.Get(mustLookup(t, g, "MYSTERY_TYPE"))
	if n.Kind != typegraph.KindTypedef || !n.Builtin {
		t.Fatalf("extension = %s builtin=%v", n.Kind, n.Builtin)
	}
}

func TestBuildGUIDMaterializes(t *testing.T) {
	g := build(t,
		structCursor("S", field("iid", "GUID")),
	)
	n := g.Get(mustLookup(t, g, "GUID"))
	if n.Kind != typegraph.KindStruct || !n.Builtin || len(n.Fields) != 4 {
		t.Fatalf("GUID = %s builtin=%v fields=%d", n.Kind, n.Builtin, len(n.Fields))
	}
	data4 := g.Get(n.Fields[3].Type)
	if data4.Kind != typegraph.KindArray || data4.Count != 8 {
		t.Errorf("Data4 = %s count %d", data4.Kind, data4.Count)
	}
}

func TestBuildAnonymousEnumBecomesConsts(t *testing.T) {
	enum := decl.Cursor{Kind: decl.KindEnum, HasBody: true, Bits: -1, Children: []decl.Cursor{
		{Kind: decl.KindEnumConst, Name: "D3D11_OK", Value: 0, HasValue: true, Bits: -1},
		{Kind: decl.KindEnumConst, Name: "D3D11_FAIL", Value: 1, HasValue: true, Bits: -1},
	}}
	g := build(t, enum)
	units := g.Units()
	if len(units) != 1 {
		t.Fatalf("units = %d", len(units))
	}
	if len(units[0].Consts) != 2 || units[0].Consts[1].Name != "D3D11_FAIL" {
		t.Errorf("consts = %v", units[0].Consts)
	}
	if len(units[0].Types) != 0 {
		t.Errorf("anonymous enum claimed a type slot: %v", units[0].Types)
	}
}

func TestBuildDuplicateDefinitionWarns(t *testing.T) {
	bag := diag.NewBag(16)
	b := typegraph.NewBuilder(typegraph.Options{Reporter: diag.BagReporter{Bag: bag}})
	b.AddUnit(typegraph.UnitInput{Path: "a.h", Stem: "a", Cursors: []decl.Cursor{
		structCursor("S", field("x", "int")),
	}})
	b.AddUnit(typegraph.UnitInput{Path: "b.h", Stem: "b", Cursors: []decl.Cursor{
		structCursor("S", field("x", "int"), field("y", "int")),
	}})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	n := g.Get(mustLookup(t, g, "S"))
	if len(n.Fields) != 1 {
		t.Errorf("first definition not kept: %d fields", len(n.Fields))
	}
	if !bag.HasWarnings() {
		t.Error("no duplicate definition warning")
	}
}

func TestBuildBitfieldWidths(t *testing.T) {
	g := build(t,
		structCursor("Flags",
			bitfield("ready", "unsigned int", 1),
			bitfield("mode", "unsigned int", 3),
			bitfield("", "unsigned int", 8),
			field("raw", "unsigned int"),
		),
	)
	n := g.Get(mustLookup(t, g, "Flags"))
	if len(n.Fields) != 4 {
		t.Fatalf("fields = %d", len(n.Fields))
	}
	widths := []int{1, 3, 8, -1}
	for i, w := range widths {
		if n.Fields[i].Bits != w {
			t.Errorf("field %d bits = %d, want %d", i, n.Fields[i].Bits, w)
		}
	}
}
