package vtable_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/typegraph"
	"github.com/ousttrue/pycpptool/internal/vtable"
)

func method(name, ret string, params ...decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindMethod, Name: name, Spelling: ret, Virtual: true, Children: params}
}

func param(name, spelling string) decl.Cursor {
	return decl.Cursor{Kind: decl.KindParam, Name: name, Spelling: spelling}
}

func iface(name, base, annotation string, methods ...decl.Cursor) decl.Cursor {
	c := decl.Cursor{Kind: decl.KindStruct, Name: name, HasBody: true, Bits: -1}
	if annotation != "" {
		c.Annotations = []string{annotation}
	}
	if base != "" {
		c.Children = append(c.Children, decl.Cursor{Kind: decl.KindBase, Name: base})
	}
	c.Children = append(c.Children, methods...)
	return c
}

func buildGraph(t *testing.T, cursors ...decl.Cursor) *typegraph.Graph {
	t.Helper()
	b := typegraph.NewBuilder(typegraph.Options{})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", File: 1, Cursors: cursors})
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

func slotNames(slots []vtable.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Name
	}
	return out
}

func TestIUnknownChain(t *testing.T) {
	g := buildGraph(t,
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("GetParent", "HRESULT", param("riid", "REFIID"), param("parent", "void **")),
			method("GetDesc", "HRESULT", param("desc", "void *")),
		),
	)
	table, err := vtable.Linearize(g, nil)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	foo := mustLookup(t, g, "IFoo")
	slots := table.Slots(foo)
	want := []string{"QueryInterface", "AddRef", "Release", "GetParent", "GetDesc"}
	got := slotNames(slots)
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %s, want %s", i, got[i], want[i])
		}
		if slots[i].Index != i {
			t.Errorf("slot %s index = %d, want %d", got[i], slots[i].Index, i)
		}
	}

	unk := mustLookup(t, g, "IUnknown")
	for i := 0; i < 3; i++ {
		if slots[i].Owner != unk {
			t.Errorf("slot %d owner = %d, want IUnknown", i, slots[i].Owner)
		}
	}
	for i := 3; i < 5; i++ {
		if slots[i].Owner != foo {
			t.Errorf("slot %d owner = %d, want IFoo", i, slots[i].Owner)
		}
	}
}

func TestDerivedChainExtendsBase(t *testing.T) {
	g := buildGraph(t,
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("GetParent", "HRESULT", param("riid", "REFIID")),
		),
		iface("IBar", "IFoo", `MIDL_INTERFACE("770aae78-f26f-4dba-a829-253c83d1b387")`,
			method("GetDesc1", "HRESULT", param("desc", "void *")),
		),
	)
	table, err := vtable.Linearize(g, nil)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	bar := mustLookup(t, g, "IBar")
	slots := table.Slots(bar)
	if len(slots) != 5 {
		t.Fatalf("IBar has %d slots, want 5: %v", len(slots), slotNames(slots))
	}
	if slots[4].Name != "GetDesc1" || slots[4].Index != 4 {
		t.Errorf("last slot = %s@%d, want GetDesc1@4", slots[4].Name, slots[4].Index)
	}

	local := table.Local(bar)
	if len(local) != 1 || local[0].Name != "GetDesc1" {
		t.Errorf("Local(IBar) = %v, want [GetDesc1]", slotNames(local))
	}
}

func TestLocalOfInterfaceWithoutMethods(t *testing.T) {
	g := buildGraph(t,
		iface("IEmpty", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`),
	)
	table, err := vtable.Linearize(g, nil)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}
	id := mustLookup(t, g, "IEmpty")
	if len(table.Slots(id)) != 3 {
		t.Errorf("IEmpty slots = %v, want the IUnknown three", slotNames(table.Slots(id)))
	}
	if local := table.Local(id); len(local) != 0 {
		t.Errorf("Local(IEmpty) = %v, want none", slotNames(local))
	}
}

func TestMultipleBasesRejected(t *testing.T) {
	a := iface("IA", "", "", method("MA", "HRESULT"))
	b := iface("IB", "", "", method("MB", "HRESULT"))
	multi := iface("IMulti", "IA", "", method("MM", "HRESULT"))
	multi.Children = append([]decl.Cursor{{Kind: decl.KindBase, Name: "IB"}}, multi.Children...)

	g := buildGraph(t, a, b, multi)
	bag := diag.NewBag(16)
	_, err := vtable.Linearize(g, diag.BagReporter{Bag: bag})

	var serr *vtable.UnsupportedShapeError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *vtable.UnsupportedShapeError", err)
	}
	if serr.Type != "IMulti" || len(serr.Bases) != 2 {
		t.Errorf("got type %q bases %v, want IMulti with 2 bases", serr.Type, serr.Bases)
	}
	if !bag.HasErrors() {
		t.Error("multiple bases must report an error diagnostic")
	}
}

func TestUnknownBaseWarnsAndNumbersFromZero(t *testing.T) {
	g := buildGraph(t,
		decl.Cursor{Kind: decl.KindStruct, Name: "INever", Bits: -1},
		iface("IOrphan", "INever", "", method("Only", "HRESULT")),
	)
	bag := diag.NewBag(16)
	table, err := vtable.Linearize(g, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	slots := table.Slots(mustLookup(t, g, "IOrphan"))
	if len(slots) != 1 || slots[0].Index != 0 {
		t.Fatalf("slots = %v, want [Only] at index 0", slotNames(slots))
	}
	warned := false
	for _, d := range bag.Items() {
		if d.Code == diag.ShapeUnknownBase {
			warned = true
		}
	}
	if !warned {
		t.Error("unknown base must warn")
	}
	if bag.HasErrors() {
		t.Error("unknown base must stay a warning")
	}
}

func TestGUIDFromAnnotation(t *testing.T) {
	g := buildGraph(t,
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("M", "HRESULT"),
		),
	)
	table, err := vtable.Linearize(g, nil)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	got, ok := table.GUID(mustLookup(t, g, "IFoo"))
	if !ok {
		t.Fatal("IFoo GUID missing")
	}
	if want := uuid.MustParse("aec22fb8-76f3-4639-9be0-28eb43a67a2e"); got != want {
		t.Errorf("GUID = %s, want %s", got, want)
	}

	if _, ok := table.GUID(mustLookup(t, g, "IUnknown")); !ok {
		t.Error("built-in IUnknown GUID missing")
	}
}

func TestMalformedGUIDWarnsAndOmits(t *testing.T) {
	g := buildGraph(t,
		iface("IBad", "IUnknown", `MIDL_INTERFACE("not-a-guid")`, method("M", "HRESULT")),
	)
	bag := diag.NewBag(16)
	table, err := vtable.Linearize(g, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	if _, ok := table.GUID(mustLookup(t, g, "IBad")); ok {
		t.Error("malformed GUID must be omitted")
	}
	warned := false
	for _, d := range bag.Items() {
		if d.Code == diag.ShapeBadGUID {
			warned = true
		}
	}
	if !warned {
		t.Error("malformed GUID must warn")
	}
	if bag.HasErrors() {
		t.Error("malformed GUID must stay declaration-local")
	}
}

func TestSlotsAreDeterministic(t *testing.T) {
	build := func() []string {
		g := buildGraph(t,
			iface("IFoo", "IUnknown", "", method("A", "HRESULT"), method("B", "HRESULT")),
			iface("IBar", "IFoo", "", method("C", "HRESULT")),
		)
		table, err := vtable.Linearize(g, nil)
		if err != nil {
			t.Fatalf("Linearize: %v", err)
		}
		return slotNames(table.Slots(mustLookup(t, g, "IBar")))
	}
	first := build()
	for i := 0; i < 3; i++ {
		again := build()
		if len(again) != len(first) {
			t.Fatalf("run %d: %v != %v", i, again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: %v != %v", i, again, first)
			}
		}
	}
}
