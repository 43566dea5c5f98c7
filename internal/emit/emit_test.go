package emit_test

import (
	"strings"
	"testing"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/emit"
	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/typegraph"
	"github.com/ousttrue/pycpptool/internal/vtable"
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

func anonMember(inner decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindField, Bits: -1, Children: []decl.Cursor{inner}}
}

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

func enumCursor(name string, members ...decl.Cursor) decl.Cursor {
	return decl.Cursor{Kind: decl.KindEnum, Name: name, HasBody: true, Bits: -1, Children: members}
}

func enumConst(name string, value int64) decl.Cursor {
	return decl.Cursor{Kind: decl.KindEnumConst, Name: name, Value: value, HasValue: true, Bits: -1}
}

func buildModel(t *testing.T, cursors ...decl.Cursor) *emit.Model {
	t.Helper()
	b := typegraph.NewBuilder(typegraph.Options{})
	b.AddUnit(typegraph.UnitInput{Path: "test.h", Stem: "test", File: 1, Cursors: cursors})
	g, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	eng := layout.New(layout.WinX64, g, nil)
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		if _, err := eng.LayoutOf(id); err != nil {
			t.Fatalf("LayoutOf(%d): %v", id, err)
		}
	}
	table, err := vtable.Linearize(g, nil)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}
	return &emit.Model{Graph: g, Layout: eng, Profile: layout.WinX64, Table: table, Prefix: "build"}
}

func emitFiles(t *testing.T, target string, m *emit.Model) map[string]string {
	t.Helper()
	e, ok := emit.ForTarget(target)
	if !ok {
		t.Fatalf("no emitter for %s", target)
	}
	files, err := e.Emit(m)
	if err != nil {
		t.Fatalf("Emit(%s): %v", target, err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = f.Text
	}
	return out
}

func wantContains(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(text, w) {
			t.Errorf("output missing %q\n----\n%s", w, text)
		}
	}
}

func TestTargets(t *testing.T) {
	got := emit.Targets()
	want := []string{"csharp", "d", "json"}
	if len(got) != len(want) {
		t.Fatalf("Targets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Targets() = %v, want %v", got, want)
		}
	}
	if _, ok := emit.ForTarget("fortran"); ok {
		t.Error("unknown target must not resolve")
	}
}

func TestDLangStruct(t *testing.T) {
	m := buildModel(t,
		structCursor("P", field("x", "float"), field("y", "float")),
		structCursor("Q", field("pos", "P"), field("flags", "int")),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"],
		"module build.test;",
		"public import build.prelude;",
		"extern (Windows):",
		"struct Q",
		"P pos;",
		"int flags;",
	)
}

func TestDLangEnum(t *testing.T) {
	m := buildModel(t,
		enumCursor("DXGI_FORMAT",
			enumConst("DXGI_FORMAT_UNKNOWN", 0),
			enumConst("DXGI_FORMAT_R32G32B32A32_TYPELESS", 1),
			enumConst("DXGI_FORMAT_R32G32B32A32_FLOAT", 2),
		),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"],
		"enum DXGI_FORMAT",
		"UNKNOWN = 0,",
		"R32G32B32A32_TYPELESS = 1,",
		"R32G32B32A32_FLOAT = 2,",
	)
	if strings.Contains(files["test.d"], "DXGI_FORMAT_UNKNOWN") {
		t.Error("member prefix not stripped")
	}
}

func TestDLangInterface(t *testing.T) {
	m := buildModel(t,
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("GetParent", "HRESULT", param("riid", "REFIID"), param("ppParent", "void **")),
		),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"],
		"interface IFoo : IUnknown",
		"static immutable iid = GUID(0xaec22fb8, 0x76f3, 0x4639, [0x9b, 0xe0, 0x28, 0xeb, 0x43, 0xa6, 0x7a, 0x2e]);",
		"HRESULT GetParent(REFIID riid, void** ppParent);",
	)
	wantContains(t, files["prelude.d"],
		"module build.prelude;",
		"alias HRESULT = int;",
		"alias REFIID = const(GUID)*;",
		"struct GUID",
		"interface IUnknown",
	)
}

func TestDLangAnonymousUnion(t *testing.T) {
	m := buildModel(t,
		structCursor("VARIANT",
			field("kind", "int"),
			anonMember(unionCursor("", field("i", "int"), field("f", "float"))),
		),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"], "struct VARIANT", "int kind;", "union", "int i;", "float f;")
	if strings.Contains(files["test.d"], "__anon") {
		t.Error("anonymous member must stay anonymous in D")
	}
}

func TestDLangBitfields(t *testing.T) {
	m := buildModel(t,
		structCursor("B",
			bitfield("a", "unsigned int", 1),
			bitfield("b", "unsigned int", 3),
			bitfield("c", "unsigned int", 28),
		),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"],
		"import std.bitmanip : bitfields;",
		"mixin(bitfields!(",
		`uint, "a", 1`,
		`uint, "b", 3`,
		`uint, "c", 28`,
	)
}

func TestDLangOpaqueForward(t *testing.T) {
	m := buildModel(t,
		decl.Cursor{Kind: decl.KindStruct, Name: "IDXGIOutput", Bits: -1},
		structCursor("HOLDER", field("output", "IDXGIOutput *")),
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["prelude.d"], "struct IDXGIOutput;")
	wantContains(t, files["test.d"], "IDXGIOutput* output;")
}

func TestDLangFuncPtrAndConsts(t *testing.T) {
	m := buildModel(t,
		decl.Cursor{Kind: decl.KindTypedef, Name: "PFN_CB", Spelling: "void", FuncPtr: true, Bits: -1,
			Children: []decl.Cursor{param("data", "void *")}},
		decl.Cursor{Kind: decl.KindMacro, Name: "FLAG_A", Value: 0x10, HasValue: true, Bits: -1},
	)
	files := emitFiles(t, "d", m)
	wantContains(t, files["test.d"],
		"alias PFN_CB = extern (Windows) void function(void* data);",
		"enum FLAG_A = 0x10;",
	)
}

func TestCSharpStruct(t *testing.T) {
	m := buildModel(t,
		structCursor("P", field("x", "float"), field("y", "float")),
		structCursor("Q", field("pos", "P"), field("flags", "int")),
	)
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		"namespace build",
		"[StructLayout(LayoutKind.Sequential, CharSet = CharSet.Unicode)]",
		"public struct Q",
		"public P pos;",
		"public int flags;",
	)
}

func TestCSharpUnionExplicit(t *testing.T) {
	m := buildModel(t,
		unionCursor("U", field("i", "int"), field("f", "float")),
	)
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		"LayoutKind.Explicit",
		"[FieldOffset(0)] public int i;",
		"[FieldOffset(0)] public float f;",
	)
}

func TestCSharpAnonymousUnionFlattens(t *testing.T) {
	m := buildModel(t,
		structCursor("VARIANT",
			field("kind", "int"),
			anonMember(unionCursor("", field("i", "int"), field("f", "float"))),
		),
	)
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		"LayoutKind.Explicit",
		"[FieldOffset(0)] public int kind;",
		"[FieldOffset(4)] public int i;",
		"[FieldOffset(4)] public float f;",
	)
}

func TestCSharpInterface(t *testing.T) {
	m := buildModel(t,
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("GetParent", "HRESULT", param("riid", "REFIID"), param("ppParent", "void **")),
		),
	)
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		`[ComImport, Guid("aec22fb8-76f3-4639-9be0-28eb43a67a2e"), InterfaceType(ComInterfaceType.InterfaceIsIUnknown)]`,
		"public interface IFoo : IUnknown",
		"[PreserveSig]",
		"int GetParent(ref Guid riid, out IntPtr ppParent);",
	)
	wantContains(t, files["Prelude.cs"], "public interface IUnknown")
}

func TestCSharpArrayField(t *testing.T) {
	m := buildModel(t,
		structCursor("DESC", field("Description", "wchar_t[128]"), field("VendorId", "unsigned int")),
	)
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		"[MarshalAs(UnmanagedType.ByValArray, SizeConst = 128)]",
		"public char[] Description;",
		"public uint VendorId;",
	)
}

func TestCSharpFunctions(t *testing.T) {
	m := buildModel(t,
		decl.Cursor{Kind: decl.KindFunction, Name: "CreateFoo", Spelling: "HRESULT", Bits: -1,
			Children: []decl.Cursor{param("riid", "REFIID"), param("out", "void **")}},
	)
	m.DLLs = map[string]string{"test": "foo.dll"}
	files := emitFiles(t, "csharp", m)
	wantContains(t, files["test.cs"],
		`[DllImport("foo.dll", ExactSpelling = true)]`,
		"public static extern int CreateFoo(ref Guid riid, out IntPtr @out);",
	)
}

func TestModelJSON(t *testing.T) {
	m := buildModel(t,
		structCursor("P", field("x", "float"), field("y", "float")),
		iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
			method("M", "HRESULT"),
		),
	)
	files := emitFiles(t, "json", m)
	doc := files["model.json"]
	wantContains(t, doc,
		`"name": "x64"`,
		`"pointerSize": 8`,
		`"name": "P"`,
		`"guid": "aec22fb8-76f3-4639-9be0-28eb43a67a2e"`,
		`"stem": "test"`,
	)
}

func TestEmittersAreDeterministic(t *testing.T) {
	build := func() map[string]string {
		m := buildModel(t,
			structCursor("P", field("x", "float"), field("y", "float")),
			enumCursor("E", enumConst("E_A", 0), enumConst("E_B", 1)),
			iface("IFoo", "IUnknown", `MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")`,
				method("M", "HRESULT"),
			),
		)
		out := make(map[string]string)
		for _, target := range emit.Targets() {
			for path, text := range emitFiles(t, target, m) {
				out[path] = text
			}
		}
		return out
	}
	first := build()
	second := build()
	if len(first) != len(second) {
		t.Fatalf("file sets differ: %d vs %d", len(first), len(second))
	}
	for path, text := range first {
		if second[path] != text {
			t.Errorf("%s differs between runs", path)
		}
	}
}
