package cpp

import (
	"strings"
	"testing"
)

func TestPreprocessMidlInterface(t *testing.T) {
	src := `MIDL_INTERFACE("905db94b-a00c-4140-9df5-2b64ca9ea357")
IDXGIObject : public IUnknown
{
};
`
	res := preprocess([]byte(src), nil)
	if len(res.src) != len(src) {
		t.Fatalf("length changed: %d -> %d", len(src), len(res.src))
	}
	out := string(res.src)
	if !strings.HasPrefix(out, "struct ") {
		t.Fatalf("macro not rewritten to struct: %q", out[:20])
	}
	if strings.Contains(out, "MIDL_INTERFACE") {
		t.Fatal("macro text survived the rewrite")
	}
	if !strings.Contains(out, "IDXGIObject : public IUnknown") {
		t.Fatal("declaration body disturbed")
	}
	if len(res.ann) != 1 {
		t.Fatalf("annotations = %d, want 1", len(res.ann))
	}
	if res.ann[0].off != 0 {
		t.Errorf("annotation offset = %d, want 0", res.ann[0].off)
	}
	want := `MIDL_INTERFACE("905db94b-a00c-4140-9df5-2b64ca9ea357")`
	if res.ann[0].text != want {
		t.Errorf("annotation text = %q, want %q", res.ann[0].text, want)
	}
}

func TestPreprocessInterfaceKeyword(t *testing.T) {
	src := "interface IFoo;"
	res := preprocess([]byte(src), nil)
	if got := string(res.src); got != "struct    IFoo;" {
		t.Fatalf("got %q", got)
	}
	if len(res.ann) != 0 {
		t.Fatalf("keyword rewrite must not record annotations, got %d", len(res.ann))
	}
}

func TestPreprocessNoiseWords(t *testing.T) {
	src := "virtual HRESULT STDMETHODCALLTYPE GetParent(void) = 0;"
	res := preprocess([]byte(src), nil)
	out := string(res.src)
	if strings.Contains(out, "STDMETHODCALLTYPE") {
		t.Fatal("calling convention word survived")
	}
	if !strings.Contains(out, "virtual HRESULT") || !strings.Contains(out, "GetParent") {
		t.Fatalf("surrounding tokens disturbed: %q", out)
	}
	if len(out) != len(src) {
		t.Fatal("length changed")
	}
}

func TestPreprocessSAL(t *testing.T) {
	src := "HRESULT f(_In_ REFIID riid, _Out_writes_(count) void *data);"
	res := preprocess([]byte(src), nil)
	out := string(res.src)
	for _, gone := range []string{"_In_", "_Out_writes_", "count)"} {
		if strings.Contains(out, gone) {
			t.Errorf("%q survived: %q", gone, out)
		}
	}
	for _, kept := range []string{"REFIID riid", "void *data"} {
		if !strings.Contains(out, kept) {
			t.Errorf("%q disturbed: %q", kept, out)
		}
	}
}

func TestPreprocessNoiseCalls(t *testing.T) {
	src := "struct __declspec(novtable) IFoo { };"
	res := preprocess([]byte(src), nil)
	out := string(res.src)
	if strings.Contains(out, "__declspec") || strings.Contains(out, "novtable") {
		t.Fatalf("declspec survived: %q", out)
	}
	if !strings.Contains(out, "struct") || !strings.Contains(out, "IFoo { };") {
		t.Fatalf("declaration disturbed: %q", out)
	}
}

func TestPreprocessDeclspecUUID(t *testing.T) {
	src := `class DECLSPEC_UUID("d67441c7-672a-476f-9e82-cd55b44949ce") Inline;`
	res := preprocess([]byte(src), nil)
	out := string(res.src)
	if strings.Contains(out, "DECLSPEC_UUID") {
		t.Fatal("uuid macro survived")
	}
	if len(res.ann) != 1 {
		t.Fatalf("annotations = %d, want 1", len(res.ann))
	}
	if !strings.Contains(res.ann[0].text, "d67441c7") {
		t.Errorf("annotation lost the guid: %q", res.ann[0].text)
	}
}

func TestPreprocessSkipsCommentsAndStrings(t *testing.T) {
	src := "// MIDL_INTERFACE(\"aa\")\n/* interface */ const char *s = \"MIDL_INTERFACE\";\n"
	res := preprocess([]byte(src), nil)
	if string(res.src) != src {
		t.Fatalf("comment or string content rewritten:\n%q", string(res.src))
	}
	if len(res.ann) != 0 {
		t.Fatalf("annotations from comments: %d", len(res.ann))
	}
}

func TestPreprocessExtraNoise(t *testing.T) {
	extra := map[string]struct{}{"D2D1_API": {}}
	src := "D2D1_API HRESULT Frob(void);"
	res := preprocess([]byte(src), extra)
	out := string(res.src)
	if strings.Contains(out, "D2D1_API") {
		t.Fatal("extra noise word survived")
	}
	if !strings.Contains(out, "HRESULT Frob") {
		t.Fatalf("declaration disturbed: %q", out)
	}
}

func TestPreprocessKeepsNewlines(t *testing.T) {
	src := "DEFINE_GUID(IID_IFoo,\n0x905db94b, 0xa00c);\nint x;\n"
	res := preprocess([]byte(src), nil)
	if strings.Count(string(res.src), "\n") != strings.Count(src, "\n") {
		t.Fatal("blanking dropped newlines")
	}
	if !strings.Contains(string(res.src), "int x;") {
		t.Fatal("following declaration disturbed")
	}
}
