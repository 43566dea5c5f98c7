package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/ingest"
	"github.com/ousttrue/pycpptool/internal/source"
)

func writeHeader(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func run(t *testing.T, opts ingest.Options) ([]ingest.Header, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	opts.Reporter = diag.BagReporter{Bag: bag}
	headers, err := ingest.Run(context.Background(), source.NewFileSet(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return headers, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func findCursor(cursors []decl.Cursor, kind decl.Kind, name string) (decl.Cursor, bool) {
	for _, c := range cursors {
		if c.Kind == kind && c.Name == name {
			return c, true
		}
	}
	return decl.Cursor{}, false
}

func TestRunParsesRootHeader(t *testing.T) {
	dir := t.TempDir()
	root := writeHeader(t, dir, "root.h", `
struct Point {
    int x;
    int y;
};
`)
	headers, bag := run(t, ingest.Options{Root: root})
	if len(headers) != 1 {
		t.Fatalf("got %d headers, want 1", len(headers))
	}
	h := headers[0]
	if h.Stem != "root" {
		t.Errorf("Stem = %q, want root", h.Stem)
	}
	if _, ok := findCursor(h.Cursors, decl.KindStruct, "Point"); !ok {
		t.Error("struct Point not ingested")
	}
	if bag.HasErrors() {
		t.Errorf("unexpected errors: %v", bag.Items())
	}
}

func TestOwnedIncludeWalkOrder(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "types.h", "typedef unsigned int FLAGS;\n")
	writeHeader(t, dir, "other.h", "struct Unrelated { int z; };\n")
	root := writeHeader(t, dir, "root.h", `
#include "types.h"
#include "other.h"
#include <guiddef.h>

struct Holder {
    FLAGS flags;
};
`)
	headers, _ := run(t, ingest.Options{Root: root, Owned: []string{"types.h"}})
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2", len(headers))
	}
	if headers[0].Stem != "types" || headers[1].Stem != "root" {
		t.Fatalf("walk order = [%s %s], want includes before includer", headers[0].Stem, headers[1].Stem)
	}

	h := headers[1]
	if len(h.Includes) != 1 || h.Includes[0] != "types" {
		t.Errorf("Includes = %v, want [types]", h.Includes)
	}
	wantSystem := map[string]bool{"other.h": false, "guiddef.h": false}
	for _, s := range h.System {
		if _, ok := wantSystem[s]; ok {
			wantSystem[s] = true
		}
	}
	for name, seen := range wantSystem {
		if !seen {
			t.Errorf("System misses %s (got %v)", name, h.System)
		}
	}
}

func TestUnownedIncludeNotParsed(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "other.h", "struct Unrelated { int z; };\n")
	root := writeHeader(t, dir, "root.h", "#include \"other.h\"\nstruct Own { int a; };\n")

	headers, _ := run(t, ingest.Options{Root: root})
	if len(headers) != 1 {
		t.Fatalf("got %d headers, want 1", len(headers))
	}
	for _, h := range headers {
		if _, ok := findCursor(h.Cursors, decl.KindStruct, "Unrelated"); ok {
			t.Error("declaration from an unowned header leaked in")
		}
	}
}

func TestMissingOwnedIncludeWarns(t *testing.T) {
	dir := t.TempDir()
	root := writeHeader(t, dir, "root.h", "#include \"gone.h\"\nstruct S { int a; };\n")

	headers, bag := run(t, ingest.Options{Root: root, Owned: []string{"gone.h"}})
	if len(headers) != 1 {
		t.Fatalf("got %d headers, want 1", len(headers))
	}
	if !hasCode(bag, diag.IngestMissingInclude) {
		t.Error("missing owned include did not warn")
	}
	if bag.HasErrors() {
		t.Error("missing owned include must stay a warning")
	}
}

func TestRootHeaderMissing(t *testing.T) {
	_, err := ingest.Run(context.Background(), source.NewFileSet(), ingest.Options{
		Root: filepath.Join(t.TempDir(), "nope.h"),
	})
	var cfgErr *ingest.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestIncludeDirResolution(t *testing.T) {
	rootDir := t.TempDir()
	incDir := t.TempDir()
	writeHeader(t, incDir, "types.h", "typedef int REFCOUNT;\n")
	root := writeHeader(t, rootDir, "root.h", "#include \"types.h\"\nstruct S { REFCOUNT n; };\n")

	headers, bag := run(t, ingest.Options{
		Root:        root,
		Owned:       []string{"types.h"},
		IncludeDirs: []string{incDir},
	})
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2", len(headers))
	}
	if hasCode(bag, diag.IngestMissingInclude) {
		t.Error("include on the search path reported missing")
	}
}

func TestOwnedGlobPattern(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "dxgi1_2.h", "typedef int A;\n")
	root := writeHeader(t, dir, "root.h", "#include \"dxgi1_2.h\"\n")

	headers, _ := run(t, ingest.Options{Root: root, Owned: []string{"dxgi*.h"}})
	if len(headers) != 2 {
		t.Fatalf("glob pattern did not own the include: %d headers", len(headers))
	}
}

func TestIncludeCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "b.h", "#include \"a.h\"\ntypedef int B;\n")
	a := writeHeader(t, dir, "a.h", "#include \"b.h\"\ntypedef int A;\n")

	headers, _ := run(t, ingest.Options{Root: a, Owned: []string{"a.h", "b.h"}})
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2", len(headers))
	}
	if headers[0].Stem != "b" || headers[1].Stem != "a" {
		t.Errorf("order = [%s %s], want [b a]", headers[0].Stem, headers[1].Stem)
	}
}

func TestHeaderParsedOnce(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "shared.h", "typedef int SHARED;\n")
	writeHeader(t, dir, "mid.h", "#include \"shared.h\"\ntypedef int MID;\n")
	root := writeHeader(t, dir, "root.h", "#include \"shared.h\"\n#include \"mid.h\"\n")

	headers, _ := run(t, ingest.Options{Root: root, Owned: []string{"shared.h", "mid.h"}})
	if len(headers) != 3 {
		t.Fatalf("got %d headers, want 3", len(headers))
	}
	seen := map[string]int{}
	for _, h := range headers {
		seen[h.Stem]++
	}
	if seen["shared"] != 1 {
		t.Errorf("shared.h ingested %d times", seen["shared"])
	}
}

func TestMacroConstants(t *testing.T) {
	dir := t.TempDir()
	root := writeHeader(t, dir, "root.h", `
#define FLAG_ONE 1
#define WIDTH (16)
#define COMBINED (FLAG_ONE | 2)
#define NOT_A_CONST "text"
`)
	headers, bag := run(t, ingest.Options{Root: root})
	h := headers[0]

	want := map[string]int64{"FLAG_ONE": 1, "WIDTH": 16, "COMBINED": 3}
	for name, value := range want {
		c, ok := findCursor(h.Cursors, decl.KindMacro, name)
		if !ok || !c.HasValue {
			t.Errorf("macro %s not folded", name)
			continue
		}
		if c.Value != value {
			t.Errorf("macro %s = %d, want %d", name, c.Value, value)
		}
	}
	if !hasCode(bag, diag.IngestMacroSkipped) {
		t.Error("unfoldable macro did not produce an info diagnostic")
	}
}
