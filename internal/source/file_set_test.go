package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddVirtualAssignsSequentialIDs(t *testing.T) {
	fs := NewFileSet()
	a := fs.AddVirtual("a.h", []byte("struct A;"))
	b := fs.AddVirtual("b.h", []byte("struct B;"))
	if a != 0 || b != 1 {
		t.Fatalf("expected ids 0 and 1, got %d and %d", a, b)
	}
	if fs.Len() != 2 {
		t.Fatalf("expected 2 files, got %d", fs.Len())
	}
	if fs.Get(a).Flags&FileVirtual == 0 {
		t.Fatalf("virtual flag not set")
	}
}

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("t.h", []byte("struct A {\n  int x;\n};\n"))

	tests := []struct {
		name string
		off  uint32
		line uint32
		col  uint32
	}{
		{"first byte", 0, 1, 1},
		{"end of first line", 9, 1, 10},
		{"newline itself", 10, 1, 11},
		{"start of second line", 11, 2, 1},
		{"inside second line", 13, 2, 3},
		{"third line", 20, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, _ := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
			if start.Line != tt.line || start.Col != tt.col {
				t.Fatalf("offset %d: got %d:%d, want %d:%d",
					tt.off, start.Line, start.Col, tt.line, tt.col)
			}
		})
	}
}

func TestLoadNormalizesCRLFAndBOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "win.h")
	raw := []byte{0xEF, 0xBB, 0xBF}
	raw = append(raw, []byte("struct A;\r\nstruct B;\r\n")...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f := fs.Get(id)
	if f.Flags&FileHadBOM == 0 {
		t.Fatalf("BOM flag not set")
	}
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("CRLF flag not set")
	}
	if string(f.Content) != "struct A;\nstruct B;\n" {
		t.Fatalf("unexpected content %q", f.Content)
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("t.h", []byte("one\ntwo\nthree"))
	f := fs.Get(id)

	if got := f.GetLine(1); got != "one" {
		t.Fatalf("line 1 = %q", got)
	}
	if got := f.GetLine(2); got != "two" {
		t.Fatalf("line 2 = %q", got)
	}
	if got := f.GetLine(3); got != "three" {
		t.Fatalf("line 3 = %q", got)
	}
	if got := f.GetLine(4); got != "" {
		t.Fatalf("line 4 = %q, want empty", got)
	}
	if got := f.GetLine(0); got != "" {
		t.Fatalf("line 0 = %q, want empty", got)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 15}
	c := a.Cover(b)
	if c.Start != 5 || c.End != 20 {
		t.Fatalf("cover = %v", c)
	}
	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Fatalf("cross-file cover changed the span: %v", got)
	}
}

func TestGetByPathNormalizes(t *testing.T) {
	fs := NewFileSet()
	fs.AddVirtual("dir//sub/../t.h", []byte("x"))
	if _, ok := fs.GetByPath("dir/t.h"); !ok {
		t.Fatalf("normalized path lookup failed")
	}
}
