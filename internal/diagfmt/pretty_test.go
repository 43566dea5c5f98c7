package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

const headerFixture = `struct Point
{
    int x;
    int y
};
`

func fixtureBag(t *testing.T) (*diag.Bag, *source.FileSet, source.FileID) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("point.h", []byte(headerFixture))
	bag := diag.NewBag(10)
	return bag, fs, id
}

func TestPrettyHeaderLine(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	// "int y" on line 4, bytes 30..35
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 30, End: 35},
		"expected ';' after declaration"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	out := buf.String()

	if !strings.Contains(out, "point.h:4:5: error ING2004: expected ';' after declaration") {
		t.Errorf("missing header line:\n%s", out)
	}
	if !strings.Contains(out, "    4 |     int y") {
		t.Errorf("missing source line:\n%s", out)
	}
	if !strings.Contains(out, "^~~~") {
		t.Errorf("missing underline:\n%s", out)
	}
}

func TestPrettyUnderlineWidthMatchesSpan(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	// "Point" on line 1, bytes 7..12
	bag.Add(diag.NewWarning(diag.GraphOpaqueFallback, source.Span{File: id, Start: 7, End: 12},
		"Point is never defined"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	out := buf.String()

	if !strings.Contains(out, "^~~~~\n") {
		t.Errorf("underline should cover 5 columns:\n%s", out)
	}
}

func TestPrettyContextLines(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 30, End: 35}, "bad member"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 2})
	out := buf.String()

	for _, frag := range []string{"    2 | {", "    3 |     int x;", "    4 |     int y"} {
		if !strings.Contains(out, frag) {
			t.Errorf("missing context line %q:\n%s", frag, out)
		}
	}
}

func TestPrettyZeroSpanHasNoLocation(t *testing.T) {
	bag, fs, _ := fixtureBag(t)
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings (generate): total 1.00 ms"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	out := buf.String()

	if !strings.HasPrefix(out, "info OBS9001: timings") {
		t.Errorf("zero span should print without a location:\n%s", out)
	}
	if strings.Contains(out, "point.h") {
		t.Errorf("zero span must not borrow the first file:\n%s", out)
	}
}

func TestPrettyNotes(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	d := diag.NewWarning(diag.IngestMissingInclude, source.Span{File: id, Start: 0, End: 6}, "dxgi.h not found")
	d = d.WithNote(source.Span{File: id, Start: 7, End: 12}, "referenced here")
	bag.Add(d)

	var withNotes, without bytes.Buffer
	Pretty(&withNotes, bag, fs, PrettyOpts{ShowNotes: true})
	Pretty(&without, bag, fs, PrettyOpts{})

	if !strings.Contains(withNotes.String(), "note: point.h:1:8: referenced here") {
		t.Errorf("missing note line:\n%s", withNotes.String())
	}
	if strings.Contains(without.String(), "referenced here") {
		t.Errorf("notes printed without ShowNotes:\n%s", without.String())
	}
}

func TestPrettyColorDisabledHasNoEscapes(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 0, End: 6}, "boom"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Color: false})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("escape sequences in uncolored output:\n%q", buf.String())
	}
}

func TestPrettyTabExpansion(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("tab.h", []byte("\tint\tz;\n"))
	bag := diag.NewBag(4)
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 5, End: 6}, "bad field"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	out := buf.String()

	if !strings.Contains(out, "    1 |     int    z;") {
		t.Errorf("tabs should expand to four spaces:\n%s", out)
	}
	caretLine := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "^") {
			caretLine = line
		}
	}
	// the 5-byte prefix "\tint\t" occupies 11 display cells
	if want := "      | " + strings.Repeat(" ", 11) + "^"; caretLine != want {
		t.Errorf("caret line %q, want %q", caretLine, want)
	}
}
