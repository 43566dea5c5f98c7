package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

func TestJSONBasic(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 30, End: 35},
		"expected ';' after declaration"))

	var buf bytes.Buffer
	err := JSON(&buf, bag, fs, JSONOpts{
		IncludePositions: true,
		PathMode:         PathModeBasename,
		IncludeNotes:     true,
	})
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}

	if output.Count != 1 || len(output.Diagnostics) != 1 {
		t.Fatalf("count = %d, diagnostics = %d, want 1/1", output.Count, len(output.Diagnostics))
	}

	d := output.Diagnostics[0]
	if d.Severity != "ERROR" {
		t.Errorf("severity = %s, want ERROR", d.Severity)
	}
	if d.Code != "ING2004" {
		t.Errorf("code = %s, want ING2004", d.Code)
	}
	if d.Location.File != "point.h" {
		t.Errorf("file = %s, want point.h", d.Location.File)
	}
	if d.Location.StartByte != 30 || d.Location.EndByte != 35 {
		t.Errorf("bytes = %d..%d, want 30..35", d.Location.StartByte, d.Location.EndByte)
	}
	if d.Location.StartLine != 4 || d.Location.StartCol != 5 {
		t.Errorf("start = %d:%d, want 4:5", d.Location.StartLine, d.Location.StartCol)
	}
}

func TestJSONNotesFollowOption(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	d := diag.NewWarning(diag.IngestMissingInclude, source.Span{File: id, Start: 0, End: 6}, "dxgi.h not found")
	d = d.WithNote(source.Span{File: id, Start: 7, End: 12}, "referenced here")
	bag.Add(d)

	var withNotes, without bytes.Buffer
	if err := JSON(&withNotes, bag, fs, JSONOpts{IncludeNotes: true}); err != nil {
		t.Fatal(err)
	}
	if err := JSON(&without, bag, fs, JSONOpts{}); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(withNotes.String(), "referenced here") {
		t.Errorf("note missing with IncludeNotes:\n%s", withNotes.String())
	}
	if strings.Contains(without.String(), "referenced here") {
		t.Errorf("note present without IncludeNotes:\n%s", without.String())
	}
}

func TestJSONTimingsNotesAlwaysIncluded(t *testing.T) {
	bag, fs, _ := fixtureBag(t)
	d := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings (generate): total 2.00 ms")
	d = d.WithNote(source.Span{}, `{"kind":"generate","total_ms":2}`)
	bag.Add(d)

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `\"total_ms\":2`) {
		t.Errorf("timing note dropped despite IncludeNotes=false:\n%s", buf.String())
	}
}

func TestJSONMaxTruncatesOutputOnly(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	for i := 0; i < 5; i++ {
		bag.Add(diag.NewWarning(diag.GraphOpaqueFallback, source.Span{File: id, Start: uint32(i), End: uint32(i) + 1}, "opaque"))
	}

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{Max: 2}); err != nil {
		t.Fatal(err)
	}
	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatal(err)
	}
	if output.Count != 2 || len(output.Diagnostics) != 2 {
		t.Errorf("count = %d, diagnostics = %d, want 2/2", output.Count, len(output.Diagnostics))
	}
	if bag.Len() != 5 {
		t.Errorf("bag trimmed to %d, Max must not mutate the bag", bag.Len())
	}
}
