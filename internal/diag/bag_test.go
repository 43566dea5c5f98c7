package diag

import (
	"testing"

	"github.com/ousttrue/pycpptool/internal/source"
)

func span(file source.FileID, start, end uint32) source.Span {
	return source.Span{File: file, Start: start, End: end}
}

func TestBagCap(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(NewError(CfgBadRootHeader, span(0, 0, 1), "one")) {
		t.Fatal("first add rejected")
	}
	if !bag.Add(NewError(CfgBadRootHeader, span(0, 1, 2), "two")) {
		t.Fatal("second add rejected")
	}
	if bag.Add(NewError(CfgBadRootHeader, span(0, 2, 3), "three")) {
		t.Fatal("cap not honored")
	}
	if bag.Len() != 2 {
		t.Fatalf("len = %d", bag.Len())
	}
}

func TestBagHasErrors(t *testing.T) {
	bag := NewBag(10)
	bag.Add(New(SevInfo, IngestInfo, span(0, 0, 0), "note"))
	bag.Add(New(SevWarning, ShapeBadGUID, span(0, 0, 0), "warn"))
	if bag.HasErrors() {
		t.Fatal("no errors expected")
	}
	if !bag.HasWarnings() {
		t.Fatal("warnings expected")
	}
	bag.Add(NewError(LayoutBitfieldOverflow, span(0, 0, 0), "boom"))
	if !bag.HasErrors() {
		t.Fatal("errors expected")
	}
}

func TestBagSortIsDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(New(SevWarning, ShapeBadGUID, span(1, 5, 6), "b"))
	bag.Add(New(SevError, LayoutValueCycle, span(0, 9, 10), "c"))
	bag.Add(New(SevError, GraphOpaqueFallback, span(0, 2, 3), "a"))
	bag.Add(New(SevWarning, IngestMissingInclude, span(0, 2, 3), "d"))
	bag.Sort()

	items := bag.Items()
	if items[0].Message != "a" || items[1].Message != "d" {
		t.Fatalf("same-position ordering wrong: %q then %q", items[0].Message, items[1].Message)
	}
	if items[2].Message != "c" {
		t.Fatalf("file 0 entries must precede file 1, got %q", items[2].Message)
	}
	if items[3].Message != "b" {
		t.Fatalf("file 1 entry last, got %q", items[3].Message)
	}
}

func TestBagDedup(t *testing.T) {
	bag := NewBag(10)
	d := NewWarning(ShapeBadGUID, span(0, 4, 8), "dup")
	bag.Add(d)
	bag.Add(d)
	bag.Add(NewWarning(ShapeBadGUID, span(0, 9, 10), "other"))
	bag.Dedup()
	if bag.Len() != 2 {
		t.Fatalf("dedup kept %d items", bag.Len())
	}
}

func TestBagMergeGrowsCap(t *testing.T) {
	a := NewBag(1)
	a.Add(New(SevInfo, IngestInfo, span(0, 0, 0), "a"))
	b := NewBag(1)
	b.Add(New(SevInfo, IngestInfo, span(0, 1, 1), "b"))
	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("merge lost items: %d", a.Len())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	rep := NewDedupReporter(BagReporter{Bag: bag})
	for i := 0; i < 3; i++ {
		rep.Report(GraphOpaqueFallback, SevWarning, span(0, 7, 12), "unknown type IFoo", nil)
	}
	rep.Report(GraphOpaqueFallback, SevWarning, span(0, 20, 24), "unknown type IBar", nil)
	if bag.Len() != 2 {
		t.Fatalf("expected 2 unique reports, got %d", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		id   string
	}{
		{CfgBadRootHeader, "CFG1001"},
		{IngestMissingInclude, "ING2001"},
		{GraphOpaqueFallback, "GRA3001"},
		{LayoutBitfieldOverflow, "LAY4001"},
		{ShapeMultipleBases, "SHP5001"},
		{EmitUnmappedPrimitive, "EMI6001"},
		{ObsTimings, "OBS9001"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.id {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.id)
		}
	}
}
