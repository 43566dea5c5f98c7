package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

func TestSarifShape(t *testing.T) {
	bag, fs, id := fixtureBag(t)
	bag.Add(diag.NewError(diag.IngestParseError, source.Span{File: id, Start: 30, End: 35}, "expected ';'"))
	bag.Add(diag.NewWarning(diag.GraphOpaqueFallback, source.Span{File: id, Start: 7, End: 12}, "Point is never defined"))

	var buf bytes.Buffer
	err := Sarif(&buf, bag, fs, SarifRunMeta{
		ToolName:       "cpptool",
		ToolVersion:    "1.2.3",
		InvocationArgs: []string{"gen", "point.h"},
	})
	if err != nil {
		t.Fatalf("Sarif() error: %v", err)
	}

	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("invalid SARIF output: %v\n%s", err, buf.String())
	}

	if log.Version != "2.1.0" {
		t.Errorf("version = %s", log.Version)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(log.Runs))
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "cpptool" || run.Tool.Driver.Version != "1.2.3" {
		t.Errorf("driver = %+v", run.Tool.Driver)
	}
	if len(run.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(run.Results))
	}

	first := run.Results[0]
	if first.RuleID != "ING2004" || first.Level != "error" {
		t.Errorf("first result = %+v", first)
	}
	if len(first.Locations) != 1 {
		t.Fatalf("first result has %d locations", len(first.Locations))
	}
	region := first.Locations[0].PhysicalLocation.Region
	if region == nil || region.StartLine != 4 || region.StartColumn != 5 {
		t.Errorf("region = %+v", region)
	}

	if run.Results[1].Level != "warning" {
		t.Errorf("second level = %s", run.Results[1].Level)
	}

	// one rule per distinct code, in numeric code order
	if len(run.Tool.Driver.Rules) != 2 {
		t.Fatalf("rules = %+v", run.Tool.Driver.Rules)
	}
	if run.Tool.Driver.Rules[0].ID != "ING2004" || run.Tool.Driver.Rules[1].ID != "GRA3001" {
		t.Errorf("rule order = %v, %v", run.Tool.Driver.Rules[0].ID, run.Tool.Driver.Rules[1].ID)
	}

	if len(run.Invocations) != 1 || run.Invocations[0].ExecutionSuccessful {
		t.Errorf("invocation = %+v (bag has errors)", run.Invocations)
	}
}

func TestSarifZeroSpanResultHasNoLocation(t *testing.T) {
	bag, fs, _ := fixtureBag(t)
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings"))

	var buf bytes.Buffer
	if err := Sarif(&buf, bag, fs, SarifRunMeta{}); err != nil {
		t.Fatal(err)
	}
	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatal(err)
	}
	res := log.Runs[0].Results[0]
	if res.Level != "note" {
		t.Errorf("level = %s, want note", res.Level)
	}
	if len(res.Locations) != 0 {
		t.Errorf("locations = %+v, want none", res.Locations)
	}
	if log.Runs[0].Tool.Driver.Name != "cpptool" {
		t.Errorf("default tool name = %s", log.Runs[0].Tool.Driver.Name)
	}
}
