package driver

import (
	"encoding/json"
	"fmt"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/observ"
	"github.com/ousttrue/pycpptool/internal/source"
)

type timingPayload struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
	observ.Report
}

// appendTimingDiagnostic records phase timings as an info diagnostic
// with the JSON payload in a note, so every output format that renders
// diagnostics carries timings for free. A full bag gets one slot
// forced open; timings are the one diagnostic worth displacing the
// cap for.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "pipeline"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg = fmt.Sprintf("%s, %s", msg, payload.Path)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.Diagnostic{
		Severity: diag.SevInfo,
		Code:     diag.ObsTimings,
		Message:  msg,
		Primary:  source.Span{},
		Notes: []diag.Note{
			{Span: source.Span{}, Msg: string(data)},
		},
	}

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(len(bag.Items()) + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
