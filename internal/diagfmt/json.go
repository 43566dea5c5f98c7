package diagfmt

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

// LocationJSON is a file position in JSON output. Byte offsets are
// always present; line/col appear when IncludePositions is set.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

// NoteJSON is one attached note.
type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

// DiagnosticJSON is one diagnostic in JSON output.
type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON document.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

func makeLocation(span source.Span, fs *source.FileSet, pathMode PathMode, includePositions bool) LocationJSON {
	loc := LocationJSON{
		StartByte: span.Start,
		EndByte:   span.End,
	}
	if fs == nil || int(span.File) >= fs.Len() {
		return loc
	}

	f := fs.Get(span.File)
	var base string
	if pathMode == PathModeRelative {
		base = fs.BaseDir()
	}
	loc.File = f.FormatPath(pathMode.format(), base)

	if includePositions {
		startPos, endPos := fs.Resolve(span)
		loc.StartLine = startPos.Line
		loc.StartCol = startPos.Col
		loc.EndLine = endPos.Line
		loc.EndCol = endPos.Col
	}
	return loc
}

// BuildDiagnosticsOutput shapes the JSON document without serializing
// it, so callers can embed it in a larger report.
func BuildDiagnosticsOutput(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	maxItems := len(items)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)
	for i := 0; i < maxItems; i++ {
		d := items[i]

		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Message:  d.Message,
			Location: makeLocation(d.Primary, fs, opts.PathMode, opts.IncludePositions),
		}

		// timing payloads ride in a note; dropping them would make
		// --timings invisible in JSON output
		includeNotes := opts.IncludeNotes || d.Code == diag.ObsTimings
		if includeNotes && len(d.Notes) > 0 {
			dj.Notes = make([]NoteJSON, len(d.Notes))
			for j, note := range d.Notes {
				dj.Notes[j] = NoteJSON{
					Message:  note.Msg,
					Location: makeLocation(note.Span, fs, opts.PathMode, opts.IncludePositions),
				}
			}
		}

		diagnostics = append(diagnostics, dj)
	}

	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
	}
}

// JSON writes the diagnostics as an indented JSON document.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(bag, fs, opts))
}
