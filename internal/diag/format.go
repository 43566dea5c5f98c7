package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ousttrue/pycpptool/internal/source"
)

type formattedDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShort renders diagnostics one line per entry in a stable order,
// suitable for terse CLI output and for test comparisons:
//
//	WARNING SHP5002 d3d_sample.h:12:1 malformed GUID "xyz"
func FormatShort(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil || len(diags) == 0 {
		return ""
	}

	rendered := make([]formattedDiagnostic, 0, len(diags))
	for _, d := range diags {
		rendered = appendFormatted(rendered, d, fs, includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, d.Code, d.Path, d.Line, d.Column, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendFormatted(out []formattedDiagnostic, d Diagnostic, fs *source.FileSet, includeNotes bool) []formattedDiagnostic {
	loc, ok := resolveSpan(fs, d.Primary)
	if ok {
		out = append(out, formattedDiagnostic{
			Severity: severityLabel(d.Severity),
			Code:     d.Code.ID(),
			Path:     loc.Path,
			Line:     loc.Line,
			Column:   loc.Column,
			Message:  sanitizeMessage(d.Message),
		})
	}

	if includeNotes {
		for _, note := range d.Notes {
			nloc, nok := resolveSpan(fs, note.Span)
			if !nok {
				continue
			}
			out = append(out, formattedDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Path:     nloc.Path,
				Line:     nloc.Line,
				Column:   nloc.Column,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}
	return out
}

type resolvedSpan struct {
	Path   string
	Line   uint32
	Column uint32
}

func resolveSpan(fs *source.FileSet, span source.Span) (loc resolvedSpan, ok bool) {
	// A zero span from a stage with no position still formats; a span
	// naming a file the set never loaded does not.
	defer func() {
		if recover() != nil {
			loc = resolvedSpan{}
			ok = false
		}
	}()
	if fs.Len() == 0 || int(span.File) >= fs.Len() {
		return resolvedSpan{}, false
	}
	start, _ := fs.Resolve(span)
	f := fs.Get(span.File)
	return resolvedSpan{
		Path:   f.FormatPath("basename", ""),
		Line:   start.Line,
		Column: start.Col,
	}, true
}

func severityLabel(s Severity) string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
