package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.Faint)
)

// Pretty renders each diagnostic as
//
//	<path>:<line>:<col>: <SEVERITY> <CODE>: <message>
//
// followed by the source line with a ^~~~ underline covering the span,
// then its notes. Diagnostics with no position (a zero span) print the
// header line only. Callers sort the bag beforehand when they want
// positional order.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := prettyPrinter{w: w, fs: fs, opts: opts}
	for _, d := range bag.Items() {
		p.diagnostic(d)
	}
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
}

func (p *prettyPrinter) paint(c *color.Color, s string) string {
	if !p.opts.Color {
		return s
	}
	return c.Sprint(s)
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

func severityName(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func (p *prettyPrinter) diagnostic(d diag.Diagnostic) {
	label := p.paint(severityColor(d.Severity), severityName(d.Severity))
	code := p.paint(noteColor, d.Code.ID())

	if loc, ok := p.locate(d.Primary); ok {
		fmt.Fprintf(p.w, "%s:%d:%d: %s %s: %s\n", loc.path, loc.start.Line, loc.start.Col, label, code, d.Message)
		p.caretBlock(d.Primary, severityColor(d.Severity))
	} else {
		fmt.Fprintf(p.w, "%s %s: %s\n", label, code, d.Message)
	}

	if p.opts.ShowNotes {
		for _, n := range d.Notes {
			if loc, ok := p.locate(n.Span); ok {
				fmt.Fprintf(p.w, "  %s: %s:%d:%d: %s\n", p.paint(noteColor, "note"), loc.path, loc.start.Line, loc.start.Col, n.Msg)
			} else {
				fmt.Fprintf(p.w, "  %s: %s\n", p.paint(noteColor, "note"), n.Msg)
			}
		}
	}
}

type located struct {
	path       string
	start, end source.LineCol
}

func (p *prettyPrinter) locate(span source.Span) (located, bool) {
	if p.fs == nil || span == (source.Span{}) {
		return located{}, false
	}
	if int(span.File) >= p.fs.Len() {
		return located{}, false
	}
	f := p.fs.Get(span.File)
	start, end := p.fs.Resolve(span)
	var base string
	if p.opts.PathMode == PathModeRelative {
		base = p.fs.BaseDir()
	}
	return located{
		path:  f.FormatPath(p.opts.PathMode.format(), base),
		start: start,
		end:   end,
	}, true
}

// caretBlock prints up to Context leading source lines, the line the
// span starts on, and an underline sized by display width.
func (p *prettyPrinter) caretBlock(span source.Span, c *color.Color) {
	f := p.fs.Get(span.File)
	start, end := p.fs.Resolve(span)

	first := int(start.Line) - int(p.opts.Context)
	if first < 1 {
		first = 1
	}
	for ln := first; ln < int(start.Line); ln++ {
		fmt.Fprintf(p.w, "%5d | %s\n", ln, expandTabs(f.GetLine(uint32(ln))))
	}

	raw := f.GetLine(start.Line)
	fmt.Fprintf(p.w, "%5d | %s\n", start.Line, expandTabs(raw))
	fmt.Fprintf(p.w, "      | %s%s\n",
		strings.Repeat(" ", prefixWidth(raw, start.Col)),
		p.paint(c, caretRun(underlineWidth(raw, start, end))))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

// prefixWidth is the display width of the line content left of a
// 1-based byte column.
func prefixWidth(raw string, col uint32) int {
	b := int(col) - 1
	if b < 0 {
		b = 0
	}
	if b > len(raw) {
		b = len(raw)
	}
	return runewidth.StringWidth(expandTabs(raw[:b]))
}

// underlineWidth is the display width of the span on its first line,
// at least one cell so empty spans still get a caret.
func underlineWidth(raw string, start, end source.LineCol) int {
	from := int(start.Col) - 1
	if from < 0 {
		from = 0
	}
	if from > len(raw) {
		from = len(raw)
	}
	to := len(raw)
	if end.Line == start.Line && int(end.Col)-1 < to {
		to = int(end.Col) - 1
	}
	if to < from {
		to = from
	}
	w := runewidth.StringWidth(expandTabs(raw[from:to]))
	if w < 1 {
		w = 1
	}
	return w
}

func caretRun(width int) string {
	if width <= 1 {
		return "^"
	}
	return "^" + strings.Repeat("~", width-1)
}
