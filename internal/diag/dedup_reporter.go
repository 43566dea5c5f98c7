package diag

import "github.com/ousttrue/pycpptool/internal/source"

type dedupKey struct {
	code  Code
	sev   Severity
	file  source.FileID
	start uint32
	end   uint32
	msg   string
}

// DedupReporter wraps another Reporter and suppresses duplicate
// diagnostics with the same code, severity, primary span and message.
// The layout engine reports every opaque fallback through one of these
// so a type referenced from fifty fields warns once.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that forwards only unique
// diagnostics to next.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r == nil {
		return
	}
	key := dedupKey{
		code:  code,
		sev:   sev,
		file:  primary.File,
		start: primary.Start,
		end:   primary.End,
		msg:   msg,
	}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(code, sev, primary, msg, notes)
	}
}
