package diag

import "github.com/ousttrue/pycpptool/internal/source"

// Reporter is the contract pipeline stages emit diagnostics through.
// Implementations: BagReporter, NopReporter, DedupReporter.
type Reporter interface {
	Report(code Code, sev Severity, primary source.Span, msg string, notes []Note)
}

// ReportBuilder accumulates diagnostic details before emitting.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

// NewReportBuilder constructs a builder bound to a Reporter.
func NewReportBuilder(r Reporter, sev Severity, code Code, primary source.Span, msg string) *ReportBuilder {
	return &ReportBuilder{
		reporter: r,
		diag: Diagnostic{
			Severity: sev,
			Code:     code,
			Message:  msg,
			Primary:  primary,
		},
	}
}

// ReportError is a shortcut for SevError diagnostics.
func ReportError(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevError, code, primary, msg)
}

// ReportWarning is a shortcut for SevWarning diagnostics.
func ReportWarning(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevWarning, code, primary, msg)
}

// ReportInfo is a shortcut for SevInfo diagnostics.
func ReportInfo(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevInfo, code, primary, msg)
}

// WithNote appends a note.
func (b *ReportBuilder) WithNote(sp source.Span, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag.Notes = append(b.diag.Notes, Note{Span: sp, Msg: msg})
	return b
}

// Emit sends the diagnostic to the underlying reporter exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.diag.Code, b.diag.Severity, b.diag.Primary, b.diag.Message, b.diag.Notes)
	}
	b.emitted = true
}

// Diagnostic returns the accumulated diagnostic without emitting.
func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter stores reported diagnostics in a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{
		Severity: sev, Code: code, Message: msg,
		Primary: primary, Notes: notes,
	})
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, source.Span, string, []Note) {}
