// Package diagfmt renders collected diagnostics for people and tools:
// a colored caret view for terminals, a JSON document for scripting
// and a SARIF 2.1.0 log for code-scanning backends. The diag package
// stays presentation-free; everything about display lives here.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto keeps short and relative paths as-is and collapses
	// long absolute ones to the basename.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

func (m PathMode) format() string {
	switch m {
	case PathModeAbsolute:
		return "absolute"
	case PathModeRelative:
		return "relative"
	case PathModeBasename:
		return "basename"
	default:
		return "auto"
	}
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color bool

	// Context is how many source lines print before the caret line.
	Context int8

	PathMode  PathMode
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool // add line/col to every location
	PathMode         PathMode
	Max              int // truncates the output, not the bag
	IncludeNotes     bool
}

// SarifRunMeta provides tool metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}
