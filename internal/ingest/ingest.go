// Package ingest walks a root header and its owned includes, drives
// the front end over each file once, and hands the resulting cursor
// batches to the graph builder. Headers outside the owned set are
// recorded but never parsed; their types resolve later through the
// well-known table or degrade to opaque.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ousttrue/pycpptool/internal/cpp"
	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

// ConfigurationError aborts a run: the root header cannot be opened or
// parsed at all. Anything less stays a warning.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cannot ingest root header %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Options configures one ingest run.
type Options struct {
	// Root is the header the walk starts from; its basename is always
	// owned.
	Root string

	// Owned lists header basenames (or glob patterns) whose
	// declarations belong to the run. Quoted includes matching the set
	// are parsed recursively; everything else is recorded only.
	Owned []string

	// IncludeDirs are searched for quoted includes after the directory
	// of the including header.
	IncludeDirs []string

	// Noise lists extra macro identifiers the front end blanks before
	// parsing.
	Noise []string

	Reporter diag.Reporter

	// Cache, when non-nil, short-circuits parsing for headers whose
	// content digest has been seen before.
	Cache *Cache
}

// Header is one owned header actually reached by the walk, in
// include-before-includer order.
type Header struct {
	File source.FileID
	Path string
	Stem string

	// Includes holds the stems of owned includes, resolution order,
	// deduplicated. System holds everything recorded but not parsed:
	// angle-bracket includes and quoted includes outside the owned set,
	// as written.
	Includes []string
	System   []string

	Cursors []decl.Cursor

	// Skipped counts source regions the grammar could not read.
	Skipped int
}

// Run walks the owned header set and returns one Header per reached
// file. Includes are parsed before their includer so constant folding
// sees names in definition order.
func Run(ctx context.Context, fset *source.FileSet, opts Options) ([]Header, error) {
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	owned := append([]string{filepath.Base(opts.Root)}, opts.Owned...)

	p := cpp.NewParser(opts.Noise)
	defer p.Close()

	w := &walker{
		fset:   fset,
		parser: p,
		rep:    rep,
		owned:  owned,
		dirs:   opts.IncludeDirs,
		cache:  opts.Cache,
		seen:   make(map[string]bool),
	}
	if err := w.visit(ctx, opts.Root, true); err != nil {
		return nil, err
	}
	return w.out, nil
}

type walker struct {
	fset   *source.FileSet
	parser *cpp.Parser
	rep    diag.Reporter
	owned  []string
	dirs   []string
	cache  *Cache
	seen   map[string]bool
	out    []Header
}

func (w *walker) visit(ctx context.Context, hpath string, root bool) error {
	key := filepath.Clean(hpath)
	if w.seen[key] {
		return nil
	}
	w.seen[key] = true

	id, err := w.fset.Load(hpath)
	if err != nil {
		if root {
			return &ConfigurationError{Path: hpath, Err: err}
		}
		w.rep.Report(diag.IngestMissingInclude, diag.SevWarning, source.Span{},
			fmt.Sprintf("cannot read %s: %v", hpath, err), nil)
		return nil
	}
	f := w.fset.Get(id)

	h := Header{File: id, Path: f.Path, Stem: stem(hpath)}
	for _, inc := range scanIncludes(id, f.Content) {
		if inc.system {
			h.System = append(h.System, inc.name)
			continue
		}
		resolved, ok := w.resolve(inc.name, filepath.Dir(hpath))
		switch {
		case ok && w.isOwned(inc.name):
			if err := w.visit(ctx, resolved, false); err != nil {
				return err
			}
			if s := stem(resolved); !slices.Contains(h.Includes, s) {
				h.Includes = append(h.Includes, s)
			}
		case ok:
			h.System = append(h.System, inc.name)
		case w.isOwned(inc.name):
			w.rep.Report(diag.IngestMissingInclude, diag.SevWarning, inc.span,
				fmt.Sprintf("owned include %q not found next to %s or on any include path", inc.name, filepath.Base(hpath)), nil)
		default:
			h.System = append(h.System, inc.name)
		}
	}

	cursors, skipped, ok := w.cache.Get(f.Hash, id)
	if ok {
		w.rep.Report(diag.IngestCacheHit, diag.SevInfo, source.Span{},
			fmt.Sprintf("%s restored from the parse cache", filepath.Base(hpath)), nil)
	} else {
		res, err := w.parser.ParseHeader(ctx, f)
		if err != nil {
			if root {
				return &ConfigurationError{Path: hpath, Err: err}
			}
			w.rep.Report(diag.IngestParseError, diag.SevWarning, source.Span{File: id},
				fmt.Sprintf("cannot parse %s: %v; its declarations are dropped", filepath.Base(hpath), err), nil)
			return nil
		}
		cursors, skipped = res.Cursors, res.Skipped
		if err := w.cache.Put(f.Hash, f.Path, cursors, skipped); err != nil {
			w.rep.Report(diag.IngestInfo, diag.SevInfo, source.Span{},
				fmt.Sprintf("parse cache write failed: %v", err), nil)
		}
	}
	if skipped > 0 {
		w.rep.Report(diag.IngestSkippedDecl, diag.SevInfo, source.Span{File: id},
			fmt.Sprintf("%s: %d declaration regions were not recognized", filepath.Base(hpath), skipped), nil)
	}
	for i := range cursors {
		if cursors[i].Kind == decl.KindMacro && !cursors[i].HasValue {
			w.rep.Report(diag.IngestMacroSkipped, diag.SevInfo, cursors[i].Span,
				fmt.Sprintf("macro %s does not fold to an integer constant; skipped", cursors[i].Name), nil)
		}
	}

	h.Cursors = cursors
	h.Skipped = skipped
	w.out = append(w.out, h)
	return nil
}

// resolve finds a quoted include: first next to the including header,
// then across the include directories, the way MSVC searches.
func (w *walker) resolve(name, fromDir string) (string, bool) {
	rel := filepath.FromSlash(name)
	for _, dir := range append([]string{fromDir}, w.dirs...) {
		cand := filepath.Join(dir, rel)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return cand, true
		}
	}
	return "", false
}

// isOwned matches the basename of an include target against the owned
// set. Patterns go through path.Match; plain names also compare
// case-insensitively because Windows headers are cased freely.
func (w *walker) isOwned(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	for _, pat := range w.owned {
		if ok, err := path.Match(pat, base); err == nil && ok {
			return true
		}
		if strings.EqualFold(pat, base) {
			return true
		}
	}
	return false
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type scannedInclude struct {
	name   string
	system bool
	span   source.Span
}

// scanIncludes reads #include directives without parsing, so the walk
// can order headers include-first before the front end runs. Content
// is already CRLF-normalized by the FileSet.
func scanIncludes(file source.FileID, content []byte) []scannedInclude {
	var out []scannedInclude
	lineStart := 0
	for lineStart < len(content) {
		lineEnd := lineStart
		for lineEnd < len(content) && content[lineEnd] != '\n' {
			lineEnd++
		}
		if inc, ok := scanIncludeLine(file, content[lineStart:lineEnd], lineStart); ok {
			out = append(out, inc)
		}
		lineStart = lineEnd + 1
	}
	return out
}

func scanIncludeLine(file source.FileID, line []byte, base int) (scannedInclude, bool) {
	i := skipBlank(line, 0)
	if i >= len(line) || line[i] != '#' {
		return scannedInclude{}, false
	}
	start := i
	i = skipBlank(line, i+1)
	const word = "include"
	if i+len(word) > len(line) || string(line[i:i+len(word)]) != word {
		return scannedInclude{}, false
	}
	i = skipBlank(line, i+len(word))
	if i >= len(line) {
		return scannedInclude{}, false
	}

	var term byte
	system := false
	switch line[i] {
	case '"':
		term = '"'
	case '<':
		term, system = '>', true
	default:
		return scannedInclude{}, false
	}
	i++
	j := i
	for j < len(line) && line[j] != term {
		j++
	}
	if j >= len(line) || j == i {
		return scannedInclude{}, false
	}
	return scannedInclude{
		name:   string(line[i:j]),
		system: system,
		span: source.Span{
			File:  file,
			Start: uint32(base + start),
			End:   uint32(base + j + 1),
		},
	}, true
}

func skipBlank(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
