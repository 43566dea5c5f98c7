// Package driver wires the pipeline stages together: ingest, type
// graph construction, layout resolution, vtable linearization and the
// per-target emitters. Commands call into this package instead of
// touching the stages directly, so parse and generate stay two views
// of the same run.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/emit"
	"github.com/ousttrue/pycpptool/internal/ingest"
	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/observ"
	"github.com/ousttrue/pycpptool/internal/source"
	"github.com/ousttrue/pycpptool/internal/typegraph"
	"github.com/ousttrue/pycpptool/internal/vtable"
)

// Request describes one pipeline invocation. Commands fill it from the
// manifest plus flags; zero values fall back to the x64 profile, the
// "build" prefix and one job per CPU.
type Request struct {
	// Root is the header the include walk starts from.
	Root string

	// Owned lists basename patterns of headers that belong to this
	// project. The root's own basename is always owned.
	Owned []string

	// IncludeDirs are searched for quoted includes after the directory
	// of the including file.
	IncludeDirs []string

	// Noise lists extra annotation macros to blank before parsing.
	Noise []string

	Profile   layout.Profile
	WellKnown map[string]string

	// Prefix namespaces generated code: D package prefix, C# namespace.
	Prefix string

	// DLLs maps header stems to the library their free functions
	// import from.
	DLLs map[string]string

	OutDir  string
	Targets []string

	// Jobs bounds emitter parallelism; <= 0 means one per CPU.
	Jobs int

	Cache          *ingest.Cache
	MaxDiagnostics int

	// Timings attaches a phase timing diagnostic to the bag.
	Timings bool
}

func (req Request) withDefaults() Request {
	if req.Profile.Name == "" {
		req.Profile = layout.WinX64
	}
	if req.Prefix == "" {
		req.Prefix = "build"
	}
	if req.MaxDiagnostics <= 0 {
		req.MaxDiagnostics = 100
	}
	return req
}

// ParseResult is the analyzed model without any generated output.
// The parse and inspect commands render it directly.
type ParseResult struct {
	Files   *source.FileSet
	Headers []ingest.Header
	Graph   *typegraph.Graph
	Layout  *layout.LayoutEngine
	Table   *vtable.Table
	Profile layout.Profile
	Bag     *diag.Bag
	Timing  observ.Report
}

// GenerateResult reports what a generation run wrote.
type GenerateResult struct {
	Files *source.FileSet
	Bag   *diag.Bag

	// Written lists the emitted files relative to OutDir, sorted.
	Written []string

	Timing observ.Report
}

// Parse runs the analysis half of the pipeline: ingest the headers,
// build the type graph, resolve every layout and linearize the
// vtables. Nothing is written. The result carries the bag even when an
// error aborts the run, so callers can render what was diagnosed.
func Parse(ctx context.Context, req Request) (*ParseResult, error) {
	req = req.withDefaults()
	res := &ParseResult{
		Files:   source.NewFileSet(),
		Profile: req.Profile,
		Bag:     diag.NewBag(req.MaxDiagnostics),
	}
	timer := observ.NewTimer()
	err := analyze(ctx, req, timer, res)
	if req.Timings {
		appendTimingDiagnostic(res.Bag, timingPayload{
			Kind:   "parse",
			Path:   req.Root,
			Report: timer.Report(),
		})
	}
	res.Timing = timer.Report()
	return res, err
}

// Generate runs the full pipeline and writes one directory per target
// under OutDir. All targets are emitted in memory before the first
// byte lands on disk, so an aborting error anywhere in the run leaves
// OutDir untouched.
func Generate(ctx context.Context, req Request) (*GenerateResult, error) {
	req = req.withDefaults()
	res := &GenerateResult{
		Files: source.NewFileSet(),
		Bag:   diag.NewBag(req.MaxDiagnostics),
	}
	timer := observ.NewTimer()
	written, err := generate(ctx, req, timer, res)
	res.Written = written
	if req.Timings {
		appendTimingDiagnostic(res.Bag, timingPayload{
			Kind:   "generate",
			Path:   req.Root,
			Report: timer.Report(),
		})
	}
	res.Timing = timer.Report()
	return res, err
}

func generate(ctx context.Context, req Request, timer *observ.Timer, res *GenerateResult) ([]string, error) {
	rep := &diag.BagReporter{Bag: res.Bag}
	emitters, err := emittersFor(req.Targets, rep)
	if err != nil {
		return nil, err
	}

	parsed := &ParseResult{Files: res.Files, Profile: req.Profile, Bag: res.Bag}
	if err := analyze(ctx, req, timer, parsed); err != nil {
		return nil, err
	}

	model := &emit.Model{
		Graph:   parsed.Graph,
		Layout:  parsed.Layout,
		Profile: req.Profile,
		Table:   parsed.Table,
		Prefix:  req.Prefix,
		DLLs:    req.DLLs,
	}
	outputs, err := emitTargets(ctx, emitters, model, req.Jobs, timer)
	if err != nil {
		return nil, err
	}

	phase := timer.Begin("write")
	written, err := commitOutputs(req.OutDir, outputs)
	timer.End(phase, fmt.Sprintf("%d files", len(written)))
	return written, err
}

// analyze fills res with everything up to (and including) vtable
// linearization. Layout is resolved eagerly for every node: a layout
// error aborts here, before any emitter runs, and the warmed cache is
// read-only for the emitter goroutines afterwards.
func analyze(ctx context.Context, req Request, timer *observ.Timer, res *ParseResult) error {
	rep := &diag.BagReporter{Bag: res.Bag}

	for _, dir := range req.IncludeDirs {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			rep.Report(diag.CfgBadIncludeDir, diag.SevWarning, source.Span{},
				fmt.Sprintf("include directory %s is not usable; quoted includes may not resolve through it", dir), nil)
		}
	}

	phase := timer.Begin("ingest")
	headers, err := ingest.Run(ctx, res.Files, ingest.Options{
		Root:        req.Root,
		Owned:       req.Owned,
		IncludeDirs: req.IncludeDirs,
		Noise:       req.Noise,
		Reporter:    rep,
		Cache:       req.Cache,
	})
	timer.End(phase, fmt.Sprintf("%d headers", len(headers)))
	if err != nil {
		var cfgErr *ingest.ConfigurationError
		if errors.As(err, &cfgErr) {
			rep.Report(diag.CfgBadRootHeader, diag.SevError, source.Span{}, cfgErr.Error(), nil)
		}
		return err
	}
	res.Headers = headers

	phase = timer.Begin("typegraph")
	b := typegraph.NewBuilder(typegraph.Options{Reporter: rep, WellKnown: req.WellKnown})
	for i := range headers {
		h := &headers[i]
		b.AddUnit(typegraph.UnitInput{
			Path:     h.Path,
			Stem:     h.Stem,
			File:     h.File,
			Includes: h.Includes,
			Cursors:  h.Cursors,
		})
	}
	g, err := b.Finish()
	res.Graph = g
	timer.End(phase, fmt.Sprintf("%d nodes", g.Len()-1))
	if err != nil {
		return err
	}

	phase = timer.Begin("layout")
	eng := layout.New(req.Profile, g, rep)
	res.Layout = eng
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		if _, lerr := eng.LayoutOf(id); lerr != nil {
			reportLayoutError(rep, lerr)
			timer.End(phase, "")
			return lerr
		}
	}
	timer.End(phase, "")

	phase = timer.Begin("vtable")
	table, err := vtable.Linearize(g, rep)
	res.Table = table
	if table != nil {
		timer.End(phase, fmt.Sprintf("%d interfaces", table.Len()))
	} else {
		timer.End(phase, "")
	}
	return err
}

// emittersFor resolves and deduplicates the requested target names.
func emittersFor(targets []string, rep diag.Reporter) ([]emit.Emitter, error) {
	if len(targets) == 0 {
		return nil, errors.New("no generation targets requested")
	}
	seen := make(map[string]struct{}, len(targets))
	out := make([]emit.Emitter, 0, len(targets))
	for _, name := range targets {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		em, ok := emit.ForTarget(name)
		if !ok {
			msg := fmt.Sprintf("unknown target %q (known targets: %v)", name, emit.Targets())
			rep.Report(diag.CfgBadTarget, diag.SevError, source.Span{}, msg, nil)
			return nil, fmt.Errorf("unknown target %q", name)
		}
		out = append(out, em)
	}
	return out, nil
}

func reportLayoutError(rep diag.Reporter, err error) {
	var le *layout.LayoutError
	if !errors.As(err, &le) {
		return
	}
	code := diag.LayoutBadPacking
	switch le.Kind {
	case layout.LayoutErrRecursiveValue:
		code = diag.LayoutValueCycle
	case layout.LayoutErrBitfieldOverflow:
		code = diag.LayoutBitfieldOverflow
	}
	rep.Report(code, diag.SevError, le.Span, le.Error(), nil)
}

// commitOutputs writes every staged file under outDir/<target>/. Each
// file goes through a temp file and rename in its final directory, the
// same idiom the header cache uses.
func commitOutputs(outDir string, outputs []targetOutput) ([]string, error) {
	written := make([]string, 0, 16)
	for _, out := range outputs {
		dir := filepath.Join(outDir, out.Target)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, err
		}
		for _, f := range out.Files {
			dst := filepath.Join(dir, filepath.FromSlash(f.Path))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return written, err
			}
			if err := writeFileAtomic(dst, []byte(f.Text)); err != nil {
				return written, err
			}
			written = append(written, path.Join(out.Target, f.Path))
		}
	}
	sort.Strings(written)
	return written, nil
}

func writeFileAtomic(dst string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(dst), "tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}
