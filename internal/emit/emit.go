// Package emit renders the resolved model into target language
// sources. Emitters are pure: graph in, (path, text) pairs out. They
// read offsets from the layout engine and slots from the vtable and
// never re-derive either.
package emit

import (
	"sort"

	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/typegraph"
	"github.com/ousttrue/pycpptool/internal/vtable"
)

// File is one staged output file. Paths are relative to the output
// directory; the driver decides where they land and writes them
// atomically.
type File struct {
	Path string
	Text string
}

// Model is everything an emitter may read. Layout results are already
// validated by the driver, so emitters treat layout lookups as
// infallible.
type Model struct {
	Graph   *typegraph.Graph
	Layout  *layout.LayoutEngine
	Profile layout.Profile
	Table   *vtable.Table

	// Prefix namespaces the generated code: D module prefix or C#
	// namespace, per target.
	Prefix string

	// DLLs maps a header stem to the library free functions import
	// from; stems without an entry default to stem + ".dll".
	DLLs map[string]string
}

// Emitter renders one target language.
type Emitter interface {
	Target() string
	Emit(m *Model) ([]File, error)
}

var registry = map[string]Emitter{
	"d":      DLang{},
	"csharp": CSharp{},
	"json":   ModelJSON{},
}

// ForTarget resolves a target name to its emitter.
func ForTarget(name string) (Emitter, bool) {
	e, ok := registry[name]
	return e, ok
}

// Targets lists the registered target names, sorted.
func Targets() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// dllFor resolves the import library for a header stem.
func (m *Model) dllFor(stem string) string {
	if dll, ok := m.DLLs[stem]; ok {
		return dll
	}
	return stem + ".dll"
}

// layoutOf is the emitter-side layout accessor. The driver resolves
// every claimed type before emitters run, so errors here mean a driver
// bug; the zero layout keeps rendering total.
func (m *Model) layoutOf(id typegraph.NodeID) layout.TypeLayout {
	l, err := m.Layout.LayoutOf(id)
	if err != nil {
		return layout.TypeLayout{Align: 1}
	}
	return l
}
