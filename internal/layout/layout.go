// Package layout resolves sizes, alignments and field offsets for type
// graph nodes under a platform profile, following the MSVC rules the
// headers were written against. Layout is computed once here and read
// everywhere else; emitters must never re-derive offsets on their own.
package layout

import (
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// FieldLayout is one resolved member of an aggregate. Anonymous
// aggregate members are flattened: their fields appear here directly,
// with offsets shifted by the member's own offset.
type FieldLayout struct {
	Name   string
	Type   typegraph.NodeID
	Offset int

	// Bits is the bit-field width, or -1 for a plain field. BitOff is
	// the bit position inside the storage unit that starts at Offset.
	Bits   int
	BitOff int
}

// TypeLayout is the resolved size, alignment and member placement of
// one type under one profile.
type TypeLayout struct {
	Size  int
	Align int

	// Fields is populated for structs and unions only.
	Fields   []FieldLayout
	Union    bool
	Flexible bool
}

// LayoutEngine computes memory layout for type graph nodes under a
// fixed platform profile. Results are cached per node; the graph must
// not be mutated after the engine is created.
type LayoutEngine struct {
	Profile Profile
	Graph   *typegraph.Graph

	rep   diag.Reporter
	cache *cache
}

// New creates a LayoutEngine. Opaque-fallback warnings flow through
// rep deduplicated, so each undefined type warns once per run.
func New(profile Profile, g *typegraph.Graph, rep diag.Reporter) *LayoutEngine {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	return &LayoutEngine{
		Profile: profile,
		Graph:   g,
		rep:     diag.NewDedupReporter(rep),
		cache:   newCache(),
	}
}

// layoutState tracks the chain of nodes currently being resolved so
// value cycles are detected instead of recursing forever. Pointer and
// function-pointer members never extend the chain.
type layoutState struct {
	stack []typegraph.NodeID
	index map[typegraph.NodeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[typegraph.NodeID]int, 32)}
}

// LayoutOf computes the layout of any node.
func (e *LayoutEngine) LayoutOf(id typegraph.NodeID) (TypeLayout, error) {
	l, lerr := e.layoutOf(id, newLayoutState())
	if lerr != nil {
		return l, lerr
	}
	return l, nil
}

// SizeOf is a convenience wrapper around LayoutOf.
func (e *LayoutEngine) SizeOf(id typegraph.NodeID) (int, error) {
	l, err := e.LayoutOf(id)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// AlignOf is a convenience wrapper around LayoutOf.
func (e *LayoutEngine) AlignOf(id typegraph.NodeID) (int, error) {
	l, err := e.LayoutOf(id)
	if err != nil {
		return 0, err
	}
	return l.Align, nil
}

// FieldOffset returns the byte offset of the idx-th flattened field of
// an aggregate.
func (e *LayoutEngine) FieldOffset(id typegraph.NodeID, idx int) (int, error) {
	l, err := e.LayoutOf(id)
	if err != nil {
		return 0, err
	}
	if l.Fields == nil {
		return 0, &LayoutError{Kind: LayoutErrNotAggregate, Type: e.nodeName(id)}
	}
	if idx < 0 || idx >= len(l.Fields) {
		return 0, &LayoutError{Kind: LayoutErrNotAggregate, Type: e.nodeName(id)}
	}
	return l.Fields[idx].Offset, nil
}

func (e *LayoutEngine) layoutOf(id typegraph.NodeID, state *layoutState) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache.get(id); ok {
		return cached.Layout, cached.Err
	}
	if at, ok := state.index[id]; ok {
		cycle := make([]string, 0, len(state.stack)-at+1)
		for _, cid := range state.stack[at:] {
			cycle = append(cycle, e.nodeName(cid))
		}
		cycle = append(cycle, e.nodeName(id))
		err := &LayoutError{
			Kind:  LayoutErrRecursiveValue,
			Type:  e.nodeName(id),
			Cycle: cycle,
			Span:  e.Graph.Get(id).Span,
		}
		fallback := TypeLayout{Size: 0, Align: 1}
		e.cache.put(id, cacheEntry{Layout: fallback, Err: err})
		return fallback, err
	}

	state.index[id] = len(state.stack)
	state.stack = append(state.stack, id)
	l, err := e.computeLayout(id, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, id)

	e.cache.put(id, cacheEntry{Layout: l, Err: err})
	return l, err
}

func (e *LayoutEngine) nodeName(id typegraph.NodeID) string {
	n := e.Graph.Get(id)
	if n.Name != "" {
		return n.Name
	}
	return n.Kind.String()
}
