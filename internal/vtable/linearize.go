package vtable

import (
	"fmt"
	"strings"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// UnsupportedShapeError means an interface cannot be given a COM
// vtable: it inherits from more than one base, or its base chain
// loops. Either way slot numbering is undefined, so the run aborts.
type UnsupportedShapeError struct {
	Type  string
	Bases []string
	Loop  bool
	Span  source.Span
}

func (e *UnsupportedShapeError) Error() string {
	if e.Loop {
		return fmt.Sprintf("interface %s appears in its own base chain", e.Type)
	}
	return fmt.Sprintf("interface %s inherits from %d bases (%s); COM vtables are single-inheritance",
		e.Type, len(e.Bases), strings.Join(e.Bases, ", "))
}

const (
	stateVisiting = 1
	stateDone     = 2
)

type linearizer struct {
	graph *typegraph.Graph
	rep   diag.Reporter
	table *Table
	state map[typegraph.NodeID]uint8
}

// Linearize resolves vtable slots and GUIDs for every interface in the
// graph. The first unsupported inheritance shape aborts with an
// UnsupportedShapeError; GUID problems only warn.
func Linearize(g *typegraph.Graph, rep diag.Reporter) (*Table, error) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	ln := &linearizer{
		graph: g,
		rep:   rep,
		table: newTable(),
		state: make(map[typegraph.NodeID]uint8),
	}
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		n := g.Get(id)
		if n.Kind != typegraph.KindInterface {
			continue
		}
		if _, err := ln.resolve(id); err != nil {
			return nil, err
		}
		ln.resolveGUID(id, n)
	}
	return ln.table, nil
}

func (ln *linearizer) resolve(id typegraph.NodeID) ([]Slot, error) {
	switch ln.state[id] {
	case stateDone:
		return ln.table.slots[id], nil
	case stateVisiting:
		n := ln.graph.Get(id)
		err := &UnsupportedShapeError{Type: n.Name, Loop: true, Span: n.Span}
		ln.rep.Report(diag.ShapeMultipleBases, diag.SevError, n.Span, err.Error(), nil)
		return nil, err
	}
	ln.state[id] = stateVisiting

	n := ln.graph.Get(id)
	if len(n.Bases) > 1 {
		names := make([]string, 0, len(n.Bases))
		for _, b := range n.Bases {
			names = append(names, ln.graph.Get(b).Name)
		}
		err := &UnsupportedShapeError{Type: n.Name, Bases: names, Span: n.Span}
		rb := diag.ReportError(ln.rep, diag.ShapeMultipleBases, n.Span, err.Error())
		for _, b := range n.Bases {
			bn := ln.graph.Get(b)
			rb.WithNote(bn.Span, fmt.Sprintf("base %s declared here", bn.Name))
		}
		rb.Emit()
		return nil, err
	}

	var slots []Slot
	if base := n.Base(); base != typegraph.InvalidNode {
		bn := ln.graph.Get(base)
		if bn.Kind == typegraph.KindInterface && bn.Defined {
			baseSlots, err := ln.resolve(base)
			if err != nil {
				return nil, err
			}
			slots = append(slots, baseSlots...)
		} else {
			ln.rep.Report(diag.ShapeUnknownBase, diag.SevWarning, n.Span,
				fmt.Sprintf("interface %s inherits from %s, which no owned header defines as an interface; numbering slots from zero", n.Name, bn.Name), nil)
		}
	}

	for _, m := range n.Methods {
		slots = append(slots, Slot{
			Name:     m.Name,
			Ret:      m.Ret,
			Params:   m.Params,
			Variadic: m.Variadic,
			Owner:    id,
			Index:    len(slots),
		})
	}

	ln.state[id] = stateDone
	ln.table.slots[id] = slots
	return slots, nil
}

func (ln *linearizer) resolveGUID(id typegraph.NodeID, n *typegraph.TypeNode) {
	if n.GUIDText == "" {
		return
	}
	u, ok := parseAnnotationGUID(n.GUIDText)
	if !ok {
		ln.rep.Report(diag.ShapeBadGUID, diag.SevWarning, n.Span,
			fmt.Sprintf("interface %s carries a malformed GUID in %q; omitting its IID", n.Name, n.GUIDText), nil)
		return
	}
	ln.table.guids[id] = u
}
