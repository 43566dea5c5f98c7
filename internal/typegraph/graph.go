package typegraph

import (
	"strconv"

	"github.com/ousttrue/pycpptool/internal/source"
)

// Const is a folded macro constant attached to a unit.
type Const struct {
	Name  string
	Value int64
}

// FreeFunc is a non-member function exported by a header.
type FreeFunc struct {
	Name     string
	Ret      NodeID
	Params   []Param
	Variadic bool
	Span     source.Span
}

// Unit collects what one owned header declares, in declaration order.
// Emitters produce one output module per unit.
type Unit struct {
	File source.FileID
	Path string

	// Stem is the header base name without its extension, the module
	// name the emitters use.
	Stem string

	// Includes lists the stems of owned headers this one includes.
	Includes []string

	Types  []NodeID
	Consts []Const
	Funcs  []FreeFunc
}

// Graph is the deduplicated type graph for one run. Nodes are held in
// a slice so a NodeID stays valid and cheap; the identity index maps
// each distinct type to the node that owns it.
type Graph struct {
	nodes []TypeNode
	index map[string]NodeID
	units []Unit
}

func New() *Graph {
	return &Graph{
		// slot 0 backs InvalidNode
		nodes: make([]TypeNode, 1),
		index: make(map[string]NodeID),
	}
}

// Len reports the number of nodes, the invalid slot included.
func (g *Graph) Len() int { return len(g.nodes) }

// Get returns the node for id. The pointer stays valid for the life of
// the graph; definitions upgrade nodes in place.
func (g *Graph) Get(id NodeID) *TypeNode {
	return &g.nodes[id]
}

// Units returns the per-header declaration lists in parse order.
func (g *Graph) Units() []Unit { return g.units }

func (g *Graph) addUnit(u Unit) *Unit {
	g.units = append(g.units, u)
	return &g.units[len(g.units)-1]
}

// LookupName resolves a declared type name.
func (g *Graph) LookupName(name string) (NodeID, bool) {
	id, ok := g.index[nameKey(name)]
	return id, ok
}

// lookup resolves an identity key without creating anything.
func (g *Graph) lookup(key string) (NodeID, bool) {
	id, ok := g.index[key]
	return id, ok
}

// intern returns the node owning key, appending n when the key is new.
// The existing node wins; callers that need to flesh out a forward
// declaration use Get and mutate in place so references stay stable.
func (g *Graph) intern(key string, n TypeNode) NodeID {
	if id, ok := g.index[key]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.index[key] = id
	return id
}

// append adds an unkeyed node. Used for synthetic aggregates whose
// identity is their position, never their shape.
func (g *Graph) append(n TypeNode) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return id
}

// Identity keys. Named types share one namespace the way the headers
// use them (the tag and the typedef always agree); derived types key on
// their structure so the same derivation dedups.

func nameKey(name string) string { return "n:" + name }

func primKey(p PrimKind) string { return "p:" + p.String() }

func ptrKey(elem NodeID, konst bool) string {
	if konst {
		return "ptr:k:" + strconv.FormatUint(uint64(elem), 10)
	}
	return "ptr:" + strconv.FormatUint(uint64(elem), 10)
}

func arrKey(count int, elem NodeID) string {
	return "arr:" + strconv.Itoa(count) + ":" + strconv.FormatUint(uint64(elem), 10)
}

func fnKey(ret NodeID, params []Param, variadic bool) string {
	key := "fn:" + strconv.FormatUint(uint64(ret), 10)
	for _, p := range params {
		key += "," + strconv.FormatUint(uint64(p.Type), 10)
	}
	if variadic {
		key += ",..."
	}
	return key
}

// Primitive interns the primitive node for p.
func (g *Graph) Primitive(p PrimKind) NodeID {
	return g.intern(primKey(p), TypeNode{
		Kind:    KindPrimitive,
		Name:    p.String(),
		Prim:    p,
		Defined: true,
	})
}

// PointerTo interns a pointer node.
func (g *Graph) PointerTo(elem NodeID, konst bool) NodeID {
	return g.intern(ptrKey(elem, konst), TypeNode{
		Kind:    KindPointer,
		Elem:    elem,
		Const:   konst,
		Defined: true,
	})
}

// ArrayOf interns an array node. count zero is a flexible array.
func (g *Graph) ArrayOf(count int, elem NodeID) NodeID {
	return g.intern(arrKey(count, elem), TypeNode{
		Kind:     KindArray,
		Elem:     elem,
		Count:    count,
		Flexible: count == 0,
		Defined:  true,
	})
}
