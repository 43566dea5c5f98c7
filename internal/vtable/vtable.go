// Package vtable linearizes COM interface inheritance chains into flat
// virtual-table slot lists and resolves interface GUIDs. Slot order is
// the ABI: base-most methods first, in declaration order, so slot
// indices match what the original headers compile to.
package vtable

import (
	"github.com/google/uuid"

	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// Slot is one virtual-table entry.
type Slot struct {
	Name     string
	Ret      typegraph.NodeID
	Params   []typegraph.Param
	Variadic bool

	// Owner is the interface that declares the method; Index is the
	// absolute slot number counted from the root of the chain.
	Owner typegraph.NodeID
	Index int
}

// Table holds the linearized slots and resolved GUIDs for every
// interface in a graph.
type Table struct {
	slots map[typegraph.NodeID][]Slot
	guids map[typegraph.NodeID]uuid.UUID
}

func newTable() *Table {
	return &Table{
		slots: make(map[typegraph.NodeID][]Slot),
		guids: make(map[typegraph.NodeID]uuid.UUID),
	}
}

// Len reports how many interfaces were linearized.
func (t *Table) Len() int { return len(t.slots) }

// Slots returns the full vtable of an interface, inherited slots
// included, ordered by slot index. Nil for non-interfaces.
func (t *Table) Slots(id typegraph.NodeID) []Slot {
	return t.slots[id]
}

// Local returns only the slots the interface itself declares.
func (t *Table) Local(id typegraph.NodeID) []Slot {
	all := t.slots[id]
	for i, s := range all {
		if s.Owner == id {
			return all[i:]
		}
	}
	return nil
}

// GUID reports the interface identifier parsed from the declaration
// annotation, when one was present and well formed.
func (t *Table) GUID(id typegraph.NodeID) (uuid.UUID, bool) {
	u, ok := t.guids[id]
	return u, ok
}
