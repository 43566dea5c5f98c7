// Package typegraph builds the deduplicated type graph that the layout
// resolver, the vtable linearizer and the emitters all consume.
//
// Nodes live in a flat slice addressed by NodeID. Every distinct type
// has exactly one node: named types share one namespace keyed by name,
// derived types (pointers, arrays) key on their structure. A forward
// declaration interns a placeholder that a later definition upgrades in
// place, so references taken early stay valid.
//
// Typedefs are preserved as their own nodes rather than being chased to
// the underlying type; the emitters decide per language whether to
// render the alias or the target. Names that no owned header declares
// resolve through a well-known table of Windows SDK types, and a name
// that neither path covers degrades to an opaque placeholder node with
// a warning. Only a well-known mapping whose own base resolves to
// nothing fails the run, with an UnresolvedReferenceError.
package typegraph
