// Package diag defines the diagnostic model shared by all pipeline stages.
//
// Diagnostic is the central record: a Severity, a stable numeric Code, a
// message, a primary source.Span and optional Notes with secondary spans.
// Stages emit through a Reporter so emission stays decoupled from storage;
// BagReporter aggregates into a Bag, which supports a cap, deterministic
// sorting and deduplication. DedupReporter suppresses repeats at the source.
//
// The package performs no formatting or IO. Rendering lives in
// internal/diagfmt; orchestration in internal/driver.
//
// The severity split follows the run policy: SevError aborts the run for a
// target, SevWarning records a declaration-local problem that was recovered
// by dropping just that datum, SevInfo is commentary.
package diag
