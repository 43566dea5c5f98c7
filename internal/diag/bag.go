package diag

import (
	"fmt"
	"sort"
)

// Bag collects diagnostics up to a fixed cap. Order of insertion is
// preserved until Sort.
type Bag struct {
	items []Diagnostic
	max   int
}

func NewBag(max int) *Bag {
	if max < 1 {
		max = 1
	}
	return &Bag{
		items: make([]Diagnostic, 0, max),
		max:   max,
	}
}

// Add appends a diagnostic, honoring the cap. Reports whether the
// diagnostic was kept.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int {
	return b.max
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the backing slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// HasErrors reports whether any diagnostic is an error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic is a warning or worse.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

// Merge appends all diagnostics from other, growing the cap as needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	if total := len(b.items) + len(other.items); total > b.max {
		b.max = total
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics by file, start, end, severity (errors first
// within a position), then code, for deterministic output.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup removes exact repeats by code and primary span.
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	kept := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%d:%s", d.Code, d.Primary.String())
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, d)
	}
	b.items = kept
}
