package layout

import "github.com/ousttrue/pycpptool/internal/typegraph"

// cacheEntry memoizes one resolved layout. Errors are cached too, so a
// broken type costs one computation no matter how many fields mention
// it.
type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	byNode map[typegraph.NodeID]cacheEntry
}

func newCache() *cache {
	return &cache{byNode: make(map[typegraph.NodeID]cacheEntry, 256)}
}

func (c *cache) get(id typegraph.NodeID) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	e, ok := c.byNode[id]
	return e, ok
}

func (c *cache) put(id typegraph.NodeID, e cacheEntry) {
	if c == nil {
		return
	}
	c.byNode[id] = e
}
