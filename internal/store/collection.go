package store

import "sort"

// collection is an ordered set of entities with unique ids. Order is
// insertion order unless a less function is set, in which case the slice is
// re-sorted after every insert. Updates and removals preserve order.
type collection[T any] struct {
	items []T
	index map[string]int
	idOf  func(T) string
	less  func(a, b T) bool
}

func newCollection[T any](idOf func(T) string, less func(a, b T) bool) *collection[T] {
	return &collection[T]{
		index: make(map[string]int),
		idOf:  idOf,
		less:  less,
	}
}

func (c *collection[T]) len() int { return len(c.items) }

func (c *collection[T]) get(id string) (T, bool) {
	if i, ok := c.index[id]; ok {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// upsert inserts item or replaces the entry with the same id in place.
// Returns true when the item was new.
func (c *collection[T]) upsert(item T) bool {
	id := c.idOf(item)
	if i, ok := c.index[id]; ok {
		c.items[i] = item
		return false
	}
	c.items = append(c.items, item)
	c.index[id] = len(c.items) - 1
	if c.less != nil {
		c.resort()
	}
	return true
}

// replace swaps the entry with the same id without re-sorting. Used for
// updates, which preserve existing order. Returns false if id is unknown.
func (c *collection[T]) replace(item T) bool {
	if i, ok := c.index[c.idOf(item)]; ok {
		c.items[i] = item
		return true
	}
	return false
}

func (c *collection[T]) remove(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	c.reindex(i)
	return true
}

// reset replaces the whole collection, dropping duplicate ids (first wins).
func (c *collection[T]) reset(items []T) {
	c.items = c.items[:0]
	c.index = make(map[string]int, len(items))
	for _, item := range items {
		id := c.idOf(item)
		if _, ok := c.index[id]; ok {
			continue
		}
		c.items = append(c.items, item)
		c.index[id] = len(c.items) - 1
	}
	if c.less != nil {
		c.resort()
	}
}

// appendTail appends items that are not already present, keeping existing
// order. Used by pagination, which fetches pages already sorted.
func (c *collection[T]) appendTail(items []T) int {
	added := 0
	for _, item := range items {
		id := c.idOf(item)
		if _, ok := c.index[id]; ok {
			continue
		}
		c.items = append(c.items, item)
		c.index[id] = len(c.items) - 1
		added++
	}
	return added
}

// snapshot returns a copy of the ordered items.
func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) resort() {
	sort.SliceStable(c.items, func(i, j int) bool { return c.less(c.items[i], c.items[j]) })
	c.reindex(0)
}

func (c *collection[T]) reindex(from int) {
	for i := from; i < len(c.items); i++ {
		c.index[c.idOf(c.items[i])] = i
	}
}
