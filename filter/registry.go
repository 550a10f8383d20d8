package filter

import (
	"slices"
)

// Well-known orders. Lower runs earlier.
const (
	HighestPrecedence = -1 << 31
	LowestPrecedence  = 1<<31 - 1
)

type entry struct {
	id     string
	order  int
	filter Filter
}

// Registry collects filters before a pipeline is built. The resulting order is total and
// deterministic: ascending order value, then registration sequence for equal values.
// None of the operations are concurrency-safe; build the registry once at startup.
type Registry struct {
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Exists(id string) bool {
	return r.index(id) >= 0
}

// Register adds f under id with the given order.
// Returns false if id is taken or f is nil.
// Register("c", 5, <f>)
//
//	Before: a(1) -> b(10)
//	After: a(1) -> c(5) -> b(10)
func (r *Registry) Register(id string, order int, f Filter) bool {
	if f == nil || r.Exists(id) {
		return false
	}

	pos := len(r.entries)
	for i, e := range r.entries {
		if e.order > order {
			pos = i
			break
		}
	}
	r.entries = slices.Insert(r.entries, pos, entry{id: id, order: order, filter: f})
	return true
}

// InsertAfter places f directly after afterID, sharing its order.
// InsertAfter("a", "c", <f>)
//
//	Before: a -> b
//	After: a -> c -> b
func (r *Registry) InsertAfter(afterID, id string, f Filter) bool {
	if f == nil || r.Exists(id) {
		return false
	}
	index := r.index(afterID)
	if index < 0 {
		return false
	}

	e := entry{id: id, order: r.entries[index].order, filter: f}
	r.entries = slices.Insert(r.entries, index+1, e)
	return true
}

// InsertBefore places f directly before beforeID, sharing its order.
// InsertBefore("b", "c", <f>)
//
//	Before: a -> b
//	After: a -> c -> b
func (r *Registry) InsertBefore(beforeID, id string, f Filter) bool {
	if f == nil || r.Exists(id) {
		return false
	}
	index := r.index(beforeID)
	if index < 0 {
		return false
	}

	e := entry{id: id, order: r.entries[index].order, filter: f}
	r.entries = slices.Insert(r.entries, index, e)
	return true
}

// Delete removes the filter registered under id.
func (r *Registry) Delete(id string) bool {
	index := r.index(id)
	if index < 0 {
		return false
	}
	r.entries = slices.Delete(r.entries, index, index+1)
	return true
}

// Replace swaps the filter registered under id, keeping its position.
func (r *Registry) Replace(id string, f Filter) bool {
	index := r.index(id)
	if f == nil || index < 0 {
		return false
	}
	r.entries[index].filter = f
	return true
}

// IDs returns the registered ids in execution order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Commit freezes the current registrations into a Pipeline. Later changes to the
// registry do not affect pipelines already committed.
func (r *Registry) Commit() *Pipeline {
	filters := make([]Filter, 0, len(r.entries))
	for _, e := range r.entries {
		filters = append(filters, e.filter)
	}
	return &Pipeline{filters: filters}
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.entries, func(e entry) bool { return e.id == id })
}
