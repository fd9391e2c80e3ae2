package archive

import (
	"log/slog"
	"sync"
)

// Registry holds at most one in-memory instance per (kind, id) pair for the
// lifetime of one export run. It is append-only: entities are never evicted,
// since the final document must cover the whole reachable graph.
type Registry struct {
	mu      sync.Mutex
	kinds   map[Kind]map[string]Entity
	aliases map[Kind]map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		kinds:   map[Kind]map[string]Entity{},
		aliases: map[Kind]map[string]string{},
	}
}

func (r *Registry) resolve(kind Kind, id string) string {
	if canonical, ok := r.aliases[kind][id]; ok {
		return canonical
	}
	return id
}

// Lookup returns the registered instance for (kind, id), or nil.
func (r *Registry) Lookup(kind Kind, id string) Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kinds[kind][r.resolve(kind, id)]
}

// getOrCreate returns the existing instance for (kind, id) or registers the
// one produced by create. The check-and-insert happens entirely under the
// registry lock: two goroutines discovering the same id concurrently must
// end up sharing one instance. create must not block.
func (r *Registry) getOrCreate(kind Kind, id string, create func(id string) Entity) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = r.resolve(kind, id)
	list := r.kinds[kind]
	if list == nil {
		list = map[string]Entity{}
		r.kinds[kind] = list
	}
	if existing, ok := list[id]; ok {
		return existing, false
	}

	fresh := create(id)
	list[id] = fresh
	return fresh, true
}

// Reindex moves the entry for (kind, oldId) under newId, leaving an alias
// behind so later lookups by the old id still resolve to the same instance.
// Users are the one type that needs this: they are keyed by display name
// until their numeric id surfaces on some unrelated page. Reports whether
// the move happened; an occupied target keeps the original entry.
func (r *Registry) Reindex(kind Kind, oldId, newId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.kinds[kind]
	entry, ok := list[oldId]
	if !ok {
		return false
	}
	if _, taken := list[newId]; taken {
		slog.Warn("reindex target already registered, keeping original",
			"kind", kind, "old_id", oldId, "new_id", newId)
		return false
	}
	delete(list, oldId)
	list[newId] = entry

	aliases := r.aliases[kind]
	if aliases == nil {
		aliases = map[string]string{}
		r.aliases[kind] = aliases
	}
	aliases[oldId] = newId
	return true
}

// AllOf returns a snapshot of every registered instance of one kind.
func (r *Registry) AllOf(kind Kind) map[string]Entity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Entity, len(r.kinds[kind]))
	for id, e := range r.kinds[kind] {
		out[id] = e
	}
	return out
}
