package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Entity is any identifiable object in the exported graph.
type Entity interface {
	Kind() Kind
	Id() string
	// Load pulls the entity's data from the site. It runs the underlying
	// fetches at most once; later calls return immediately.
	Load(ctx context.Context) error
	// project returns the full sparse field dump used in the entity's
	// own top-level table.
	project() any
	// ref returns the lightweight form used when the entity appears
	// nested inside another entity's projection.
	ref() any
}

// resource is the common half of every entity type.
type resource struct {
	kind Kind

	mu     sync.Mutex
	id     string
	loaded bool
}

func (r *resource) Kind() Kind {
	return r.kind
}

func (r *resource) Id() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *resource) setId(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

// beginLoad flips the loaded flag, reporting whether this caller won the
// race. The flag is set on entry, not completion: an entity discovered twice
// while its first load is still in flight must not load again.
func (r *resource) beginLoad() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return false
	}
	r.loaded = true
	return true
}

func (r *resource) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func (r *resource) log(msg string) {
	slog.Debug(msg, "kind", r.kind, "id", r.Id())
}

type step func(ctx context.Context) error

// runPipeline executes an entity's load steps in declaration order, stopping
// at the first failure. The entity stays marked loaded either way; retry is
// the transport's concern.
func (r *resource) runPipeline(ctx context.Context, steps []step) error {
	if !r.beginLoad() {
		r.log("already loaded")
		return nil
	}
	r.log("load started")
	for _, s := range steps {
		err := s(ctx)
		if err != nil {
			return err
		}
	}
	r.log("load finished")
	return nil
}

// group joins a fan-out of concurrent child loads. Side effects inside a
// fan-out must stay additive; there is no ordering among the branches.
type group struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func (g *group) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn()
		if err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()
}

func (g *group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
