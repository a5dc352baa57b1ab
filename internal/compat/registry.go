package compat

import (
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

// Registry maps live handles of exact-identity objects to their entities.
type Registry interface {
	Lookup(h model.Handle) (*entity.Entity, bool)
}

// HandleRegistry is the in-memory identity registry. Handles are map keys,
// so a non-comparable model.Handle implementation panics on Register.
type HandleRegistry struct {
	byHandle map[model.Handle]*entity.Entity
}

// NewHandleRegistry returns an empty registry.
func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{byHandle: make(map[model.Handle]*entity.Entity)}
}

// Register binds h to e, replacing any previous binding for h.
func (r *HandleRegistry) Register(h model.Handle, e *entity.Entity) {
	r.byHandle[h] = e
}

// Unregister removes the binding for h.
func (r *HandleRegistry) Unregister(h model.Handle) {
	delete(r.byHandle, h)
}

// Forget removes every binding that points at e.
func (r *HandleRegistry) Forget(e *entity.Entity) {
	for h, bound := range r.byHandle {
		if bound == e {
			delete(r.byHandle, h)
		}
	}
}

// Lookup implements Registry. Stale handles are dropped and reported absent.
func (r *HandleRegistry) Lookup(h model.Handle) (*entity.Entity, bool) {
	if h == nil {
		return nil, false
	}
	e, ok := r.byHandle[h]
	if !ok {
		return nil, false
	}
	if !h.Valid() {
		delete(r.byHandle, h)
		return nil, false
	}
	return e, true
}

// Len returns the number of bindings.
func (r *HandleRegistry) Len() int {
	return len(r.byHandle)
}
