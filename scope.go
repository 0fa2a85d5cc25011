package vessel

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ScopeFactory builds one instance for a scope, returning an optional
// destroy callback the scope runs when it closes.
type ScopeFactory func() (instance any, destroy func(context.Context) error, err error)

// Scope stores instances for a custom lifetime. The container dispatches
// creation of any component whose definition names a registered scope to
// its implementation; the scope owns caching and teardown.
//
// Implementations must be safe for concurrent use.
type Scope interface {
	// Get returns the scoped instance for a name, invoking the factory at
	// most once per scope lifetime.
	Get(name string, factory ScopeFactory) (any, error)

	// Remove drops an instance without running its destroy callback and
	// reports whether one was present.
	Remove(name string) (any, bool)

	// Close destroys all instances in reverse creation order and seals
	// the scope.
	Close(ctx context.Context) error
}

// CachingScope is the standard Scope implementation: one instance per name
// for the scope's lifetime, destroyed in reverse creation order on Close.
// vesselhttp creates one per request.
type CachingScope struct {
	id string

	mu        sync.Mutex
	closed    bool
	instances map[string]any
	disposers map[string]func(context.Context) error
	order     []string
}

// NewCachingScope builds an empty scope with a unique ID.
func NewCachingScope() *CachingScope {
	return &CachingScope{
		id:        uuid.NewString(),
		instances: make(map[string]any),
		disposers: make(map[string]func(context.Context) error),
	}
}

// ID returns the scope's unique identifier, useful for request correlation.
func (s *CachingScope) ID() string {
	return s.id
}

// Get returns the cached instance or builds one via the factory.
func (s *CachingScope) Get(name string, factory ScopeFactory) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ScopeError{Scope: s.id, Cause: ErrScopeClosed}
	}
	if inst, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	// The factory may resolve further scoped components through the
	// container, so it runs unlocked.
	inst, destroy, err := factory()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if destroy != nil {
			_ = destroy(context.Background())
		}
		return nil, ScopeError{Scope: s.id, Cause: ErrScopeClosed}
	}
	if existing, ok := s.instances[name]; ok {
		// Lost a race with a concurrent Get for the same name.
		if destroy != nil {
			_ = destroy(context.Background())
		}
		return existing, nil
	}

	s.instances[name] = inst
	s.order = append(s.order, name)
	if destroy != nil {
		s.disposers[name] = destroy
	}
	return inst, nil
}

// Remove drops an instance without destroying it.
func (s *CachingScope) Remove(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[name]
	if !ok {
		return nil, false
	}
	delete(s.instances, name)
	delete(s.disposers, name)
	order := s.order[:0]
	for _, n := range s.order {
		if n != name {
			order = append(order, n)
		}
	}
	s.order = order
	return inst, true
}

// Close destroys every instance in reverse creation order. Teardown
// failures are collected; every destroy callback still runs.
func (s *CachingScope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ScopeError{Scope: s.id, Cause: ErrScopeClosed}
	}
	s.closed = true
	order := s.order
	disposers := s.disposers
	s.instances = make(map[string]any)
	s.disposers = make(map[string]func(context.Context) error)
	s.order = nil
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		destroy, ok := disposers[order[i]]
		if !ok {
			continue
		}
		if err := destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return DisposalError{Context: "scope", Errors: errs}
	}
	return nil
}
