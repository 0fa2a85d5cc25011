package vessel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Initializer is the interface alternative to Definition.InitFunc.
// Init runs after constructor invocation and property population.
type Initializer interface {
	Init(ctx context.Context) error
}

// Disposable is the interface alternative to Definition.DestroyFunc.
type Disposable interface {
	Close() error
}

// DisposableWithContext is Disposable with cancellation support. It is
// preferred over Disposable when both are implemented.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// flight tracks one in-progress singleton creation so concurrent requests
// for the same name block until it finishes and share the outcome.
type flight struct {
	done     chan struct{}
	instance any
	err      error
}

// singletonCache is the singleton store and creation state machine.
//
// A name moves through: absent -> in creation (flight open, optional early
// reference exposed) -> cached instance. Re-entry on the same resolution
// path is a circular reference, served from the early reference when one
// is exposed and failed otherwise. Re-entry from another goroutine waits
// on the flight.
type singletonCache struct {
	mu sync.Mutex

	instances      map[string]any
	earlyInstances map[string]any
	factories      map[string]func() (any, error) // early-reference producers
	inCreation     map[string]bool
	inDestruction  bool
	flights        map[string]*flight
	waiting        map[string]string // flight name -> flight its owner is blocked on

	disposers     map[string]func(context.Context) error
	creationOrder []string

	dependents   map[string][]string // name -> components created on top of it
	dependencies map[string][]string

	logger *slog.Logger
}

func newSingletonCache(logger *slog.Logger) *singletonCache {
	return &singletonCache{
		instances:      make(map[string]any),
		earlyInstances: make(map[string]any),
		factories:      make(map[string]func() (any, error)),
		inCreation:     make(map[string]bool),
		flights:        make(map[string]*flight),
		waiting:        make(map[string]string),
		disposers:      make(map[string]func(context.Context) error),
		dependents:     make(map[string][]string),
		dependencies:   make(map[string][]string),
		logger:         logger,
	}
}

// get returns a completed instance, or an early reference when the
// component is mid-creation and has exposed one.
func (c *singletonCache) get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inst, ok := c.instances[name]; ok {
		return inst, true
	}
	if !c.inCreation[name] {
		return nil, false
	}
	if inst, ok := c.earlyInstances[name]; ok {
		return inst, true
	}
	if factory, ok := c.factories[name]; ok {
		inst, err := factory()
		if err != nil {
			return nil, false
		}
		c.earlyInstances[name] = inst
		delete(c.factories, name)
		return inst, true
	}
	return nil, false
}

// getOrCreate returns the cached instance or runs the factory exactly once.
// path is the caller's current resolution chain: finding name on it means
// the same logical resolution re-entered, which is a cycle rather than a
// concurrent request.
func (c *singletonCache) getOrCreate(name string, path []string, factory func() (any, error)) (any, error) {
	c.mu.Lock()

	if inst, ok := c.instances[name]; ok {
		c.mu.Unlock()
		return inst, nil
	}
	if c.inDestruction {
		c.mu.Unlock()
		return nil, CreationError{Name: name, Cause: ErrCurrentlyInDestruction}
	}

	if c.inCreation[name] {
		if onPath(path, name) {
			// Same resolution chain came back around. An exposed early
			// reference breaks the cycle; otherwise it is fatal.
			if inst, ok := c.earlyInstances[name]; ok {
				c.mu.Unlock()
				return inst, nil
			}
			if ef, ok := c.factories[name]; ok {
				inst, err := ef()
				if err == nil {
					c.earlyInstances[name] = inst
					delete(c.factories, name)
					c.mu.Unlock()
					return inst, nil
				}
			}
			c.mu.Unlock()
			return nil, CreationError{Name: name, Cause: ErrCurrentlyInCreation}
		}

		// Concurrent request from another goroutine. Blocking is only safe
		// when the flight's owner is not itself waiting, directly or through
		// other flights, on a flight this chain owns: every name on path has
		// an open flight held by this caller, so such a wait cycle would
		// never resolve. Serve the early reference in that case, or fail.
		if c.waitWouldDeadlock(name, path) {
			if inst, ok := c.earlyInstances[name]; ok {
				c.mu.Unlock()
				return inst, nil
			}
			if ef, ok := c.factories[name]; ok {
				inst, err := ef()
				if err == nil {
					c.earlyInstances[name] = inst
					delete(c.factories, name)
					c.mu.Unlock()
					return inst, nil
				}
			}
			c.mu.Unlock()
			return nil, CreationError{Name: name, Cause: ErrCurrentlyInCreation}
		}

		f := c.flights[name]
		for _, owned := range path {
			if _, ok := c.flights[owned]; ok {
				c.waiting[owned] = name
			}
		}
		c.mu.Unlock()

		<-f.done

		c.mu.Lock()
		for _, owned := range path {
			if c.waiting[owned] == name {
				delete(c.waiting, owned)
			}
		}
		c.mu.Unlock()
		return f.instance, f.err
	}

	f := &flight{done: make(chan struct{})}
	c.flights[name] = f
	c.inCreation[name] = true
	c.mu.Unlock()

	inst, err := factory()

	c.mu.Lock()
	delete(c.inCreation, name)
	delete(c.flights, name)
	delete(c.factories, name)

	if err == nil {
		// A populated early reference is the canonical instance when one
		// was handed out mid-creation.
		if early, ok := c.earlyInstances[name]; ok {
			inst = early
		}
		c.instances[name] = inst
		c.creationOrder = append(c.creationOrder, name)
	}
	delete(c.earlyInstances, name)
	c.mu.Unlock()

	f.instance = inst
	f.err = err
	close(f.done)

	return inst, err
}

// waitWouldDeadlock walks the wait-for chain starting at the requested
// flight and reports whether it reaches a flight on the caller's own path.
// Caller holds c.mu.
func (c *singletonCache) waitWouldDeadlock(name string, path []string) bool {
	seen := map[string]bool{name: true}
	cur := name
	for {
		next, ok := c.waiting[cur]
		if !ok {
			return false
		}
		if onPath(path, next) {
			return true
		}
		if seen[next] {
			return false
		}
		seen[next] = true
		cur = next
	}
}

// exposeEarlyFactory registers a producer for the early reference of a
// component currently in creation.
func (c *singletonCache) exposeEarlyFactory(name string, factory func() (any, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inCreation[name] {
		c.factories[name] = factory
	}
}

// registerDisposer records the destruction callback for a completed
// singleton.
func (c *singletonCache) registerDisposer(name string, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposers[name] = fn
}

// recordDependency links a dependent to a dependency so destruction can
// run dependents strictly first.
func (c *singletonCache) recordDependency(dependent, dependency string) {
	if dependent == "" || dependent == dependency {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !containsString(c.dependents[dependency], dependent) {
		c.dependents[dependency] = append(c.dependents[dependency], dependent)
	}
	if !containsString(c.dependencies[dependent], dependency) {
		c.dependencies[dependent] = append(c.dependencies[dependent], dependency)
	}
}

// contains reports whether a completed instance exists.
func (c *singletonCache) contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.instances[name]
	return ok
}

// count returns the number of completed singletons.
func (c *singletonCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

// destroyAll tears every singleton down, dependents before their
// dependencies, continuing past individual failures. All failures come
// back aggregated in a DisposalError.
func (c *singletonCache) destroyAll(ctx context.Context) error {
	c.mu.Lock()
	c.inDestruction = true
	order := append([]string(nil), c.creationOrder...)
	c.mu.Unlock()

	var errs []error
	destroyed := make(map[string]bool)

	for i := len(order) - 1; i >= 0; i-- {
		c.destroyRecursive(ctx, order[i], destroyed, &errs)
	}

	c.mu.Lock()
	c.instances = make(map[string]any)
	c.earlyInstances = make(map[string]any)
	c.disposers = make(map[string]func(context.Context) error)
	c.creationOrder = nil
	c.dependents = make(map[string][]string)
	c.dependencies = make(map[string][]string)
	c.inDestruction = false
	c.mu.Unlock()

	if len(errs) > 0 {
		return DisposalError{Context: "container", Errors: errs}
	}
	return nil
}

// DestroySingleton removes one singleton and everything created on top of
// it, dependents first.
func (c *singletonCache) destroySingleton(ctx context.Context, name string) error {
	var errs []error
	c.destroyRecursive(ctx, name, make(map[string]bool), &errs)

	c.mu.Lock()
	delete(c.instances, name)
	order := c.creationOrder[:0]
	for _, n := range c.creationOrder {
		if n != name {
			order = append(order, n)
		}
	}
	c.creationOrder = order
	c.mu.Unlock()

	if len(errs) > 0 {
		return DisposalError{Context: "container", Errors: errs}
	}
	return nil
}

func (c *singletonCache) destroyRecursive(ctx context.Context, name string, destroyed map[string]bool, errs *[]error) {
	if destroyed[name] {
		return
	}
	destroyed[name] = true

	c.mu.Lock()
	dependents := append([]string(nil), c.dependents[name]...)
	disposer := c.disposers[name]
	delete(c.disposers, name)
	delete(c.instances, name)
	c.mu.Unlock()

	for _, dep := range dependents {
		c.destroyRecursive(ctx, dep, destroyed, errs)
	}

	if disposer == nil {
		return
	}

	c.logger.Debug("destroying singleton", "component", name)
	if err := disposer(ctx); err != nil {
		c.logger.Error("singleton teardown failed", "component", name, "error", err)
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
	}
}

func onPath(path []string, name string) bool {
	for _, p := range path {
		if p == name {
			return true
		}
	}
	return false
}
