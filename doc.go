// Package vessel provides a definition-driven dependency injection
// container for Go applications. Components are described by definitions
// (name, constructor, scope, properties, lifecycle callbacks), resolved by
// type or by name, and managed through a singleton lifecycle with ordered
// destruction.
//
// # Overview
//
// vessel offers:
//   - Named definitions with parent inheritance and aliases
//   - Singleton, prototype and custom scopes
//   - Automatic constructor autowiring with primary/priority tie-breaking
//   - Property population, init and destroy callbacks
//   - Early references for property-binding cycles (opt-in)
//   - YAML definition documents and annotation directives
//   - Thread-safe resolution, prometheus metrics, structured logging
//
// # Basic Usage
//
// Register definitions on a container, build it, and resolve:
//
//	c := vessel.New()
//	c.Register(vessel.NewDefinition("store", NewStore))
//	c.Register(vessel.NewDefinition("service", NewService,
//	    vessel.WithDependsOn("store")))
//
//	if err := c.Build(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	svc, err := vessel.Resolve[*Service](c)
//
// # Definitions
//
// A definition describes how to build and manage one component. Pointer
// typed flags (LazyInit, Primary, Priority, AutowireCandidate) distinguish
// "unset" from explicit values, so child definitions inherit anything they
// do not set from their parent:
//
//	c.Register(vessel.NewDefinition("baseClient", NewClient,
//	    vessel.WithLazyInit(true),
//	    vessel.WithProperty("Timeout", vessel.Placeholder("${TIMEOUT:30}"))))
//	c.Register(vessel.NewDefinition("billingClient", nil,
//	    vessel.WithParent("baseClient"),
//	    vessel.WithProperty("Endpoint", vessel.Literal("billing:443"))))
//
// # Autowiring
//
// Constructor parameters are resolved against registered definitions by
// type. When several candidates match, one marked primary wins, then a
// unique highest priority, then a name match; anything else fails with an
// AmbiguousCandidateError. Slice parameters collect every candidate.
//
// Parameter objects group many dependencies:
//
//	type ServiceParams struct {
//	    vessel.In
//
//	    Store  Store
//	    Cache  Cache `name:"sessionCache"`
//	    Extra  *Extra `optional:"true"`
//	}
//
// # Scopes
//
// Singletons are created once and destroyed with the container, dependents
// before their dependencies. Prototypes are fresh per request and never
// tracked. Custom scopes implement the Scope interface and are registered
// with RegisterScope; vesselhttp builds one per HTTP request.
//
// # Circular References
//
// Constructor-argument cycles are always rejected, at Build time when
// statically visible and at resolution time otherwise. Property-binding
// cycles between singletons are resolvable when the container is built
// with AllowCircularReferences(true): the cycle is broken by handing out
// a reference to the constructed but not yet populated instance.
package vessel
