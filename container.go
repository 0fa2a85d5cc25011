package vessel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vesselframework/vessel/internal/graph"
	"github.com/vesselframework/vessel/internal/logging"
	"github.com/vesselframework/vessel/internal/reflection"
)

// Container ties the registry, resolver and singleton lifecycle together.
// Definitions go in before Build; instances come out of Get and friends.
//
// A container is safe for concurrent use after Build.
type Container struct {
	registry   *Registry
	analyzer   *reflection.Analyzer
	resolver   *resolver
	singletons *singletonCache
	graph      *graph.Graph
	logger     *slog.Logger
	metrics    *Metrics

	scopesMu sync.RWMutex
	scopes   map[string]Scope

	allowCircular bool
	built         atomic.Bool
	closed        atomic.Bool
}

// New builds an empty container.
func New(opts ...ContainerOption) *Container {
	c := &Container{
		registry: NewRegistry(),
		analyzer: reflection.New(),
		graph:    graph.New(),
		logger:   logging.Nop(),
		scopes:   make(map[string]Scope),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.resolver = newResolver(c.registry, c.analyzer)
	c.singletons = newSingletonCache(c.logger)
	c.registry.setMutationHook(c.resolver.invalidateTypes)

	if c.metrics != nil {
		c.metrics.observeSingletons(c.singletons.count)
		c.registry.setMergedLookupHook(c.metrics.mergedLookup)
	}

	return c
}

// Registry exposes the definition registry for registration and aliasing.
func (c *Container) Registry() *Registry {
	return c.registry
}

// Register is shorthand for registering a definition under its own name.
func (c *Container) Register(def *Definition) error {
	if def == nil {
		return ErrDefinitionNil
	}
	return c.registry.Register(def.Name, def)
}

// RegisterScope installs a custom scope implementation under a name.
// Definitions whose Scope field carries that name dispatch to it.
func (c *Container) RegisterScope(name string, scope Scope) error {
	if name == ScopeSingleton || name == ScopePrototype {
		return ScopeError{Scope: name, Cause: fmt.Errorf("name is reserved")}
	}
	c.scopesMu.Lock()
	defer c.scopesMu.Unlock()
	c.scopes[name] = scope
	return nil
}

// Scope returns a registered custom scope.
func (c *Container) Scope(name string) (Scope, bool) {
	c.scopesMu.RLock()
	defer c.scopesMu.RUnlock()
	s, ok := c.scopes[name]
	return s, ok
}

// Build seals the registry, validates that constructor-argument edges form
// no cycle, and eagerly creates every non-lazy singleton in dependency
// order.
func (c *Container) Build(ctx context.Context) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	if !c.built.CompareAndSwap(false, true) {
		return nil
	}

	c.registry.Freeze()

	for _, name := range c.registry.Names() {
		def, err := c.registry.Merged(name)
		if err != nil {
			return err
		}
		deps, err := c.planDependencies(name, def)
		if err != nil {
			return err
		}
		if err := c.graph.Add(name, deps); err != nil {
			return err
		}
	}

	order, err := c.graph.TopologicalSort()
	if err != nil {
		if cycleErr := c.graph.DetectCycles(); cycleErr != nil {
			return cycleErr
		}
		return err
	}

	c.logger.Info("container built",
		"components", len(order),
		"roots", len(c.graph.Roots()))

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		def, err := c.registry.Merged(name)
		if err != nil {
			continue
		}
		if !def.singleton() || def.lazy() {
			continue
		}
		if _, err := c.Get(name); err != nil {
			return err
		}
	}

	return nil
}

// planDependencies derives the creation-order edges of a definition:
// explicit DependsOn entries, constructor-argument references, and the
// autowire winners for each constructor parameter. Property references are
// deliberately absent; property cycles are legal.
func (c *Container) planDependencies(name string, def *Definition) ([]string, error) {
	var deps []string
	add := func(dep string) {
		dep = c.registry.Canonical(dep)
		if dep != name && !containsString(deps, dep) {
			deps = append(deps, dep)
		}
	}

	for _, dep := range def.DependsOn {
		add(dep)
	}

	for _, arg := range def.Args {
		if ref, ok := arg.IsRef(); ok {
			add(ref)
		}
	}

	if reflect.TypeOf(def.Constructor).Kind() != reflect.Func {
		return deps, nil
	}

	info, err := c.analyzer.Analyze(def.Constructor)
	if err != nil {
		return nil, DefinitionStoreError{Name: name, Cause: err}
	}

	for i, param := range info.Parameters {
		if !info.IsParamObject && i < len(def.Args) {
			continue // explicit override, handled above
		}
		desc := descriptorForParameter(param)
		candidates, err := c.resolver.candidatesFor(desc)
		if err != nil {
			continue
		}
		if _, ok := desc.collection(); ok {
			for _, cand := range candidates {
				add(cand)
			}
			continue
		}
		winner, err := c.resolver.selectOne(desc, candidates)
		if err != nil {
			// Misses and ambiguity surface with full context at creation
			// time; Build only cares about ordering.
			continue
		}
		add(winner)
	}

	return deps, nil
}

// Get resolves a component by name or alias.
func (c *Container) Get(name string) (any, error) {
	inst, err := c.get(name, nil)
	c.observeResolution(err)
	return inst, err
}

// GetByType resolves the unique component assignable to a type.
func (c *Container) GetByType(t reflect.Type) (any, error) {
	inst, err := c.getByDescriptor(DescriptorFor(t), nil, "")
	c.observeResolution(err)
	return inst, err
}

// Contains reports whether a name or alias is registered.
func (c *Container) Contains(name string) bool {
	return c.registry.Contains(name)
}

func (c *Container) observeResolution(err error) {
	if c.metrics != nil {
		c.metrics.resolution(err)
	}
}

// get is the internal resolution entry. path carries the chain of
// components currently being created on this call stack, which is how
// re-entrant cycles are told apart from concurrent requests.
func (c *Container) get(name string, path []string) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	canonical := c.registry.Canonical(name)
	def, err := c.registry.Merged(canonical)
	if err != nil {
		return nil, err
	}

	switch {
	case def.singleton():
		return c.getSingleton(canonical, def, path)
	case def.Scope == ScopePrototype:
		inst, _, err := c.create(canonical, def, append(path, canonical))
		return inst, err
	default:
		return c.getScoped(canonical, def, path)
	}
}

func (c *Container) getSingleton(name string, def *Definition, path []string) (any, error) {
	inst, err := c.singletons.getOrCreate(name, path, func() (any, error) {
		instance, destroy, err := c.create(name, def, append(path, name))
		if err != nil {
			return nil, err
		}
		if destroy != nil {
			c.singletons.registerDisposer(name, destroy)
		}
		if c.metrics != nil {
			c.metrics.created()
		}
		return instance, nil
	})

	if err != nil {
		var creation CreationError
		if asCreation(err, &creation) && creation.Cause == ErrCurrentlyInCreation {
			return nil, &CircularReferenceError{Name: name, Path: append(path, name)}
		}
		return nil, err
	}
	return inst, nil
}

func asCreation(err error, out *CreationError) bool {
	ce, ok := err.(CreationError)
	if ok {
		*out = ce
	}
	return ok
}

func (c *Container) getScoped(name string, def *Definition, path []string) (any, error) {
	scope, ok := c.Scope(def.Scope)
	if !ok {
		return nil, ScopeError{Scope: def.Scope, Cause: fmt.Errorf("no such scope registered")}
	}

	return scope.Get(name, func() (any, func(context.Context) error, error) {
		inst, destroy, err := c.create(name, def, append(path, name))
		if err != nil {
			return nil, nil, err
		}
		if c.metrics != nil {
			c.metrics.created()
		}
		return inst, destroy, nil
	})
}

// create runs the full creation pipeline for one component: forced
// DependsOn ordering, constructor invocation, early-reference exposure,
// property population, initialization, and destruction-callback assembly.
func (c *Container) create(name string, def *Definition, path []string) (any, func(context.Context) error, error) {
	related := ""
	if len(path) > 1 {
		related = path[len(path)-2]
	}

	for _, dep := range def.DependsOn {
		if _, err := c.get(dep, path); err != nil {
			return nil, nil, CreationError{Name: name, Related: related, Cause: err}
		}
		c.singletons.recordDependency(name, c.registry.Canonical(dep))
	}

	instance, children, err := c.instantiate(name, def, path)
	if err != nil {
		return nil, nil, CreationError{Name: name, Related: related, Cause: err}
	}

	// Expose the constructed-but-unpopulated instance so a property cycle
	// back into this component can be satisfied.
	if def.singleton() && c.allowCircular && len(def.Properties) > 0 {
		c.singletons.exposeEarlyFactory(name, func() (any, error) {
			c.logger.Debug("serving early reference", "component", name)
			return instance, nil
		})
	}

	childDisposers, err := c.bindProperties(name, instance, def, path, children)
	if err != nil {
		return nil, nil, err
	}
	children = childDisposers

	if err := c.initialize(name, instance, def); err != nil {
		return nil, nil, CreationError{Name: name, Related: related, Cause: err}
	}

	destroy := c.buildDisposer(name, instance, def, children)

	c.logger.Debug("component created", "component", name, "scope", def.Scope)
	return instance, destroy, nil
}

// instantiate invokes the constructor (or returns the pre-built instance)
// with explicit args and autowired parameters. It returns disposers of
// anonymous nested components created for arguments.
func (c *Container) instantiate(name string, def *Definition, path []string) (any, []func(context.Context) error, error) {
	ctorType := reflect.TypeOf(def.Constructor)
	if ctorType.Kind() != reflect.Func {
		return def.Constructor, nil, nil
	}

	info, err := c.analyzer.Analyze(def.Constructor)
	if err != nil {
		return nil, nil, err
	}

	var children []func(context.Context) error

	args := make([]reflect.Value, 0, len(info.Parameters))
	if info.IsParamObject {
		paramStruct := reflect.New(ctorType.In(0)).Elem()
		for _, param := range info.Parameters {
			value, childDestroy, err := c.resolveParameter(name, def, param, -1, path)
			if err != nil {
				return nil, nil, err
			}
			if childDestroy != nil {
				children = append(children, childDestroy)
			}
			if value.IsValid() {
				paramStruct.Field(param.Index).Set(value)
			}
		}
		args = append(args, paramStruct)
	} else {
		for i, param := range info.Parameters {
			value, childDestroy, err := c.resolveParameter(name, def, param, i, path)
			if err != nil {
				return nil, nil, err
			}
			if childDestroy != nil {
				children = append(children, childDestroy)
			}
			if !value.IsValid() {
				value = reflect.Zero(param.Type)
			}
			args = append(args, value)
		}
	}

	results, err := c.call(name, info.Value, args)
	if err != nil {
		return nil, nil, err
	}

	var instance any
	if info.IsResultObject {
		// Returns describes the Out struct's fields here, not the call
		// results, so the trailing error must be read from the results.
		if info.HasErrorReturn {
			if callErr, _ := results[len(results)-1].Interface().(error); callErr != nil {
				return nil, nil, callErr
			}
		}
		instance = results[0].Interface()
	} else {
		for i, ret := range info.Returns {
			if ret.IsError {
				if callErr, _ := results[i].Interface().(error); callErr != nil {
					return nil, nil, callErr
				}
				continue
			}
			if instance == nil {
				instance = results[i].Interface()
			}
		}
	}

	if instance == nil {
		return nil, nil, fmt.Errorf("constructor produced no instance")
	}
	return instance, children, nil
}

// call invokes a constructor, converting panics into typed errors.
func (c *Container) call(name string, fn reflect.Value, args []reflect.Value) (results []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ConstructorPanicError{Name: name, Panic: r, Stack: debug.Stack()}
		}
	}()
	return fn.Call(args), nil
}

// resolveParameter produces the value for one constructor parameter:
// an explicit Args override when present at that position, otherwise an
// autowired lookup.
func (c *Container) resolveParameter(name string, def *Definition, param reflection.ParameterInfo, position int, path []string) (reflect.Value, func(context.Context) error, error) {
	if position >= 0 && position < len(def.Args) {
		raw, childDestroy, err := c.resolveConfigured(name, def.Args[position], path)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		value, err := convertTo(raw, param.Type)
		if err != nil {
			return reflect.Value{}, nil, TypeMismatchError{
				Expected: param.Type,
				Actual:   reflect.TypeOf(raw),
				Context:  fmt.Sprintf("constructor argument %d of %q", position, name),
			}
		}
		return value, childDestroy, nil
	}

	desc := descriptorForParameter(param)
	inst, err := c.getByDescriptor(desc, path, name)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	if inst == nil {
		return reflect.Zero(param.Type), nil, nil
	}
	return reflect.ValueOf(inst), nil, nil
}

func descriptorForParameter(param reflection.ParameterInfo) DependencyDescriptor {
	return DependencyDescriptor{
		Type:      param.Type,
		Name:      param.Name,
		Qualifier: param.RefName,
		Required:  !param.Optional,
	}
}

// getByDescriptor resolves a descriptor to an instance, handling slice
// collection, optional misses and dependent-edge recording.
func (c *Container) getByDescriptor(desc DependencyDescriptor, path []string, requester string) (any, error) {
	candidates, err := c.resolver.candidatesFor(desc)
	if err != nil {
		return nil, err
	}

	if elem, ok := desc.collection(); ok {
		ordered := c.resolver.collect(candidates)
		slice := reflect.MakeSlice(desc.Type, 0, len(ordered))
		for _, cand := range ordered {
			inst, err := c.get(cand, path)
			if err != nil {
				return nil, err
			}
			c.recordEdge(requester, cand)
			slice = reflect.Append(slice, reflect.ValueOf(inst).Convert(elem))
		}
		return slice.Interface(), nil
	}

	winner, err := c.resolver.selectOne(desc, candidates)
	if err != nil {
		if !desc.Required {
			if _, miss := err.(DefinitionNotFoundError); miss {
				return nil, nil
			}
		}
		return nil, err
	}

	inst, err := c.get(winner, path)
	if err != nil {
		return nil, err
	}
	c.recordEdge(requester, winner)
	return inst, nil
}

func (c *Container) recordEdge(requester, dependency string) {
	if requester != "" {
		c.singletons.recordDependency(requester, dependency)
	}
}

// resolveConfigured materializes a configured Value: literal as-is,
// placeholder expanded from the environment, ref through the container,
// nested built anonymously with its disposer handed back to the owner.
func (c *Container) resolveConfigured(owner string, v Value, path []string) (any, func(context.Context) error, error) {
	if ref, ok := v.IsRef(); ok {
		inst, err := c.get(ref, path)
		if err != nil {
			return nil, nil, err
		}
		c.recordEdge(owner, c.registry.Canonical(ref))
		return inst, nil, nil
	}

	if nested, ok := v.IsNested(); ok {
		nestedName := nested.Name
		if nestedName == "" {
			nestedName = owner + "#nested"
		}
		merged := nested.Clone()
		if merged.Scope == "" {
			merged.Scope = ScopePrototype
		}
		inst, destroy, err := c.create(nestedName, merged, path)
		if err != nil {
			return nil, nil, err
		}
		return inst, destroy, nil
	}

	raw, err := v.expand()
	if err != nil {
		return nil, nil, err
	}
	return raw, nil, nil
}

// bindProperties applies the definition's property table to the instance,
// which must be a pointer to struct when properties exist.
func (c *Container) bindProperties(name string, instance any, def *Definition, path []string, children []func(context.Context) error) ([]func(context.Context) error, error) {
	if len(def.Properties) == 0 {
		return children, nil
	}

	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return children, PropertyBindingError{
			Name:  name,
			Field: def.Properties[0].Field,
			Cause: fmt.Errorf("instance is %s, properties need a pointer to struct", v.Kind()),
		}
	}
	elem := v.Elem()

	for _, prop := range def.Properties {
		field := elem.FieldByName(prop.Field)
		if !field.IsValid() {
			return children, PropertyBindingError{Name: name, Field: prop.Field, Cause: fmt.Errorf("no such field")}
		}
		if !field.CanSet() {
			return children, PropertyBindingError{Name: name, Field: prop.Field, Cause: fmt.Errorf("field is unexported")}
		}

		raw, childDestroy, err := c.resolveConfigured(name, prop.Value, path)
		if err != nil {
			return children, PropertyBindingError{Name: name, Field: prop.Field, Cause: err}
		}
		if childDestroy != nil {
			children = append(children, childDestroy)
		}

		value, err := convertTo(raw, field.Type())
		if err != nil {
			return children, PropertyBindingError{Name: name, Field: prop.Field, Cause: err}
		}
		field.Set(value)
	}

	return children, nil
}

// initialize runs the named init method, falling back to the Initializer
// interface.
func (c *Container) initialize(name string, instance any, def *Definition) error {
	if def.InitFunc != "" {
		return callLifecycleMethod(instance, def.InitFunc, context.Background())
	}
	if init, ok := instance.(Initializer); ok {
		return init.Init(context.Background())
	}
	return nil
}

// buildDisposer assembles the destruction callback: the component's own
// teardown first, then anonymous nested children in reverse creation order.
// Returns nil when there is nothing to tear down.
func (c *Container) buildDisposer(name string, instance any, def *Definition, children []func(context.Context) error) func(context.Context) error {
	var own func(context.Context) error

	switch {
	case def.DestroyFunc != "":
		method := def.DestroyFunc
		own = func(ctx context.Context) error {
			return callLifecycleMethod(instance, method, ctx)
		}
	default:
		if d, ok := instance.(DisposableWithContext); ok {
			own = d.Close
		} else if d, ok := instance.(Disposable); ok {
			own = func(context.Context) error { return d.Close() }
		}
	}

	if own == nil && len(children) == 0 {
		return nil
	}

	return func(ctx context.Context) error {
		var errs []error
		if own != nil {
			if err := own(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			if err := children[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) == 1 {
			return errs[0]
		}
		if len(errs) > 0 {
			return DisposalError{Context: name, Errors: errs}
		}
		return nil
	}
}

// callLifecycleMethod invokes a no-arg, error-returning, or
// context-accepting method by name.
func callLifecycleMethod(instance any, method string, ctx context.Context) error {
	m := reflect.ValueOf(instance).MethodByName(method)
	if !m.IsValid() {
		return fmt.Errorf("method %s not found on %T", method, instance)
	}

	mt := m.Type()
	var args []reflect.Value
	switch mt.NumIn() {
	case 0:
	case 1:
		if !reflect.TypeOf((*context.Context)(nil)).Elem().AssignableTo(mt.In(0)) {
			return fmt.Errorf("method %s takes an unsupported argument", method)
		}
		args = []reflect.Value{reflect.ValueOf(ctx)}
	default:
		return fmt.Errorf("method %s takes too many arguments", method)
	}

	results := m.Call(args)
	for _, r := range results {
		if err, ok := r.Interface().(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// GetInScope resolves a component into a caller-supplied scope instead of
// the scope named by its definition. Request-scoped resolution in
// vesselhttp goes through here with a per-request scope.
func (c *Container) GetInScope(scope Scope, name string) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	canonical := c.registry.Canonical(name)
	def, err := c.registry.Merged(canonical)
	if err != nil {
		c.observeResolution(err)
		return nil, err
	}

	inst, err := scope.Get(canonical, func() (any, func(context.Context) error, error) {
		instance, destroy, err := c.create(canonical, def, []string{canonical})
		if err != nil {
			return nil, nil, err
		}
		if c.metrics != nil {
			c.metrics.created()
		}
		return instance, destroy, nil
	})
	c.observeResolution(err)
	return inst, err
}

// DestroySingleton tears one singleton down, dependents first, and removes
// it from the cache.
func (c *Container) DestroySingleton(ctx context.Context, name string) error {
	return c.singletons.destroySingleton(ctx, c.registry.Canonical(name))
}

// Close destroys all singletons and custom scopes. Errors from individual
// teardowns are aggregated; teardown always runs to completion.
func (c *Container) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrContainerClosed
	}

	var errs []error

	c.scopesMu.Lock()
	scopes := c.scopes
	c.scopes = make(map[string]Scope)
	c.scopesMu.Unlock()

	for name, scope := range scopes {
		if err := scope.Close(ctx); err != nil {
			c.logger.Error("scope teardown failed", "scope", name, "error", err)
			errs = append(errs, fmt.Errorf("scope %s: %w", name, err))
		}
	}

	if err := c.singletons.destroyAll(ctx); err != nil {
		if agg, ok := err.(DisposalError); ok {
			errs = append(errs, agg.Errors...)
		} else {
			errs = append(errs, err)
		}
	}

	c.logger.Info("container closed", "errors", len(errs))

	if len(errs) > 0 {
		return DisposalError{Context: "container", Errors: errs}
	}
	return nil
}

// VisualizeDOT writes the dependency graph in Graphviz DOT form.
func (c *Container) VisualizeDOT(w io.Writer) error {
	return graph.NewVisualizer(c.graph).WriteDOT(w)
}

// VisualizeText writes a colored text rendering of the dependency graph.
func (c *Container) VisualizeText(w io.Writer) error {
	return graph.NewVisualizer(c.graph).WriteText(w)
}

// convertTo coerces a raw configured value to a target type. Strings from
// environment placeholders convert to numeric and boolean targets.
func convertTo(raw any, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}

	v := reflect.ValueOf(raw)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) && compatibleKinds(v.Kind(), target.Kind()) {
		return v.Convert(target), nil
	}

	if s, ok := raw.(string); ok {
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%q is not an integer", s)
			}
			return reflect.ValueOf(n).Convert(target), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%q is not an unsigned integer", s)
			}
			return reflect.ValueOf(n).Convert(target), nil
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%q is not a float", s)
			}
			return reflect.ValueOf(f).Convert(target), nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%q is not a bool", s)
			}
			return reflect.ValueOf(b), nil
		}
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", raw, target)
}

// compatibleKinds keeps Convert from doing surprising lossy conversions
// like string <-> int rune conversion.
func compatibleKinds(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	if from == reflect.String || to == reflect.String {
		return from == to
	}
	if numeric(from) && numeric(to) {
		return true
	}
	return from == to
}
