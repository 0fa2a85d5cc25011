package vessel

import (
	"fmt"
	"sort"
	"sync"
)

// mergedCacheLimit bounds the merged-definition cache. The cache is cleared
// wholesale on any registry mutation, so the limit only matters for
// registries with very large definition counts.
const mergedCacheLimit = 4096

// Registry stores component definitions and their aliases, and serves
// merged definitions with parent chains collapsed.
//
// All methods are safe for concurrent use. After Freeze, every mutation
// returns a DefinitionStoreError wrapping ErrRegistryFrozen.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	aliases     map[string]string // alias -> target (may itself be an alias)
	merged      map[string]*Definition
	frozen      bool

	allowOverriding bool
	onMergedLookup  func(hit bool)
	onMutate        func()
}

// RegistryOption customizes registry construction.
type RegistryOption func(*Registry)

// WithOverriding allows a later registration to replace an existing
// definition or alias of the same name.
func WithOverriding(allow bool) RegistryOption {
	return func(r *Registry) { r.allowOverriding = allow }
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		definitions: make(map[string]*Definition),
		aliases:     make(map[string]string),
		merged:      make(map[string]*Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a definition under a name. The definition is cloned, so
// the caller's copy stays mutable without affecting the registry.
func (r *Registry) Register(name string, def *Definition) error {
	if def == nil {
		return DefinitionStoreError{Name: name, Cause: ErrDefinitionNil}
	}
	if name == "" {
		name = def.Name
	}
	if name == "" {
		return DefinitionStoreError{Cause: ErrNameEmpty}
	}

	stored := def.Clone()
	stored.Name = name
	if err := stored.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return DefinitionStoreError{Name: name, Cause: ErrRegistryFrozen}
	}
	if _, exists := r.definitions[name]; exists && !r.allowOverriding {
		return DefinitionStoreError{Name: name, Cause: fmt.Errorf("definition already registered")}
	}
	if _, exists := r.aliases[name]; exists {
		return DefinitionStoreError{Name: name, Cause: fmt.Errorf("name is already bound as an alias")}
	}

	r.definitions[name] = stored
	r.invalidateLocked()
	return nil
}

// RemoveDefinition deletes a definition and any aliases pointing at it.
func (r *Registry) RemoveDefinition(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return DefinitionStoreError{Name: name, Cause: ErrRegistryFrozen}
	}
	if _, exists := r.definitions[name]; !exists {
		return DefinitionNotFoundError{Name: name, Available: r.namesLocked()}
	}

	delete(r.definitions, name)
	for alias, target := range r.aliases {
		if target == name {
			delete(r.aliases, alias)
		}
	}
	r.invalidateLocked()
	return nil
}

// RegisterAlias binds alias to name. The target may itself be an alias;
// chains are allowed as long as they stay acyclic.
func (r *Registry) RegisterAlias(name, alias string) error {
	if alias == "" || name == "" {
		return DefinitionStoreError{Name: name, Cause: ErrNameEmpty}
	}
	if alias == name {
		return DefinitionStoreError{Name: name, Cause: fmt.Errorf("alias %q would point at itself", alias)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return DefinitionStoreError{Name: name, Cause: ErrRegistryFrozen}
	}
	if _, exists := r.definitions[alias]; exists {
		return DefinitionStoreError{Name: name, Cause: fmt.Errorf("alias %q collides with a registered definition", alias)}
	}
	if existing, exists := r.aliases[alias]; exists && existing != name && !r.allowOverriding {
		return DefinitionStoreError{Name: name, Cause: fmt.Errorf("alias %q already bound to %q", alias, existing)}
	}

	// Walking from the target must never come back to the alias.
	seen := map[string]bool{alias: true}
	current := name
	for {
		if seen[current] {
			return DefinitionStoreError{Name: name, Cause: ErrAliasCircular}
		}
		seen[current] = true
		next, ok := r.aliases[current]
		if !ok {
			break
		}
		current = next
	}

	r.aliases[alias] = name
	r.invalidateLocked()
	return nil
}

// Canonical resolves a name through alias chains to the definition name.
// Unknown names resolve to themselves.
func (r *Registry) Canonical(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canonicalLocked(name)
}

func (r *Registry) canonicalLocked(name string) string {
	current := name
	for range r.aliases {
		next, ok := r.aliases[current]
		if !ok {
			break
		}
		current = next
	}
	return current
}

// Aliases returns every alias resolving to the given canonical name, sorted.
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for alias := range r.aliases {
		if r.canonicalLocked(alias) == name {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Merged returns the definition with its parent chain collapsed,
// child-over-parent. Results are cached until the next mutation.
func (r *Registry) Merged(name string) (*Definition, error) {
	canonical := r.Canonical(name)

	r.mu.RLock()
	if cached, ok := r.merged[canonical]; ok {
		hook := r.onMergedLookup
		r.mu.RUnlock()
		if hook != nil {
			hook(true)
		}
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.merged[canonical]; ok {
		if r.onMergedLookup != nil {
			r.onMergedLookup(true)
		}
		return cached, nil
	}

	merged, err := r.mergeLocked(canonical, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if r.frozen {
		merged.freeze()
	}

	if len(r.merged) < mergedCacheLimit {
		r.merged[canonical] = merged
	}
	if r.onMergedLookup != nil {
		r.onMergedLookup(false)
	}
	return merged, nil
}

func (r *Registry) mergeLocked(name string, visiting map[string]bool) (*Definition, error) {
	if visiting[name] {
		return nil, DefinitionStoreError{Name: name, Cause: fmt.Errorf("parent chain forms a cycle")}
	}
	visiting[name] = true

	def, ok := r.definitions[name]
	if !ok {
		return nil, DefinitionNotFoundError{Name: name, Available: r.namesLocked()}
	}

	if def.Parent == "" {
		merged := def.Clone()
		if merged.Scope == "" {
			merged.Scope = ScopeSingleton
		}
		return merged, nil
	}

	parentName := r.canonicalLocked(def.Parent)
	parent, err := r.mergeLocked(parentName, visiting)
	if err != nil {
		if _, notFound := err.(DefinitionNotFoundError); notFound {
			return nil, DefinitionStoreError{Name: name, Cause: fmt.Errorf("%w: %q", ErrParentNotFound, def.Parent)}
		}
		return nil, err
	}

	merged := def.Merge(parent)
	if merged.Scope == "" {
		merged.Scope = ScopeSingleton
	}
	if merged.Constructor == nil {
		return nil, DefinitionStoreError{Name: name, Cause: ErrConstructorNil}
	}
	return merged, nil
}

// Definition returns the raw, unmerged definition registered under a
// canonical name.
func (r *Registry) Definition(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[r.canonicalLocked(name)]
	return def, ok
}

// Contains reports whether a name or alias is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.definitions[r.canonicalLocked(name)]
	return ok
}

// Names returns all registered definition names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze seals the registry. Definitions become immutable and further
// registration fails.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return
	}
	r.frozen = true
	for _, def := range r.definitions {
		def.freeze()
	}
	for _, def := range r.merged {
		def.freeze()
	}
}

// Frozen reports whether the registry has been sealed.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// invalidateLocked drops every cached merged definition and notifies
// downstream caches. Parent chains make per-name invalidation unreliable,
// so mutation clears everything.
func (r *Registry) invalidateLocked() {
	if len(r.merged) > 0 {
		r.merged = make(map[string]*Definition)
	}
	if r.onMutate != nil {
		r.onMutate()
	}
}

// setMutationHook wires a callback fired on every registry mutation, used
// to invalidate caches derived from definitions.
func (r *Registry) setMutationHook(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMutate = fn
}

// setMergedLookupHook wires the metrics observer for merged-cache lookups.
func (r *Registry) setMergedLookupHook(fn func(hit bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMergedLookup = fn
}
