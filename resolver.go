package vessel

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vesselframework/vessel/internal/reflection"
)

// resolver matches dependency descriptors against registered definitions.
// It only works with metadata; instantiation stays in the container.
type resolver struct {
	registry *Registry
	analyzer *reflection.Analyzer

	// component types are derived from constructor signatures, which never
	// change, so they are cached per definition name.
	types sync.Map // string -> reflect.Type
}

func newResolver(registry *Registry, analyzer *reflection.Analyzer) *resolver {
	return &resolver{registry: registry, analyzer: analyzer}
}

// invalidateTypes drops the derived type cache. Overriding a definition may
// swap in a constructor producing a different type.
func (r *resolver) invalidateTypes() {
	r.types.Range(func(key, _ any) bool {
		r.types.Delete(key)
		return true
	})
}

// componentType determines the type a definition produces: the first
// non-error return of a func constructor, or the instance's own type.
func (r *resolver) componentType(def *Definition) (reflect.Type, error) {
	if cached, ok := r.types.Load(def.Name); ok {
		return cached.(reflect.Type), nil
	}

	var t reflect.Type
	if reflect.TypeOf(def.Constructor).Kind() == reflect.Func {
		ct, err := r.analyzer.ComponentType(def.Constructor)
		if err != nil {
			return nil, DefinitionStoreError{Name: def.Name, Cause: fmt.Errorf("unusable constructor: %w", err)}
		}
		t = ct
	} else {
		t = reflect.TypeOf(def.Constructor)
	}

	r.types.Store(def.Name, t)
	return t, nil
}

// candidatesFor returns the names of every autowire-candidate definition
// whose component type is assignable to the descriptor's type. Names come
// back sorted for determinism.
func (r *resolver) candidatesFor(desc DependencyDescriptor) ([]string, error) {
	if desc.Type == nil {
		return nil, nil
	}

	target := desc.Type
	if elem, ok := desc.collection(); ok {
		target = elem
	}

	var candidates []string
	for _, name := range r.registry.Names() {
		def, err := r.registry.Merged(name)
		if err != nil {
			// A broken parent chain fails that component's own creation;
			// it should not poison unrelated lookups.
			continue
		}
		if !def.autowireCandidate() {
			continue
		}

		ct, err := r.componentType(def)
		if err != nil {
			continue
		}
		if ct.AssignableTo(target) {
			candidates = append(candidates, name)
		}
	}

	if desc.Qualifier != "" {
		canonical := r.registry.Canonical(desc.Qualifier)
		filtered := candidates[:0]
		for _, name := range candidates {
			if name == canonical {
				filtered = append(filtered, name)
			}
		}
		candidates = filtered
	}

	sort.Strings(candidates)
	return candidates, nil
}

// selectOne applies the tie-break chain to a candidate set:
// a single candidate wins outright; then a unique primary; then a unique
// highest priority; then the candidate whose name or alias matches the
// descriptor's name or qualifier. Anything else is ambiguous.
func (r *resolver) selectOne(desc DependencyDescriptor, candidates []string) (string, error) {
	switch len(candidates) {
	case 0:
		return "", DefinitionNotFoundError{
			Name:      desc.nameHint(),
			Type:      desc.Type,
			Available: r.registry.Names(),
		}
	case 1:
		return candidates[0], nil
	}

	var primaries []string
	for _, name := range candidates {
		def, err := r.registry.Merged(name)
		if err != nil {
			continue
		}
		if def.primary() {
			primaries = append(primaries, name)
		}
	}
	if len(primaries) == 1 {
		return primaries[0], nil
	}
	if len(primaries) > 1 {
		return "", AmbiguousCandidateError{Type: desc.Type, Requested: desc.nameHint(), Candidates: primaries}
	}

	if winner, ok := r.highestPriority(candidates); ok {
		return winner, nil
	}

	for _, hint := range []string{desc.Qualifier, desc.Name} {
		if hint == "" {
			continue
		}
		canonical := r.registry.Canonical(hint)
		for _, name := range candidates {
			if name == canonical {
				return name, nil
			}
		}
	}

	return "", AmbiguousCandidateError{Type: desc.Type, Requested: desc.nameHint(), Candidates: candidates}
}

// highestPriority returns the single candidate carrying the strictly
// highest priority. Equal top priorities disambiguate nothing.
func (r *resolver) highestPriority(candidates []string) (string, bool) {
	best := 0
	var winner string
	count := 0

	for _, name := range candidates {
		def, err := r.registry.Merged(name)
		if err != nil {
			continue
		}
		p, ok := def.priority()
		if !ok {
			continue
		}
		switch {
		case count == 0 || p > best:
			best = p
			winner = name
			count = 1
		case p == best:
			count++
		}
	}

	if count == 1 {
		return winner, true
	}
	return "", false
}

// collect orders candidates for slice injection: priority descending, then
// name ascending. Unprioritized candidates sort after prioritized ones.
func (r *resolver) collect(candidates []string) []string {
	type ranked struct {
		name     string
		priority int
		has      bool
	}

	items := make([]ranked, 0, len(candidates))
	for _, name := range candidates {
		item := ranked{name: name}
		if def, err := r.registry.Merged(name); err == nil {
			item.priority, item.has = def.priority()
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.has != b.has {
			return a.has
		}
		if a.has && a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.name < b.name
	})

	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.name
	}
	return out
}

// nameHint is the best human-facing name for error messages.
func (d DependencyDescriptor) nameHint() string {
	if d.Qualifier != "" {
		return d.Qualifier
	}
	return d.Name
}
