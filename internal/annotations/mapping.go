package annotations

import (
	"fmt"
	"sort"
)

// TypeMapping is one node in the meta-annotation hierarchy of a root
// annotation type. Distance 0 is the root itself; each level of
// meta-annotation adds one.
type TypeMapping struct {
	Type     *Type
	Distance int

	// Source is the instance that declared this annotation on the previous
	// level. Nil for the root mapping.
	Source *Instance

	// MirrorSets groups attribute names of this type that are mutually
	// aliased and therefore must agree in value.
	MirrorSets [][]string

	// crossAliases maps attributes of this type to the meta-annotation
	// attribute they ultimately alias, fully followed through chains.
	crossAliases map[string]AliasRef
}

// TypeMappings is the resolved meta-annotation hierarchy for one root
// annotation type.
type TypeMappings struct {
	Root     *Type
	Mappings []*TypeMapping

	byName map[string]*TypeMapping
}

// MappingsFor computes (or returns cached) type mappings for an annotation
// type: a breadth-first walk of its meta-annotation hierarchy with alias
// validation. The result is immutable and shared.
func (r *Registry) MappingsFor(name string) (*TypeMappings, error) {
	if cached, ok := r.mappings.Load(name); ok {
		return cached.(*TypeMappings), nil
	}

	root, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotRegistered, name)
	}

	tm, err := r.buildMappings(root)
	if err != nil {
		return nil, err
	}

	actual, _ := r.mappings.LoadOrStore(name, tm)
	return actual.(*TypeMappings), nil
}

func (r *Registry) buildMappings(root *Type) (*TypeMappings, error) {
	tm := &TypeMappings{
		Root:   root,
		byName: make(map[string]*TypeMapping),
	}

	// BFS over the meta hierarchy. The first (nearest) occurrence of an
	// annotation type wins; revisits are skipped, which also terminates
	// recursive meta-annotation arrangements.
	type queued struct {
		t        *Type
		distance int
		source   *Instance
	}

	queue := []queued{{t: root, distance: 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if _, seen := tm.byName[item.t.Name]; seen {
			continue
		}

		mapping := &TypeMapping{
			Type:         item.t,
			Distance:     item.distance,
			Source:       item.source,
			crossAliases: make(map[string]AliasRef),
		}
		mapping.MirrorSets = mirrorSets(item.t)

		tm.Mappings = append(tm.Mappings, mapping)
		tm.byName[item.t.Name] = mapping

		for i := range item.t.MetaAnnotations {
			meta := &item.t.MetaAnnotations[i]
			metaType, ok := r.Lookup(meta.TypeName)
			if !ok {
				return nil, fmt.Errorf("%w: %q (meta-annotation of %q)",
					ErrTypeNotRegistered, meta.TypeName, item.t.Name)
			}
			queue = append(queue, queued{t: metaType, distance: item.distance + 1, source: meta})
		}
	}

	if err := resolveCrossAliases(tm); err != nil {
		return nil, err
	}

	return tm, nil
}

// Get returns the mapping for an annotation type within this hierarchy.
func (tm *TypeMappings) Get(name string) (*TypeMapping, bool) {
	m, ok := tm.byName[name]
	return m, ok
}

// mirrorSets computes the connected components of the same-annotation alias
// relation. Every component with more than one member is a mirror set.
func mirrorSets(t *Type) [][]string {
	parent := make(map[string]string, len(t.Attributes))

	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for name := range t.Attributes {
		parent[name] = name
	}

	for name, attr := range t.Attributes {
		ref := attr.AliasFor
		if ref == nil {
			continue
		}
		if ref.Annotation == "" || ref.Annotation == t.Name {
			union(name, ref.Attribute)
		}
	}

	groups := make(map[string][]string)
	for name := range t.Attributes {
		rootName := find(name)
		groups[rootName] = append(groups[rootName], name)
	}

	var sets [][]string
	for _, members := range groups {
		if len(members) > 1 {
			sort.Strings(members)
			sets = append(sets, members)
		}
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i][0] < sets[j][0] })
	return sets
}

// resolveCrossAliases validates attributes aliasing meta-annotation
// attributes and follows alias chains to their terminal target.
func resolveCrossAliases(tm *TypeMappings) error {
	for _, mapping := range tm.Mappings {
		for name, attr := range mapping.Type.Attributes {
			ref := attr.AliasFor
			if ref == nil || ref.Annotation == "" || ref.Annotation == mapping.Type.Name {
				continue
			}

			terminal, kind, err := followAliasChain(tm, mapping.Type.Name, name, *ref, nil)
			if err != nil {
				return err
			}

			if kind != attr.Kind {
				return &AliasConfigurationError{
					Annotation: mapping.Type.Name,
					Attribute:  name,
					Reason: fmt.Sprintf("alias target %s.%s has kind %s, expected %s",
						terminal.Annotation, terminal.Attribute, kind, attr.Kind),
				}
			}

			mapping.crossAliases[name] = terminal
		}
	}

	return nil
}

// followAliasChain walks cross-annotation alias links until reaching an
// attribute with no further cross alias. Cycles are invalid configuration.
func followAliasChain(tm *TypeMappings, fromType, fromAttr string, ref AliasRef, seen []string) (AliasRef, Kind, error) {
	key := ref.Annotation + "." + ref.Attribute
	for _, s := range seen {
		if s == key {
			return AliasRef{}, 0, &AliasConfigurationError{
				Annotation: fromType,
				Attribute:  fromAttr,
				Reason:     "alias chain forms a cycle",
			}
		}
	}
	seen = append(seen, key)

	targetMapping, ok := tm.Get(ref.Annotation)
	if !ok {
		return AliasRef{}, 0, &AliasConfigurationError{
			Annotation: fromType,
			Attribute:  fromAttr,
			Reason:     fmt.Sprintf("alias target annotation %q is not meta-present", ref.Annotation),
		}
	}

	targetAttr, ok := targetMapping.Type.Attributes[ref.Attribute]
	if !ok {
		return AliasRef{}, 0, &AliasConfigurationError{
			Annotation: fromType,
			Attribute:  fromAttr,
			Reason:     fmt.Sprintf("alias target %s.%s does not exist", ref.Annotation, ref.Attribute),
		}
	}

	next := targetAttr.AliasFor
	if next != nil && next.Annotation != "" && next.Annotation != targetMapping.Type.Name {
		return followAliasChain(tm, fromType, fromAttr, *next, seen)
	}

	return ref, targetAttr.Kind, nil
}
