package annotations

import (
	"fmt"
	"sort"
)

// MergedAnnotation is the merged view of one annotation type over an
// element's meta-annotation hierarchy. Attribute values are fully resolved:
// aliases followed, mirror sets collapsed, nearer declarations overriding
// farther ones, defaults filled in.
type MergedAnnotation struct {
	TypeName string
	Distance int
	Present  bool

	values   map[string]any
	declared map[string]bool
}

// Missing returns the canonical not-present view for a type name.
func Missing(typeName string) *MergedAnnotation {
	return &MergedAnnotation{TypeName: typeName, Distance: -1}
}

// DirectlyPresent reports whether the annotation was declared on the element
// itself rather than inherited through a meta-annotation.
func (ma *MergedAnnotation) DirectlyPresent() bool {
	return ma.Present && ma.Distance == 0
}

// Value returns the resolved value of an attribute.
func (ma *MergedAnnotation) Value(name string) (any, bool) {
	if !ma.Present {
		return nil, false
	}
	v, ok := ma.values[name]
	return v, ok
}

// Declared reports whether an attribute value was explicitly declared
// somewhere in the hierarchy, as opposed to filled from its default.
func (ma *MergedAnnotation) Declared(name string) bool {
	return ma.declared[name]
}

// GetString returns a string attribute.
func (ma *MergedAnnotation) GetString(name string) (string, error) {
	v, ok := ma.Value(name)
	if !ok {
		return "", &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("no such attribute")}
	}
	s, ok := v.(string)
	if !ok {
		return "", &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("value %v is not a string", v)}
	}
	return s, nil
}

// GetInt returns an int attribute.
func (ma *MergedAnnotation) GetInt(name string) (int, error) {
	v, ok := ma.Value(name)
	if !ok {
		return 0, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("no such attribute")}
	}
	i, ok := v.(int)
	if !ok {
		return 0, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("value %v is not an int", v)}
	}
	return i, nil
}

// GetBool returns a bool attribute.
func (ma *MergedAnnotation) GetBool(name string) (bool, error) {
	v, ok := ma.Value(name)
	if !ok {
		return false, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("no such attribute")}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("value %v is not a bool", v)}
	}
	return b, nil
}

// GetStringSlice returns a []string attribute.
func (ma *MergedAnnotation) GetStringSlice(name string) ([]string, error) {
	v, ok := ma.Value(name)
	if !ok {
		return nil, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("no such attribute")}
	}
	s, ok := v.([]string)
	if !ok {
		return nil, &AttributeError{Annotation: ma.TypeName, Attribute: name, Cause: fmt.Errorf("value %v is not a []string", v)}
	}
	return s, nil
}

// Synthesize produces an immutable snapshot suitable for repeated attribute
// lookups without re-walking the hierarchy.
func (ma *MergedAnnotation) Synthesize() Synthesized {
	values := make(map[string]any, len(ma.values))
	for k, v := range ma.values {
		if s, ok := v.([]string); ok {
			v = append([]string(nil), s...)
		}
		values[k] = v
	}

	return Synthesized{
		TypeName: ma.TypeName,
		Distance: ma.Distance,
		values:   values,
	}
}

// Synthesized is a plain value-equal representation of a merged annotation.
// Lookups on missing attributes return zero values.
type Synthesized struct {
	TypeName string
	Distance int

	values map[string]any
}

// String returns a string attribute or "".
func (s Synthesized) String_(name string) string {
	v, _ := s.values[name].(string)
	return v
}

// Int returns an int attribute or 0.
func (s Synthesized) Int(name string) int {
	v, _ := s.values[name].(int)
	return v
}

// Bool returns a bool attribute or false.
func (s Synthesized) Bool(name string) bool {
	v, _ := s.values[name].(bool)
	return v
}

// StringSlice returns a []string attribute or nil.
func (s Synthesized) StringSlice(name string) []string {
	v, _ := s.values[name].([]string)
	return v
}

// AttributeNames returns the resolved attribute names, sorted.
func (s Synthesized) AttributeNames() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merged is the full merged-annotation view of one element.
type Merged struct {
	element Element
	entries map[string]*MergedAnnotation
}

// Merge computes the merged view of every annotation type reachable from
// the element's directly declared annotations. For annotation types present
// through multiple paths the nearest declaration wins; ties go to the
// earliest declaration.
func Merge(reg *Registry, el Element) (*Merged, error) {
	m := &Merged{
		element: el,
		entries: make(map[string]*MergedAnnotation),
	}

	for i := range el.Annotations {
		decl := &el.Annotations[i]

		tm, err := reg.MappingsFor(decl.TypeName)
		if err != nil {
			return nil, err
		}

		resolved, declared, err := computeHierarchy(tm, decl.Values)
		if err != nil {
			return nil, err
		}

		for _, mapping := range tm.Mappings {
			name := mapping.Type.Name
			existing, ok := m.entries[name]
			if ok && existing.Distance <= mapping.Distance {
				continue
			}

			m.entries[name] = &MergedAnnotation{
				TypeName: name,
				Distance: mapping.Distance,
				Present:  true,
				values:   resolved[name],
				declared: declared[name],
			}
		}
	}

	return m, nil
}

// Get returns the merged annotation for a type name, or the not-present view.
func (m *Merged) Get(typeName string) *MergedAnnotation {
	if ma, ok := m.entries[typeName]; ok {
		return ma
	}
	return Missing(typeName)
}

// Present reports whether the annotation type is present, directly or meta.
func (m *Merged) Present(typeName string) bool {
	_, ok := m.entries[typeName]
	return ok
}

// TypeNames returns the present annotation type names, sorted.
func (m *Merged) TypeNames() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// computeHierarchy resolves effective attribute values for every mapping in
// a hierarchy given the root's explicitly declared values.
//
// Resolution order: per-mapping mirror propagation first, then alias
// overrides pushed from nearer mappings into farther ones (nearest wins),
// then defaults.
func computeHierarchy(tm *TypeMappings, rootValues map[string]any) (map[string]map[string]any, map[string]map[string]bool, error) {
	explicit := make(map[string]map[string]any, len(tm.Mappings))

	for _, mapping := range tm.Mappings {
		var src map[string]any
		if mapping.Distance == 0 {
			src = rootValues
		} else if mapping.Source != nil {
			src = mapping.Source.Values
		}

		values := make(map[string]any, len(src))
		for k, v := range src {
			if _, known := mapping.Type.Attributes[k]; !known {
				return nil, nil, &AttributeError{
					Annotation: mapping.Type.Name,
					Attribute:  k,
					Cause:      fmt.Errorf("unknown attribute"),
				}
			}
			values[k] = v
		}

		if err := propagateMirrors(mapping, values); err != nil {
			return nil, nil, err
		}

		explicit[mapping.Type.Name] = values
	}

	// Push alias overrides outward. Mappings are in BFS order, so nearer
	// mappings run first and claim the override slot.
	overridden := make(map[string]map[string]bool, len(tm.Mappings))
	for _, mapping := range tm.Mappings {
		overridden[mapping.Type.Name] = make(map[string]bool)
	}

	for _, mapping := range tm.Mappings {
		for attr, target := range mapping.crossAliases {
			value, ok := explicit[mapping.Type.Name][attr]
			if !ok {
				continue
			}
			if overridden[target.Annotation][target.Attribute] {
				continue
			}

			targetMapping, _ := tm.Get(target.Annotation)
			explicit[target.Annotation][target.Attribute] = value
			overridden[target.Annotation][target.Attribute] = true

			// An override lands on the whole mirror set of its target.
			for _, set := range targetMapping.MirrorSets {
				if !contains(set, target.Attribute) {
					continue
				}
				for _, member := range set {
					explicit[target.Annotation][member] = value
					overridden[target.Annotation][member] = true
				}
			}
		}
	}

	resolved := make(map[string]map[string]any, len(tm.Mappings))
	declared := make(map[string]map[string]bool, len(tm.Mappings))

	for _, mapping := range tm.Mappings {
		name := mapping.Type.Name
		values := make(map[string]any, len(mapping.Type.Attributes))
		decl := make(map[string]bool, len(explicit[name]))

		for attrName, attr := range mapping.Type.Attributes {
			if v, ok := explicit[name][attrName]; ok {
				values[attrName] = v
				decl[attrName] = true
			} else if attr.Default != nil {
				values[attrName] = attr.Default
			}
		}

		resolved[name] = values
		declared[name] = decl
	}

	return resolved, declared, nil
}

// propagateMirrors enforces mirror-set agreement within one annotation
// instance and spreads the agreed value across the whole set.
func propagateMirrors(mapping *TypeMapping, values map[string]any) error {
	for _, set := range mapping.MirrorSets {
		var agreed any
		var agreedAttr string
		found := false

		for _, member := range set {
			v, ok := values[member]
			if !ok {
				continue
			}
			if found && !valuesEqual(agreed, v) {
				return &AliasConfigurationError{
					Annotation: mapping.Type.Name,
					Attribute:  member,
					Reason: fmt.Sprintf("mirrored attributes %q and %q declare conflicting values %v and %v",
						agreedAttr, member, agreed, v),
				}
			}
			if !found {
				agreed = v
				agreedAttr = member
				found = true
			}
		}

		if found {
			for _, member := range set {
				values[member] = agreed
			}
		}
	}

	return nil
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}
