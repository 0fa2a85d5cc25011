// Package annotations implements the merged-annotation model: annotation
// types with attribute schemas, meta-annotation composition, attribute
// aliasing with mirror sets, and synthesis of merged views into plain
// immutable values.
package annotations

import (
	"fmt"
	"sort"
	"sync"
)

// Kind is the value kind of an annotation attribute.
type Kind int

const (
	StringKind Kind = iota
	IntKind
	BoolKind
	StringSliceKind
)

func (k Kind) String() string {
	switch k {
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case BoolKind:
		return "bool"
	case StringSliceKind:
		return "[]string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AliasRef names the attribute another attribute is an alias for. An empty
// Annotation refers to the declaring annotation itself (a mirror pair); a
// non-empty Annotation must name a meta-annotation reachable from the
// declaring type.
type AliasRef struct {
	Annotation string
	Attribute  string
}

// Attribute is one attribute of an annotation type.
type Attribute struct {
	Name     string
	Kind     Kind
	Default  any
	AliasFor *AliasRef
}

// Type describes an annotation type: its attribute schema and the
// meta-annotations placed on the type itself.
type Type struct {
	Name       string
	Attributes map[string]Attribute

	// MetaAnnotations are annotation instances declared on this annotation
	// type, forming the composition hierarchy.
	MetaAnnotations []Instance

	// Positional names the attribute a bare positional directive argument
	// binds to. Defaults to "name" when such an attribute exists.
	Positional string
}

// Instance is one use of an annotation: the type name plus the attribute
// values declared explicitly. Absent attributes fall back through alias
// resolution and defaults.
type Instance struct {
	TypeName string
	Values   map[string]any
}

// DeclaredValue returns the explicitly declared value for an attribute.
func (in Instance) DeclaredValue(attr string) (any, bool) {
	v, ok := in.Values[attr]
	return v, ok
}

// Element is an annotated element: anything carrying directly-declared
// annotation instances.
type Element struct {
	Name        string
	Annotations []Instance
}

// Registry owns the known annotation types and the per-type mapping cache.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]*Type
	mappings sync.Map // map[string]*TypeMappings
}

// NewRegistry creates an empty annotation type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register adds an annotation type. Attribute schemas are validated eagerly
// so invalid alias declarations surface at registration time rather than at
// first merge.
func (r *Registry) Register(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("annotation type must have a name")
	}

	if err := validateAttributes(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("annotation type %q already registered", t.Name)
	}

	r.types[t.Name] = t
	r.invalidateMappings()
	return nil
}

// Lookup returns a registered annotation type.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered annotation type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invalidateMappings clears the mapping cache. Caller holds the write lock.
// Mapping results depend on the whole type graph, so any registration is a
// global invalidation.
func (r *Registry) invalidateMappings() {
	r.mappings.Range(func(key, _ any) bool {
		r.mappings.Delete(key)
		return true
	})
}

// validateAttributes checks the locally-verifiable parts of a schema:
// self-aliases, same-annotation alias targets, kind agreement and default
// agreement for mirror pairs. Cross-annotation targets are validated when
// mappings are built, once the full meta chain is known.
func validateAttributes(t *Type) error {
	for name, attr := range t.Attributes {
		if attr.Name != "" && attr.Name != name {
			return fmt.Errorf("annotation %q: attribute map key %q does not match attribute name %q",
				t.Name, name, attr.Name)
		}

		ref := attr.AliasFor
		if ref == nil {
			continue
		}

		if ref.Attribute == "" {
			return &AliasConfigurationError{
				Annotation: t.Name,
				Attribute:  name,
				Reason:     "alias target attribute is empty",
			}
		}

		if ref.Annotation == "" || ref.Annotation == t.Name {
			if ref.Attribute == name {
				return &AliasConfigurationError{
					Annotation: t.Name,
					Attribute:  name,
					Reason:     "attribute cannot alias itself",
				}
			}

			target, ok := t.Attributes[ref.Attribute]
			if !ok {
				return &AliasConfigurationError{
					Annotation: t.Name,
					Attribute:  name,
					Reason:     fmt.Sprintf("alias target %q does not exist", ref.Attribute),
				}
			}
			if target.Kind != attr.Kind {
				return &AliasConfigurationError{
					Annotation: t.Name,
					Attribute:  name,
					Reason: fmt.Sprintf("alias target %q has kind %s, expected %s",
						ref.Attribute, target.Kind, attr.Kind),
				}
			}
			if !valuesEqual(target.Default, attr.Default) {
				return &AliasConfigurationError{
					Annotation: t.Name,
					Attribute:  name,
					Reason:     fmt.Sprintf("mirrored attributes %q and %q declare different defaults", name, ref.Attribute),
				}
			}
		}
	}

	return nil
}

func valuesEqual(a, b any) bool {
	if as, ok := a.([]string); ok {
		bs, ok := b.([]string)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}

	return a == b
}
