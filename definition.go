package vessel

import (
	"fmt"
	"os"
	"strings"

	"github.com/vesselframework/vessel/internal/annotations"
)

// Component scopes. Any other value names a custom scope registered on the
// container with RegisterScope.
const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

// valueKind discriminates the forms a configured value can take.
type valueKind int

const (
	literalValue valueKind = iota
	refValue
	nestedValue
	placeholderValue
)

// Value is a configured constructor argument or property value. It is either
// a literal, a reference to another component by name, an inline nested
// definition, or an environment placeholder of the form ${NAME:default}.
type Value struct {
	kind    valueKind
	literal any
	ref     string
	nested  *Definition
	expr    string
}

// Literal wraps a plain value.
func Literal(v any) Value {
	return Value{kind: literalValue, literal: v}
}

// Ref references another component by name. The referenced component is
// resolved through the container when the value is needed.
func Ref(name string) Value {
	return Value{kind: refValue, ref: name}
}

// Nested wraps an inline definition. The nested component is anonymous:
// created on demand, never registered, and destroyed with its owner.
func Nested(def *Definition) Value {
	return Value{kind: nestedValue, nested: def}
}

// Placeholder wraps an environment expression, e.g. "${PORT:8080}".
// Expansion happens at creation time via os.Getenv.
func Placeholder(expr string) Value {
	return Value{kind: placeholderValue, expr: expr}
}

// IsRef reports whether the value references another component, and the
// referenced name.
func (v Value) IsRef() (string, bool) {
	return v.ref, v.kind == refValue
}

// IsNested reports whether the value is an inline definition.
func (v Value) IsNested() (*Definition, bool) {
	return v.nested, v.kind == nestedValue
}

// IsLiteral reports whether the value is a plain literal, and the literal.
func (v Value) IsLiteral() (any, bool) {
	return v.literal, v.kind == literalValue
}

// expand resolves a placeholder expression against the environment.
// Non-placeholder values return their literal as-is.
func (v Value) expand() (any, error) {
	if v.kind != placeholderValue {
		return v.literal, nil
	}

	expr := strings.TrimSpace(v.expr)
	if !strings.HasPrefix(expr, "${") || !strings.HasSuffix(expr, "}") {
		return expr, nil
	}

	inner := expr[2 : len(expr)-1]
	name, fallback, hasFallback := strings.Cut(inner, ":")
	if name == "" {
		return nil, fmt.Errorf("placeholder %q has no variable name", v.expr)
	}

	if value, ok := os.LookupEnv(name); ok {
		return value, nil
	}
	if hasFallback {
		return fallback, nil
	}
	return nil, fmt.Errorf("environment variable %s is not set and %q has no default", name, v.expr)
}

// clone deep-copies nested definitions so merged copies stay independent.
func (v Value) clone() Value {
	if v.kind == nestedValue && v.nested != nil {
		c := v
		c.nested = v.nested.Clone()
		return c
	}
	return v
}

// Property binds a value to an exported struct field of the created
// instance. The instance must be a pointer to struct for properties to
// apply.
type Property struct {
	Field string
	Value Value
}

// Definition describes how to build and manage one component.
//
// The pointer-typed flag fields distinguish "unset" from an explicit false
// or zero, which is what makes parent merging work: a child only overrides
// the fields it actually sets.
type Definition struct {
	Name        string
	Parent      string
	Constructor any    // func(...) (T[, error]) or a pre-built instance
	Scope       string // ScopeSingleton, ScopePrototype, or a custom scope name

	LazyInit          *bool
	Primary           *bool
	Priority          *int
	AutowireCandidate *bool

	DependsOn   []string
	Args        []Value
	Properties  []Property
	InitFunc    string // method called after population; Initializer is the interface alternative
	DestroyFunc string // method called on destruction; Disposable is the interface alternative

	Annotations []annotations.Instance

	frozen bool
}

// NewDefinition builds a definition with the given name and constructor,
// applying options. The default scope is singleton.
func NewDefinition(name string, constructor any, opts ...DefinitionOption) *Definition {
	def := &Definition{
		Name:        name,
		Constructor: constructor,
		Scope:       ScopeSingleton,
	}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// DefinitionOption customizes a definition at construction time.
type DefinitionOption func(*Definition)

// WithScope sets the component scope.
func WithScope(scope string) DefinitionOption {
	return func(d *Definition) { d.Scope = scope }
}

// WithParent names the definition this one inherits from.
func WithParent(parent string) DefinitionOption {
	return func(d *Definition) { d.Parent = parent }
}

// WithLazyInit defers singleton creation until first use.
func WithLazyInit(lazy bool) DefinitionOption {
	return func(d *Definition) { d.LazyInit = &lazy }
}

// WithPrimary marks the component as the preferred autowire candidate among
// type matches.
func WithPrimary(primary bool) DefinitionOption {
	return func(d *Definition) { d.Primary = &primary }
}

// WithPriority sets the autowire tie-break priority. Higher wins.
func WithPriority(priority int) DefinitionOption {
	return func(d *Definition) { d.Priority = &priority }
}

// WithAutowireCandidate controls whether the component participates in
// type-based autowiring. Named lookups still find it.
func WithAutowireCandidate(candidate bool) DefinitionOption {
	return func(d *Definition) { d.AutowireCandidate = &candidate }
}

// WithDependsOn forces the named components to be created first.
func WithDependsOn(names ...string) DefinitionOption {
	return func(d *Definition) { d.DependsOn = append(d.DependsOn, names...) }
}

// WithArgs sets positional constructor-argument overrides. Positions
// without an override are autowired.
func WithArgs(args ...Value) DefinitionOption {
	return func(d *Definition) { d.Args = append(d.Args, args...) }
}

// WithProperty binds a value to a field of the created instance.
func WithProperty(field string, value Value) DefinitionOption {
	return func(d *Definition) {
		d.Properties = append(d.Properties, Property{Field: field, Value: value})
	}
}

// WithInitFunc names the method invoked after property population.
func WithInitFunc(method string) DefinitionOption {
	return func(d *Definition) { d.InitFunc = method }
}

// WithDestroyFunc names the method invoked on destruction.
func WithDestroyFunc(method string) DefinitionOption {
	return func(d *Definition) { d.DestroyFunc = method }
}

// WithAnnotations attaches annotation instances to the definition.
func WithAnnotations(instances ...annotations.Instance) DefinitionOption {
	return func(d *Definition) { d.Annotations = append(d.Annotations, instances...) }
}

// Validate checks the definition is registrable on its own terms. Parent
// existence is checked at merge time, not here.
func (d *Definition) Validate() error {
	if d == nil {
		return ErrDefinitionNil
	}
	if d.Name == "" && d.Parent == "" {
		return DefinitionStoreError{Name: d.Name, Cause: ErrNameEmpty}
	}
	if d.Constructor == nil && d.Parent == "" {
		return DefinitionStoreError{Name: d.Name, Cause: ErrConstructorNil}
	}
	return nil
}

// Clone deep-copies the definition. Slices and nested values are copied;
// the constructor reference is shared. The clone is never frozen.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	c := &Definition{
		Name:        d.Name,
		Parent:      d.Parent,
		Constructor: d.Constructor,
		Scope:       d.Scope,
		InitFunc:    d.InitFunc,
		DestroyFunc: d.DestroyFunc,
	}

	c.LazyInit = cloneBool(d.LazyInit)
	c.Primary = cloneBool(d.Primary)
	c.Priority = cloneInt(d.Priority)
	c.AutowireCandidate = cloneBool(d.AutowireCandidate)

	c.DependsOn = append([]string(nil), d.DependsOn...)

	if len(d.Args) > 0 {
		c.Args = make([]Value, len(d.Args))
		for i, arg := range d.Args {
			c.Args[i] = arg.clone()
		}
	}

	if len(d.Properties) > 0 {
		c.Properties = make([]Property, len(d.Properties))
		for i, p := range d.Properties {
			c.Properties[i] = Property{Field: p.Field, Value: p.Value.clone()}
		}
	}

	if len(d.Annotations) > 0 {
		c.Annotations = make([]annotations.Instance, len(d.Annotations))
		for i, inst := range d.Annotations {
			values := make(map[string]any, len(inst.Values))
			for k, v := range inst.Values {
				values[k] = v
			}
			c.Annotations[i] = annotations.Instance{TypeName: inst.TypeName, Values: values}
		}
	}

	return c
}

// Merge overlays this definition onto a merged parent. The child wins
// wherever it sets a field; unset pointer flags, empty strings, and nil
// slices fall through to the parent. Properties merge by field name with
// the child overriding; DependsOn unions preserving parent order first.
func (d *Definition) Merge(parent *Definition) *Definition {
	if parent == nil {
		return d.Clone()
	}

	m := parent.Clone()
	m.Name = d.Name
	m.Parent = d.Parent

	if d.Constructor != nil {
		m.Constructor = d.Constructor
		// A new constructor invalidates inherited positional args.
		if len(d.Args) == 0 {
			m.Args = nil
		}
	}
	if d.Scope != "" {
		m.Scope = d.Scope
	}
	if d.LazyInit != nil {
		m.LazyInit = cloneBool(d.LazyInit)
	}
	if d.Primary != nil {
		m.Primary = cloneBool(d.Primary)
	}
	if d.Priority != nil {
		m.Priority = cloneInt(d.Priority)
	}
	if d.AutowireCandidate != nil {
		m.AutowireCandidate = cloneBool(d.AutowireCandidate)
	}
	if d.InitFunc != "" {
		m.InitFunc = d.InitFunc
	}
	if d.DestroyFunc != "" {
		m.DestroyFunc = d.DestroyFunc
	}

	if len(d.Args) > 0 {
		m.Args = make([]Value, len(d.Args))
		for i, arg := range d.Args {
			m.Args[i] = arg.clone()
		}
	}

	if len(d.DependsOn) > 0 {
		for _, name := range d.DependsOn {
			if !containsString(m.DependsOn, name) {
				m.DependsOn = append(m.DependsOn, name)
			}
		}
	}

	for _, p := range d.Properties {
		replaced := false
		for i := range m.Properties {
			if m.Properties[i].Field == p.Field {
				m.Properties[i] = Property{Field: p.Field, Value: p.Value.clone()}
				replaced = true
				break
			}
		}
		if !replaced {
			m.Properties = append(m.Properties, Property{Field: p.Field, Value: p.Value.clone()})
		}
	}

	if len(d.Annotations) > 0 {
		m.Annotations = append(m.Annotations, d.Clone().Annotations...)
	}

	return m
}

// lazy reports effective lazy-init, defaulting to false.
func (d *Definition) lazy() bool {
	return d.LazyInit != nil && *d.LazyInit
}

// primary reports effective primary, defaulting to false.
func (d *Definition) primary() bool {
	return d.Primary != nil && *d.Primary
}

// priority reports effective priority and whether one is set.
func (d *Definition) priority() (int, bool) {
	if d.Priority == nil {
		return 0, false
	}
	return *d.Priority, true
}

// autowireCandidate reports whether the component participates in type-based
// autowiring, defaulting to true.
func (d *Definition) autowireCandidate() bool {
	return d.AutowireCandidate == nil || *d.AutowireCandidate
}

// singleton reports whether the effective scope is singleton. An empty
// scope means singleton.
func (d *Definition) singleton() bool {
	return d.Scope == "" || d.Scope == ScopeSingleton
}

func (d *Definition) freeze() {
	d.frozen = true
}

// checkMutable gates post-freeze mutation.
func (d *Definition) checkMutable() error {
	if d.frozen {
		return DefinitionStoreError{Name: d.Name, Cause: ErrRegistryFrozen}
	}
	return nil
}

// SetScope changes the scope, failing once the owning registry is frozen.
func (d *Definition) SetScope(scope string) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	d.Scope = scope
	return nil
}

// SetPrimary changes the primary flag, failing once frozen.
func (d *Definition) SetPrimary(primary bool) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	d.Primary = &primary
	return nil
}

// SetPriority changes the priority, failing once frozen.
func (d *Definition) SetPriority(priority int) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	d.Priority = &priority
	return nil
}

// AddProperty appends a property binding, failing once frozen.
func (d *Definition) AddProperty(field string, value Value) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	d.Properties = append(d.Properties, Property{Field: field, Value: value})
	return nil
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
