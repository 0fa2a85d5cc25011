package vessel

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/vesselframework/vessel/internal/annotations"
)

// Builtin annotation type names.
const (
	AnnotationComponent  = "component"
	AnnotationService    = "service"
	AnnotationRepository = "repository"
)

var (
	builtinOnce     sync.Once
	builtinRegistry *annotations.Registry
)

// AnnotationTypes returns the process-wide annotation type registry,
// seeded with the component stereotype and its meta-annotated refinements.
// Custom stereotypes register here and may meta-annotate the builtins.
func AnnotationTypes() *annotations.Registry {
	builtinOnce.Do(func() {
		builtinRegistry = annotations.NewRegistry()

		mustRegisterType(&annotations.Type{
			Name:       AnnotationComponent,
			Positional: "name",
			Attributes: map[string]annotations.Attribute{
				"name":        {Name: "name", Kind: annotations.StringKind},
				"scope":       {Name: "scope", Kind: annotations.StringKind, Default: ScopeSingleton},
				"lazy":        {Name: "lazy", Kind: annotations.BoolKind, Default: false},
				"primary":     {Name: "primary", Kind: annotations.BoolKind, Default: false},
				"priority":    {Name: "priority", Kind: annotations.IntKind},
				"dependsOn":   {Name: "dependsOn", Kind: annotations.StringSliceKind},
				"initFunc":    {Name: "initFunc", Kind: annotations.StringKind},
				"destroyFunc": {Name: "destroyFunc", Kind: annotations.StringKind},
			},
		})

		for _, stereotype := range []string{AnnotationService, AnnotationRepository} {
			mustRegisterType(&annotations.Type{
				Name:       stereotype,
				Positional: "name",
				Attributes: map[string]annotations.Attribute{
					"name": {
						Name: "name",
						Kind: annotations.StringKind,
						AliasFor: &annotations.AliasRef{
							Annotation: AnnotationComponent,
							Attribute:  "name",
						},
					},
				},
				MetaAnnotations: []annotations.Instance{
					{TypeName: AnnotationComponent, Values: map[string]any{}},
				},
			})
		}
	})
	return builtinRegistry
}

func mustRegisterType(t *annotations.Type) {
	if err := builtinRegistry.Register(t); err != nil {
		panic(err)
	}
}

var parserOnce sync.Once
var directiveParser *annotations.Parser

func parser() *annotations.Parser {
	parserOnce.Do(func() {
		directiveParser = annotations.NewParser(AnnotationTypes())
	})
	return directiveParser
}

// ParseDirectives parses vessel directive lines against the builtin
// annotation types.
func ParseDirectives(lines ...string) ([]annotations.Instance, error) {
	instances := make([]annotations.Instance, 0, len(lines))
	for _, line := range lines {
		d, err := parser().Parse(line)
		if err != nil {
			return nil, err
		}
		instances = append(instances, d.Instance)
	}
	return instances, nil
}

// RegisterAnnotated registers a constructor whose definition is described
// by vessel directives, for example:
//
//	c.RegisterAnnotated(NewUserStore,
//	    `//vessel::repository userStore -primary`,
//	    `//vessel::component -dependsOn=db -initFunc=Warm`)
//
// The merged "component" view drives the definition: name, scope, lazy,
// primary, priority, dependsOn, initFunc, destroyFunc. A missing name
// falls back to the constructor's component type, lower-camelcased.
func (c *Container) RegisterAnnotated(constructor any, directives ...string) error {
	if constructor == nil {
		return ErrConstructorNil
	}
	if len(directives) == 0 {
		return fmt.Errorf("at least one directive is required")
	}

	instances, err := ParseDirectives(directives...)
	if err != nil {
		return err
	}

	merged, err := annotations.Merge(AnnotationTypes(), annotations.Element{Annotations: instances})
	if err != nil {
		return err
	}

	comp := merged.Get(AnnotationComponent)
	if !comp.Present {
		return fmt.Errorf("directives carry no component stereotype")
	}

	name, _ := comp.GetString("name")
	if name == "" {
		name, err = c.deriveComponentName(constructor)
		if err != nil {
			return err
		}
	}

	def := NewDefinition(name, constructor, WithAnnotations(instances...))

	if scope, err := comp.GetString("scope"); err == nil && scope != "" {
		def.Scope = scope
	}
	if comp.Declared("lazy") {
		if lazy, err := comp.GetBool("lazy"); err == nil {
			def.LazyInit = &lazy
		}
	}
	if comp.Declared("primary") {
		if primary, err := comp.GetBool("primary"); err == nil {
			def.Primary = &primary
		}
	}
	if comp.Declared("priority") {
		if priority, err := comp.GetInt("priority"); err == nil {
			def.Priority = &priority
		}
	}
	if deps, err := comp.GetStringSlice("dependsOn"); err == nil {
		def.DependsOn = deps
	}
	if initFunc, err := comp.GetString("initFunc"); err == nil {
		def.InitFunc = initFunc
	}
	if destroyFunc, err := comp.GetString("destroyFunc"); err == nil {
		def.DestroyFunc = destroyFunc
	}

	return c.Register(def)
}

// deriveComponentName lower-camelcases the constructor's component type
// name: *UserService becomes "userService".
func (c *Container) deriveComponentName(constructor any) (string, error) {
	var t reflect.Type
	if reflect.TypeOf(constructor).Kind() == reflect.Func {
		ct, err := c.analyzer.ComponentType(constructor)
		if err != nil {
			return "", err
		}
		t = ct
	} else {
		t = reflect.TypeOf(constructor)
	}

	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		return "", fmt.Errorf("cannot derive a component name from %s, name it explicitly", t)
	}

	runes := []rune(name)
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		// Leading initialisms stay grouped: HTTPServer -> httpServer.
		if i+1 < len(runes) && unicode.IsLower(runes[i+1]) && i > 0 {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
		i++
	}
	return strings.TrimSpace(string(runes)), nil
}
