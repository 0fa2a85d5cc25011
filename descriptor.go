package vessel

import (
	"reflect"

	"github.com/vesselframework/vessel/internal/typecache"
)

// DependencyDescriptor describes one injection point: a constructor
// parameter, a parameter-object field, or a programmatic lookup.
type DependencyDescriptor struct {
	// Type is the declared type at the injection point.
	Type reflect.Type

	// Name is the parameter or field name, used as a tie-breaker when
	// several candidates match the type.
	Name string

	// Qualifier narrows candidates to a specific component name or alias.
	// Unlike Name it is an explicit demand: a qualifier that matches
	// nothing is a miss even when type candidates exist.
	Qualifier string

	// Required controls miss behavior: a required miss is an error, an
	// optional miss yields the zero value.
	Required bool
}

// DescriptorFor builds a required descriptor for a bare type lookup.
func DescriptorFor(t reflect.Type) DependencyDescriptor {
	return DependencyDescriptor{Type: t, Required: true}
}

// collection reports whether the descriptor asks for every matching
// candidate rather than exactly one, and the element type.
func (d DependencyDescriptor) collection() (reflect.Type, bool) {
	if d.Type == nil || d.Type.Kind() != reflect.Slice {
		return nil, false
	}
	// []byte and friends are data, not component collections.
	elem := d.Type.Elem()
	switch elem.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Struct, reflect.Func:
		return elem, true
	}
	return nil, false
}

// String renders the descriptor for error messages and logs.
func (d DependencyDescriptor) String() string {
	s := typecache.FormatType(d.Type)
	if d.Qualifier != "" {
		return s + " (qualifier " + d.Qualifier + ")"
	}
	if d.Name != "" {
		return s + " (" + d.Name + ")"
	}
	return s
}
