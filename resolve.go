package vessel

import (
	"reflect"
)

// Resolve returns the unique component assignable to T.
func Resolve[T any](c *Container) (T, error) {
	var zero T

	inst, err := c.GetByType(typeOf[T]())
	if err != nil {
		return zero, err
	}

	typed, ok := inst.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: typeOf[T](),
			Actual:   reflect.TypeOf(inst),
			Context:  "resolve",
		}
	}
	return typed, nil
}

// ResolveNamed returns the component registered under a name or alias,
// checked against T.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	var zero T

	inst, err := c.Get(name)
	if err != nil {
		return zero, err
	}

	typed, ok := inst.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: typeOf[T](),
			Actual:   reflect.TypeOf(inst),
			Context:  "resolve " + name,
		}
	}
	return typed, nil
}

// ResolveAll returns every autowire candidate assignable to T, ordered by
// priority descending then name.
func ResolveAll[T any](c *Container) ([]T, error) {
	inst, err := c.getByDescriptor(DependencyDescriptor{
		Type:     reflect.SliceOf(typeOf[T]()),
		Required: true,
	}, nil, "")
	c.observeResolution(err)
	if err != nil {
		return nil, err
	}
	return inst.([]T), nil
}

// MustResolve is Resolve that panics on failure, for wiring at startup.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
