package annotations

import (
	"errors"
	"fmt"
)

// ErrTypeNotRegistered reports an annotation type name with no schema.
var ErrTypeNotRegistered = errors.New("annotation type not registered")

// AliasConfigurationError reports an invalid @AliasFor-style declaration or
// a mirror-set conflict: mutually aliased attributes given different
// explicit non-default values.
type AliasConfigurationError struct {
	Annotation string
	Attribute  string
	Reason     string
}

func (e *AliasConfigurationError) Error() string {
	return fmt.Sprintf("invalid alias configuration on %s.%s: %s", e.Annotation, e.Attribute, e.Reason)
}

// AttributeError reports an attribute access or conversion problem.
type AttributeError struct {
	Annotation string
	Attribute  string
	Cause      error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("annotation %s, attribute %s: %v", e.Annotation, e.Attribute, e.Cause)
}

func (e *AttributeError) Unwrap() error {
	return e.Cause
}

// ParseError reports a malformed annotation directive.
type ParseError struct {
	Directive string
	Cause     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse annotation directive %q: %v", e.Directive, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
