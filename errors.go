package vessel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/vesselframework/vessel/internal/graph"
	"github.com/vesselframework/vessel/internal/typecache"
)

// Sentinel errors. These are wrapped in typed errors before being returned,
// so callers can match with errors.Is while still getting a message that
// names the component involved.
var (
	// Definition and registry errors.
	ErrDefinitionNil  = errors.New("definition cannot be nil")
	ErrNameEmpty      = errors.New("component name cannot be empty")
	ErrRegistryFrozen = errors.New("registry is frozen for configuration")
	ErrAliasCircular  = errors.New("alias chain forms a cycle")
	ErrConstructorNil = errors.New("constructor cannot be nil")
	ErrParentNotFound = errors.New("parent definition not found")
	ErrNotFound       = errors.New("component not found")
	ErrNoUniqueMatch  = errors.New("no unique matching component")

	// Lifecycle errors.
	ErrContainerClosed        = errors.New("container has been closed")
	ErrScopeClosed            = errors.New("scope has been closed")
	ErrCurrentlyInCreation    = errors.New("component is currently in creation")
	ErrCurrentlyInDestruction = errors.New("singletons are currently in destruction")
)

var (
	_ error = DefinitionStoreError{}
	_ error = DefinitionNotFoundError{}
	_ error = AmbiguousCandidateError{}
	_ error = CreationError{}
	_ error = TypeMismatchError{}
	_ error = ConstructorPanicError{}
	_ error = PropertyBindingError{}
	_ error = DisposalError{}
	_ error = ScopeError{}
	_ error = LoadError{}
	_ error = (*CircularReferenceError)(nil)
)

// CircularReferenceError reports a constructor-argument dependency cycle,
// or a property-binding cycle when early references are disabled.
type CircularReferenceError = graph.CycleError

// DefinitionStoreError indicates a definition could not be registered or
// merged.
type DefinitionStoreError struct {
	Name  string
	Cause error
}

func (e DefinitionStoreError) Error() string {
	return fmt.Sprintf("invalid definition %q: %v", e.Name, e.Cause)
}

func (e DefinitionStoreError) Unwrap() error {
	return e.Cause
}

// DefinitionNotFoundError indicates no definition exists under a name or
// for a requested type.
type DefinitionNotFoundError struct {
	Name      string
	Type      reflect.Type
	Available []string // registered names, for suggestions
}

func (e DefinitionNotFoundError) Error() string {
	var b strings.Builder

	switch {
	case e.Name != "" && e.Type != nil:
		b.WriteString(fmt.Sprintf("component not found: %q (%s)", e.Name, typecache.FormatType(e.Type)))
	case e.Name != "":
		b.WriteString(fmt.Sprintf("component not found: %q", e.Name))
	default:
		b.WriteString(fmt.Sprintf("component not found: %s", typecache.FormatType(e.Type)))
	}

	if similar := similarNames(e.Name, e.Available); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, name := range similar {
			b.WriteString(fmt.Sprintf("  • %s\n", name))
		}
	}

	b.WriteString("\nMake sure the component is registered under the requested name or type.")

	return b.String()
}

func (e DefinitionNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// similarNames finds registered names close to the requested one with a
// simple case-insensitive substring match.
func similarNames(target string, available []string) []string {
	if target == "" || len(available) == 0 {
		return nil
	}

	lower := strings.ToLower(target)

	var similar []string
	for _, name := range available {
		if name == target {
			continue
		}
		candidate := strings.ToLower(name)
		if strings.Contains(candidate, lower) || strings.Contains(lower, candidate) {
			similar = append(similar, name)
		}
		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

// AmbiguousCandidateError indicates multiple autowire candidates matched a
// dependency and no tie-break (primary, priority, name) singled one out.
type AmbiguousCandidateError struct {
	Type       reflect.Type
	Requested  string // dependency name at the injection point, "" for pure type matches
	Candidates []string
}

func (e AmbiguousCandidateError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("ambiguous dependency: %d components match %s",
		len(e.Candidates), typecache.FormatType(e.Type)))
	if e.Requested != "" {
		b.WriteString(fmt.Sprintf(" (requested as %q)", e.Requested))
	}
	b.WriteString("\n\nMatching components:\n")
	for _, name := range e.Candidates {
		b.WriteString(fmt.Sprintf("  • %s\n", name))
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Mark exactly one candidate as primary\n")
	b.WriteString("  • Give one candidate a higher priority than the rest\n")
	b.WriteString("  • Name the dependency after the component you want\n")

	return b.String()
}

func (e AmbiguousCandidateError) Is(target error) bool {
	return target == ErrNoUniqueMatch
}

// CreationError wraps a failure while instantiating a component. Related
// names the component whose creation pulled this one in, when different.
type CreationError struct {
	Name    string
	Related string
	Cause   error
}

func (e CreationError) Error() string {
	if e.Related != "" && e.Related != e.Name {
		return fmt.Sprintf("error creating %q (required by %q): %v", e.Name, e.Related, e.Cause)
	}
	return fmt.Sprintf("error creating %q: %v", e.Name, e.Cause)
}

func (e CreationError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates an instance does not satisfy the type it was
// requested as.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string // "resolve", "property binding", "scope storage", etc.
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s",
		e.Context, typecache.FormatType(e.Expected), typecache.FormatType(e.Actual))
}

// ConstructorPanicError indicates a constructor panicked during invocation.
type ConstructorPanicError struct {
	Name  string
	Panic any
	Stack []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor for %q panicked: %v\n", e.Name, e.Panic))

	b.WriteString("\nConstructors should be pure dependency wiring - avoid operations that can panic.\n")

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Check for nil pointer dereferences in the constructor\n")
	b.WriteString("  • Move failure-prone setup into an init function on the definition\n")

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// PropertyBindingError indicates a property value could not be applied to
// an instance field.
type PropertyBindingError struct {
	Name  string // component name
	Field string
	Cause error
}

func (e PropertyBindingError) Error() string {
	return fmt.Sprintf("cannot bind property %s.%s: %v", e.Name, e.Field, e.Cause)
}

func (e PropertyBindingError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates destroy-callback failures. Destruction keeps
// going after individual failures, so every error is captured here.
type DisposalError struct {
	Context string // "container", "scope"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		b.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return b.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// ScopeError indicates an operation against an unknown or closed scope.
type ScopeError struct {
	Scope string
	Cause error
}

func (e ScopeError) Error() string {
	return fmt.Sprintf("scope %q: %v", e.Scope, e.Cause)
}

func (e ScopeError) Unwrap() error {
	return e.Cause
}

// LoadError wraps configuration-loading failures with their source.
type LoadError struct {
	Source string // file path or "<reader>"
	Cause  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("loading definitions from %s: %v", e.Source, e.Cause)
}

func (e LoadError) Unwrap() error {
	return e.Cause
}
