package activator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/junioryono/activator/internal/reflection"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are usually wrapped in one of the typed errors
// below. Match them with errors.Is.

var (
	// Resolution errors.
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceTypeNil      = errors.New("service type cannot be nil")
	ErrConstructorNotFound = errors.New("no constructor registered for type")

	// Lifecycle errors.
	ErrProviderNil       = errors.New("service provider cannot be nil")
	ErrProviderDisposed  = errors.New("service provider has been disposed")
	ErrScopeDisposed     = errors.New("scope has been disposed")
	ErrScopeNotInContext = errors.New("no scope found in context")

	// Registration errors.
	ErrConstructorNil = errors.New("constructor cannot be nil")
	ErrDescriptorNil  = errors.New("descriptor cannot be nil")

	// Activation errors.
	ErrArgumentsConsumed = errors.New("argument sequence has already been consumed")
	ErrUnknownParameter  = errors.New("unknown parameter kind")
	ErrTooManyArguments  = reflection.ErrTooManyArguments
	ErrActivatorNil      = errors.New("activator cannot be nil")
)

var (
	_ error = LifetimeError{}
	_ error = LifetimeConflictError{}
	_ error = AlreadyRegisteredError{}
	_ error = ResolutionError{}
	_ error = TimeoutError{}
	_ error = RegistrationError{}
	_ error = ValidationError{}
	_ error = ModuleError{}
	_ error = TypeMismatchError{}
	_ error = ArgumentError{}
	_ error = ArgumentMismatchError{}
	_ error = ConstructorInvocationError{}
	_ error = ConstructorPanicError{}
	_ error = CircularDependencyError{}
	_ error = BuildError{}
	_ error = DisposalError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// LifetimeConflictError indicates a registration depends on a service with a
// shorter lifetime, for example a Singleton depending on a Scoped service.
type LifetimeConflictError struct {
	ServiceType        reflect.Type
	ServiceLifetime    Lifetime
	DependencyType     reflect.Type
	DependencyLifetime Lifetime
}

func (e LifetimeConflictError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("lifetime conflict: %s (%s) cannot depend on %s (%s)\n\n",
		formatType(e.ServiceType), e.ServiceLifetime,
		formatType(e.DependencyType), e.DependencyLifetime))

	b.WriteString("A singleton depending on a scoped service would capture a single scope's value.\n\n")
	b.WriteString("To resolve this:\n")
	b.WriteString(fmt.Sprintf("  • Change %s to Scoped lifetime\n", formatType(e.ServiceType)))
	b.WriteString(fmt.Sprintf("  • Change %s to Singleton lifetime\n", formatType(e.DependencyType)))
	b.WriteString(fmt.Sprintf("  • Use a factory parameter to resolve %s lazily\n", formatType(e.DependencyType)))

	return b.String()
}

// AlreadyRegisteredError indicates a service type is already registered.
type AlreadyRegisteredError struct {
	ServiceType reflect.Type
}

func (e AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("service %s already registered", formatType(e.ServiceType))
}

// ResolutionError wraps errors that occur while resolving a service.
type ResolutionError struct {
	ServiceType reflect.Type
	Cause       error
	Available   []reflect.Type // registered types, used for suggestions
}

func (e ResolutionError) Error() string {
	var b strings.Builder

	if e.Cause == ErrServiceNotFound {
		b.WriteString(fmt.Sprintf("service not found: %s", formatType(e.ServiceType)))
	} else {
		b.WriteString(fmt.Sprintf("failed to resolve %s", formatType(e.ServiceType)))
	}

	if e.Cause != nil && e.Cause != ErrServiceNotFound {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Available) > 0 {
		similar := findSimilarTypes(e.ServiceType, e.Available)
		if len(similar) > 0 {
			b.WriteString("\n\nDid you mean one of these?\n")
			for _, t := range similar {
				b.WriteString(fmt.Sprintf("  • %s\n", formatType(t)))
			}
		}
	}

	return b.String()
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// findSimilarTypes finds types with similar names using a simple substring/prefix match
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := target.String()
	targetShortName := shortName(target)

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		typeName := t.String()
		typeShortName := shortName(t)

		if targetShortName == typeShortName ||
			strings.Contains(strings.ToLower(typeName), strings.ToLower(targetShortName)) ||
			strings.Contains(strings.ToLower(targetName), strings.ToLower(typeShortName)) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

func shortName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// TimeoutError indicates building the provider timed out.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}

func (e TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// RegistrationError wraps errors during service registration.
type RegistrationError struct {
	ServiceType reflect.Type
	Operation   string // "register", "create-descriptor", ...
	Cause       error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatType(e.ServiceType), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a validation failure.
type ValidationError struct {
	ServiceType reflect.Type
	Cause       error
}

func (e ValidationError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("%s: %v", formatType(e.ServiceType), e.Cause)
	}
	return e.Cause.Error()
}

func (e ValidationError) Unwrap() error {
	return e.Cause
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a type assertion or conversion failed.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// ArgumentError reports which parameter of a specification failed to
// resolve.
type ArgumentError struct {
	Index     int
	Parameter Parameter
	Cause     error
}

func (e ArgumentError) Error() string {
	return fmt.Sprintf("argument %d (%v): %v", e.Index, e.Parameter, e.Cause)
}

func (e ArgumentError) Unwrap() error {
	return e.Cause
}

// ArgumentMismatchError indicates an explicit argument cannot be passed to
// the constructor parameter at the same position.
type ArgumentMismatchError = reflection.ArgumentMismatchError

// ConstructorInvocationError for constructor call failures
type ConstructorInvocationError struct {
	Constructor reflect.Type
	Parameters  []reflect.Type
	Cause       error
}

func (e ConstructorInvocationError) Error() string {
	paramStrs := make([]string, len(e.Parameters))
	for i, p := range e.Parameters {
		paramStrs[i] = formatType(p)
	}
	return fmt.Sprintf("failed to invoke %s with parameters [%s]: %v",
		formatType(e.Constructor), strings.Join(paramStrs, ", "), e.Cause)
}

func (e ConstructorInvocationError) Unwrap() error {
	return e.Cause
}

// ConstructorPanicError indicates a constructor panicked during invocation.
type ConstructorPanicError = reflection.ConstructorPanicError

// CircularDependencyError indicates a dependency cycle. Chain holds the
// types on the cycle when they are known.
type CircularDependencyError struct {
	Chain []reflect.Type
	Cause error
}

func (e CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("circular dependency detected: %v", e.Cause)
		}
		return "circular dependency detected"
	}

	names := make([]string, len(e.Chain))
	for i, t := range e.Chain {
		names[i] = formatType(t)
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(names, " -> "))
}

func (e CircularDependencyError) Unwrap() error {
	return e.Cause
}

// BuildError wraps errors that occur during provider building
type BuildError struct {
	Phase   string // "validation", "graph", ...
	Details string
	Cause   error
}

func (e BuildError) Error() string {
	return fmt.Sprintf("build failed during %s phase: %s: %v", e.Phase, e.Details, e.Cause)
}

func (e BuildError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates disposal errors. Every instance is disposed even
// when a sibling fails.
type DisposalError struct {
	Context string // "provider", "scope", "activation"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
