package activator

import (
	"fmt"
	"iter"
	"reflect"
	"sync/atomic"

	"github.com/junioryono/activator/config"
)

// Environment is everything a Specification is resolved against.
type Environment struct {
	// Activator resolves lookups and constructs nested activations.
	Activator Activator

	// Configuration feeds configuration bindings. When nil, bindings produce
	// zero values.
	Configuration config.Configuration

	// Tracker receives every instance created by a nested activation. When
	// nil, the caller owns those instances.
	Tracker *Tracker
}

// Arguments returns the lazily resolved argument sequence for spec. Each
// parameter is resolved when the sequence reaches it, in declaration order.
// The first failure is yielded as an ArgumentError and ends the sequence.
//
// The sequence is single use: ranging over it a second time yields
// ErrArgumentsConsumed. Resolve the Specification again for a fresh
// sequence.
func Arguments(spec Specification, env Environment) iter.Seq2[any, error] {
	var consumed atomic.Bool

	return func(yield func(any, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, ErrArgumentsConsumed)
			return
		}

		for i, param := range spec.All() {
			value, err := resolveParameter(param, env)
			if err != nil {
				yield(nil, ArgumentError{Index: i, Parameter: param, Cause: err})
				return
			}

			if !yield(value, nil) {
				return
			}
		}
	}
}

// ResolveArguments resolves every parameter of spec and returns the
// arguments in declaration order.
func ResolveArguments(spec Specification, env Environment) ([]any, error) {
	args := make([]any, 0, spec.Len())
	for value, err := range Arguments(spec, env) {
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return args, nil
}

func resolveParameter(param Parameter, env Environment) (any, error) {
	switch p := param.(type) {
	case Literal:
		return p.Value, nil

	case ServiceLookup:
		return lookup(p.ImplementationType, env)

	case NestedActivation:
		if p.Parameters == nil {
			return lookup(p.ImplementationType, env)
		}
		return activate(p, env)

	case ComputedFactory:
		if p.Func == nil {
			return nil, fmt.Errorf("factory function is nil")
		}
		if env.Activator == nil {
			return nil, ErrActivatorNil
		}
		return p.Func(env.Activator)

	case ConfigBinding:
		if p.bind == nil {
			return nil, fmt.Errorf("%w: options binding for %s was not created with OptionsOf",
				ErrUnknownParameter, formatType(p.Shape))
		}
		return p.bind(env.Configuration), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownParameter, param)
	}
}

func lookup(implementationType reflect.Type, env Environment) (any, error) {
	if env.Activator == nil {
		return nil, ErrActivatorNil
	}
	return env.Activator.Get(implementationType)
}

// activate resolves the child specification first, so inner instances are
// tracked before the instance that depends on them.
func activate(p NestedActivation, env Environment) (any, error) {
	if env.Activator == nil {
		return nil, ErrActivatorNil
	}

	args, err := ResolveArguments(*p.Parameters, env)
	if err != nil {
		return nil, err
	}

	var instance any
	if p.Constructor != nil {
		instance, err = env.Activator.Invoke(p.Constructor, args...)
	} else {
		instance, err = env.Activator.CreateInstance(p.ImplementationType, args...)
	}
	if err != nil {
		return nil, err
	}

	return env.Tracker.Track(instance), nil
}

// ActivateIn constructs a fresh T in s. The arguments described by
// configure fill its leading parameters, the remaining ones are resolved
// from s, and the instance is owned by the scope's activations.
//
//	client, err := activator.ActivateIn[*DatabaseClient](scope, func(b *activator.Builder) {
//	    b.Value("connection1")
//	})
func ActivateIn[T any](s Scope, configure func(*Builder)) (T, error) {
	var zero T

	if s == nil {
		return zero, ErrActivatorNil
	}

	if configure == nil {
		configure = func(*Builder) {}
	}

	t := reflect.TypeFor[T]()
	env := Environment{
		Activator: s,
		Tracker:   s.Activations(),
	}
	if p := s.Provider(); p != nil {
		env.Configuration = p.Configuration()
	}

	args, err := ResolveArguments(NewSpecification(activation(t, t, nil, configure)), env)
	if err != nil {
		return zero, err
	}

	result, ok := args[0].(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: t,
			Actual:   reflect.TypeOf(args[0]),
			Context:  "activation",
		}
	}

	return result, nil
}
