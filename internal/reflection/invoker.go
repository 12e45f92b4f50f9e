package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

// ErrTooManyArguments is returned when more explicit arguments are supplied
// than the constructor declares parameters for.
var ErrTooManyArguments = errors.New("more explicit arguments than constructor parameters")

// DependencyResolver resolves constructor parameters that were not supplied
// explicitly.
type DependencyResolver interface {
	Get(t reflect.Type) (any, error)
}

// ArgumentMismatchError indicates an explicit argument cannot be passed to
// the constructor parameter at the same position.
type ArgumentMismatchError struct {
	Index     int
	Parameter reflect.Type
	Argument  reflect.Type
}

func (e ArgumentMismatchError) Error() string {
	if e.Argument == nil {
		return fmt.Sprintf("argument %d: nil is not assignable to %v", e.Index, e.Parameter)
	}
	return fmt.Sprintf("argument %d: %v is not assignable to %v", e.Index, e.Argument, e.Parameter)
}

// ConstructorPanicError indicates a constructor panicked during invocation.
type ConstructorPanicError struct {
	Constructor reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructorPanicError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("constructor %v panicked: %v", e.Constructor, e.Panic)
	}
	return fmt.Sprintf("constructor %v panicked: %v\n\nStack trace:\n%s", e.Constructor, e.Panic, e.Stack)
}

// ConstructorInvoker invokes constructors with a mix of explicit and
// resolved arguments.
type ConstructorInvoker struct {
	analyzer *Analyzer
}

// NewConstructorInvoker creates a new constructor invoker.
func NewConstructorInvoker(analyzer *Analyzer) *ConstructorInvoker {
	if analyzer == nil {
		analyzer = New()
	}
	return &ConstructorInvoker{analyzer: analyzer}
}

// Analyzer returns the analyzer backing the invoker.
func (ci *ConstructorInvoker) Analyzer() *Analyzer {
	return ci.analyzer
}

// Invoke calls the constructor described by info. The explicit arguments
// fill the leading parameters in order; every remaining non-variadic
// parameter is obtained from resolver. An omitted variadic tail is passed
// as an empty slice. It returns the produced value.
func (ci *ConstructorInvoker) Invoke(
	info *ConstructorInfo,
	explicit []any,
	resolver DependencyResolver,
) (any, error) {
	if info == nil {
		return nil, fmt.Errorf("constructor info cannot be nil")
	}

	if !info.IsFunc {
		if len(explicit) > 0 {
			return nil, ErrTooManyArguments
		}
		return info.Value.Interface(), nil
	}

	args, err := ci.buildArguments(info, explicit, resolver)
	if err != nil {
		return nil, err
	}

	results, err := ci.call(info, args)
	if err != nil {
		return nil, err
	}

	if info.HasErrorReturn {
		last := results[len(results)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	return results[info.ServiceIndex].Interface(), nil
}

func (ci *ConstructorInvoker) call(info *ConstructorInfo, args []reflect.Value) (results []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ConstructorPanicError{
				Constructor: info.Type,
				Panic:       r,
				Stack:       debug.Stack(),
			}
		}
	}()

	if info.IsVariadic {
		return info.Value.CallSlice(args), nil
	}
	return info.Value.Call(args), nil
}

// buildArguments builds the argument list for a constructor.
func (ci *ConstructorInvoker) buildArguments(
	info *ConstructorInfo,
	explicit []any,
	resolver DependencyResolver,
) ([]reflect.Value, error) {
	if len(explicit) > len(info.Parameters) {
		return nil, fmt.Errorf("%w: %v takes %d, got %d",
			ErrTooManyArguments, info.Type, len(info.Parameters), len(explicit))
	}

	args := make([]reflect.Value, len(info.Parameters))
	for i, param := range info.Parameters {
		if i < len(explicit) {
			value, err := assign(i, param.Type, explicit[i])
			if err != nil {
				return nil, err
			}
			args[i] = value
			continue
		}

		if info.IsVariadic && i == len(info.Parameters)-1 {
			args[i] = reflect.MakeSlice(param.Type, 0, 0)
			continue
		}

		if resolver == nil {
			return nil, fmt.Errorf("parameter %d (%v): no resolver available", i, param.Type)
		}

		value, err := resolver.Get(param.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%v): %w", i, param.Type, err)
		}

		if value == nil {
			if !Nilable(param.Type) {
				return nil, ArgumentMismatchError{Index: i, Parameter: param.Type}
			}
			args[i] = reflect.Zero(param.Type)
			continue
		}
		args[i] = reflect.ValueOf(value)
	}

	return args, nil
}

func assign(index int, paramType reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		if !Nilable(paramType) {
			return reflect.Value{}, ArgumentMismatchError{Index: index, Parameter: paramType}
		}
		return reflect.Zero(paramType), nil
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(paramType) {
		return reflect.Value{}, ArgumentMismatchError{
			Index:     index,
			Parameter: paramType,
			Argument:  v.Type(),
		}
	}
	return v, nil
}

// Nilable reports whether nil is a valid value of t.
func Nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
