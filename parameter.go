package activator

import (
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/junioryono/activator/config"
)

// ParameterKind identifies the variant of a Parameter.
type ParameterKind int

const (
	// LiteralKind parameters supply a fixed value.
	LiteralKind ParameterKind = iota

	// ServiceKind parameters resolve a registered service from the container.
	ServiceKind

	// ActivationKind parameters construct a fresh, tracked instance.
	ActivationKind

	// FactoryKind parameters compute a value from the resolver.
	FactoryKind

	// OptionsKind parameters bind a configuration section into an Options[T].
	OptionsKind
)

// String returns the string representation of the ParameterKind.
func (k ParameterKind) String() string {
	switch k {
	case LiteralKind:
		return "Literal"
	case ServiceKind:
		return "Service"
	case ActivationKind:
		return "Activation"
	case FactoryKind:
		return "Factory"
	case OptionsKind:
		return "Options"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// FactoryFunc computes an argument value. It receives the resolver of the
// scope performing the resolution.
type FactoryFunc func(Resolver) (any, error)

// Parameter describes how one constructor argument is produced.
//
// The set of variants is closed: Literal, ServiceLookup, NestedActivation,
// ComputedFactory and ConfigBinding. Use a Builder or the package level
// helpers (Value, Type, Activate, Factory, OptionsOf) to create them.
type Parameter interface {
	Kind() ParameterKind
	String() string

	parameter()
}

var (
	_ Parameter = Literal{}
	_ Parameter = ServiceLookup{}
	_ Parameter = NestedActivation{}
	_ Parameter = ComputedFactory{}
	_ Parameter = ConfigBinding{}
)

// Literal supplies Value unchanged. A nil Value is allowed.
type Literal struct {
	Value any
}

func (Literal) parameter()          {}
func (Literal) Kind() ParameterKind { return LiteralKind }

func (p Literal) String() string {
	if s, ok := p.Value.(string); ok {
		return fmt.Sprintf("Value(%q)", s)
	}
	return fmt.Sprintf("Value(%v)", p.Value)
}

// ServiceLookup resolves ImplementationType from the container.
// ServiceType is the declared type and is informational.
type ServiceLookup struct {
	ServiceType        reflect.Type
	ImplementationType reflect.Type
}

func (ServiceLookup) parameter()          {}
func (ServiceLookup) Kind() ParameterKind { return ServiceKind }

func (p ServiceLookup) String() string {
	return fmt.Sprintf("Type(%s)", formatPair(p.ServiceType, p.ImplementationType))
}

// NestedActivation constructs a new ImplementationType whose leading
// arguments are described by Parameters. The instance bypasses the
// container's caches and is handed to the activation tracker.
//
// When Parameters is nil the parameter behaves like a ServiceLookup for
// ImplementationType. Constructor, when set, is used instead of the
// constructor registered for ImplementationType.
type NestedActivation struct {
	ServiceType        reflect.Type
	ImplementationType reflect.Type
	Constructor        any
	Parameters         *Specification
}

func (NestedActivation) parameter()          {}
func (NestedActivation) Kind() ParameterKind { return ActivationKind }

func (p NestedActivation) String() string {
	if p.Parameters == nil {
		return fmt.Sprintf("Activate(%s)", formatPair(p.ServiceType, p.ImplementationType))
	}
	return fmt.Sprintf("Activate(%s, %s)", formatPair(p.ServiceType, p.ImplementationType), p.Parameters)
}

// ComputedFactory produces its value by calling Func.
type ComputedFactory struct {
	Func FactoryFunc
}

func (ComputedFactory) parameter()          {}
func (ComputedFactory) Kind() ParameterKind { return FactoryKind }

func (p ComputedFactory) String() string {
	return "Factory"
}

// ConfigBinding binds the configuration section Section into a fresh value
// of Shape and supplies it wrapped in an Options. Create it with OptionsOf.
type ConfigBinding struct {
	Section string
	Shape   reflect.Type

	bind func(cfg config.Configuration) any
}

func (ConfigBinding) parameter()          {}
func (ConfigBinding) Kind() ParameterKind { return OptionsKind }

func (p ConfigBinding) String() string {
	return fmt.Sprintf("Options(%s, %q)", formatType(p.Shape), p.Section)
}

// Specification is an immutable, ordered list of parameters. The i-th
// parameter produces the i-th explicit constructor argument.
type Specification struct {
	params []Parameter
}

// NewSpecification creates a Specification from params.
func NewSpecification(params ...Parameter) Specification {
	return Specification{params: append([]Parameter(nil), params...)}
}

// Len returns the number of parameters.
func (s Specification) Len() int {
	return len(s.params)
}

// At returns the i-th parameter. It panics if i is out of range.
func (s Specification) At(i int) Parameter {
	return s.params[i]
}

// All iterates over the parameters in declaration order.
func (s Specification) All() iter.Seq2[int, Parameter] {
	return func(yield func(int, Parameter) bool) {
		for i, p := range s.params {
			if !yield(i, p) {
				return
			}
		}
	}
}

func (s Specification) String() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatPair(service, implementation reflect.Type) string {
	if service == nil || service == implementation {
		return formatType(implementation)
	}
	return formatType(service) + " => " + formatType(implementation)
}
