package activator

import (
	"fmt"
	"reflect"

	"github.com/junioryono/activator/internal/reflection"
)

// Descriptor describes one registration.
type Descriptor struct {
	// Type is the primary service type: the first As interface or the
	// constructor's result type.
	Type reflect.Type

	// Types are all service types the registration is resolvable as.
	Types []reflect.Type

	// ImplementationType is the type the constructor produces.
	ImplementationType reflect.Type

	// Lifetime determines instance caching behavior
	Lifetime Lifetime

	// Constructor is the reflected function value
	Constructor reflect.Value

	// ConstructorType is the type of the constructor function
	ConstructorType reflect.Type

	// Dependencies are the parameter types the container supplies, that is
	// every non-variadic parameter after the explicit ones.
	Dependencies []reflect.Type

	// IsInstance indicates if this descriptor holds an instance value
	IsInstance bool

	// Instance is the actual instance value when IsInstance is true
	Instance any

	// Parameters builds the explicit leading arguments. It is nil for
	// plain registrations.
	Parameters func(*Builder)

	info        *reflection.ConstructorInfo
	explicit    int            // leading parameters supplied by Parameters
	lookups     []reflect.Type // container lookups made by Parameters
	activations []nestedProbe  // nested activations made by Parameters
}

// nestedProbe is a nested activation found in a registration's parameters.
type nestedProbe struct {
	implementation reflect.Type
	constructor    any
	explicit       int
}

// newDescriptor creates a new descriptor from a constructor or instance
// with the given lifetime and options.
func newDescriptor(service any, lifetime Lifetime, analyzer *reflection.Analyzer, opts ...AddOption) (*Descriptor, error) {
	if service == nil {
		return nil, ValidationError{Cause: ErrConstructorNil}
	}

	options := &addOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyAddOption(options)
		}
	}

	if err := options.Validate(); err != nil {
		return nil, ValidationError{Cause: err}
	}

	value := reflect.ValueOf(service)
	if value.Kind() == reflect.Pointer && value.IsNil() {
		return nil, ValidationError{Cause: ErrConstructorNil}
	}

	if analyzer == nil {
		analyzer = reflection.New()
	}

	info, err := analyzer.Analyze(service)
	if err != nil {
		return nil, ValidationError{Cause: err}
	}

	implementation := info.ServiceType()
	d := &Descriptor{
		ImplementationType: implementation,
		Lifetime:           lifetime,
		Constructor:        value,
		ConstructorType:    value.Type(),
		IsInstance:         !info.IsFunc,
		Parameters:         options.Parameters,
		info:               info,
	}

	if d.IsInstance {
		d.Instance = service
	}

	if len(options.As) > 0 {
		for _, iface := range options.asTypes() {
			if !implementation.Implements(iface) {
				return nil, ValidationError{
					ServiceType: implementation,
					Cause:       fmt.Errorf("%s does not implement %s", formatType(implementation), formatType(iface)),
				}
			}
			d.Types = append(d.Types, iface)
		}
	} else {
		d.Types = []reflect.Type{implementation}
	}
	d.Type = d.Types[0]

	if d.Parameters != nil {
		if d.IsInstance {
			return nil, ValidationError{
				ServiceType: d.Type,
				Cause:       fmt.Errorf("parameters cannot be used with an instance registration"),
			}
		}

		if err := d.probeParameters(); err != nil {
			return nil, err
		}
	}

	d.Dependencies = info.Dependencies(d.explicit)

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// probeParameters builds the registration's specification once to learn
// how many leading parameters it supplies and which services it looks up.
func (d *Descriptor) probeParameters() error {
	b := NewBuilder()
	d.Parameters(b)
	spec := b.Build()

	if spec.Len() > len(d.info.Parameters) {
		return ValidationError{
			ServiceType: d.Type,
			Cause: fmt.Errorf("%w: %s takes %d, parameters supply %d",
				ErrTooManyArguments, formatType(d.ConstructorType), len(d.info.Parameters), spec.Len()),
		}
	}

	d.explicit = spec.Len()
	d.lookups, d.activations = nil, nil
	d.collect(spec)

	return nil
}

// collect records the container lookups and nested activations of spec,
// descending into nested specifications.
func (d *Descriptor) collect(spec Specification) {
	for _, p := range spec.All() {
		switch p := p.(type) {
		case ServiceLookup:
			d.lookups = append(d.lookups, p.ImplementationType)
		case NestedActivation:
			if p.Parameters == nil {
				d.lookups = append(d.lookups, p.ImplementationType)
				continue
			}

			d.activations = append(d.activations, nestedProbe{
				implementation: p.ImplementationType,
				constructor:    p.Constructor,
				explicit:       p.Parameters.Len(),
			})
			d.collect(*p.Parameters)
		}
	}
}

// Validate validates the descriptor's configuration.
func (d *Descriptor) Validate() error {
	if d.Type == nil {
		return ValidationError{Cause: ErrDescriptorNil}
	}

	if !d.Constructor.IsValid() || d.ConstructorType == nil {
		return ValidationError{ServiceType: d.Type, Cause: ErrConstructorNil}
	}

	if !d.Lifetime.IsValid() {
		return LifetimeError{Value: d.Lifetime}
	}

	for _, t := range d.Types {
		switch t.Kind() {
		case reflect.Chan:
			return ValidationError{
				ServiceType: d.Type,
				Cause:       fmt.Errorf("channel type %s is not supported as a service type", t),
			}
		case reflect.UnsafePointer:
			return ValidationError{
				ServiceType: d.Type,
				Cause:       fmt.Errorf("unsafe pointer is not supported as a service type"),
			}
		}
	}

	return nil
}

// String returns a short description used in diagnostics.
func (d *Descriptor) String() string {
	if d.Parameters != nil {
		return fmt.Sprintf("%s %s (%d explicit)", d.Lifetime, formatType(d.Type), d.explicit)
	}
	return fmt.Sprintf("%s %s", d.Lifetime, formatType(d.Type))
}

// containerDependencies returns every service the registration needs from
// the container.
func (d *Descriptor) containerDependencies() []reflect.Type {
	if len(d.lookups) == 0 {
		return d.Dependencies
	}

	seen := make(map[reflect.Type]bool, len(d.Dependencies)+len(d.lookups))
	deps := make([]reflect.Type, 0, len(d.Dependencies)+len(d.lookups))
	for _, group := range [][]reflect.Type{d.Dependencies, d.lookups} {
		for _, t := range group {
			if t != nil && !seen[t] {
				seen[t] = true
				deps = append(deps, t)
			}
		}
	}
	return deps
}
