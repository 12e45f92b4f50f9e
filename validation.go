package activator

import (
	"fmt"
	"reflect"

	"go.uber.org/dig"

	"github.com/junioryono/activator/internal/reflection"
)

// validate checks the registrations of p before the provider is handed
// out. The dependency graph is mirrored into a dry-run dig container, which
// reports cycles when a registration is provided and missing services when
// one is invoked. Lifetime rules are checked separately because dig has no
// notion of scopes.
func validate(p *provider) error {
	needs := make(map[*Descriptor][]reflect.Type, len(p.descriptors))
	for _, d := range p.descriptors {
		deps, err := p.dependenciesOf(d)
		if err != nil {
			return BuildError{Phase: "validation", Details: d.String(), Cause: err}
		}
		needs[d] = deps
	}

	c := dig.New(dig.DryRun(true))

	if err := provideBuiltins(c, p.options.Configuration != nil); err != nil {
		return BuildError{Phase: "graph", Details: "builtin services", Cause: err}
	}

	for _, d := range p.descriptors {
		if err := provideMirror(c, d, needs[d]); err != nil {
			if dig.IsCycleDetected(err) {
				return BuildError{
					Phase:   "validation",
					Details: d.String(),
					Cause:   CircularDependencyError{Cause: dig.RootCause(err)},
				}
			}
			return BuildError{Phase: "graph", Details: d.String(), Cause: err}
		}
	}

	if err := validateLifetimes(p, needs); err != nil {
		return BuildError{Phase: "validation", Details: "lifetimes", Cause: err}
	}

	for _, d := range p.descriptors {
		if err := invokeMirror(c, d.Type); err != nil {
			return BuildError{
				Phase:   "validation",
				Details: d.String(),
				Cause: ValidationError{
					ServiceType: d.Type,
					Cause:       fmt.Errorf("%w: %w", ErrServiceNotFound, dig.RootCause(err)),
				},
			}
		}
	}

	return nil
}

// dependenciesOf returns every service d needs from the container when it
// is constructed, including those of its nested activations.
func (p *provider) dependenciesOf(d *Descriptor) ([]reflect.Type, error) {
	deps := d.containerDependencies()
	if len(d.activations) == 0 {
		return deps, nil
	}

	seen := make(map[reflect.Type]bool, len(deps))
	for _, t := range deps {
		seen[t] = true
	}

	for _, nested := range d.activations {
		info, err := p.nestedInfo(nested)
		if err != nil {
			return nil, ValidationError{ServiceType: d.Type, Cause: err}
		}

		if nested.explicit > len(info.Parameters) {
			return nil, ValidationError{
				ServiceType: d.Type,
				Cause: fmt.Errorf("%w: %s takes %d, parameters supply %d",
					ErrTooManyArguments, formatType(info.Type), len(info.Parameters), nested.explicit),
			}
		}

		for _, t := range info.Dependencies(nested.explicit) {
			if !seen[t] {
				seen[t] = true
				deps = append(deps, t)
			}
		}
	}

	return deps, nil
}

func (p *provider) nestedInfo(nested nestedProbe) (*reflection.ConstructorInfo, error) {
	if nested.constructor != nil {
		return p.analyzer.Analyze(nested.constructor)
	}

	d, ok := p.catalog[nested.implementation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConstructorNotFound, formatType(nested.implementation))
	}
	return d.info, nil
}

// provideBuiltins makes the services every scope resolves without
// registration known to the mirror.
func provideBuiltins(c *dig.Container, withConfiguration bool) error {
	out := []reflect.Type{scopeType, resolverType, activatorType, providerType, contextType}
	if withConfiguration {
		out = append(out, configurationType)
	}
	return c.Provide(mirrorFunc(nil, out))
}

// provideMirror registers a constructor with d's shape: it takes deps and
// produces d's service types.
func provideMirror(c *dig.Container, d *Descriptor, deps []reflect.Type) error {
	impl := d.ImplementationType
	if d.Type == impl && len(d.Types) == 1 {
		return c.Provide(mirrorFunc(deps, d.Types))
	}

	for _, t := range d.Types {
		if t == impl {
			// dig.As cannot name the produced type itself.
			return c.Provide(mirrorFunc(deps, d.Types))
		}
	}

	as := make([]any, len(d.Types))
	for i, t := range d.Types {
		as[i] = reflect.New(t).Interface()
	}
	return c.Provide(mirrorFunc(deps, []reflect.Type{impl}), dig.As(as...))
}

// invokeMirror asks the mirror for serviceType, which fails when anything
// it transitively needs is missing.
func invokeMirror(c *dig.Container, serviceType reflect.Type) error {
	fn := reflect.MakeFunc(reflect.FuncOf([]reflect.Type{serviceType}, nil, false), func([]reflect.Value) []reflect.Value {
		return nil
	})
	return c.Invoke(fn.Interface())
}

// mirrorFunc builds a function from in to out. The container runs dry so
// the function is never called.
func mirrorFunc(in, out []reflect.Type) any {
	fnType := reflect.FuncOf(in, out, false)
	return reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		results := make([]reflect.Value, len(out))
		for i, t := range out {
			results[i] = reflect.Zero(t)
		}
		return results
	}).Interface()
}

// validateLifetimes ensures a singleton never captures a scoped service,
// either directly or through transient services it creates.
func validateLifetimes(p *provider, needs map[*Descriptor][]reflect.Type) error {
	for _, d := range p.descriptors {
		if d.Lifetime != Singleton {
			continue
		}

		visited := make(map[*Descriptor]bool)
		if err := p.checkCaptive(d, d, needs, visited); err != nil {
			return err
		}
	}
	return nil
}

func (p *provider) checkCaptive(root, d *Descriptor, needs map[*Descriptor][]reflect.Type, visited map[*Descriptor]bool) error {
	for _, t := range needs[d] {
		dep, ok := p.services[t]
		if !ok || visited[dep] {
			continue
		}
		visited[dep] = true

		switch dep.Lifetime {
		case Scoped:
			return LifetimeConflictError{
				ServiceType:        root.Type,
				ServiceLifetime:    root.Lifetime,
				DependencyType:     t,
				DependencyLifetime: dep.Lifetime,
			}
		case Transient:
			if err := p.checkCaptive(root, dep, needs, visited); err != nil {
				return err
			}
		}
	}
	return nil
}
