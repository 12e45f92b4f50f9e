package activator

import (
	"errors"
	"reflect"
	"slices"

	"github.com/junioryono/activator/internal/reflection"
)

// resolution is one resolution call bound to a scope. It carries the chain
// of services being resolved so a dependency cycle is reported instead of
// recursing forever. A resolution is immutable; descending into a
// dependency creates a new one.
type resolution struct {
	scope *scope
	chain []reflect.Type
}

var _ Activator = (*resolution)(nil)

// Get resolves serviceType according to its registration's lifetime.
func (r *resolution) Get(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	if instance, ok := r.builtin(serviceType); ok {
		return instance, nil
	}

	p := r.scope.provider
	d, ok := p.services[serviceType]
	if !ok {
		return nil, ResolutionError{
			ServiceType: serviceType,
			Cause:       ErrServiceNotFound,
			Available:   p.available,
		}
	}

	if slices.Contains(r.chain, serviceType) {
		return nil, CircularDependencyError{Chain: append(slices.Clone(r.chain), serviceType)}
	}

	next := &resolution{scope: r.scope, chain: append(slices.Clone(r.chain), serviceType)}

	var (
		instance any
		err      error
	)

	switch d.Lifetime {
	case Singleton:
		owner := p.root
		next.scope = owner
		instance, err = p.singletons[d].get(func() (any, error) {
			return next.construct(d, owner)
		})

	case Scoped:
		var sl *slot
		if sl, err = r.scope.scopedSlot(d); err == nil {
			instance, err = sl.get(func() (any, error) {
				return next.construct(d, r.scope)
			})
		}

	default:
		instance, err = next.construct(d, r.scope)
	}

	if err != nil {
		var cycle CircularDependencyError
		if errors.As(err, &cycle) {
			return nil, err
		}
		return nil, ResolutionError{ServiceType: serviceType, Cause: err}
	}

	return instance, nil
}

// CreateInstance constructs a fresh implementationType with the constructor
// registered for it. Registered parameters are not applied; args take their
// place.
func (r *resolution) CreateInstance(implementationType reflect.Type, args ...any) (any, error) {
	if implementationType == nil {
		return nil, ErrServiceTypeNil
	}

	d, ok := r.scope.provider.catalog[implementationType]
	if !ok {
		return nil, ResolutionError{
			ServiceType: implementationType,
			Cause:       ErrConstructorNotFound,
			Available:   r.scope.provider.available,
		}
	}

	return r.invoke(d.info, args)
}

// Invoke calls constructor with args as its leading arguments.
func (r *resolution) Invoke(constructor any, args ...any) (any, error) {
	if constructor == nil {
		return nil, ErrConstructorNil
	}

	info, err := r.scope.provider.analyzer.Analyze(constructor)
	if err != nil {
		return nil, ValidationError{ServiceType: reflect.TypeOf(constructor), Cause: err}
	}

	return r.invoke(info, args)
}

// construct creates a new instance for d and makes owner responsible for
// disposing it.
func (r *resolution) construct(d *Descriptor, owner *scope) (any, error) {
	if d.IsInstance {
		return d.Instance, nil
	}

	args, err := r.arguments(d, owner)
	if err != nil {
		return nil, err
	}

	instance, err := r.invoke(d.info, args)
	if err != nil {
		return nil, err
	}

	owner.capture(instance)
	return instance, nil
}

// invoke calls the constructor described by info. Failures of the
// constructor itself are reported as ConstructorInvocationError; failures to
// resolve its dependencies are passed through.
func (r *resolution) invoke(info *reflection.ConstructorInfo, args []any) (any, error) {
	deps := &dependencyResolver{resolution: r}

	instance, err := r.scope.provider.invoker.Invoke(info, args, deps)
	if err != nil {
		if deps.failed {
			return nil, err
		}

		params := make([]reflect.Type, len(info.Parameters))
		for i, param := range info.Parameters {
			params[i] = param.Type
		}

		return nil, ConstructorInvocationError{
			Constructor: info.Type,
			Parameters:  params,
			Cause:       err,
		}
	}

	return instance, nil
}

// builtin resolves the types every scope provides without registration.
func (r *resolution) builtin(serviceType reflect.Type) (any, bool) {
	switch serviceType {
	case scopeType, resolverType, activatorType:
		return r.scope, true
	case providerType:
		return r.scope.provider, true
	case contextType:
		return r.scope.ctx, true
	case configurationType:
		if cfg := r.scope.provider.options.Configuration; cfg != nil {
			return cfg, true
		}
	}
	return nil, false
}

// dependencyResolver records whether a constructor failed because one of
// its dependencies could not be resolved.
type dependencyResolver struct {
	resolution *resolution
	failed     bool
}

func (d *dependencyResolver) Get(serviceType reflect.Type) (any, error) {
	instance, err := d.resolution.Get(serviceType)
	if err != nil {
		d.failed = true
	}
	return instance, err
}
