package activator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/junioryono/activator/config"
	"github.com/junioryono/activator/internal/reflection"
)

// Provider is the built container. It resolves services from its root
// scope and creates child scopes.
type Provider interface {
	Activator
	Disposable

	// ID returns the unique identifier for this provider instance.
	ID() string

	// CreateScope creates a new service scope for resolving services.
	CreateScope(ctx context.Context) (Scope, error)

	// Configuration returns the configuration the provider was built with,
	// or nil.
	Configuration() config.Configuration

	// IsDisposed reports whether Close has been called.
	IsDisposed() bool
}

// ProviderOptions configures Build.
type ProviderOptions struct {
	// Configuration is used by configuration bindings and is resolvable as
	// config.Configuration.
	Configuration config.Configuration

	// BuildTimeout specifies the maximum time allowed for building the
	// provider. Zero means no limit.
	BuildTimeout time.Duration

	// SkipValidation disables dependency graph validation at build time.
	// Problems then surface when the affected services are resolved.
	SkipValidation bool

	// OnServiceResolved is called after a service is resolved through a
	// Provider or Scope.
	OnServiceResolved func(serviceType reflect.Type, instance any, duration time.Duration)

	// OnServiceError is called when resolving a service through a Provider
	// or Scope fails.
	OnServiceError func(serviceType reflect.Type, err error)
}

// provider is the concrete implementation of Provider
type provider struct {
	id      string
	options ProviderOptions

	// Service registry (immutable after build)
	descriptors []*Descriptor
	services    map[reflect.Type]*Descriptor
	catalog     map[reflect.Type]*Descriptor // implementation type -> constructor
	available   []reflect.Type

	analyzer *reflection.Analyzer
	invoker  *reflection.ConstructorInvoker

	// Singleton slots, one per singleton descriptor (immutable after build)
	singletons map[*Descriptor]*slot

	root *scope

	disposed atomic.Bool
}

// slot holds a cached instance. The mutex serializes construction so that
// exactly one instance is produced.
type slot struct {
	mu       sync.Mutex
	done     bool
	instance any
}

func (s *slot) get(create func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return s.instance, nil
	}

	instance, err := create()
	if err != nil {
		return nil, err
	}

	s.instance, s.done = instance, true
	return instance, nil
}

func newProvider(descriptors []*Descriptor, analyzer *reflection.Analyzer, options *ProviderOptions) (*provider, error) {
	if options == nil {
		options = &ProviderOptions{}
	}

	if analyzer == nil {
		analyzer = reflection.New()
	}

	p := &provider{
		id:          uuid.NewString(),
		options:     *options,
		descriptors: descriptors,
		services:    make(map[reflect.Type]*Descriptor),
		catalog:     make(map[reflect.Type]*Descriptor),
		analyzer:    analyzer,
		invoker:     reflection.NewConstructorInvoker(analyzer),
		singletons:  make(map[*Descriptor]*slot),
	}

	for _, d := range descriptors {
		for _, t := range d.Types {
			p.services[t] = d
			p.available = append(p.available, t)
		}

		if !d.IsInstance {
			if _, exists := p.catalog[d.ImplementationType]; !exists {
				p.catalog[d.ImplementationType] = d
			}
		}

		if d.Lifetime == Singleton {
			p.singletons[d] = &slot{}
		}
	}

	if !options.SkipValidation {
		if err := p.validateWithTimeout(); err != nil {
			return nil, err
		}
	}

	p.root = newScope(p, nil, context.Background())

	return p, nil
}

func (p *provider) validateWithTimeout() error {
	if p.options.BuildTimeout <= 0 {
		return validate(p)
	}

	done := make(chan error, 1)
	go func() {
		done <- validate(p)
	}()

	timer := time.NewTimer(p.options.BuildTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return TimeoutError{Operation: "build", Timeout: p.options.BuildTimeout}
	}
}

// ID returns the unique identifier for the provider.
func (p *provider) ID() string {
	return p.id
}

// Get resolves a service from the root scope
func (p *provider) Get(serviceType reflect.Type) (any, error) {
	if p.disposed.Load() {
		return nil, ErrProviderDisposed
	}

	return p.root.Get(serviceType)
}

// CreateInstance constructs implementationType from the root scope.
func (p *provider) CreateInstance(implementationType reflect.Type, args ...any) (any, error) {
	if p.disposed.Load() {
		return nil, ErrProviderDisposed
	}

	return p.root.CreateInstance(implementationType, args...)
}

// Invoke calls constructor from the root scope.
func (p *provider) Invoke(constructor any, args ...any) (any, error) {
	if p.disposed.Load() {
		return nil, ErrProviderDisposed
	}

	return p.root.Invoke(constructor, args...)
}

// CreateScope creates a new service scope
func (p *provider) CreateScope(ctx context.Context) (Scope, error) {
	if p.disposed.Load() {
		return nil, ErrProviderDisposed
	}

	return p.root.CreateScope(ctx)
}

// Configuration returns the configuration the provider was built with.
func (p *provider) Configuration() config.Configuration {
	return p.options.Configuration
}

// IsDisposed reports whether Close has been called.
func (p *provider) IsDisposed() bool {
	return p.disposed.Load()
}

// Close closes every open scope, then disposes the singletons and the
// activations owned by the root scope, most recent first.
func (p *provider) Close() error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}

	if err := p.root.close(); err != nil {
		var disposal DisposalError
		if errors.As(err, &disposal) {
			disposal.Context = "provider"
			return disposal
		}
		return err
	}

	return nil
}

// Resolve resolves a service of type T.
//
// Example:
//
//	logger, err := activator.Resolve[*Logger](provider)
//	if err != nil {
//	    // Handle error
//	}
func Resolve[T any](r Resolver) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := r.Get(serviceType)
	if err != nil {
		return zero, err
	}

	result, ok := service.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: serviceType,
			Actual:   reflect.TypeOf(service),
			Context:  "type assertion",
		}
	}

	return result, nil
}

// MustResolve resolves a service of type T. It panics if the service
// cannot be resolved.
func MustResolve[T any](r Resolver) T {
	service, err := Resolve[T](r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve service: %v", err))
	}

	return service
}

// CreateInstance constructs a fresh T with the constructor registered for
// it. args fill the leading constructor parameters.
//
// The instance is not cached and not owned by the container. Pass it to
// Scope.Activations().Track to have the scope dispose it.
func CreateInstance[T any](a Activator, args ...any) (T, error) {
	var zero T

	if a == nil {
		return zero, ErrActivatorNil
	}

	implementationType := reflect.TypeFor[T]()
	instance, err := a.CreateInstance(implementationType, args...)
	if err != nil {
		return zero, err
	}

	result, ok := instance.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: implementationType,
			Actual:   reflect.TypeOf(instance),
			Context:  "type assertion",
		}
	}

	return result, nil
}
