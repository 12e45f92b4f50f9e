package activator

import (
	"reflect"
	"slices"
	"sync"

	"github.com/junioryono/activator/internal/reflection"
)

// Collection represents a collection of service descriptors that define
// the services available in the container.
//
// Collection follows a builder pattern where services are registered
// with their lifetimes and dependencies, then built into a Provider.
//
// Example:
//
//	collection := activator.NewCollection()
//	collection.AddSingleton(NewLogger)
//	collection.AddScoped(NewCustomerRepository, activator.Parameters(func(b *activator.Builder) {
//	    b.Value("inject parameter1")
//	}))
//
//	provider, err := collection.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
type Collection interface {
	// Build creates a Provider from the registered services
	// using default options.
	Build() (Provider, error)

	// BuildWithOptions creates a Provider with custom options
	// for validation and behavior configuration.
	BuildWithOptions(options *ProviderOptions) (Provider, error)

	// AddModules applies one or more module configurations to the service collection.
	AddModules(modules ...ModuleOption) error

	// AddSingleton registers a service with singleton lifetime.
	// Only one instance is created and shared across all resolutions.
	AddSingleton(constructor any, opts ...AddOption) error

	// AddScoped registers a service with scoped lifetime.
	// One instance is created per scope and shared within that scope.
	AddScoped(constructor any, opts ...AddOption) error

	// AddTransient registers a service with transient lifetime.
	// A new instance is created every time the service is resolved.
	AddTransient(constructor any, opts ...AddOption) error

	// Contains checks if a service type is registered.
	Contains(serviceType reflect.Type) bool

	// Remove removes the registration that provides serviceType, including
	// every other type it is exposed as.
	Remove(serviceType reflect.Type)

	// ToSlice returns a copy of all registered service descriptors in
	// registration order.
	ToSlice() []*Descriptor

	// Count returns the number of registered services.
	Count() int
}

type collection struct {
	mu sync.RWMutex

	// services maps every exposed service type to its descriptor
	services map[reflect.Type]*Descriptor

	// descriptors keeps registration order
	descriptors []*Descriptor

	analyzer *reflection.Analyzer
}

// NewCollection creates a new empty Collection instance.
func NewCollection() Collection {
	return &collection{
		services: make(map[reflect.Type]*Descriptor),
		analyzer: reflection.New(),
	}
}

// Build creates a Provider from the registered services using default options.
func (sc *collection) Build() (Provider, error) {
	return sc.BuildWithOptions(nil)
}

// BuildWithOptions creates a Provider with custom options for validation and behavior configuration.
func (sc *collection) BuildWithOptions(options *ProviderOptions) (Provider, error) {
	sc.mu.RLock()
	descriptors := slices.Clone(sc.descriptors)
	sc.mu.RUnlock()

	return newProvider(descriptors, sc.analyzer, options)
}

// AddModules applies one or more module configurations to the service collection.
func (sc *collection) AddModules(modules ...ModuleOption) error {
	for _, module := range modules {
		if module == nil {
			continue
		}

		if err := module(sc); err != nil {
			return err
		}
	}

	return nil
}

// AddSingleton adds a singleton service to the collection.
func (sc *collection) AddSingleton(constructor any, opts ...AddOption) error {
	return sc.addService(constructor, Singleton, opts...)
}

// AddScoped adds a scoped service to the collection.
func (sc *collection) AddScoped(constructor any, opts ...AddOption) error {
	return sc.addService(constructor, Scoped, opts...)
}

// AddTransient adds a transient service to the collection.
func (sc *collection) AddTransient(constructor any, opts ...AddOption) error {
	return sc.addService(constructor, Transient, opts...)
}

// Contains checks if a service type is registered in the collection.
func (sc *collection) Contains(serviceType reflect.Type) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	_, exists := sc.services[serviceType]
	return exists
}

// Remove removes the registration providing serviceType.
func (sc *collection) Remove(serviceType reflect.Type) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	d, ok := sc.services[serviceType]
	if !ok {
		return
	}

	for _, t := range d.Types {
		delete(sc.services, t)
	}
	sc.descriptors = slices.DeleteFunc(sc.descriptors, func(other *Descriptor) bool {
		return other == d
	})
}

// ToSlice returns a copy of all registered service descriptors.
func (sc *collection) ToSlice() []*Descriptor {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return slices.Clone(sc.descriptors)
}

// Count returns the number of registered services in the collection.
func (sc *collection) Count() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return len(sc.descriptors)
}

// addService registers a new service
func (sc *collection) addService(constructor any, lifetime Lifetime, opts ...AddOption) error {
	d, err := newDescriptor(constructor, lifetime, sc.analyzer, opts...)
	if err != nil {
		return RegistrationError{
			ServiceType: reflect.TypeOf(constructor),
			Operation:   "register",
			Cause:       err,
		}
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, t := range d.Types {
		if _, exists := sc.services[t]; exists || isBuiltin(t) {
			return AlreadyRegisteredError{ServiceType: t}
		}
	}

	for _, t := range d.Types {
		sc.services[t] = d
	}
	sc.descriptors = append(sc.descriptors, d)

	return nil
}
