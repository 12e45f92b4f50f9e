package activator

import "reflect"

// Resolver resolves registered services by type.
type Resolver interface {
	Get(serviceType reflect.Type) (any, error)
}

// Activator is the container surface the resolution engine depends on.
//
// CreateInstance constructs implementationType with the constructor
// registered for it, passing args as the leading arguments and resolving the
// rest from the container. Invoke does the same with an explicit
// constructor. Neither caches the result.
type Activator interface {
	Resolver

	CreateInstance(implementationType reflect.Type, args ...any) (any, error)
	Invoke(constructor any, args ...any) (any, error)
}
