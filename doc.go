// Package activator constructs objects whose constructor arguments are
// described by a parameter specification and resolved against a dependency
// container at construction time.
//
// # Overview
//
// A registration normally receives every constructor argument from the
// container. With activator, the leading arguments can instead come from a
// specification built fluently:
//   - Literal values
//   - Lookups of registered services
//   - Nested activations: a fresh instance of another type, built with its
//     own specification
//   - Computed values from a factory function
//   - Typed options bound from a configuration section
//
// The remaining arguments are resolved from the container as usual.
//
// # Basic Usage
//
//	collection := activator.NewCollection()
//	collection.AddSingleton(NewLogger)
//	collection.AddScoped(NewCustomerRepository,
//	    activator.As(new(CustomerStore)),
//	    activator.Parameters(func(b *activator.Builder) {
//	        b.Value("inject parameter1")
//	        b.Activate(reflect.TypeFor[*DatabaseClient](), func(b *activator.Builder) {
//	            b.Value("connection1")
//	        })
//	    }))
//
//	provider, err := collection.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	scope, err := provider.CreateScope(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scope.Close()
//
//	store, err := activator.Resolve[CustomerStore](scope)
//
// # Lifetimes
//
//   - Singleton: one instance for the provider, owned by the root scope
//   - Scoped: one instance per scope
//   - Transient: a new instance on every request
//
// A registration's specification is resolved each time its lifetime calls
// for a new instance, so a transient registration with a nested activation
// produces a fresh nested instance on every resolution.
//
// # Ownership and Disposal
//
// Instances created by nested activations bypass the container's caches.
// Each scope keeps an activation Tracker that owns them. When the scope is
// closed, its container-managed instances and its tracked activations are
// disposed together, most recently created first, each exactly once.
// Instances implementing Disposable or DisposableWithContext take part.
//
// # Resolving Specifications Directly
//
// A Specification can be resolved outside of a registration with Arguments
// or ResolveArguments, against any Activator:
//
//	spec := activator.NewBuilder().
//	    Value("hello").
//	    Type(reflect.TypeFor[*Greeter]()).
//	    Build()
//
//	args, err := activator.ResolveArguments(spec, activator.Environment{
//	    Activator: scope,
//	    Tracker:   scope.Activations(),
//	})
//
// # Configuration
//
// The config package loads JSON files, .env files, environment variables
// and maps into a case-insensitive key space. Pass the result as
// ProviderOptions.Configuration and use OptionsOf to bind a section into a
// typed Options value:
//
//	b.Add(activator.OptionsOf[MailSettings]("Mail"))
//
// # Validation
//
// Build validates the registrations: circular dependencies, missing
// services and singletons capturing scoped services are reported before
// the provider is returned. Set ProviderOptions.SkipValidation to defer
// these problems to resolution time.
package activator
