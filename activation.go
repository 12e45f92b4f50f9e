package activator

// Parameters is an AddOption that supplies the leading constructor
// arguments of a registration from a parameter specification. The remaining
// parameters are resolved from the container as usual.
//
// configure runs with a fresh Builder every time the lifetime calls for a
// new instance: once for a singleton, once per scope for a scoped service
// and on every resolution of a transient one.
//
//	collection.AddScoped(NewCustomerRepository,
//	    activator.As(new(CustomerStore)),
//	    activator.Parameters(func(b *activator.Builder) {
//	        b.Activate(reflect.TypeFor[*DatabaseClient](), func(b *activator.Builder) {
//	            b.Value("connection1")
//	        })
//	        b.Value("inject parameter1")
//	    }))
//
// Instances created by nested activations are owned by the scope that owns
// the registered instance and are disposed when it closes.
func Parameters(configure func(*Builder)) AddOption {
	return addParametersOption(configure)
}

type addParametersOption func(*Builder)

func (o addParametersOption) String() string {
	return "Parameters(...)"
}

func (o addParametersOption) applyAddOption(opts *addOptions) {
	opts.Parameters = o
}

// arguments resolves the registration's specification for one
// construction. owner is the scope that will own the instance and, with
// it, the nested activations created for it.
func (r *resolution) arguments(d *Descriptor, owner *scope) ([]any, error) {
	if d.Parameters == nil {
		return nil, nil
	}

	b := NewBuilder()
	d.Parameters(b)

	return ResolveArguments(b.Build(), Environment{
		Activator:     r,
		Configuration: owner.provider.options.Configuration,
		Tracker:       owner.tracker,
	})
}
