package activator

import (
	"bytes"
	"fmt"
	"reflect"
)

// ModuleOption represents a registration action within a module.
type ModuleOption func(Collection) error

// NewModule creates a new module with the given name and builders.
// Modules are a way to group related service registrations together.
//
// Example:
//
//	var DataModule = activator.NewModule("data",
//	    activator.AddSingleton(NewDatabaseClient,
//	        activator.Parameters(func(b *activator.Builder) {
//	            b.Value("connection1")
//	        })),
//	    activator.AddScoped(NewCustomerRepository),
//	)
//
//	var AppModule = activator.NewModule("app",
//	    DataModule,
//	    activator.AddTransient(NewCustomerService),
//	)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(s Collection) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(s); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// AddSingleton creates a ModuleOption for adding a singleton service.
func AddSingleton(service any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddSingleton(service, opts...)
	}
}

// AddScoped creates a ModuleOption for adding a scoped service.
func AddScoped(service any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddScoped(service, opts...)
	}
}

// AddTransient creates a ModuleOption for adding a transient service.
func AddTransient(service any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddTransient(service, opts...)
	}
}

// An AddOption modifies the default behavior of AddSingleton, AddScoped, and AddTransient.
type AddOption interface {
	applyAddOption(*addOptions)
}

type addOptions struct {
	As         []any
	Parameters func(*Builder)
}

func (o *addOptions) Validate() error {
	for _, i := range o.As {
		t := reflect.TypeOf(i)

		if t == nil {
			return fmt.Errorf("invalid activator.As(nil): argument must be a pointer to an interface")
		}

		if t.Kind() != reflect.Pointer {
			return fmt.Errorf("invalid activator.As(%v): argument must be a pointer to an interface", t)
		}

		pointingTo := t.Elem()
		if pointingTo.Kind() != reflect.Interface {
			return fmt.Errorf("invalid activator.As(*%v): argument must be a pointer to an interface", pointingTo)
		}
	}
	return nil
}

// asTypes returns the interface types named by As.
func (o *addOptions) asTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(o.As))
	for _, i := range o.As {
		types = append(types, reflect.TypeOf(i).Elem())
	}
	return types
}

// As is an AddOption that specifies that the value produced by the
// constructor implements one or more interfaces and is provided to the
// container as those interfaces only.
//
// For example, the following makes io.Reader and io.Writer available in
// the container, but not *bytes.Buffer.
//
//	c.AddSingleton(newBuffer, activator.As(new(io.Reader), new(io.Writer)))
//
// The constructor remains available to nested activations of its
// implementation type.
func As(i ...any) AddOption {
	return addAsOption(i)
}

type addAsOption []any

func (o addAsOption) String() string {
	buf := bytes.NewBufferString("As(")
	for i, iface := range o {
		if i > 0 {
			buf.WriteString(", ")
		}
		if t := reflect.TypeOf(iface); t != nil && t.Kind() == reflect.Pointer {
			buf.WriteString(t.Elem().String())
		} else {
			fmt.Fprint(buf, t)
		}
	}
	buf.WriteString(")")
	return buf.String()
}

func (o addAsOption) applyAddOption(opts *addOptions) {
	opts.As = append(opts.As, o...)
}
