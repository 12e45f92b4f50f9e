package activator

import (
	"reflect"

	"github.com/junioryono/activator/config"
)

// Builder accumulates parameters into a Specification. Each method appends
// one parameter and returns the builder so calls can be chained.
//
// Example:
//
//	spec := activator.NewBuilder().
//	    Value("inject parameter1").
//	    Activate(reflect.TypeFor[*CustomerRepository](), func(b *activator.Builder) {
//	        b.Value("connection1")
//	    }).
//	    Add(activator.OptionsOf[MailSettings]("Mail")).
//	    Build()
//
// Nothing is validated until the specification is resolved.
type Builder struct {
	params []Parameter
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Value appends a literal argument.
func (b *Builder) Value(v any) *Builder {
	return b.Add(Value(v))
}

// Type appends a container lookup of t.
func (b *Builder) Type(t reflect.Type) *Builder {
	return b.Add(ServiceLookup{ServiceType: t, ImplementationType: t})
}

// TypeAs appends a container lookup of implementation declared as service.
func (b *Builder) TypeAs(service, implementation reflect.Type) *Builder {
	return b.Add(ServiceLookup{ServiceType: service, ImplementationType: implementation})
}

// Activate appends a fresh activation of t whose leading arguments are
// described by configure. A nil configure appends a container lookup
// instead.
func (b *Builder) Activate(t reflect.Type, configure func(*Builder)) *Builder {
	return b.Add(activation(t, t, nil, configure))
}

// ActivateAs is Activate with a distinct declared service type.
func (b *Builder) ActivateAs(service, implementation reflect.Type, configure func(*Builder)) *Builder {
	return b.Add(activation(service, implementation, nil, configure))
}

// ActivateFunc appends a fresh activation that calls constructor. The
// arguments described by configure fill its leading parameters. Unlike
// Activate, a nil configure still activates with no explicit arguments.
func (b *Builder) ActivateFunc(constructor any, configure func(*Builder)) *Builder {
	return b.Add(ActivateFunc(constructor, configure))
}

// Factory appends an argument computed by fn.
func (b *Builder) Factory(fn FactoryFunc) *Builder {
	return b.Add(Factory(fn))
}

// Add appends params in order.
func (b *Builder) Add(params ...Parameter) *Builder {
	b.params = append(b.params, params...)
	return b
}

// Build returns the accumulated Specification. The builder stays usable and
// later additions do not affect specifications already built.
func (b *Builder) Build() Specification {
	return NewSpecification(b.params...)
}

// Value creates a literal parameter.
func Value(v any) Parameter {
	return Literal{Value: v}
}

// Type creates a container lookup of T.
func Type[T any]() Parameter {
	t := reflect.TypeFor[T]()
	return ServiceLookup{ServiceType: t, ImplementationType: t}
}

// TypeAs creates a container lookup of I declared as S.
func TypeAs[S, I any]() Parameter {
	return ServiceLookup{ServiceType: reflect.TypeFor[S](), ImplementationType: reflect.TypeFor[I]()}
}

// Activate creates a fresh activation of T. A nil configure creates a
// container lookup instead.
func Activate[T any](configure func(*Builder)) Parameter {
	t := reflect.TypeFor[T]()
	return activation(t, t, nil, configure)
}

// ActivateAs creates a fresh activation of I declared as S.
func ActivateAs[S, I any](configure func(*Builder)) Parameter {
	return activation(reflect.TypeFor[S](), reflect.TypeFor[I](), nil, configure)
}

// ActivateFunc creates a fresh activation that calls constructor.
func ActivateFunc(constructor any, configure func(*Builder)) Parameter {
	t := producedType(constructor)
	p := activation(t, t, constructor, configure)
	if p.Parameters == nil {
		p.Parameters = &Specification{}
	}
	return p
}

// Factory creates a parameter computed by fn.
func Factory(fn FactoryFunc) Parameter {
	return ComputedFactory{Func: fn}
}

// FactoryOf adapts a typed factory function.
func FactoryOf[T any](fn func(Resolver) (T, error)) Parameter {
	return ComputedFactory{Func: func(r Resolver) (any, error) {
		return fn(r)
	}}
}

// OptionsOf creates a parameter that binds the configuration section into a
// new T and supplies it as an Options[T]. Binding is lenient: missing keys
// keep their zero value and conversion failures are ignored.
func OptionsOf[T any](section string) Parameter {
	return ConfigBinding{
		Section: section,
		Shape:   reflect.TypeFor[T](),
		bind: func(cfg config.Configuration) any {
			value := new(T)
			if cfg != nil {
				_ = cfg.Bind(section, value)
			}
			return NewOptions(value)
		},
	}
}

func activation(service, implementation reflect.Type, constructor any, configure func(*Builder)) NestedActivation {
	p := NestedActivation{
		ServiceType:        service,
		ImplementationType: implementation,
		Constructor:        constructor,
	}

	if configure != nil {
		child := NewBuilder()
		configure(child)
		spec := child.Build()
		p.Parameters = &spec
	}

	return p
}

// producedType returns the first non-error result type of constructor.
func producedType(constructor any) reflect.Type {
	t := reflect.TypeOf(constructor)
	if t == nil || t.Kind() != reflect.Func {
		return t
	}

	for i := range t.NumOut() {
		if t.Out(i) != errorType {
			return t.Out(i)
		}
	}
	return nil
}

var errorType = reflect.TypeFor[error]()

