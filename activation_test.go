package activator_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/activator"
	"github.com/junioryono/activator/config"
)

// consumerModule registers the services behind the greeting, singleton,
// fresh instance scenario.
func consumerModule(lifetime activator.Lifetime) activator.ModuleOption {
	configure := activator.Parameters(func(b *activator.Builder) {
		b.Value("hello")
		b.Type(reflect.TypeFor[*TypeA]())
		b.Activate(reflect.TypeFor[*TypeB](), func(b *activator.Builder) {
			b.Value("conn1")
		})
	})

	var consumer activator.ModuleOption
	switch lifetime {
	case activator.Singleton:
		consumer = activator.AddSingleton(NewConsumer, configure)
	case activator.Scoped:
		consumer = activator.AddScoped(NewConsumer, configure)
	default:
		consumer = activator.AddTransient(NewConsumer, configure)
	}

	return activator.NewModule("consumer",
		activator.AddSingleton(NewTypeA),
		activator.AddTransient(NewTypeB, activator.Parameters(func(b *activator.Builder) {
			b.Value("registered")
		})),
		consumer,
	)
}

func TestResolveArguments_AgainstScope(t *testing.T) {
	t.Parallel()

	p := buildProvider(t, consumerModule(activator.Transient))
	s, err := p.CreateScope(context.Background())
	require.NoError(t, err)

	spec := activator.NewSpecification(
		activator.Value("hello"),
		activator.Type[*TypeA](),
		activator.Activate[*TypeB](func(b *activator.Builder) {
			b.Value("conn1")
		}),
	)
	env := activator.Environment{Activator: s, Tracker: s.Activations()}

	first, err := activator.ResolveArguments(spec, env)
	require.NoError(t, err)
	second, err := activator.ResolveArguments(spec, env)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, "hello", first[0])
	assert.Same(t, first[1], second[1])
	assert.NotSame(t, first[2], second[2])
	assert.Equal(t, "conn1", first[2].(*TypeB).Conn)
	assert.Equal(t, 2, s.Activations().Len())

	consumer, err := s.Invoke(NewConsumer, first...)
	require.NoError(t, err)
	assert.Same(t, first[2], consumer.(*Consumer).B)

	require.NoError(t, s.Close())
	assert.True(t, first[2].(*TypeB).closed.Load())
	assert.True(t, second[2].(*TypeB).closed.Load())
}

func TestParameters_Lifetimes(t *testing.T) {
	t.Parallel()

	t.Run("transient gets fresh nested instances per resolution", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t, consumerModule(activator.Transient))
		s := buildScope(t, p)

		c1 := requireResolve[*Consumer](t, s)
		c2 := requireResolve[*Consumer](t, s)

		assert.NotSame(t, c1, c2)
		assert.Equal(t, "hello", c1.Greeting)
		assert.Same(t, c1.A, c2.A)
		assert.NotSame(t, c1.B, c2.B)
		assert.Equal(t, "conn1", c1.B.Conn)
		assert.Equal(t, 2, s.Activations().Len())
	})

	t.Run("scoped builds its arguments once per scope", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t, consumerModule(activator.Scoped))
		s1, s2 := buildScope(t, p), buildScope(t, p)

		c1 := requireResolve[*Consumer](t, s1)
		assert.Same(t, c1, requireResolve[*Consumer](t, s1))

		c2 := requireResolve[*Consumer](t, s2)
		assert.NotSame(t, c1.B, c2.B)
		assert.Same(t, c1.A, c2.A)

		assert.Equal(t, 1, s1.Activations().Len())
		assert.Equal(t, 1, s2.Activations().Len())

		require.NoError(t, s1.Close())
		assert.True(t, c1.B.closed.Load())
		assert.False(t, c2.B.closed.Load())
	})

	t.Run("singleton nested instances belong to the root scope", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t, consumerModule(activator.Singleton))
		s1, s2 := buildScope(t, p), buildScope(t, p)

		c := requireResolve[*Consumer](t, s1)
		assert.Same(t, c, requireResolve[*Consumer](t, s2))

		assert.Equal(t, 0, s1.Activations().Len())
		assert.Equal(t, 1, s1.Parent().Activations().Len())

		require.NoError(t, s1.Close())
		assert.False(t, c.B.closed.Load())

		require.NoError(t, p.Close())
		assert.True(t, c.B.closed.Load())
	})

	t.Run("singleton and its nested instance are disposed newest first", func(t *testing.T) {
		t.Parallel()

		j := newJournal()
		p := buildProvider(t,
			dataModule(j),
			activator.AddSingleton(NewCustomerRepository, activator.Parameters(func(b *activator.Builder) {
				b.Value("root")
				b.Activate(reflect.TypeFor[*DatabaseClient](), func(b *activator.Builder) {
					b.Value("nested")
				})
			})),
		)

		repo := requireResolve[*CustomerRepository](t, p)
		assert.Equal(t, "nested", repo.Client().ConnectionString())
		assert.Same(t, requireResolve[*Logger](t, p), repo.Logger)

		require.NoError(t, p.Close())
		assert.Equal(t, []string{"repo:root", "db:nested"}, j.list())
	})
}

func TestParameters_Shapes(t *testing.T) {
	t.Parallel()

	t.Run("registered under an interface", func(t *testing.T) {
		t.Parallel()

		j := newJournal()
		p := buildProvider(t,
			dataModule(j),
			activator.AddScoped(NewCustomerRepository,
				activator.As(new(CustomerStore)),
				activator.Parameters(func(b *activator.Builder) {
					b.Value("store")
					b.TypeAs(reflect.TypeFor[DBClient](), reflect.TypeFor[*DatabaseClient]())
				})),
		)
		s := buildScope(t, p)

		store := requireResolve[CustomerStore](t, s)
		assert.Equal(t, "store", store.Name())
		assert.Equal(t, "default", store.Client().ConnectionString())

		// The lookup went through the container, so nothing was tracked.
		assert.Equal(t, 0, s.Activations().Len())
	})

	t.Run("factory resolves in the owning scope", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t,
			activator.AddScoped(NewTypeA),
			activator.AddScoped(NewConsumer, activator.Parameters(func(b *activator.Builder) {
				b.Value("computed")
				b.Add(activator.FactoryOf(func(r activator.Resolver) (*TypeA, error) {
					return activator.Resolve[*TypeA](r)
				}))
				b.ActivateFunc(NewTypeB, func(b *activator.Builder) {
					b.Value("from-func")
				})
			})),
		)
		s := buildScope(t, p)

		c := requireResolve[*Consumer](t, s)
		assert.Same(t, requireResolve[*TypeA](t, s), c.A)
		assert.Equal(t, "from-func", c.B.Conn)
		assert.Equal(t, 1, s.Activations().Len())
	})

	t.Run("options are bound from the provider configuration", func(t *testing.T) {
		t.Parallel()

		cfg := config.FromMap(map[string]any{
			"Mail:Host": "smtp.example.com",
			"Mail:Port": "587",
		})
		p := buildProviderWithOptions(t, &activator.ProviderOptions{Configuration: cfg},
			activator.AddSingleton(NewMailer, activator.Parameters(func(b *activator.Builder) {
				b.Add(activator.OptionsOf[MailSettings]("Mail"))
			})),
		)

		mailer := requireResolve[*Mailer](t, p)
		assert.Equal(t, MailSettings{Host: "smtp.example.com", Port: 587}, mailer.Settings)
	})

	t.Run("options without configuration are zero", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t, activator.AddSingleton(NewMailer, activator.Parameters(func(b *activator.Builder) {
			b.Add(activator.OptionsOf[MailSettings]("Mail"))
		})))

		assert.Equal(t, MailSettings{}, requireResolve[*Mailer](t, p).Settings)
	})
}

func TestParameters_Errors(t *testing.T) {
	t.Parallel()

	t.Run("failing factory reports the argument", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t,
			activator.AddSingleton(NewTypeA),
			activator.AddTransient(NewConsumer, activator.Parameters(func(b *activator.Builder) {
				b.Value("x")
				b.Factory(func(activator.Resolver) (any, error) {
					return nil, errBoom
				})
				b.ActivateFunc(NewTypeB, func(b *activator.Builder) {
					b.Value("unused")
				})
			})),
		)

		_, err := activator.Resolve[*Consumer](p)
		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)

		var resErr activator.ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, reflect.TypeFor[*Consumer](), resErr.ServiceType)

		var argErr activator.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
	})

	t.Run("mismatched literal reports the position", func(t *testing.T) {
		t.Parallel()

		p := buildProvider(t, activator.AddTransient(NewTypeB, activator.Parameters(func(b *activator.Builder) {
			b.Value(42)
		})))

		_, err := activator.Resolve[*TypeB](p)
		var mismatch activator.ArgumentMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 0, mismatch.Index)
	})
}
