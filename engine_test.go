package activator_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/activator"
)

func TestArguments_Literals(t *testing.T) {
	t.Parallel()

	a := newFakeActivator()
	spec := activator.NewBuilder().
		Value("hello").
		Value(42).
		Value(nil).
		Value([]string{"x"}).
		Build()

	args, err := activator.ResolveArguments(spec, activator.Environment{Activator: a})
	require.NoError(t, err)

	assert.Equal(t, []any{"hello", 42, nil, []string{"x"}}, args)
	assert.Empty(t, a.Calls(), "literals must not touch the container")
}

func TestArguments_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("resolves the implementation type", func(t *testing.T) {
		t.Parallel()

		client := &DatabaseClient{Conn: "c"}
		a := newFakeActivator()
		a.services[reflect.TypeFor[*DatabaseClient]()] = client

		args, err := activator.ResolveArguments(
			activator.NewSpecification(activator.TypeAs[DBClient, *DatabaseClient]()),
			activator.Environment{Activator: a},
		)
		require.NoError(t, err)
		assert.Same(t, client, args[0])
		assert.Equal(t, []string{"Get(*activator_test.DatabaseClient)"}, a.Calls())
	})

	t.Run("activation without configure falls back to a lookup", func(t *testing.T) {
		t.Parallel()

		instance := &TypeA{ID: 1}
		a := newFakeActivator()
		a.services[reflect.TypeFor[*TypeA]()] = instance

		args, err := activator.ResolveArguments(
			activator.NewSpecification(activator.Activate[*TypeA](nil)),
			activator.Environment{Activator: a},
		)
		require.NoError(t, err)
		assert.Same(t, instance, args[0])
		assert.Equal(t, []string{"Get(*activator_test.TypeA)"}, a.Calls())
	})

	t.Run("unregistered service fails with the container's error", func(t *testing.T) {
		t.Parallel()

		_, err := activator.ResolveArguments(
			activator.NewBuilder().Value("first").Type(reflect.TypeFor[*Logger]()).Build(),
			activator.Environment{Activator: newFakeActivator()},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, activator.ErrServiceNotFound)

		var argErr activator.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
		assert.Equal(t, activator.ServiceKind, argErr.Parameter.Kind())
	})

	t.Run("nil activator", func(t *testing.T) {
		t.Parallel()

		_, err := activator.ResolveArguments(
			activator.NewSpecification(activator.Type[*Logger]()),
			activator.Environment{},
		)
		assert.ErrorIs(t, err, activator.ErrActivatorNil)
	})
}

func TestArguments_NestedActivation(t *testing.T) {
	t.Parallel()

	newActivator := func() *fakeActivator {
		a := newFakeActivator()
		a.constructors[reflect.TypeFor[*TypeB]()] = NewTypeB
		a.constructors[reflect.TypeFor[*Consumer]()] = NewConsumer
		a.services[reflect.TypeFor[*TypeA]()] = &TypeA{ID: 7}
		return a
	}

	t.Run("creates and tracks a fresh instance each time", func(t *testing.T) {
		t.Parallel()

		a := newActivator()
		tracker := activator.NewTracker()
		spec := activator.NewSpecification(activator.Activate[*TypeB](func(b *activator.Builder) {
			b.Value("conn1")
		}))
		env := activator.Environment{Activator: a, Tracker: tracker}

		first, err := activator.ResolveArguments(spec, env)
		require.NoError(t, err)
		second, err := activator.ResolveArguments(spec, env)
		require.NoError(t, err)

		b1, b2 := first[0].(*TypeB), second[0].(*TypeB)
		assert.Equal(t, "conn1", b1.Conn)
		assert.NotSame(t, b1, b2)
		assert.Equal(t, 2, tracker.Len())
	})

	t.Run("inner activations resolve before outer ones", func(t *testing.T) {
		t.Parallel()

		a := newActivator()
		tracker := activator.NewTracker()
		spec := activator.NewSpecification(activator.Activate[*Consumer](func(b *activator.Builder) {
			b.Value("hi")
			b.Type(reflect.TypeFor[*TypeA]())
			b.Activate(reflect.TypeFor[*TypeB](), func(b *activator.Builder) {
				b.Value("inner")
			})
		}))

		args, err := activator.ResolveArguments(spec, activator.Environment{Activator: a, Tracker: tracker})
		require.NoError(t, err)

		consumer := args[0].(*Consumer)
		assert.Equal(t, "hi", consumer.Greeting)
		assert.Equal(t, 7, consumer.A.ID)
		assert.Equal(t, "inner", consumer.B.Conn)

		calls := a.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "Get(*activator_test.TypeA)", calls[0])
		assert.Equal(t, "CreateInstance(*activator_test.TypeB, [inner])", calls[1])
		assert.Contains(t, calls[2], "CreateInstance(*activator_test.Consumer")

		// Consumer is not disposable, only TypeB is tracked.
		assert.Equal(t, 1, tracker.Len())
	})

	t.Run("activate func calls the given constructor", func(t *testing.T) {
		t.Parallel()

		a := newActivator()
		custom := func(conn string) *TypeB { return &TypeB{Conn: "custom-" + conn} }

		args, err := activator.ResolveArguments(
			activator.NewSpecification(activator.ActivateFunc(custom, func(b *activator.Builder) {
				b.Value("x")
			})),
			activator.Environment{Activator: a},
		)
		require.NoError(t, err)
		assert.Equal(t, "custom-x", args[0].(*TypeB).Conn)
		assert.Equal(t, []string{"Invoke([x])"}, a.Calls())
	})

	t.Run("nil tracker leaves ownership with the caller", func(t *testing.T) {
		t.Parallel()

		args, err := activator.ResolveArguments(
			activator.NewSpecification(activator.Activate[*TypeB](func(b *activator.Builder) {
				b.Value("conn1")
			})),
			activator.Environment{Activator: newActivator()},
		)
		require.NoError(t, err)
		assert.False(t, args[0].(*TypeB).closed.Load())
	})

	t.Run("nested failures report the outer index", func(t *testing.T) {
		t.Parallel()

		spec := activator.NewBuilder().
			Value("ok").
			Activate(reflect.TypeFor[*Consumer](), func(b *activator.Builder) {
				b.Type(reflect.TypeFor[*Logger]())
			}).
			Build()

		_, err := activator.ResolveArguments(spec, activator.Environment{Activator: newActivator()})
		require.Error(t, err)

		var argErr activator.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
		assert.ErrorIs(t, err, activator.ErrServiceNotFound)
	})
}

func TestArguments_Factory(t *testing.T) {
	t.Parallel()

	t.Run("receives the activator", func(t *testing.T) {
		t.Parallel()

		a := newFakeActivator()
		var received activator.Resolver

		args, err := activator.ResolveArguments(
			activator.NewSpecification(activator.Factory(func(r activator.Resolver) (any, error) {
				received = r
				return "computed", nil
			})),
			activator.Environment{Activator: a},
		)
		require.NoError(t, err)
		assert.Equal(t, []any{"computed"}, args)
		assert.Same(t, a, received)
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		t.Parallel()

		_, err := activator.ResolveArguments(
			activator.NewSpecification(activator.Factory(func(activator.Resolver) (any, error) {
				return nil, errBoom
			})),
			activator.Environment{Activator: newFakeActivator()},
		)
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("nil function", func(t *testing.T) {
		t.Parallel()

		_, err := activator.ResolveArguments(
			activator.NewSpecification(activator.ComputedFactory{}),
			activator.Environment{Activator: newFakeActivator()},
		)
		assert.Error(t, err)
	})
}

func TestArguments_ConfigBindingWithoutBinder(t *testing.T) {
	t.Parallel()

	_, err := activator.ResolveArguments(
		activator.NewSpecification(activator.ConfigBinding{Section: "Mail", Shape: reflect.TypeFor[MailSettings]()}),
		activator.Environment{},
	)
	assert.ErrorIs(t, err, activator.ErrUnknownParameter)
}

func TestArguments_Laziness(t *testing.T) {
	t.Parallel()

	t.Run("parameters resolve in declaration order as the sequence advances", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) activator.Parameter {
			return activator.Factory(func(activator.Resolver) (any, error) {
				order = append(order, name)
				return name, nil
			})
		}

		seq := activator.Arguments(
			activator.NewSpecification(record("a"), record("b"), record("c")),
			activator.Environment{Activator: newFakeActivator()},
		)

		for value, err := range seq {
			require.NoError(t, err)
			if value == "b" {
				break
			}
		}

		assert.Equal(t, []string{"a", "b"}, order)
	})

	t.Run("the sequence is single use", func(t *testing.T) {
		t.Parallel()

		seq := activator.Arguments(
			activator.NewSpecification(activator.Value(1)),
			activator.Environment{},
		)

		for _, err := range seq {
			require.NoError(t, err)
		}

		var second []error
		for _, err := range seq {
			second = append(second, err)
		}
		require.Len(t, second, 1)
		assert.ErrorIs(t, second[0], activator.ErrArgumentsConsumed)
	})

	t.Run("resolution stops at the first failure", func(t *testing.T) {
		t.Parallel()

		called := false
		spec := activator.NewSpecification(
			activator.Factory(func(activator.Resolver) (any, error) { return nil, errBoom }),
			activator.Factory(func(activator.Resolver) (any, error) {
				called = true
				return nil, nil
			}),
		)

		var errs []error
		for _, err := range activator.Arguments(spec, activator.Environment{Activator: newFakeActivator()}) {
			errs = append(errs, err)
		}

		require.Len(t, errs, 1)
		assert.True(t, errors.Is(errs[0], errBoom))
		assert.False(t, called)
	})

	t.Run("the same specification resolves concurrently", func(t *testing.T) {
		t.Parallel()

		a := newFakeActivator()
		a.constructors[reflect.TypeFor[*TypeB]()] = NewTypeB
		tracker := activator.NewTracker()
		spec := activator.NewBuilder().
			Value("x").
			Activate(reflect.TypeFor[*TypeB](), func(b *activator.Builder) { b.Value("c") }).
			Build()

		const workers = 16
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := activator.ResolveArguments(spec, activator.Environment{Activator: a, Tracker: tracker})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, workers, tracker.Len())
	})
}
