package activator_test

import (
	"context"
	"fmt"
	"log"
	"reflect"

	"github.com/junioryono/activator"
	"github.com/junioryono/activator/config"
)

// Example registers a repository whose database client is activated with
// its own connection string.
func Example() {
	services := activator.NewCollection()

	j := newJournal()
	services.AddSingleton(j)
	services.AddSingleton(NewLogger)
	services.AddTransient(NewDatabaseClient, activator.Parameters(func(b *activator.Builder) {
		b.Value("default")
	}))
	services.AddScoped(NewCustomerRepository,
		activator.As(new(CustomerStore)),
		activator.Parameters(func(b *activator.Builder) {
			b.Value("customers")
			b.Activate(reflect.TypeFor[*DatabaseClient](), func(b *activator.Builder) {
				b.Value("connection1")
			})
		}))

	provider, err := services.Build()
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close()

	scope, _ := provider.CreateScope(context.Background())

	store, err := activator.Resolve[CustomerStore](scope)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(store.Name(), store.Client().ConnectionString())

	scope.Close()
	fmt.Println(j.list())
	// Output:
	// customers connection1
	// [repo:customers db:connection1]
}

// ExampleParameters shows that a transient registration gets a fresh
// nested instance for every resolution while lookups stay shared.
func ExampleParameters() {
	services := activator.NewCollection()
	services.AddSingleton(NewTypeA)
	services.AddTransient(NewTypeB, activator.Parameters(func(b *activator.Builder) {
		b.Value("registered")
	}))
	services.AddTransient(NewConsumer, activator.Parameters(func(b *activator.Builder) {
		b.Value("hello")
		b.Type(reflect.TypeFor[*TypeA]())
		b.Activate(reflect.TypeFor[*TypeB](), func(b *activator.Builder) {
			b.Value("conn1")
		})
	}))

	provider, _ := services.Build()
	defer provider.Close()

	first, _ := activator.Resolve[*Consumer](provider)
	second, _ := activator.Resolve[*Consumer](provider)

	fmt.Println(first.Greeting, first.B.Conn)
	fmt.Println(first.A == second.A, first.B == second.B)
	// Output:
	// hello conn1
	// true false
}

// ExampleResolveArguments resolves a specification directly against a
// scope.
func ExampleResolveArguments() {
	services := activator.NewCollection()
	services.AddSingleton(NewLogger)

	provider, _ := services.Build()
	defer provider.Close()

	scope, _ := provider.CreateScope(context.Background())
	defer scope.Close()

	spec := activator.NewBuilder().
		Value(42).
		Type(reflect.TypeFor[*Logger]()).
		ActivateFunc(NewTypeB, func(b *activator.Builder) {
			b.Value("adhoc")
		}).
		Build()

	fmt.Println(spec)

	args, err := activator.ResolveArguments(spec, activator.Environment{
		Activator: scope,
		Tracker:   scope.Activations(),
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(args[0], args[1].(*Logger).Name, args[2].(*TypeB).Conn)
	fmt.Println(scope.Activations().Len())
	// Output:
	// [Value(42), Type(*Logger), Activate(*TypeB, [Value("adhoc")])]
	// 42 default adhoc
	// 1
}

// ExampleOptionsOf binds a configuration section into a constructor
// argument.
func ExampleOptionsOf() {
	cfg := config.FromMap(map[string]any{
		"Mail:Host": "smtp.example.com",
		"Mail:Port": "25",
	})

	services := activator.NewCollection()
	services.AddSingleton(NewMailer, activator.Parameters(func(b *activator.Builder) {
		b.Add(activator.OptionsOf[MailSettings]("Mail"))
	}))

	provider, err := services.BuildWithOptions(&activator.ProviderOptions{Configuration: cfg})
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close()

	mailer, _ := activator.Resolve[*Mailer](provider)
	fmt.Printf("%s:%d\n", mailer.Settings.Host, mailer.Settings.Port)
	// Output: smtp.example.com:25
}

// ExampleTracker disposes tracked instances in reverse order.
func ExampleTracker() {
	j := newJournal()
	tracker := activator.NewTracker()

	tracker.Track(&resource{name: "first", journal: j})
	tracker.Track(&resource{name: "second", journal: j})
	tracker.Track("not disposable")

	fmt.Println(tracker.Len())
	_ = tracker.DisposeAll()
	fmt.Println(j.list(), tracker.Len())
	// Output:
	// 2
	// [second first] 0
}

// ExampleActivateIn creates an instance with explicit arguments outside of
// any registration.
func ExampleActivateIn() {
	services := activator.NewCollection()
	services.AddSingleton(newJournal())
	services.AddTransient(NewDatabaseClient, activator.Parameters(func(b *activator.Builder) {
		b.Value("default")
	}))

	provider, _ := services.Build()
	defer provider.Close()

	scope, _ := provider.CreateScope(context.Background())

	client, err := activator.ActivateIn[*DatabaseClient](scope, func(b *activator.Builder) {
		b.Value("reporting")
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(client.ConnectionString())

	scope.Close()
	fmt.Println(client.Closed())
	// Output:
	// reporting
	// 1
}
