package activator_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junioryono/activator"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// journal records disposal order across instances.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Logger is a plain, non-disposable service.
type Logger struct {
	Name string
}

func NewLogger() *Logger {
	return &Logger{Name: "default"}
}

// DBClient is implemented by DatabaseClient.
type DBClient interface {
	ConnectionString() string
}

// DatabaseClient takes its connection string as an explicit argument and
// its journal from the container.
type DatabaseClient struct {
	Conn    string
	closed  atomic.Int32
	journal *journal
}

func NewDatabaseClient(conn string, j *journal) *DatabaseClient {
	return &DatabaseClient{Conn: conn, journal: j}
}

func (c *DatabaseClient) ConnectionString() string { return c.Conn }

func (c *DatabaseClient) Close() error {
	c.closed.Add(1)
	if c.journal != nil {
		c.journal.add("db:" + c.Conn)
	}
	return nil
}

func (c *DatabaseClient) Closed() int { return int(c.closed.Load()) }

// CustomerStore is implemented by CustomerRepository.
type CustomerStore interface {
	Name() string
	Client() DBClient
}

// CustomerRepository mixes explicit and container supplied arguments.
type CustomerRepository struct {
	label   string
	client  DBClient
	Logger  *Logger
	closed  atomic.Int32
	journal *journal
}

func NewCustomerRepository(label string, client DBClient, logger *Logger, j *journal) *CustomerRepository {
	return &CustomerRepository{label: label, client: client, Logger: logger, journal: j}
}

func (r *CustomerRepository) Name() string     { return r.label }
func (r *CustomerRepository) Client() DBClient { return r.client }

func (r *CustomerRepository) Close() error {
	r.closed.Add(1)
	if r.journal != nil {
		r.journal.add("repo:" + r.label)
	}
	return nil
}

func (r *CustomerRepository) Closed() int { return int(r.closed.Load()) }

// TypeA, TypeB and Consumer model the canonical three-argument scenario.
type TypeA struct{ ID int }

var typeACounter atomic.Int64

func NewTypeA() *TypeA {
	return &TypeA{ID: int(typeACounter.Add(1))}
}

type TypeB struct {
	Conn   string
	closed atomic.Bool
}

func NewTypeB(conn string) *TypeB {
	return &TypeB{Conn: conn}
}

func (b *TypeB) Close() error {
	b.closed.Store(true)
	return nil
}

type Consumer struct {
	Greeting string
	A        *TypeA
	B        *TypeB
}

func NewConsumer(greeting string, a *TypeA, b *TypeB) *Consumer {
	return &Consumer{Greeting: greeting, A: a, B: b}
}

// resource is a disposable with a configurable failure.
type resource struct {
	name    string
	err     error
	closed  atomic.Int32
	journal *journal
}

func (r *resource) Close() error {
	r.closed.Add(1)
	if r.journal != nil {
		r.journal.add(r.name)
	}
	return r.err
}

// contextResource is disposed with the owner's context.
type contextResource struct {
	name    string
	ctx     context.Context
	journal *journal
	done    chan struct{} // closed after disposal when set
}

func (r *contextResource) Close(ctx context.Context) error {
	r.ctx = ctx
	if r.journal != nil {
		r.journal.add(r.name)
	}
	if r.done != nil {
		close(r.done)
	}
	return nil
}

// MailSettings is bound from configuration.
type MailSettings struct {
	Host string
	Port int
}

// Mailer receives bound settings.
type Mailer struct {
	Settings MailSettings
}

func NewMailer(opts activator.Options[MailSettings]) *Mailer {
	return &Mailer{Settings: *opts.Value()}
}

// Circular registrations.
type CircularA struct{ B *CircularB }
type CircularB struct{ A *CircularA }

func NewCircularA(b *CircularB) *CircularA { return &CircularA{B: b} }
func NewCircularB(a *CircularA) *CircularB { return &CircularB{A: a} }

var errBoom = errors.New("boom")

// ============================================================================
// Fake activator
// ============================================================================

// fakeActivator records every container interaction made by the engine.
type fakeActivator struct {
	mu           sync.Mutex
	calls        []string
	services     map[reflect.Type]any
	constructors map[reflect.Type]any
}

func newFakeActivator() *fakeActivator {
	return &fakeActivator{
		services:     make(map[reflect.Type]any),
		constructors: make(map[reflect.Type]any),
	}
}

func (f *fakeActivator) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeActivator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeActivator) Get(serviceType reflect.Type) (any, error) {
	f.record("Get(%v)", serviceType)
	if s, ok := f.services[serviceType]; ok {
		return s, nil
	}
	return nil, activator.ErrServiceNotFound
}

func (f *fakeActivator) CreateInstance(implementationType reflect.Type, args ...any) (any, error) {
	f.record("CreateInstance(%v, %v)", implementationType, args)
	constructor, ok := f.constructors[implementationType]
	if !ok {
		return nil, activator.ErrConstructorNotFound
	}
	return call(constructor, args)
}

func (f *fakeActivator) Invoke(constructor any, args ...any) (any, error) {
	f.record("Invoke(%v)", args)
	return call(constructor, args)
}

func call(constructor any, args []any) (any, error) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}
	out := reflect.ValueOf(constructor).Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// ============================================================================
// Test Helpers
// ============================================================================

// buildProvider creates a provider from the given module options.
// Automatically registers cleanup.
func buildProvider(t *testing.T, opts ...activator.ModuleOption) activator.Provider {
	t.Helper()
	return buildProviderWithOptions(t, nil, opts...)
}

// buildProviderWithOptions is buildProvider with provider options.
func buildProviderWithOptions(t *testing.T, options *activator.ProviderOptions, opts ...activator.ModuleOption) activator.Provider {
	t.Helper()
	c := activator.NewCollection()
	require.NoError(t, c.AddModules(opts...))
	p, err := c.BuildWithOptions(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// buildScope creates a child scope of p.
// Automatically registers cleanup.
func buildScope(t *testing.T, p activator.Provider) activator.Scope {
	t.Helper()
	s, err := p.CreateScope(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// requireResolve resolves a service or fails the test.
func requireResolve[T any](t *testing.T, r activator.Resolver) T {
	t.Helper()
	v, err := activator.Resolve[T](r)
	require.NoError(t, err)
	return v
}

// dataModule registers the journal, the logger and the database client.
func dataModule(j *journal) activator.ModuleOption {
	return activator.NewModule("data",
		activator.AddSingleton(j),
		activator.AddSingleton(NewLogger),
		activator.AddTransient(NewDatabaseClient, activator.Parameters(func(b *activator.Builder) {
			b.Value("default")
		})),
	)
}
