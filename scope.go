package activator

import (
	"cmp"
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/junioryono/activator/config"
)

// Scope defines a disposable service scope.
// Scopes are used to control the lifetime of scoped services and of the
// instances created by nested activations.
//
// In web applications, a scope is typically created for each HTTP request,
// ensuring that services like database connections are properly managed
// and disposed at the end of the request.
//
// Example:
//
//	scope, err := provider.CreateScope(ctx)
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	repo, err := activator.Resolve[*CustomerRepository](scope)
type Scope interface {
	Activator
	Disposable

	// ID returns the unique ID of this scope.
	ID() string

	// Context returns the context associated with this scope.
	Context() context.Context

	// Provider returns the provider this scope belongs to.
	Provider() Provider

	// Parent returns the parent scope, or nil for the root scope.
	Parent() Scope

	// IsRootScope returns true if this is the provider's root scope.
	IsRootScope() bool

	// IsDisposed reports whether the scope has been closed.
	IsDisposed() bool

	// CreateScope creates a child scope. Closing this scope closes the
	// child as well.
	CreateScope(ctx context.Context) (Scope, error)

	// Activations returns the tracker that owns the instances created by
	// nested activations resolved in this scope. Instances created by hand
	// can be added to it so the scope disposes them.
	Activations() *Tracker
}

// Types that every scope resolves without registration.
var (
	scopeType         = reflect.TypeFor[Scope]()
	resolverType      = reflect.TypeFor[Resolver]()
	activatorType     = reflect.TypeFor[Activator]()
	providerType      = reflect.TypeFor[Provider]()
	contextType       = reflect.TypeFor[context.Context]()
	configurationType = reflect.TypeFor[config.Configuration]()
)

func isBuiltin(t reflect.Type) bool {
	switch t {
	case scopeType, resolverType, activatorType, providerType, contextType, configurationType:
		return true
	default:
		return false
	}
}

type scope struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	stop     func() bool
	provider *provider
	parent   *scope

	mu          sync.Mutex
	instances   map[*Descriptor]*slot // scoped instances
	disposables []owned               // container-managed instances
	children    map[*scope]struct{}

	tracker  *Tracker
	disposed atomic.Bool
}

func newScope(p *provider, parent *scope, ctx context.Context) *scope {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &scope{
		id:        uuid.NewString(),
		provider:  p,
		parent:    parent,
		instances: make(map[*Descriptor]*slot),
		children:  make(map[*scope]struct{}),
		tracker:   NewTracker(),
	}

	s.ctx, s.cancel = context.WithCancel(contextWithScope(ctx, s))

	if parent != nil {
		// Closing the scope when the caller's context ends.
		s.stop = context.AfterFunc(ctx, func() {
			_ = s.Close()
		})
	}

	return s
}

func (s *scope) ID() string {
	return s.id
}

func (s *scope) Context() context.Context {
	return s.ctx
}

func (s *scope) Provider() Provider {
	return s.provider
}

func (s *scope) Parent() Scope {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

func (s *scope) IsRootScope() bool {
	return s.parent == nil
}

func (s *scope) IsDisposed() bool {
	return s.disposed.Load()
}

func (s *scope) Activations() *Tracker {
	return s.tracker
}

// CreateScope creates a child scope.
func (s *scope) CreateScope(ctx context.Context) (Scope, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}

	if ctx == nil {
		ctx = s.ctx
	}

	child := newScope(s.provider, s, ctx)

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		child.stop()
		child.cancel()
		return nil, ErrScopeDisposed
	}
	s.children[child] = struct{}{}
	s.mu.Unlock()

	return child, nil
}

// Get resolves serviceType in this scope.
func (s *scope) Get(serviceType reflect.Type) (any, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}

	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	start := time.Now()
	instance, err := s.resolution().Get(serviceType)

	opts := &s.provider.options
	if err != nil {
		if opts.OnServiceError != nil {
			opts.OnServiceError(serviceType, err)
		}
		return nil, err
	}

	if opts.OnServiceResolved != nil {
		opts.OnServiceResolved(serviceType, instance, time.Since(start))
	}

	return instance, nil
}

// CreateInstance constructs implementationType without caching it. args
// fill the leading constructor parameters; the rest are resolved in this
// scope.
func (s *scope) CreateInstance(implementationType reflect.Type, args ...any) (any, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}

	return s.resolution().CreateInstance(implementationType, args...)
}

// Invoke calls constructor. args fill its leading parameters; the rest are
// resolved in this scope.
func (s *scope) Invoke(constructor any, args ...any) (any, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}

	return s.resolution().Invoke(constructor, args...)
}

// Close disposes the scope. Child scopes are closed first. Then the
// container-managed instances and the tracked activations of this scope are
// disposed together, most recently created first. The root scope can only
// be closed through its provider.
func (s *scope) Close() error {
	if s.parent == nil {
		return s.provider.Close()
	}
	return s.close()
}

func (s *scope) close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	if s.stop != nil {
		s.stop()
	}
	defer s.cancel()

	if s.parent != nil {
		s.parent.mu.Lock()
		delete(s.parent.children, s)
		s.parent.mu.Unlock()
	}

	s.mu.Lock()
	children := make([]*scope, 0, len(s.children))
	for child := range s.children {
		children = append(children, child)
	}
	s.children = nil
	managed := s.disposables
	s.disposables = nil
	s.instances = nil
	s.mu.Unlock()

	var errs []error
	for _, child := range children {
		if err := child.close(); err != nil {
			errs = append(errs, err)
		}
	}

	// Both lists are in creation order; dispose the merged list backwards.
	entries := append(managed, s.tracker.drain()...)
	slices.SortStableFunc(entries, func(a, b owned) int {
		return cmp.Compare(a.seq, b.seq)
	})

	// The scope context may already be cancelled when the scope closes
	// because its caller's context ended.
	ctx := context.WithoutCancel(s.ctx)
	for i := len(entries) - 1; i >= 0; i-- {
		if err := dispose(ctx, entries[i]); err != nil {
			errs = append(errs, err)
		}
	}

	// Activations tracked while the sweep ran.
	if err := s.tracker.DisposeAllContext(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return DisposalError{Context: "scope", Errors: errs}
	}

	return nil
}

// capture makes the scope responsible for disposing a container-managed
// instance.
func (s *scope) capture(instance any) {
	entry, ok := own(instance)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposables = append(s.disposables, entry)
}

// scopedSlot returns the cache slot for a scoped descriptor.
func (s *scope) scopedSlot(d *Descriptor) (*slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.instances == nil {
		return nil, ErrScopeDisposed
	}

	sl, ok := s.instances[d]
	if !ok {
		sl = &slot{}
		s.instances[d] = sl
	}
	return sl, nil
}

func (s *scope) resolution() *resolution {
	return &resolution{scope: s}
}

// scopeContextKey is the key for storing the current scope in context.
type scopeContextKey struct{}

func contextWithScope(ctx context.Context, s *scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// FromContext returns the scope stored in ctx. Every scope's Context
// carries the scope itself.
func FromContext(ctx context.Context) (Scope, error) {
	if ctx == nil {
		return nil, ErrScopeNotInContext
	}

	s, ok := ctx.Value(scopeContextKey{}).(*scope)
	if !ok || s == nil {
		return nil, ErrScopeNotInContext
	}

	if s.IsDisposed() {
		return nil, ErrScopeDisposed
	}

	return s, nil
}
