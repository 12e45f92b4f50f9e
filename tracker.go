package activator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Tracker owns the instances produced by nested activations. Those
// instances bypass the container's caches, so the container would never
// dispose them on its own.
//
// Disposable instances are released in reverse order of tracking, each
// exactly once. A Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	instances []owned
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Track records instance for disposal when it is Disposable or
// DisposableWithContext and returns it unchanged. Other values are
// returned without being recorded. A nil Tracker records nothing.
func (t *Tracker) Track(instance any) any {
	if t == nil {
		return instance
	}

	entry, ok := own(instance)
	if !ok {
		return instance
	}

	t.mu.Lock()
	t.instances = append(t.instances, entry)
	t.mu.Unlock()

	return instance
}

// Len returns the number of instances awaiting disposal.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.instances)
}

// DisposeAll disposes every tracked instance, most recent first.
// See DisposeAllContext.
func (t *Tracker) DisposeAll() error {
	return t.DisposeAllContext(context.Background())
}

// DisposeAllContext disposes every tracked instance, most recent first,
// passing ctx to DisposableWithContext instances. A failing instance does
// not stop the sweep; all failures are returned together as a
// DisposalError. Instances tracked while the sweep runs are disposed by the
// same call. Calling it again only disposes what was tracked since.
func (t *Tracker) DisposeAllContext(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for {
		entry, ok := t.pop()
		if !ok {
			break
		}

		if err := dispose(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return DisposalError{Context: "activation", Errors: errs}
	}

	return nil
}

func (t *Tracker) pop() (owned, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.instances)
	if n == 0 {
		return owned{}, false
	}

	entry := t.instances[n-1]
	t.instances[n-1] = owned{}
	t.instances = t.instances[:n-1]
	return entry, true
}

// drain removes and returns every tracked instance in tracking order.
func (t *Tracker) drain() []owned {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.instances
	t.instances = nil
	return entries
}

func dispose(ctx context.Context, entry owned) error {
	if err := entry.dispose(ctx); err != nil {
		return fmt.Errorf("%s: %w", formatType(reflect.TypeOf(entry.instance)), err)
	}
	return nil
}
