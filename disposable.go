package activator

import (
	"context"
	"sync/atomic"
)

// Disposable is implemented by instances that hold resources which must be
// released when their owner (a scope or an activation tracker) is torn down.
//
// Example:
//
//	type DatabaseClient struct {
//	    conn *sql.DB
//	}
//
//	func (c *DatabaseClient) Close() error {
//	    return c.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware variant of Disposable. The
// owning scope passes its own context when disposing.
//
// Example:
//
//	func (c *Consumer) Close(ctx context.Context) error {
//	    done := make(chan error, 1)
//	    go func() { done <- c.conn.Close() }()
//
//	    select {
//	    case err := <-done:
//	        return err
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    }
//	}
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// disposer normalizes both disposal shapes into one call.
type disposer func(ctx context.Context) error

// asDisposer returns the disposal function for instance, or nil when the
// instance exposes no disposal capability.
func asDisposer(instance any) disposer {
	switch v := instance.(type) {
	case Disposable:
		return func(context.Context) error { return v.Close() }
	case DisposableWithContext:
		return v.Close
	default:
		return nil
	}
}

// creationSeq orders owned instances across owners. A scope disposes its
// container-managed instances and its tracked activations as one sequence,
// newest first.
var creationSeq atomic.Uint64

// owned is a disposable instance recorded by exactly one owner.
type owned struct {
	instance any
	dispose  disposer
	seq      uint64
}

// own returns the ownership record for instance, or false when it has no
// disposal capability.
func own(instance any) (owned, bool) {
	dispose := asDisposer(instance)
	if dispose == nil {
		return owned{}, false
	}
	return owned{instance: instance, dispose: dispose, seq: creationSeq.Add(1)}, true
}
