// Package store holds the server's locks in memory.
//
// Every operation is atomic with respect to every other: no caller can
// observe a partially applied create, acquire, release or delete, and the
// check-then-mutate of acquire and release never interleaves with another
// mutation of the same key. Values handed out are copies; nothing outside
// the store holds a reference into its state.
//
// Expired leases are reclaimed lazily by the next acquire of the same key.
// There is no background sweeper.
package store

import (
	"fmt"
	"time"

	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
)

// Store is the lock store contract shared by every engine.
type Store interface {
	// Create inserts an unacquired lock at clock 0.
	// Returns types.ErrAlreadyExists if key is present.
	Create(key string) error

	// Acquire takes the lock for lease if it is free or its lease has lapsed
	// and returns the held lock. If another holder's lease is still live it
	// returns the current lock with Acquired=false and no mutation.
	// Returns types.ErrNotFound if key is absent.
	Acquire(key string, lease time.Duration) (types.Lock, error)

	// Release marks the lock free if clock is its current fencing token.
	// Returns types.ErrNotFound or a *types.UnreleasableError.
	Release(key string, clock uint64) error

	// Get returns a copy of the lock or types.ErrNotFound.
	Get(key string) (types.Lock, error)

	// Delete removes the lock or returns types.ErrNotFound.
	Delete(key string) error

	// List returns copies of all locks sorted by key.
	List() []types.Lock

	// Stats reports current counters.
	Stats() Stats
}

// current store stats
type Stats struct {
	Locks        int    //locks in the store
	Held         int    //locks acquired with a live lease
	Acquisitions uint64 //successful acquisitions since start
}

// Engine names a Store implementation.
type Engine string

const (
	EngineMemory  Engine = "memory"
	EngineSharded Engine = "sharded"
)

type options struct {
	clock tm.Clock
}

// Option configures a store.
type Option func(*options)

// WithClock sets the time source used for lease expiry.
func WithClock(c tm.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: tm.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the store for engine.
func New(engine Engine, opts ...Option) (Store, error) {
	switch engine {
	case EngineMemory, "":
		return NewMemoryStore(opts...), nil
	case EngineSharded:
		return NewShardedStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown store engine %q (expected %s or %s)", engine, EngineMemory, EngineSharded)
	}
}

// snapshot of a lock that a caller failed to acquire
func notAcquired(l types.Lock) types.Lock {
	l.Acquired = false
	return l
}
