package store

import (
	"sort"
	"sync/atomic"
	"time"

	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
	"github.com/puzpuzpuz/xsync/v3"
)

// ShardedStore locks per key instead of per store.
// every check-then-mutate runs inside xsync's Compute, which is atomic for
// its key, so operations on different keys never contend
type ShardedStore struct {
	locks *xsync.MapOf[string, types.Lock]

	acquisitions atomic.Uint64

	clock tm.Clock
}

func NewShardedStore(opts ...Option) *ShardedStore {
	o := buildOptions(opts)
	return &ShardedStore{
		locks: xsync.NewMapOf[string, types.Lock](),
		clock: o.clock,
	}
}

func (s *ShardedStore) Create(key string) error {
	if _, loaded := s.locks.LoadOrStore(key, types.NewLock(key)); loaded {
		return types.ErrAlreadyExists
	}
	return nil
}

func (s *ShardedStore) Acquire(key string, lease time.Duration) (types.Lock, error) {
	var (
		result types.Lock
		err    error
	)

	s.locks.Compute(key, func(lock types.Lock, loaded bool) (types.Lock, bool) {
		if !loaded {
			err = types.ErrNotFound
			return lock, true
		}

		now := s.clock.Now()
		if !lock.Available(now) {
			result = notAcquired(lock)
			return lock, false
		}

		lock.Acquire(now, lease)
		s.acquisitions.Add(1)
		result = lock
		return lock, false
	})

	return result, err
}

func (s *ShardedStore) Release(key string, clock uint64) error {
	var err error

	s.locks.Compute(key, func(lock types.Lock, loaded bool) (types.Lock, bool) {
		if !loaded {
			err = types.ErrNotFound
			return lock, true
		}
		err = lock.Release(clock)
		return lock, false
	})

	return err
}

func (s *ShardedStore) Get(key string) (types.Lock, error) {
	lock, ok := s.locks.Load(key)
	if !ok {
		return types.Lock{}, types.ErrNotFound
	}
	return lock, nil
}

func (s *ShardedStore) Delete(key string) error {
	if _, loaded := s.locks.LoadAndDelete(key); !loaded {
		return types.ErrNotFound
	}
	return nil
}

func (s *ShardedStore) List() []types.Lock {
	locks := make([]types.Lock, 0, s.locks.Size())
	s.locks.Range(func(_ string, lock types.Lock) bool {
		locks = append(locks, lock)
		return true
	})
	sort.Slice(locks, func(i, j int) bool { return locks[i].Key < locks[j].Key })

	return locks
}

func (s *ShardedStore) Stats() Stats {
	now := s.clock.Now()
	stats := Stats{Acquisitions: s.acquisitions.Load()}
	s.locks.Range(func(_ string, lock types.Lock) bool {
		stats.Locks++
		if !lock.Available(now) {
			stats.Held++
		}
		return true
	})
	return stats
}
