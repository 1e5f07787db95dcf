package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
)

// MemoryStore guards a single map with one mutex.
// all mutations go through Apply so the critical section is in one place
type MemoryStore struct {
	mu sync.RWMutex

	locks map[string]*types.Lock // key -> Lock

	acquisitions uint64 // successful acquisitions

	clock tm.Clock
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		locks: make(map[string]*types.Lock),
		clock: o.clock,
	}
}

// applies a command to the store and returns a copy of the affected lock
func (s *MemoryStore) Apply(cmd types.Command) (types.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case types.CreateLockCmd:
		return s.applyCreate(c)
	case types.AcquireLockCmd:
		return s.applyAcquire(c)
	case types.ReleaseLockCmd:
		return s.applyRelease(c)
	case types.DeleteLockCmd:
		return s.applyDelete(c)
	default:
		return types.Lock{}, fmt.Errorf("unknown command type: %T", cmd)
	}
}

func (s *MemoryStore) applyCreate(cmd types.CreateLockCmd) (types.Lock, error) {
	if _, exists := s.locks[cmd.Key]; exists {
		return types.Lock{}, types.ErrAlreadyExists
	}

	lock := types.NewLock(cmd.Key)
	s.locks[cmd.Key] = &lock

	return lock, nil
}

func (s *MemoryStore) applyAcquire(cmd types.AcquireLockCmd) (types.Lock, error) {
	lock, exists := s.locks[cmd.Key]
	if !exists {
		return types.Lock{}, types.ErrNotFound
	}

	now := s.clock.Now()

	//held by someone with a live lease, report without touching it
	if !lock.Available(now) {
		return notAcquired(*lock), nil
	}

	lock.Acquire(now, cmd.Lease)
	s.acquisitions++

	return *lock, nil
}

func (s *MemoryStore) applyRelease(cmd types.ReleaseLockCmd) (types.Lock, error) {
	lock, exists := s.locks[cmd.Key]
	if !exists {
		return types.Lock{}, types.ErrNotFound
	}

	if err := lock.Release(cmd.Clock); err != nil {
		return *lock, err
	}

	return *lock, nil
}

func (s *MemoryStore) applyDelete(cmd types.DeleteLockCmd) (types.Lock, error) {
	lock, exists := s.locks[cmd.Key]
	if !exists {
		return types.Lock{}, types.ErrNotFound
	}

	delete(s.locks, cmd.Key)

	return *lock, nil
}

func (s *MemoryStore) Create(key string) error {
	_, err := s.Apply(types.CreateLockCmd{Key: key})
	return err
}

func (s *MemoryStore) Acquire(key string, lease time.Duration) (types.Lock, error) {
	return s.Apply(types.AcquireLockCmd{Key: key, Lease: lease})
}

func (s *MemoryStore) Release(key string, clock uint64) error {
	_, err := s.Apply(types.ReleaseLockCmd{Key: key, Clock: clock})
	return err
}

func (s *MemoryStore) Delete(key string) error {
	_, err := s.Apply(types.DeleteLockCmd{Key: key})
	return err
}

func (s *MemoryStore) Get(key string) (types.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, exists := s.locks[key]
	if !exists {
		return types.Lock{}, types.ErrNotFound
	}
	return *lock, nil
}

func (s *MemoryStore) List() []types.Lock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locks := make([]types.Lock, 0, len(s.locks))
	for _, lock := range s.locks {
		locks = append(locks, *lock)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Key < locks[j].Key })

	return locks
}

func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	stats := Stats{
		Locks:        len(s.locks),
		Acquisitions: s.acquisitions,
	}
	for _, lock := range s.locks {
		if !lock.Available(now) {
			stats.Held++
		}
	}
	return stats
}
