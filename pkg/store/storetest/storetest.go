// Package storetest is a conformance suite run against every store engine.
package storetest

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/daniel-salmon/distlock/pkg/store"
	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Epoch is the start time of every manual clock in the suite.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Factory builds a fresh store reading time from clock.
type Factory func(clock tm.Clock) store.Store

// Run executes the suite against the engine built by factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"CreateGetRoundTrip", testCreateGetRoundTrip},
		{"CreateDuplicate", testCreateDuplicate},
		{"MissingKey", testMissingKey},
		{"AcquireHeldLeavesLockUntouched", testAcquireHeld},
		{"ExpiryEnablesReclamation", testExpiryEnablesReclamation},
		{"ReleaseAuthorization", testReleaseAuthorization},
		{"StaleReleaseRejected", testStaleReleaseRejected},
		{"FencingTokenMonotonicity", testFencingTokenMonotonicity},
		{"Delete", testDelete},
		{"ListSortedSnapshot", testListSortedSnapshot},
		{"SnapshotsDoNotAlias", testSnapshotsDoNotAlias},
		{"Stats", testStats},
		{"ConcurrentAcquireSingleHolder", testConcurrentAcquire},
		{"ConcurrentAcquireRelease", testConcurrentAcquireRelease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory)
		})
	}
}

func newStore(factory Factory) (store.Store, *tm.ManualClock) {
	clock := tm.NewManualClock(Epoch)
	return factory(clock), clock
}

func testCreateGetRoundTrip(t *testing.T, factory Factory) {
	s, _ := newStore(factory)

	require.NoError(t, s.Create("k"))

	lock, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "k", lock.Key)
	assert.False(t, lock.Acquired)
	assert.Equal(t, uint64(0), lock.Clock)
}

func testCreateDuplicate(t *testing.T, factory Factory) {
	s, _ := newStore(factory)

	require.NoError(t, s.Create("k"))
	_, err := s.Acquire("k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Create("k"), types.ErrAlreadyExists)

	//failed create has no side effect
	lock, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, lock.Acquired)
	assert.Equal(t, uint64(1), lock.Clock)
}

func testMissingKey(t *testing.T, factory Factory) {
	s, _ := newStore(factory)

	_, err := s.Acquire("missing", time.Minute)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, s.Release("missing", 0), types.ErrNotFound)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, s.Delete("missing"), types.ErrNotFound)

	assert.Empty(t, s.List(), "acquire on a missing key must not create it")
}

func testAcquireHeld(t *testing.T, factory Factory) {
	s, clock := newStore(factory)
	require.NoError(t, s.Create("k"))

	held, err := s.Acquire("k", 3*time.Second)
	require.NoError(t, err)
	require.True(t, held.Acquired)

	clock.Advance(time.Second)

	lost, err := s.Acquire("k", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, lost.Acquired)
	assert.Equal(t, held.Clock, lost.Clock)
	assert.Equal(t, held.ExpiresAt, lost.ExpiresAt)

	stored, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, held, stored)
}

func testExpiryEnablesReclamation(t *testing.T, factory Factory) {
	s, clock := newStore(factory)
	require.NoError(t, s.Create("k"))

	first, err := s.Acquire("k", 3*time.Second)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	clock.Advance(3 * time.Second)

	//still reads acquired until the next attempt re-evaluates it
	stale, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, stale.Acquired)

	second, err := s.Acquire("k", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, second.Acquired)
	assert.Equal(t, first.Clock+1, second.Clock)
	assert.Equal(t, Epoch.Add(6*time.Second), second.ExpiresAt)
}

func testReleaseAuthorization(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("k"))

	lock, err := s.Acquire("k", time.Minute)
	require.NoError(t, err)

	for _, clock := range []uint64{0, lock.Clock + 1, lock.Clock + 100} {
		err := s.Release("k", clock)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrUnreleasable)

		var unreleasable *types.UnreleasableError
		require.True(t, errors.As(err, &unreleasable))
		assert.Equal(t, lock.Clock, unreleasable.Expected)
		assert.Equal(t, clock, unreleasable.Presented)

		current, err := s.Get("k")
		require.NoError(t, err)
		assert.True(t, current.Acquired, "rejected release must not change acquired")
	}

	require.NoError(t, s.Release("k", lock.Clock))

	current, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, current.Acquired)
	assert.Equal(t, lock.Clock, current.Clock)
}

func testStaleReleaseRejected(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("x"))

	local, err := s.Get("x")
	require.NoError(t, err)
	local.Clock++

	assert.ErrorIs(t, s.Release("x", local.Clock), types.ErrUnreleasable)

	current, err := s.Get("x")
	require.NoError(t, err)
	assert.False(t, current.Acquired)
	assert.Equal(t, uint64(0), current.Clock)
}

func testFencingTokenMonotonicity(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("k"))

	const acquisitions = 25
	var last uint64
	for i := 0; i < acquisitions; i++ {
		lock, err := s.Acquire("k", time.Minute)
		require.NoError(t, err)
		require.True(t, lock.Acquired)
		assert.Greater(t, lock.Clock, last, "tokens must be strictly increasing")
		last = lock.Clock

		require.NoError(t, s.Release("k", lock.Clock))

		released, err := s.Get("k")
		require.NoError(t, err)
		assert.Equal(t, last, released.Clock, "release must not move the clock")
	}

	assert.Equal(t, uint64(acquisitions), last)
}

func testDelete(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("k"))
	_, err := s.Acquire("k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Delete("k"))

	_, err = s.Get("k")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, s.Delete("k"), types.ErrNotFound)

	//recreating starts the lifecycle over
	require.NoError(t, s.Create("k"))
	lock, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lock.Clock)
}

func testListSortedSnapshot(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	for _, key := range []string{"pizza", "a_lock", "another_lock"} {
		require.NoError(t, s.Create(key))
	}

	locks := s.List()
	require.Len(t, locks, 3)
	assert.Equal(t, "a_lock", locks[0].Key)
	assert.Equal(t, "another_lock", locks[1].Key)
	assert.Equal(t, "pizza", locks[2].Key)

	assert.Equal(t, locks, s.List(), "list must be stable for an unmutated store")
}

func testSnapshotsDoNotAlias(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("k"))

	lock, err := s.Acquire("k", time.Minute)
	require.NoError(t, err)
	lock.Clock = 42
	lock.Acquired = false

	listed := s.List()
	listed[0].Clock = 99

	current, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Clock)
	assert.True(t, current.Acquired)
}

func testStats(t *testing.T, factory Factory) {
	s, clock := newStore(factory)
	require.NoError(t, s.Create("a"))
	require.NoError(t, s.Create("b"))
	_, err := s.Acquire("a", 2*time.Second)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Locks)
	assert.Equal(t, 1, stats.Held)
	assert.Equal(t, uint64(1), stats.Acquisitions)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, s.Stats().Held, "expired leases are not held")
}

func testConcurrentAcquire(t *testing.T, factory Factory) {
	s, _ := newStore(factory)
	require.NoError(t, s.Create("contended-lock"))

	const clients = 64
	var wg sync.WaitGroup
	results := make([]types.Lock, clients)
	errs := make([]error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = s.Acquire("contended-lock", time.Minute)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < clients; i++ {
		require.NoError(t, errs[i])
		if results[i].Acquired {
			winners++
			assert.Equal(t, uint64(1), results[i].Clock)
		}
	}
	assert.Equal(t, 1, winners, "only one client should acquire the lock")

	for i := 0; i < clients; i++ {
		if !results[i].Acquired {
			assert.Equal(t, uint64(1), results[i].Clock, "losers see the winner's clock unchanged")
		}
	}
}

func testConcurrentAcquireRelease(t *testing.T, factory Factory) {
	s, _ := newStore(factory)

	const (
		keys    = 4
		workers = 16
		rounds  = 200
	)
	for k := 0; k < keys; k++ {
		require.NoError(t, s.Create(fmt.Sprintf("lock-%d", k)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders = make(map[string]int)
		won     = make(map[string]uint64)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			key := fmt.Sprintf("lock-%d", worker%keys)
			for r := 0; r < rounds; r++ {
				lock, err := s.Acquire(key, time.Minute)
				if err != nil || !lock.Acquired {
					continue
				}

				mu.Lock()
				holders[key]++
				assert.Equal(t, 1, holders[key], "two holders of %s", key)
				won[key]++
				mu.Unlock()

				runtime.Gosched()

				mu.Lock()
				holders[key]--
				mu.Unlock()

				assert.NoError(t, s.Release(key, lock.Clock))
			}
		}(w)
	}
	wg.Wait()

	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("lock-%d", k)
		lock, err := s.Get(key)
		require.NoError(t, err)
		assert.False(t, lock.Acquired)
		assert.Equal(t, won[key], lock.Clock, "clock counts successful acquisitions of %s", key)
	}
}
