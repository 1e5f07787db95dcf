package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TestNewLock tests the initial state of a lock
func TestNewLock(t *testing.T) {
	l := NewLock("k")

	assert.Equal(t, "k", l.Key)
	assert.False(t, l.Acquired)
	assert.Equal(t, uint64(0), l.Clock)
	assert.True(t, l.Available(epoch))
}

// TestAcquireBumpsClock tests that every acquisition advances the fencing token
func TestAcquireBumpsClock(t *testing.T) {
	l := NewLock("k")

	l.Acquire(epoch, 10*time.Second)
	assert.True(t, l.Acquired)
	assert.Equal(t, uint64(1), l.Clock)
	assert.Equal(t, epoch.Add(10*time.Second), l.ExpiresAt)

	l.Acquire(epoch.Add(time.Second), 5*time.Second)
	assert.Equal(t, uint64(2), l.Clock)
	assert.Equal(t, epoch.Add(6*time.Second), l.ExpiresAt)
}

// TestIsExpired tests that the deadline itself counts as expired
func TestIsExpired(t *testing.T) {
	l := NewLock("k")
	l.Acquire(epoch, 3*time.Second)

	assert.False(t, l.IsExpired(epoch))
	assert.False(t, l.Available(epoch.Add(2*time.Second)))
	assert.True(t, l.IsExpired(epoch.Add(3*time.Second)))
	assert.True(t, l.Available(epoch.Add(3*time.Second)))
}

// TestRelease tests release with the current and a stale token
func TestRelease(t *testing.T) {
	l := NewLock("k")
	l.Acquire(epoch, time.Minute)

	err := l.Release(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreleasable)
	assert.True(t, l.Acquired, "stale release must not mutate")

	var unreleasable *UnreleasableError
	require.True(t, errors.As(err, &unreleasable))
	assert.Equal(t, uint64(1), unreleasable.Expected)
	assert.Equal(t, uint64(0), unreleasable.Presented)

	require.NoError(t, l.Release(1))
	assert.False(t, l.Acquired)
	assert.Equal(t, uint64(1), l.Clock, "release never touches the clock")
}

func TestLeaseFromSeconds(t *testing.T) {
	lease, err := LeaseFromSeconds(0, DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, lease)

	lease, err = LeaseFromSeconds(3, DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, lease)

	_, err = LeaseFromSeconds(-1, DefaultLease)
	assert.ErrorIs(t, err, ErrInvalidLease)

	lease, err = LeaseFromSeconds(MaxLeaseSeconds, DefaultLease)
	require.NoError(t, err)
	assert.Positive(t, lease)

	// would wrap to a negative duration
	_, err = LeaseFromSeconds(MaxLeaseSeconds+1, DefaultLease)
	assert.ErrorIs(t, err, ErrInvalidLease)
	_, err = LeaseFromSeconds(10_000_000_000, DefaultLease)
	assert.ErrorIs(t, err, ErrInvalidLease)
}
