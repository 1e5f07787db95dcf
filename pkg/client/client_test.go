package client_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/daniel-salmon/distlock/pkg/client"
	"github.com/daniel-salmon/distlock/pkg/logging"
	"github.com/daniel-salmon/distlock/pkg/server"
	"github.com/daniel-salmon/distlock/pkg/store"
	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	client *client.Client
	clock  *tm.ManualClock
	store  store.Store
	sleeps []time.Duration
}

// starts an in-process server whose store runs on a manual clock
func newTestEnv(t testing.TB, clock tm.Clock) (*client.Client, store.Store) {
	t.Helper()

	st := store.NewMemoryStore(store.WithClock(clock))
	grpcServer := server.NewGRPCServer(server.NewServer(st, server.WithLogger(logging.Discard())), logging.Discard(), 0)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return client.NewFromConn(conn, client.WithCallTimeout(5*time.Second), client.WithLogger(logging.Discard())), st
}

func newManualEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := tm.NewManualClock(epoch)
	c, st := newTestEnv(t, clock)
	return &testEnv{client: c, clock: clock, store: st}
}

// moves the shared clock instead of sleeping
func (e *testEnv) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.sleeps = append(e.sleeps, d)
	e.clock.Advance(d)
	return nil
}

func (e *testEnv) acquireOpts(opts ...client.AcquireOption) []client.AcquireOption {
	return append([]client.AcquireOption{client.WithClock(e.clock), client.WithSleeper(e.sleep)}, opts...)
}

// TestCreateAndGetLock tests the create/get round trip
func TestCreateAndGetLock(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()

	require.NoError(t, e.client.CreateLock(ctx, "k"))

	lock, err := e.client.GetLock(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", lock.Key)
	assert.False(t, lock.Acquired)
	assert.Equal(t, uint64(0), lock.Clock)
	assert.True(t, lock.ExpiresAt.IsZero())
}

// TestCreateDuplicateLock tests that a second create maps back to ErrAlreadyExists
func TestCreateDuplicateLock(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()

	require.NoError(t, e.client.CreateLock(ctx, "k"))
	err := e.client.CreateLock(ctx, "k")
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

// TestNonBlockingAcquire tests that a busy lock is reported without waiting
func TestNonBlockingAcquire(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	held, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(3*time.Second))...)
	require.NoError(t, err)
	require.True(t, held.Acquired)

	busy, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithBlocking(false))...)
	require.NoError(t, err)
	assert.False(t, busy.Acquired)
	assert.Equal(t, held.Clock, busy.Clock)
	assert.Equal(t, held.ExpiresAt, busy.ExpiresAt)
	assert.Empty(t, e.sleeps)
}

// TestBlockingAcquireWaitsOutLease tests that a blocking acquire succeeds once the
// holder's lease lapses
func TestBlockingAcquireWaitsOutLease(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	start := e.clock.Now()
	a, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(3*time.Second))...)
	require.NoError(t, err)
	require.Equal(t, uint64(1), a.Clock)

	b, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(3*time.Second))...)
	require.NoError(t, err)
	assert.True(t, b.Acquired)
	assert.Equal(t, uint64(2), b.Clock)
	assert.GreaterOrEqual(t, e.clock.Now().Sub(start), 3*time.Second)
	assert.Equal(t, []time.Duration{3 * time.Second}, e.sleeps)
}

// TestAcquireTimeout tests that a bounded acquire gives up without touching the lock
func TestAcquireTimeout(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	_, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(3*time.Second))...)
	require.NoError(t, err)
	before, err := e.store.Get("x")
	require.NoError(t, err)

	_, err = e.client.AcquireLock(ctx, "x", e.acquireOpts(
		client.WithLease(3*time.Second),
		client.WithTimeout(100*time.Millisecond),
	)...)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, e.sleeps, "heartbeat is capped at the timeout")

	after, err := e.store.Get("x")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestHeartbeatCappedAtRemaining tests that the last wait never overshoots the deadline
func TestHeartbeatCappedAtRemaining(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	_, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(time.Minute))...)
	require.NoError(t, err)

	_, err = e.client.AcquireLock(ctx, "x", e.acquireOpts(
		client.WithTimeout(5*time.Second),
		client.WithHeartbeat(3*time.Second),
	)...)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second}, e.sleeps)
}

// TestNonPositiveHeartbeatUsesDefault tests that a zero or negative heartbeat
// cannot turn the poll loop into a busy loop
func TestNonPositiveHeartbeatUsesDefault(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	_, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithLease(time.Minute))...)
	require.NoError(t, err)

	for _, hb := range []time.Duration{0, -time.Second} {
		e.sleeps = nil
		_, err = e.client.AcquireLock(ctx, "x", e.acquireOpts(
			client.WithTimeout(5*time.Second),
			client.WithHeartbeat(hb),
		)...)
		assert.ErrorIs(t, err, types.ErrTimeout)
		assert.Equal(t, []time.Duration{client.DefaultHeartbeat, 2 * time.Second}, e.sleeps, "heartbeat %s", hb)
	}
}

// TestZeroTimeoutTriesOnce tests that a zero timeout makes one attempt
func TestZeroTimeoutTriesOnce(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	lock, err := e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithTimeout(0))...)
	require.NoError(t, err)
	require.True(t, lock.Acquired)

	_, err = e.client.AcquireLock(ctx, "x", e.acquireOpts(client.WithTimeout(0))...)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Empty(t, e.sleeps)
}

// TestAcquireMissingLock tests that NotFound ends the poll loop at once
func TestAcquireMissingLock(t *testing.T) {
	e := newManualEnv(t)

	_, err := e.client.AcquireLock(context.Background(), "missing", e.acquireOpts()...)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, e.sleeps)
}

// TestAcquireCancelled tests that cancelling ctx stops a blocking acquire
func TestAcquireCancelled(t *testing.T) {
	e := newManualEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	_, err := e.client.AcquireLock(ctx, "x", e.acquireOpts()...)
	require.NoError(t, err)

	sleeps := 0
	_, err = e.client.AcquireLock(ctx, "x",
		client.WithClock(e.clock),
		client.WithSleeper(func(ctx context.Context, _ time.Duration) error {
			sleeps++
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sleeps)
}

// TestAcquireNegativeLease tests that an invalid lease never reaches the server
func TestAcquireNegativeLease(t *testing.T) {
	e := newManualEnv(t)

	_, err := e.client.AcquireLock(context.Background(), "x", e.acquireOpts(client.WithLease(-time.Second))...)
	assert.ErrorIs(t, err, types.ErrInvalidLease)
}

// TestStaleRelease tests that a release with an old token is rejected and changes nothing
func TestStaleRelease(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	lock, err := e.client.AcquireLock(ctx, "x", e.acquireOpts()...)
	require.NoError(t, err)
	require.Equal(t, uint64(1), lock.Clock)

	err = e.client.ReleaseLock(ctx, "x", 0)
	require.ErrorIs(t, err, types.ErrUnreleasable)

	var unreleasable *types.UnreleasableError
	require.True(t, errors.As(err, &unreleasable))
	assert.Equal(t, "x", unreleasable.Key)
	assert.Equal(t, uint64(1), unreleasable.Expected)
	assert.Equal(t, uint64(0), unreleasable.Presented)

	current, err := e.client.GetLock(ctx, "x")
	require.NoError(t, err)
	assert.True(t, current.Acquired)
	assert.Equal(t, uint64(1), current.Clock)
}

// TestLockRelease tests releasing through the lock handle
func TestLockRelease(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	lock, err := e.client.AcquireLock(ctx, "x", e.acquireOpts()...)
	require.NoError(t, err)
	assert.Equal(t, lock.Clock, lock.Token())
	require.NoError(t, lock.Release(ctx))

	current, err := e.client.GetLock(ctx, "x")
	require.NoError(t, err)
	assert.False(t, current.Acquired)

	assert.ErrorIs(t, e.client.ReleaseLock(ctx, "missing", 0), types.ErrNotFound)
}

// TestWithLock tests that the lock is held inside fn and released afterwards
func TestWithLock(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()
	require.NoError(t, e.client.CreateLock(ctx, "x"))

	err := e.client.WithLock(ctx, "x", func(ctx context.Context, lock *client.Lock) error {
		assert.True(t, lock.Acquired)
		assert.Equal(t, epoch.Add(3*time.Second), lock.ExpiresAt)

		current, err := e.client.GetLock(ctx, "x")
		require.NoError(t, err)
		assert.True(t, current.Acquired)
		return nil
	}, e.acquireOpts()...)
	require.NoError(t, err)

	current, err := e.client.GetLock(ctx, "x")
	require.NoError(t, err)
	assert.False(t, current.Acquired)

	boom := errors.New("boom")
	err = e.client.WithLock(ctx, "x", func(context.Context, *client.Lock) error {
		return boom
	}, e.acquireOpts()...)
	assert.ErrorIs(t, err, boom)

	current, err = e.client.GetLock(ctx, "x")
	require.NoError(t, err)
	assert.False(t, current.Acquired, "released even when fn fails")
	assert.Equal(t, uint64(2), current.Clock)
}

// TestListAndDeleteLocks tests listing and deletion through the client
func TestListAndDeleteLocks(t *testing.T) {
	e := newManualEnv(t)
	ctx := context.Background()

	for _, key := range []string{"b", "a", "c"} {
		require.NoError(t, e.client.CreateLock(ctx, key))
	}
	require.NoError(t, e.client.DeleteLock(ctx, "c"))
	assert.ErrorIs(t, e.client.DeleteLock(ctx, "c"), types.ErrNotFound)

	locks, err := e.client.ListLocks(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "a", locks[0].Key)
	assert.Equal(t, "b", locks[1].Key)

	_, err = e.client.GetLock(ctx, "c")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestBlockingAcquireRealTime tests the poll loop against the wall clock
func TestBlockingAcquireRealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a one second lease")
	}

	c, _ := newTestEnv(t, tm.SystemClock{})
	ctx := context.Background()
	require.NoError(t, c.CreateLock(ctx, "x"))

	start := time.Now()
	_, err := c.AcquireLock(ctx, "x", client.WithLease(time.Second))
	require.NoError(t, err)

	lock, err := c.AcquireLock(ctx, "x",
		client.WithLease(time.Second),
		client.WithHeartbeat(50*time.Millisecond),
		client.WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	assert.True(t, lock.Acquired)
	assert.Equal(t, uint64(2), lock.Clock)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}
