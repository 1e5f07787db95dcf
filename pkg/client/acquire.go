package client

import (
	"context"
	"fmt"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	tm "github.com/daniel-salmon/distlock/pkg/time"
	"github.com/daniel-salmon/distlock/pkg/types"
)

// DefaultHeartbeat is the poll interval of a blocking acquire.
const DefaultHeartbeat = 3 * time.Second

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

type acquireOptions struct {
	lease     time.Duration
	blocking  bool
	timeout   time.Duration // negative means wait forever
	heartbeat time.Duration
	clock     tm.Clock
	sleep     Sleeper
}

type AcquireOption func(*acquireOptions)

// lease requested from the server, 0 lets the server pick its default
// sub-second leases are rounded up to whole seconds
func WithLease(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.lease = d
	}
}

// blocking acquires poll until the lock is held, non-blocking ones return
// the first snapshot
func WithBlocking(b bool) AcquireOption {
	return func(o *acquireOptions) {
		o.blocking = b
	}
}

// bounds a blocking acquire, d < 0 waits forever
func WithTimeout(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.timeout = d
	}
}

// poll interval of a blocking acquire, d <= 0 keeps the client default
func WithHeartbeat(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.heartbeat = d
	}
}

// time source for the acquire deadline
func WithClock(c tm.Clock) AcquireOption {
	return func(o *acquireOptions) {
		o.clock = c
	}
}

func WithSleeper(s Sleeper) AcquireOption {
	return func(o *acquireOptions) {
		o.sleep = s
	}
}

// AcquireLock asks the server for key until it is held.
//
// Every attempt is one non-blocking remote acquire. A held snapshot is
// returned at once. When the lock is busy a non-blocking call returns the
// busy snapshot with Acquired=false, a blocking one sleeps for the
// heartbeat, capped at what is left of the timeout, and tries again. Once
// the timeout has passed it returns types.ErrTimeout. A missing key fails
// immediately with types.ErrNotFound. There is no ordering among waiters.
func (c *Client) AcquireLock(ctx context.Context, key string, opts ...AcquireOption) (*Lock, error) {
	o := acquireOptions{
		blocking:  true,
		timeout:   -1,
		heartbeat: c.heartbeat,
		clock:     tm.SystemClock{},
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.heartbeat <= 0 {
		o.heartbeat = c.heartbeat
	}
	if o.lease < 0 {
		return nil, fmt.Errorf("acquire lock %q: %w", key, types.ErrInvalidLease)
	}

	bounded := o.timeout >= 0
	var deadline time.Time
	if bounded {
		deadline = o.clock.Now().Add(o.timeout)
	}

	log := c.logger.With("key", key)
	for attempt := 1; ; attempt++ {
		lock, err := c.tryAcquire(ctx, key, o.lease)
		if err != nil {
			return nil, err
		}
		if lock.Acquired || !o.blocking {
			return lock, nil
		}

		wait := o.heartbeat
		if bounded {
			remaining := deadline.Sub(o.clock.Now())
			if remaining <= 0 {
				return nil, fmt.Errorf("acquire lock %q within %s: %w", key, o.timeout, types.ErrTimeout)
			}
			wait = min(wait, remaining)
		}

		log.Debug("lock is held, retrying", "attempt", attempt, "clock", lock.Clock, "wait", wait)
		if err := o.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *Client) tryAcquire(ctx context.Context, key string, lease time.Duration) (*Lock, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.AcquireLock(ctx, &pb.AcquireLockRequest{
		Key:              key,
		ExpiresInSeconds: leaseSeconds(lease),
	})
	if err != nil {
		return nil, fromGRPCError("acquire lock", key, err)
	}
	return c.fromProto(resp), nil
}

func leaseSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
