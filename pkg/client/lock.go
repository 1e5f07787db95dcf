package client

import (
	"context"
	"fmt"
	"time"
)

// Lock is a client side snapshot of a server lock.
// Acquired reports whether the call that produced it holds the lock.
type Lock struct {
	Key       string
	Acquired  bool
	Clock     uint64
	ExpiresAt time.Time

	client *Client
}

// returns the fencing token of this snapshot
func (l *Lock) Token() uint64 {
	return l.Clock
}

// releases the lock with this snapshot's token
func (l *Lock) Release(ctx context.Context) error {
	return l.client.ReleaseLock(ctx, l.Key, l.Clock)
}

func (l *Lock) String() string {
	expires := "never"
	if !l.ExpiresAt.IsZero() {
		expires = l.ExpiresAt.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("Lock(key=%s, acquired=%t, clock=%d, expires_at=%s)", l.Key, l.Acquired, l.Clock, expires)
}
