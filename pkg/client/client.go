// Package client talks to a distlock server over gRPC.
//
// The server only offers a single non-blocking acquire. Blocking and
// bounded acquisition are built here by polling: see AcquireLock.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client struct {
	conn   *grpc.ClientConn
	client pb.DistlockClient

	// per-call deadline, 0 means none
	callTimeout time.Duration
	// default poll interval for blocking acquisition
	heartbeat time.Duration
	logger    *slog.Logger
}

type Option func(*Client)

// bounds every single remote call, the poll loop of a blocking acquire is
// not bounded by it
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// sets the default heartbeat used by AcquireLock, d <= 0 keeps DefaultHeartbeat
func WithDefaultHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(addr string, opts ...Option) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := newClient(pb.NewDistlockClient(conn), opts)
	c.conn = conn
	return c, nil
}

// NewFromConn wraps an existing connection. Close does not close cc.
func NewFromConn(cc grpc.ClientConnInterface, opts ...Option) *Client {
	return newClient(pb.NewDistlockClient(cc), opts)
}

func newClient(rpc pb.DistlockClient, opts []Option) *Client {
	c := &Client{
		client:    rpc,
		heartbeat: DefaultHeartbeat,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateLock(ctx context.Context, key string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.client.CreateLock(ctx, &pb.CreateLockRequest{Key: key}); err != nil {
		return fromGRPCError("create lock", key, err)
	}
	return nil
}

// ReleaseLock frees key if clock is its current fencing token.
func (c *Client) ReleaseLock(ctx context.Context, key string, clock uint64) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.client.ReleaseLock(ctx, &pb.ReleaseLockRequest{Key: key, Clock: clock}); err != nil {
		return fromGRPCError("release lock", key, err)
	}
	return nil
}

func (c *Client) GetLock(ctx context.Context, key string) (*Lock, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.GetLock(ctx, &pb.GetLockRequest{Key: key})
	if err != nil {
		return nil, fromGRPCError("get lock", key, err)
	}
	return c.fromProto(resp), nil
}

// ListLocks returns every lock on the server sorted by key.
func (c *Client) ListLocks(ctx context.Context) ([]*Lock, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.ListLocks(ctx, &pb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	locks := make([]*Lock, 0, len(resp.Locks))
	for _, l := range resp.Locks {
		locks = append(locks, c.fromProto(l))
	}
	return locks, nil
}

func (c *Client) DeleteLock(ctx context.Context, key string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.client.DeleteLock(ctx, &pb.DeleteLockRequest{Key: key}); err != nil {
		return fromGRPCError("delete lock", key, err)
	}
	return nil
}

// WithLock blocks until key is held, runs fn and releases the lock whether
// or not fn fails. The lease defaults to 3s, override it with WithLease.
func (c *Client) WithLock(ctx context.Context, key string, fn func(context.Context, *Lock) error, opts ...AcquireOption) (err error) {
	opts = append([]AcquireOption{WithLease(3 * time.Second), WithBlocking(true)}, opts...)

	lock, err := c.AcquireLock(ctx, key, opts...)
	if err != nil {
		return err
	}
	defer func() {
		// release even when ctx was cancelled inside fn
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return fn(ctx, lock)
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout > 0 {
		return context.WithTimeout(ctx, c.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) fromProto(l *pb.Lock) *Lock {
	return &Lock{
		Key:       l.GetKey(),
		Acquired:  l.GetAcquired(),
		Clock:     l.GetClock(),
		ExpiresAt: l.GetExpiresAt(),
		client:    c,
	}
}
