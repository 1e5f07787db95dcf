package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/daniel-salmon/distlock/pkg/metrics"
	"github.com/daniel-salmon/distlock/pkg/store"
	"github.com/daniel-salmon/distlock/pkg/types"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Server struct {
	pb.UnimplementedDistlockServer
	store        store.Store
	defaultLease time.Duration
	logger       *slog.Logger
}

type Option func(*Server)

// lease used when a request asks for 0 seconds
func WithDefaultLease(d time.Duration) Option {
	return func(s *Server) {
		s.defaultLease = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// wraps a lock store into a gRPC servicer
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:        st,
		defaultLease: types.DefaultLease,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) CreateLock(ctx context.Context, req *pb.CreateLockRequest) (*pb.Empty, error) {
	log := s.log(ctx).With("key", req.Key)
	log.Info("received request to create lock")

	if req.Key == "" {
		return nil, toGRPCError(types.ErrInvalidKey)
	}

	if err := s.store.Create(req.Key); err != nil {
		log.Warn("could not create lock", "error", err)
		return nil, toGRPCError(err)
	}

	metrics.LockCreateTotal.Inc()
	log.Info("created lock")
	return &emptypb.Empty{}, nil
}

func (s *Server) AcquireLock(ctx context.Context, req *pb.AcquireLockRequest) (*pb.Lock, error) {
	log := s.log(ctx).With("key", req.Key, "expires_in_seconds", req.ExpiresInSeconds)
	log.Info("received request to acquire lock")

	if req.Key == "" {
		return nil, toGRPCError(types.ErrInvalidKey)
	}

	lease, err := types.LeaseFromSeconds(req.ExpiresInSeconds, s.defaultLease)
	if err != nil {
		return nil, toGRPCError(err)
	}

	lock, err := s.store.Acquire(req.Key, lease)
	if err != nil {
		log.Warn("could not acquire lock", "error", err)
		return nil, toGRPCError(err)
	}

	metrics.LockAcquireTotal.WithLabelValues(metrics.Status(lock.Acquired)).Inc()
	log.Info("acquire finished", "acquired", lock.Acquired, "clock", lock.Clock)
	return toProto(lock), nil
}

func (s *Server) ReleaseLock(ctx context.Context, req *pb.ReleaseLockRequest) (*pb.Empty, error) {
	log := s.log(ctx).With("key", req.Key, "clock", req.Clock)
	log.Info("received request to release lock")

	if req.Key == "" {
		return nil, toGRPCError(types.ErrInvalidKey)
	}

	err := s.store.Release(req.Key, req.Clock)
	if errors.Is(err, types.ErrUnreleasable) {
		metrics.LockReleaseTotal.WithLabelValues(metrics.StatusFailure).Inc()
	}
	if err != nil {
		log.Warn("could not release lock", "error", err)
		return nil, toGRPCError(err)
	}

	metrics.LockReleaseTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	log.Info("released lock")
	return &emptypb.Empty{}, nil
}

func (s *Server) GetLock(ctx context.Context, req *pb.GetLockRequest) (*pb.Lock, error) {
	log := s.log(ctx).With("key", req.Key)
	log.Info("received request to fetch lock")

	if req.Key == "" {
		return nil, toGRPCError(types.ErrInvalidKey)
	}

	lock, err := s.store.Get(req.Key)
	if err != nil {
		log.Warn("could not fetch lock", "error", err)
		return nil, toGRPCError(err)
	}

	return toProto(lock), nil
}

func (s *Server) ListLocks(ctx context.Context, _ *pb.Empty) (*pb.ListLocksResponse, error) {
	s.log(ctx).Info("received request to list locks")

	locks := s.store.List()
	resp := &pb.ListLocksResponse{Locks: make([]*pb.Lock, 0, len(locks))}
	for _, lock := range locks {
		resp.Locks = append(resp.Locks, toProto(lock))
	}
	return resp, nil
}

func (s *Server) DeleteLock(ctx context.Context, req *pb.DeleteLockRequest) (*pb.Empty, error) {
	log := s.log(ctx).With("key", req.Key)
	log.Info("received request to delete lock")

	if req.Key == "" {
		return nil, toGRPCError(types.ErrInvalidKey)
	}

	if err := s.store.Delete(req.Key); err != nil {
		log.Warn("could not delete lock", "error", err)
		return nil, toGRPCError(err)
	}

	metrics.LockDeleteTotal.Inc()
	log.Info("deleted lock")
	return &emptypb.Empty{}, nil
}

// request scoped logger set by the logging interceptor, if any
func (s *Server) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// copies a store lock into a wire snapshot
func toProto(l types.Lock) *pb.Lock {
	return &pb.Lock{
		Key:       l.Key,
		Acquired:  l.Acquired,
		Clock:     l.Clock,
		ExpiresAt: pb.Timestamp(l.ExpiresAt),
	}
}
