package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/daniel-salmon/distlock/pkg/metrics"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type loggerKey struct{}

// tags every call with a request id, hands a logger carrying it to the
// handler and records latency per method and code
// an id sent by the caller in x-request-id is reused
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := incomingRequestID(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		log := logger.With("request_id", requestID, "method", info.FullMethod)
		if err := grpc.SetHeader(ctx, metadata.Pairs(pb.RequestIDHeader, requestID)); err != nil {
			log.Debug("could not set request id header", "error", err)
		}
		resp, err := handler(context.WithValue(ctx, loggerKey{}, log), req)

		code := status.Code(err)
		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(info.FullMethod, code.String()).Observe(elapsed.Seconds())
		log.Debug("rpc finished", "code", code.String(), "duration", elapsed)

		return resp, err
	}
}

// turns a handler panic into codes.Internal so one bad request cannot take
// the server down
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic serving rpc", "method", info.FullMethod, "panic", fmt.Sprint(r))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if ids := md.Get(pb.RequestIDHeader); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// builds a grpc server with srv registered and the standard interceptors
// maxStreams bounds concurrently served calls per connection, 0 keeps the grpc default
func NewGRPCServer(srv *Server, logger *slog.Logger, maxStreams uint32, opts ...grpc.ServerOption) *grpc.Server {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
	}
	if maxStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(maxStreams))
	}
	serverOpts = append(serverOpts, opts...)

	grpcServer := grpc.NewServer(serverOpts...)
	pb.RegisterDistlockServer(grpcServer, srv)
	return grpcServer
}
