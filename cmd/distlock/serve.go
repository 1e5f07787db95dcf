package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/daniel-salmon/distlock/pkg/config"
	"github.com/daniel-salmon/distlock/pkg/gateway"
	"github.com/daniel-salmon/distlock/pkg/logging"
	"github.com/daniel-salmon/distlock/pkg/metrics"
	"github.com/daniel-salmon/distlock/pkg/server"
	"github.com/daniel-salmon/distlock/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the distlock server",
		Long: `Start the distlock server. Every flag can also be set through an
environment variable DISTLOCK_<FLAG> (e.g. DISTLOCK_DEFAULT_LEASE=30s).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	d := config.DefaultServerConfig()
	flags := cmd.Flags()
	flags.String(config.KeyGRPCAddr, d.GRPCAddr, "address the gRPC server listens on")
	flags.String(config.KeyHTTPAddr, d.HTTPAddr, "address of the HTTP gateway, empty disables it")
	flags.String(config.KeyStoreEngine, string(d.StoreEngine), "lock store engine (memory, sharded)")
	flags.Duration(config.KeyDefaultLease, d.DefaultLease, "lease used when a client asks for 0 seconds")
	flags.Uint32(config.KeyMaxWorkers, d.MaxWorkers, "maximum concurrently served calls per connection")
	flags.Duration(config.KeyShutdownGrace, d.ShutdownGrace, "how long in-flight calls may finish on shutdown")
	flags.String(config.KeyLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, d.LogFormat, "log format (text, json)")

	return cmd
}

// runs the server until ctx is cancelled, SIGINT or SIGTERM arrives, or a
// listener fails
func serve(ctx context.Context, cfg *config.ServerConfig) error {
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting distlock", "version", Version)
	fmt.Fprint(os.Stderr, cfg.String())

	st, err := store.New(cfg.StoreEngine)
	if err != nil {
		return err
	}
	if err := prometheus.Register(metrics.NewStoreCollector(st)); err != nil {
		return fmt.Errorf("failed to register store metrics: %w", err)
	}

	srv := server.NewServer(st, server.WithDefaultLease(cfg.DefaultLease), server.WithLogger(logger))
	grpcServer := server.NewGRPCServer(srv, logger, cfg.MaxWorkers)

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", listener.Addr().String())
		if err := grpcServer.Serve(listener); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	var gw *gateway.Server
	if cfg.HTTPAddr != "" {
		conn, err := grpc.NewClient(dialAddr(listener.Addr().String()), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			grpcServer.Stop()
			return fmt.Errorf("failed to connect gateway: %w", err)
		}
		defer conn.Close()

		gw, err = gateway.NewServer(cfg.HTTPAddr, pb.NewDistlockClient(conn), prometheus.DefaultGatherer, logger)
		if err != nil {
			grpcServer.Stop()
			return err
		}
		go func() {
			logger.Info("HTTP gateway listening", "addr", cfg.HTTPAddr)
			if err := gw.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	logger.Info("distlock is ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	shutdown(logger, grpcServer, gw, cfg.ShutdownGrace)
	logger.Info("shutdown complete")
	return runErr
}

// lets in-flight calls finish for up to grace, then cuts connections
func shutdown(logger *slog.Logger, grpcServer *grpc.Server, gw *gateway.Server, grace time.Duration) {
	if gw != nil {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		if err := gw.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("could not stop HTTP gateway", "error", err)
		}
		cancel()
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(grace):
		logger.Warn("grace period elapsed, forcing stop", "grace", grace)
		grpcServer.Stop()
	}
}

// a listen address like ":50051" is dialled on localhost
func dialAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
