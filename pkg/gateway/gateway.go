// Package gateway serves the lock service over HTTP/JSON by forwarding to
// the gRPC API. It also exposes /metrics and /healthz.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	httpServer *http.Server
	client     pb.DistlockClient
	gatherer   prometheus.Gatherer
	logger     *slog.Logger

	mux       *runtime.ServeMux
	marshaler runtime.Marshaler
}

// NewServer builds a gateway forwarding to client. Metrics are read from
// gatherer, pass prometheus.DefaultGatherer to serve the process registry.
func NewServer(httpAddr string, client pb.DistlockClient, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	s := &Server{
		client:    client,
		gatherer:  gatherer,
		logger:    logger,
		mux:       runtime.NewServeMux(),
		marshaler: &runtime.JSONPb{},
	}

	for _, route := range []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/locks/{key}", s.createLock},
		{http.MethodPost, "/v1/locks/{key}/acquire", s.acquireLock},
		{http.MethodPost, "/v1/locks/{key}/release", s.releaseLock},
		{http.MethodGet, "/v1/locks/{key}", s.getLock},
		{http.MethodGet, "/v1/locks", s.listLocks},
		{http.MethodDelete, "/v1/locks/{key}", s.deleteLock},
	} {
		if err := s.mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", route.method, route.pattern, err)
		}
	}

	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the full HTTP routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()

	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Info("incoming request", "method", r.Method, "url", r.URL)
			handler.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Handle("/v1/*", s.mux)
	return r
}

// Start serves until Stop is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Warn("could not shut down HTTP gateway", "error", err)
		}
	})
	defer stop()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP gateway: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// upper bound on acquire and release request bodies
const maxBodyBytes = 64 << 10

type acquireBody struct {
	ExpiresInSeconds int64 `json:"expires_in_seconds"`
}

type releaseBody struct {
	Clock uint64 `json:"clock"`
}

func (s *Server) createLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	resp, err := s.client.CreateLock(r.Context(), &pb.CreateLockRequest{Key: params["key"]})
	s.respond(w, r, http.StatusCreated, resp, err)
}

func (s *Server) acquireLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var body acquireBody
	if err := decodeBody(w, r, &body); err != nil {
		s.respond(w, r, 0, nil, err)
		return
	}

	resp, err := s.client.AcquireLock(r.Context(), &pb.AcquireLockRequest{
		Key:              params["key"],
		ExpiresInSeconds: body.ExpiresInSeconds,
	})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *Server) releaseLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var body releaseBody
	if err := decodeBody(w, r, &body); err != nil {
		s.respond(w, r, 0, nil, err)
		return
	}

	resp, err := s.client.ReleaseLock(r.Context(), &pb.ReleaseLockRequest{Key: params["key"], Clock: body.Clock})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *Server) getLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	resp, err := s.client.GetLock(r.Context(), &pb.GetLockRequest{Key: params["key"]})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *Server) listLocks(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := s.client.ListLocks(r.Context(), &pb.Empty{})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *Server) deleteLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	resp, err := s.client.DeleteLock(r.Context(), &pb.DeleteLockRequest{Key: params["key"]})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// writes resp with code, or renders err as a google.rpc.Status body with the
// HTTP code that matches its gRPC code
func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, resp any, err error) {
	if err != nil {
		runtime.HTTPError(r.Context(), s.mux, s.marshaler, w, r, err)
		return
	}

	buf, err := s.marshaler.Marshal(resp)
	if err != nil {
		s.logger.Error("could not marshal response", "error", err)
		runtime.HTTPError(r.Context(), s.mux, s.marshaler, w, r, status.Error(codes.Internal, "failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", s.marshaler.ContentType(resp))
	w.WriteHeader(code)
	_, _ = w.Write(buf)
}

// an empty body is allowed and leaves v at its zero value
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return status.Errorf(codes.InvalidArgument, "request body exceeds %d bytes", tooLarge.Limit)
	default:
		return status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
}
