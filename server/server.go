package server

import (
	"context"
	"log/slog"
	"net"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/hupe1980/vecraft"
)

// RequestRecorder receives one call per handled request. telemetry.Collector
// implements it.
type RequestRecorder interface {
	RecordRequest(method, status string)
	Refresh(stats vecraft.Stats)
}

// Server serves a DB over gRPC.
type Server struct {
	db       *vecraft.DB
	service  *Service
	grpc     *grpc.Server
	recorder RequestRecorder
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRequestRecorder records per-method request counts and refreshes
// inventory gauges after each request.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server for db. grpcOpts are passed to grpc.NewServer.
func New(db *vecraft.DB, opts []Option, grpcOpts ...grpc.ServerOption) *Server {
	s := &Server{
		db:      db,
		service: NewService(db),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	grpcOpts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.intercept)}, grpcOpts...)
	s.grpc = grpc.NewServer(grpcOpts...)
	s.service.Register(s.grpc)
	return s
}

// Serve accepts connections on lis until ctx is done or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.grpc.GracefulStop()
		<-errCh
		s.logger.Info("gRPC server stopped")
		return nil
	}
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) intercept(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	method := path.Base(info.FullMethod)
	code := status.Code(err)
	if s.recorder != nil {
		s.recorder.RecordRequest(method, code.String())
		s.recorder.Refresh(s.db.Stats())
	}

	if err != nil {
		s.logger.DebugContext(ctx, "request failed", "method", method, "code", code.String(), "elapsed", time.Since(start), "error", err)
	} else {
		s.logger.DebugContext(ctx, "request served", "method", method, "elapsed", time.Since(start))
	}
	return resp, err
}
