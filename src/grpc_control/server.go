package grpc_control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// DefaultPort is used when grpc_port is unset.
const DefaultPort = 50051

// -----------------------------------------------------------------------------

// ControlServer carries the standard gRPC health service. The health monitor
// publishes per provider status into it ("provider/<name>") plus the overall
// status under the empty service name.
type ControlServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Health *grpchealth.Server

	server *grpc.Server

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewControlServer creates a new gRPC server with health and reflection registered.
func NewControlServer(cfg *models.MConfig, log *logger.Logger) *ControlServer {
	s := &ControlServer{
		Config: cfg,
		Logger: log,
		Health: grpchealth.NewServer(),
	}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.server, s.Health)
	reflection.Register(s.server)

	// nothing is known before the first health cycle
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// -----------------------------------------------------------------------------

// SetServingStatus lets the server act as the health monitor's sink.
func (s *ControlServer) SetServingStatus(service string, st healthpb.HealthCheckResponse_ServingStatus) {
	s.Health.SetServingStatus(service, st)
}

// -----------------------------------------------------------------------------

func (s *ControlServer) Addr() string {
	port := s.Config.GrpcPort
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", s.Config.GrpcHost, port)
}

// Start listens on the configured address and blocks until Stop.
func (s *ControlServer) Start() error {
	lis, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	return s.Serve(lis)
}

// Serve blocks serving lis until Stop.
func (s *ControlServer) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		lis.Close()
		return nil
	}
	s.listener = lis
	s.mu.Unlock()

	s.Logger.Info("Starting gRPC Control Server on %s", lis.Addr())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop flips every status to NOT_SERVING, then drains in-flight calls for up
// to timeout before forcing the server down.
func (s *ControlServer) Stop(timeout time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.Health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.Logger.Warning("gRPC graceful stop timed out, forcing")
		s.server.Stop()
	}
}

// -----------------------------------------------------------------------------

func (s *ControlServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.Logger.Warning("gRPC %s failed after %s: %s", info.FullMethod, time.Since(start), status.Code(err))
		return resp, err
	}
	s.Logger.Debug("gRPC %s served in %s", info.FullMethod, time.Since(start))
	return resp, nil
}
