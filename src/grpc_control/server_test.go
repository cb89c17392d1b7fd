package grpc_control

import (
	"context"
	"net"
	"testing"
	"time"

	"market-data-hub/src/health"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var _ health.IStatusSink = (*ControlServer)(nil)

func startControl(t *testing.T) (*ControlServer, healthpb.HealthClient) {
	t.Helper()
	s := NewControlServer(&models.MConfig{}, logger.NewLogger(nil, "ControlTest"))
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(func() { s.Stop(time.Second) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return s, healthpb.NewHealthClient(conn)
}

func TestHealthReflectsProviderStatus(t *testing.T) {
	t.Parallel()

	// Arrange
	s, client := startControl(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	before, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	// Act
	s.SetServingStatus(health.ServiceName("yahoo"), healthpb.HealthCheckResponse_SERVING)
	s.SetServingStatus(health.ServiceName("finnhub"), healthpb.HealthCheckResponse_NOT_SERVING)
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	yahoo, yahooErr := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "provider/yahoo"})
	finnhub, finnhubErr := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "provider/finnhub"})
	overall, overallErr := client.Check(ctx, &healthpb.HealthCheckRequest{})
	_, unknownErr := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "provider/nope"})

	// Assert
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, before.GetStatus())
	require.NoError(t, yahooErr)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, yahoo.GetStatus())
	require.NoError(t, finnhubErr)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, finnhub.GetStatus())
	require.NoError(t, overallErr)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, overall.GetStatus())
	require.Equal(t, codes.NotFound, status.Code(unknownErr))
}

func TestStopIsIdempotentAndServeAfterStopReturns(t *testing.T) {
	t.Parallel()

	// Arrange
	s := NewControlServer(&models.MConfig{GrpcPort: 6000}, logger.NewLogger(nil, "ControlTest"))

	// Act
	s.Stop(time.Second)
	s.Stop(time.Second)
	err := s.Serve(bufconn.Listen(1024))

	// Assert
	require.NoError(t, err)
	require.Equal(t, ":6000", s.Addr())
}
