package health_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"market-data-hub/src/health"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeTarget struct {
	name      string
	mu        sync.Mutex
	probes    int
	sweeps    int
	recover   []string
	cleared   int
	snapshots []models.MProviderSnapshot
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) ProbeUnhealthy(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.recover
}

func (f *fakeTarget) Sweep(time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.cleared
}

func (f *fakeTarget) Snapshot(time.Time) []models.MProviderSnapshot {
	return f.snapshots
}

func (f *fakeTarget) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes, f.sweeps
}

func servingStatus(t *testing.T, srv *grpchealth.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(t.Context(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestCheckNowProbesSweepsAndPublishes(t *testing.T) {
	t.Parallel()

	// Arrange: yahoo is down on us but fine on eu, finnhub is down everywhere
	us := &fakeTarget{
		name:    "us",
		recover: []string{"finnhub"},
		cleared: 1,
		snapshots: []models.MProviderSnapshot{
			{Provider: "yahoo", Available: false},
			{Provider: "finnhub", Available: false},
		},
	}
	eu := &fakeTarget{
		name: "eu",
		snapshots: []models.MProviderSnapshot{
			{Provider: "yahoo", Available: true},
		},
	}
	sink := grpchealth.NewServer()
	m := health.NewMonitor(time.Minute, sink, nil, us, eu)

	// Act
	report := m.CheckNow(t.Context())

	// Assert
	require.Equal(t, map[string][]string{"us": {"finnhub"}}, report.Recovered)
	require.Equal(t, 1, report.Cleared)
	require.True(t, report.Available["yahoo"])
	require.False(t, report.Available["finnhub"])

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, sink, health.ServiceName("yahoo")))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, sink, health.ServiceName("finnhub")))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, sink, ""))
}

func TestNothingAvailableIsNotServing(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{name: "asia", snapshots: []models.MProviderSnapshot{{Provider: "yahoo"}}}
	sink := grpchealth.NewServer()
	m := health.NewMonitor(time.Minute, sink, nil, target)

	m.CheckNow(t.Context())

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, sink, ""))
}

func TestStartTicksUntilStop(t *testing.T) {
	t.Parallel()

	// Arrange
	target := &fakeTarget{name: "global"}
	m := health.NewMonitor(5*time.Millisecond, nil, nil, target)
	var wg sync.WaitGroup

	// Act
	require.NoError(t, m.Start(t.Context(), &wg))
	require.Error(t, m.Start(t.Context(), &wg))
	require.Eventually(t, func() bool {
		probes, _ := target.counts()
		return probes >= 2
	}, time.Second, 5*time.Millisecond)
	m.Stop()
	wg.Wait()

	// Assert: no more ticks after Stop
	probes, sweeps := target.counts()
	require.Equal(t, probes, sweeps)
	require.False(t, m.Running())
	time.Sleep(20 * time.Millisecond)
	after, _ := target.counts()
	require.Equal(t, probes, after)
}

func TestTargetsAreUniqueByName(t *testing.T) {
	t.Parallel()

	m := health.NewMonitor(time.Minute, nil, nil, &fakeTarget{name: "us"})

	require.Error(t, m.AddTarget(&fakeTarget{name: "us"}))
	require.NoError(t, m.AddTarget(&fakeTarget{name: "eu"}))
	require.NoError(t, m.RemoveTarget("us"))
	require.Error(t, m.RemoveTarget("us"))
}
