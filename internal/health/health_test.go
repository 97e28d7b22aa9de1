package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/voice"
)

func startBufServer(t *testing.T) (*Server, grpc.DialOption) {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	srv := NewServer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return srv, dialer
}

func probe(t *testing.T, dialer grpc.DialOption, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	status, err := Probe(context.Background(), "passthrough:///bufnet", service, time.Second, dialer)
	require.NoError(t, err)
	return status
}

func TestVoiceServiceFollowsSessionState(t *testing.T) {
	srv, dialer := startBufServer(t)

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, probe(t, dialer, ""))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, probe(t, dialer, ServiceName))

	srv.StateChanged(fsm.StateListening, voice.ModeGlobal)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, probe(t, dialer, ServiceName))

	srv.StateChanged(fsm.StateActive, voice.ModeGlobal)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, probe(t, dialer, ServiceName))

	srv.StateChanged(fsm.StateError, voice.ModeGlobal)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, probe(t, dialer, ServiceName))
}

func TestProbeUnknownServiceFails(t *testing.T) {
	_, dialer := startBufServer(t)

	_, err := Probe(context.Background(), "passthrough:///bufnet", "nope", time.Second, dialer)
	require.Error(t, err)
	require.Contains(t, err.Error(), `health check "nope"`)
}

func TestProbeTimesOutWithoutServer(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())
	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})

	_, err := Probe(context.Background(), "passthrough:///bufnet", ServiceName, 150*time.Millisecond, dialer)
	require.Error(t, err)
	require.Contains(t, err.Error(), "wait for health readiness")
}
