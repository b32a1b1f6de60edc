package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyPinger struct{ down atomic.Bool }

func (p *flakyPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("store down")
	}
	return nil
}

// dialHealth serves a fresh gRPC server over an in-memory listener.
func dialHealth(t *testing.T) (healthpb.HealthClient, func(context.Context, Pinger)) {
	t.Helper()
	srv, hs := NewGRPCServer()
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	watch := func(ctx context.Context, p Pinger) {
		go WatchHealth(ctx, hs, p, 10*time.Millisecond, discardLogger())
	}
	return healthpb.NewHealthClient(conn), watch
}

func waitForStatus(t *testing.T, client healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last healthpb.HealthCheckResponse_ServingStatus
	for time.Now().Before(deadline) {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err == nil {
			last = resp.GetStatus()
			if last == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("health status = %v, want %v", last, want)
}

func TestGRPCHealth_FollowsStore(t *testing.T) {
	client, watch := dialHealth(t)
	p := &flakyPinger{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watch(ctx, p)

	waitForStatus(t, client, healthpb.HealthCheckResponse_SERVING)
	p.down.Store(true)
	waitForStatus(t, client, healthpb.HealthCheckResponse_NOT_SERVING)
	p.down.Store(false)
	waitForStatus(t, client, healthpb.HealthCheckResponse_SERVING)

	cancel()
	waitForStatus(t, client, healthpb.HealthCheckResponse_NOT_SERVING)
}
