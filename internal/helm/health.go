package helm

import (
	"context"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// HealthReporter publishes behavior run states over the standard gRPC
// health protocol. Each behavior is a service name; it is SERVING while
// running. The empty service name reports the helm process itself.
type HealthReporter struct {
	srv *health.Server

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthReporter returns a reporter whose overall status is SERVING.
func NewHealthReporter() *HealthReporter {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{
		srv:  srv,
		last: make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Server exposes the underlying health server, e.g. for in-process Check
// calls.
func (r *HealthReporter) Server() *health.Server { return r.srv }

// Update sets each behavior's serving status from its run state.
func (r *HealthReporter) Update(states map[string]contact.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, st := range states {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if st == contact.Running {
			status = healthpb.HealthCheckResponse_SERVING
		}
		if prev, ok := r.last[name]; ok && prev == status {
			continue
		}
		r.last[name] = status
		r.srv.SetServingStatus(name, status)
	}
}

// Register adds the health service to s.
func (r *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Serve runs a gRPC server carrying only the health service on lis until
// ctx is done.
func (r *HealthReporter) Serve(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	r.Register(s)

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(lis) }()
	monitoring.Logf("helm: gRPC health listening on %s", lis.Addr())

	select {
	case <-ctx.Done():
		r.srv.Shutdown()
		s.GracefulStop()
		return nil
	case err := <-errc:
		return err
	}
}
