package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Health wraps the standard gRPC health service so probes can query readiness.
type Health struct {
	srv *health.Server
}

// New creates a health service with the overall status set to initialStatus.
// Start NOT_SERVING and flip after dependencies are checked.
func New(initialStatus grpc_health_v1.HealthCheckResponse_ServingStatus) *Health {
	srv := health.NewServer()
	srv.SetServingStatus("", initialStatus)
	return &Health{srv: srv}
}

// Register must be called before grpcSrv.Serve.
func (h *Health) Register(grpcSrv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcSrv, h.srv)
}

// SetServing marks serviceName (empty for overall) as SERVING.
func (h *Health) SetServing(serviceName string) {
	h.srv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing marks serviceName (empty for overall) as NOT_SERVING.
func (h *Health) SetNotServing(serviceName string) {
	h.srv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}
