package control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"ledger-socket/src/interfaces"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service reported next to the overall "" entry.
const ServiceName = "ledger"

// -----------------------------------------------------------------------------
// HealthService publishes store reachability over the standard gRPC health
// protocol so orchestrators can probe the socket server without speaking the
// line protocol.
// -----------------------------------------------------------------------------

type HealthService struct {
	Config *models.MConfig
	DB     interfaces.IDatabase
	Logger *logger.Logger

	health     *health.Server
	grpcServer *grpc.Server
	stopOnce   sync.Once
	quit       chan struct{}
}

// -----------------------------------------------------------------------------

func NewHealthService(cfg *models.MConfig, db interfaces.IDatabase, log *logger.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthService{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		health:     hs,
		grpcServer: gs,
		quit:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Check pings the store once and updates both service entries.
func (h *HealthService) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.DB.Ping(ctx); err != nil {
		h.Logger.Warning("Store ping failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// -----------------------------------------------------------------------------

// Run re-checks every storage.health_check_interval seconds until Stop.
func (h *HealthService) Run(ctx context.Context) {
	interval := time.Duration(h.Config.Storage.HealthCheckInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.probe(ctx, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case <-ticker.C:
			h.probe(ctx, interval)
		}
	}
}

func (h *HealthService) probe(ctx context.Context, timeout time.Duration) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	h.Check(pctx)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Serve serves the health service on lis until Stop.
func (h *HealthService) Serve(lis net.Listener) error {
	h.Logger.Info("Starting gRPC health server on %s", lis.Addr())
	return h.grpcServer.Serve(lis)
}

// -----------------------------------------------------------------------------

// Start listens on server.control_port; 0 disables the control plane.
func (h *HealthService) Start(ctx context.Context) error {
	port := h.Config.Server.ControlPort
	if port == 0 {
		h.Logger.Info("Control plane disabled")
		return nil
	}

	lis, err := net.Listen("tcp", net.JoinHostPort(h.Config.Server.Host, fmt.Sprint(port)))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	go h.Run(ctx)
	return h.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (h *HealthService) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
	})
}
