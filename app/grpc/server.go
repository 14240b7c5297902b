package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name reported alongside the server-wide
// ("") status.
const ServiceName = "billing.BillingService"

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer reports SERVING while the datastore answers pings.
type HealthServer struct {
	health *health.Server
	db     pinger
	logger logrus.FieldLogger
}

func NewHealthServer(db pinger) *HealthServer {
	return &HealthServer{
		health: health.NewServer(),
		db:     db,
		logger: logrus.WithField("module", "grpc-health"),
	}
}

func (s *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
}

// Check pings the datastore once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			s.logger.WithError(err).Warn("Datastore ping failed")
			servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", servingStatus)
	s.health.SetServingStatus(ServiceName, servingStatus)
	return servingStatus
}

// Run re-checks on every tick until ctx is done, then marks the server as
// shutting down.
func (s *HealthServer) Run(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
