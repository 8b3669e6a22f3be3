package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/elC0mpa/ec2-concierge/config"
	ports "github.com/elC0mpa/ec2-concierge/service"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
	"golang.org/x/sync/singleflight"
)

type service struct {
	gateway  ports.CloudGateway
	registry *registry.Registry
	policy   policy.PolicyService
	notifier ports.Notifier
	cfg      *config.Config
	logger   *slog.Logger

	group    singleflight.Group
	sweeping atomic.Bool
}

// SchedulerService runs the periodic reconciliation sweep. Sweeps are
// single-flight: a tick that fires while one is still executing is skipped
// and logged, never queued.
type SchedulerService interface {
	Run(ctx context.Context) error
	Sweep(ctx context.Context) error
}
