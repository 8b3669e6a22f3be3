package orchestrator

import (
	"context"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/elC0mpa/ec2-concierge/service/lifecycle"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
)

type service struct {
	lifecycle lifecycle.LifecycleService
	registry  *registry.Registry
	policy    policy.PolicyService
}

// OrchestratorService routes validated commands to the lifecycle engine and
// builds the status report.
type OrchestratorService interface {
	Dispatch(ctx context.Context, cmd model.Command) (model.Notification, error)
}
