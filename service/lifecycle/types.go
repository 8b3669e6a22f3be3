package lifecycle

import (
	"context"
	"log/slog"

	"github.com/elC0mpa/ec2-concierge/config"
	"github.com/elC0mpa/ec2-concierge/model"
	ports "github.com/elC0mpa/ec2-concierge/service"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
)

type service struct {
	gateway  ports.CloudGateway
	registry *registry.Registry
	policy   policy.PolicyService
	cfg      *config.Config
	logger   *slog.Logger
}

// LifecycleService drives instances and volumes through their state machines
// in response to user intents. Every method returns either a notification
// intent for the actor or a classified error; cloud failures are never
// swallowed.
type LifecycleService interface {
	UploadKey(ctx context.Context, actor model.User, publicKey string) (model.Notification, error)

	Launch(ctx context.Context, cmd model.Command) (model.Notification, error)
	Terminate(ctx context.Context, actor model.User, instanceID string) (model.Notification, error)
	Start(ctx context.Context, actor model.User, instanceID string) (model.Notification, error)
	Stop(ctx context.Context, actor model.User, instanceID string) (model.Notification, error)
	ChangeType(ctx context.Context, actor model.User, instanceID, instanceType string) (model.Notification, error)

	CreateVolume(ctx context.Context, actor model.User, sizeGiB int32) (model.Notification, error)
	ResizeVolume(ctx context.Context, actor model.User, sizeGiB int32) (model.Notification, error)
	AttachVolume(ctx context.Context, actor model.User, instanceID string) (model.Notification, error)
	DetachVolume(ctx context.Context, actor model.User) (model.Notification, error)
	DestroyVolume(ctx context.Context, actor model.User, confirmed bool) (model.Notification, error)
}

func NewService(gateway ports.CloudGateway, reg *registry.Registry, pol policy.PolicyService, cfg *config.Config, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		gateway:  gateway,
		registry: reg,
		policy:   pol,
		cfg:      cfg,
		logger:   logger,
	}
}
