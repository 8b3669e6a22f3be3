package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/elC0mpa/ec2-concierge/service/lifecycle"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
	"github.com/elC0mpa/ec2-concierge/utils"
)

func NewService(lifecycleService lifecycle.LifecycleService, reg *registry.Registry, pol policy.PolicyService) *service {
	return &service{
		lifecycle: lifecycleService,
		registry:  reg,
		policy:    pol,
	}
}

func (s *service) Dispatch(ctx context.Context, cmd model.Command) (model.Notification, error) {
	switch cmd.Action {
	case model.ActionUploadKey:
		return s.lifecycle.UploadKey(ctx, cmd.Actor, cmd.PublicKey)
	case model.ActionLaunch:
		return s.lifecycle.Launch(ctx, cmd)
	case model.ActionTerminate:
		return s.lifecycle.Terminate(ctx, cmd.Actor, cmd.InstanceID)
	case model.ActionStart:
		return s.lifecycle.Start(ctx, cmd.Actor, cmd.InstanceID)
	case model.ActionStop:
		return s.lifecycle.Stop(ctx, cmd.Actor, cmd.InstanceID)
	case model.ActionChangeType:
		return s.lifecycle.ChangeType(ctx, cmd.Actor, cmd.InstanceID, cmd.InstanceType)
	case model.ActionCreateVolume:
		return s.lifecycle.CreateVolume(ctx, cmd.Actor, cmd.SizeGiB)
	case model.ActionResizeVolume:
		return s.lifecycle.ResizeVolume(ctx, cmd.Actor, cmd.SizeGiB)
	case model.ActionAttachVolume:
		return s.lifecycle.AttachVolume(ctx, cmd.Actor, cmd.InstanceID)
	case model.ActionDetachVolume:
		return s.lifecycle.DetachVolume(ctx, cmd.Actor)
	case model.ActionDestroyVolume:
		return s.lifecycle.DestroyVolume(ctx, cmd.Actor, cmd.Confirmed)
	case model.ActionStatus:
		return s.statusReport(cmd.Actor), nil
	default:
		return model.Notification{}, fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// statusReport renders the fleet cost table plus the actor's own volume
// state. Reads only, no cloud calls. Record fields are read under the
// per-resource lock; the sweep mutates them under the same lock.
func (s *service) statusReport(actor model.User) model.Notification {
	now := time.Now()

	var estimates []model.CostEstimate
	for _, rec := range s.registry.AllInstances() {
		unlock := s.registry.LockResource(rec.InstanceID)
		estimates = append(estimates, s.policy.EstimateCost(rec, now))
		unlock()
	}

	message := "No instances are currently tracked."
	if len(estimates) > 0 {
		message = fmt.Sprintf("```\n%s\n```", utils.RenderStatusTable(estimates))
	}

	if vol, ok := s.registry.VolumeOf(actor); ok {
		unlock := s.registry.LockResource(vol.VolumeID)
		line := fmt.Sprintf("\nYour EBS volume %s: %d GiB, %s.", vol.VolumeID, vol.SizeGiB, vol.State)
		unlock()
		message += line
	}

	return model.Notification{
		Recipient: actor,
		Message:   message,
	}
}
