package lifecycle

import (
	"context"
	"fmt"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/google/uuid"
)

func (s *service) CreateVolume(ctx context.Context, actor model.User, sizeGiB int32) (model.Notification, error) {
	// Size policy rejects before any cloud call.
	if err := s.policy.ValidateVolumeSize(sizeGiB); err != nil {
		return model.Notification{}, err
	}

	// Same-user volume creation serializes on the actor key so duplicate
	// submissions cannot both pass the conflict check.
	unlock := s.registry.LockResource(string(actor))
	defer unlock()

	if existing, ok := s.registry.VolumeOf(actor); ok {
		return model.Notification{}, fmt.Errorf("%w: volume %s already exists, destroy it first",
			model.ErrResourceConflict, existing.VolumeID)
	}

	spec := model.VolumeSpec{
		SizeGiB:     sizeGiB,
		Tags:        s.tagsForUser(actor),
		ClientToken: uuid.NewString(),
	}
	volumeID, err := retryCloudValue(ctx, func() (string, error) {
		return s.gateway.CreateVolume(ctx, spec)
	})
	if err != nil {
		return model.Notification{}, err
	}

	rec := &model.VolumeRecord{
		VolumeID: volumeID,
		Owner:    actor,
		SizeGiB:  sizeGiB,
		State:    model.VolumeStateCreating,
		Tags:     spec.Tags,
	}
	if err := s.registry.RecordVolume(rec); err != nil {
		// The cloud call was accepted, so never pretend it didn't happen;
		// the sweep will surface the tagged volume for manual cleanup.
		s.logger.Error("volume created but not tracked", "volume_id", volumeID, "owner", actor, "error", err)
		return model.Notification{}, err
	}

	s.logger.Info("volume create accepted", "volume_id", volumeID, "owner", actor, "size_gib", sizeGiB)
	return model.Notification{
		Recipient:  actor,
		ResourceID: volumeID,
		Message:    fmt.Sprintf("EBS volume of %d GiB is being created.", sizeGiB),
	}, nil
}

func (s *service) ResizeVolume(ctx context.Context, actor model.User, sizeGiB int32) (model.Notification, error) {
	vol, err := s.ownedVolume(actor)
	if err != nil {
		return model.Notification{}, err
	}

	unlock := s.registry.LockResource(vol.VolumeID)
	defer unlock()

	if err := volumeReady(vol); err != nil {
		return model.Notification{}, err
	}
	if err := s.policy.ValidateVolumeResize(vol.SizeGiB, sizeGiB); err != nil {
		return model.Notification{}, err
	}
	if vol.PendingSizeGiB != 0 {
		return model.Notification{}, fmt.Errorf("%w: volume %s has a resize in progress",
			model.ErrInvalidTransition, vol.VolumeID)
	}
	// The platform rejects modifications on attached or mid-transition
	// volumes; require available, detach first.
	if vol.State != model.VolumeStateAvailable {
		return model.Notification{}, fmt.Errorf("%w: volume %s is %s, detach it before resizing",
			model.ErrInvalidTransition, vol.VolumeID, vol.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.ResizeVolume(ctx, vol.VolumeID, sizeGiB)
	}); err != nil {
		return model.Notification{}, s.degradeVolume(vol, err)
	}

	// The record keeps its pre-resize size until the cloud reports the new
	// one; the pending marker blocks further mutations meanwhile.
	vol.PendingSizeGiB = sizeGiB
	return model.Notification{
		Recipient:  actor,
		ResourceID: vol.VolumeID,
		Message: fmt.Sprintf("EBS volume resize to %d GiB requested. Remember to run resize2fs once it completes.",
			sizeGiB),
	}, nil
}

func (s *service) AttachVolume(ctx context.Context, actor model.User, instanceID string) (model.Notification, error) {
	vol, err := s.ownedVolume(actor)
	if err != nil {
		return model.Notification{}, err
	}

	// Two resources are involved; lock in id order so a concurrent
	// operation taking the same pair cannot deadlock.
	unlockAll := s.lockPair(vol.VolumeID, instanceID)
	defer unlockAll()

	if err := volumeReady(vol); err != nil {
		return model.Notification{}, err
	}
	rec, err := s.ownedInstance(actor, instanceID)
	if err != nil {
		return model.Notification{}, err
	}
	if rec.State != model.InstanceStateRunning {
		return model.Notification{}, fmt.Errorf("%w: instance %s is %s, volumes attach to running instances",
			model.ErrInvalidTransition, instanceID, rec.State)
	}
	if vol.PendingSizeGiB != 0 {
		return model.Notification{}, fmt.Errorf("%w: volume %s has a resize in progress",
			model.ErrInvalidTransition, vol.VolumeID)
	}
	if vol.State != model.VolumeStateAvailable {
		return model.Notification{}, fmt.Errorf("%w: volume %s is %s",
			model.ErrInvalidTransition, vol.VolumeID, vol.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.AttachVolume(ctx, vol.VolumeID, instanceID, RequestDevice)
	}); err != nil {
		return model.Notification{}, s.degradeVolume(vol, err)
	}

	firstUse := !vol.EverAttached
	vol.State = model.VolumeStateAttaching
	vol.AttachedInstance = instanceID

	device := DevicePath(rec.InstanceType)
	return model.Notification{
		Recipient:  actor,
		ResourceID: vol.VolumeID,
		Message: fmt.Sprintf("EBS volume attached to instance %s as %s. %s",
			instanceID, device, MountInstructions(device, firstUse)),
	}, nil
}

func (s *service) DetachVolume(ctx context.Context, actor model.User) (model.Notification, error) {
	vol, err := s.ownedVolume(actor)
	if err != nil {
		return model.Notification{}, err
	}

	unlock := s.registry.LockResource(vol.VolumeID)
	defer unlock()

	if err := volumeReady(vol); err != nil {
		return model.Notification{}, err
	}
	if vol.State != model.VolumeStateInUse {
		return model.Notification{}, fmt.Errorf("%w: volume %s is %s, only in-use volumes detach",
			model.ErrInvalidTransition, vol.VolumeID, vol.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.DetachVolume(ctx, vol.VolumeID)
	}); err != nil {
		return model.Notification{}, s.degradeVolume(vol, err)
	}

	vol.State = model.VolumeStateDetaching
	return model.Notification{
		Recipient:  actor,
		ResourceID: vol.VolumeID,
		Message:    "Detaching EBS volume. Unmount it inside the instance first if you have not.",
	}, nil
}

func (s *service) DestroyVolume(ctx context.Context, actor model.User, confirmed bool) (model.Notification, error) {
	vol, err := s.ownedVolume(actor)
	if err != nil {
		return model.Notification{}, err
	}

	// Destruction needs the confirmed form of the command; the unconfirmed
	// variant only explains how, and issues no cloud call.
	if !confirmed {
		return model.Notification{
			Recipient:  actor,
			ResourceID: vol.VolumeID,
			Message:    "If you are sure you want to destroy the EBS volume, repeat the command with confirmation.",
		}, nil
	}

	unlock := s.registry.LockResource(vol.VolumeID)
	defer unlock()

	if err := volumeReady(vol); err != nil {
		return model.Notification{}, err
	}
	if vol.State != model.VolumeStateAvailable {
		return model.Notification{}, fmt.Errorf("%w: volume %s is %s, detach it before destroying",
			model.ErrInvalidTransition, vol.VolumeID, vol.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.DeleteVolume(ctx, vol.VolumeID)
	}); err != nil {
		return model.Notification{}, s.degradeVolume(vol, err)
	}

	vol.State = model.VolumeStateDeleting
	s.logger.Info("volume delete accepted", "volume_id", vol.VolumeID, "owner", actor)
	return model.Notification{
		Recipient:  actor,
		ResourceID: vol.VolumeID,
		Message:    "Destroying EBS volume.",
	}, nil
}

func (s *service) ownedVolume(actor model.User) (*model.VolumeRecord, error) {
	vol, ok := s.registry.VolumeOf(actor)
	if !ok {
		return nil, fmt.Errorf("%w: no EBS volume, create one first", model.ErrNotFound)
	}
	return vol, nil
}

// volumeReady rejects degraded volumes. Degraded is written under the
// per-resource lock, so callers must hold it.
func volumeReady(vol *model.VolumeRecord) error {
	if vol.Degraded {
		return fmt.Errorf("%w: volume %s (%s)", model.ErrDegraded, vol.VolumeID, vol.LastError)
	}
	return nil
}

// lockPair acquires two per-resource locks in lexicographic order.
func (s *service) lockPair(a, b string) func() {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	unlockFirst := s.registry.LockResource(first)
	unlockSecond := s.registry.LockResource(second)
	return func() {
		unlockSecond()
		unlockFirst()
	}
}
