package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/google/uuid"
)

// UploadKey replaces the actor's SSH key pair. Deleting a missing key is not
// an error, so the operation is idempotent.
func (s *service) UploadKey(ctx context.Context, actor model.User, publicKey string) (model.Notification, error) {
	if err := s.gateway.DeleteKeyPair(ctx, string(actor)); err != nil {
		s.logger.Debug("delete key pair before import", "user", actor, "error", err)
	}
	if err := retryCloud(ctx, func() error {
		return s.gateway.ImportKeyPair(ctx, string(actor), publicKey)
	}); err != nil {
		return model.Notification{}, err
	}
	return model.Notification{
		Recipient: actor,
		Message:   "Public key updated successfully.",
	}, nil
}

func (s *service) Launch(ctx context.Context, cmd model.Command) (model.Notification, error) {
	actor := cmd.Actor

	ami, ok := s.cfg.AMIs[cmd.AMIKey]
	if !ok {
		return model.Notification{}, fmt.Errorf("%w: unknown AMI %q", model.ErrNotFound, cmd.AMIKey)
	}
	if _, ok := s.cfg.InstanceTypes[cmd.InstanceType]; !ok {
		return model.Notification{}, fmt.Errorf("%w: instance type %q is not in the catalog", model.ErrPolicyViolation, cmd.InstanceType)
	}

	hasKey, err := s.gateway.HasKeyPair(ctx, string(actor))
	if err != nil {
		return model.Notification{}, err
	}
	if !hasKey {
		return model.Notification{}, fmt.Errorf("%w: upload your public key first", model.ErrNoKeyPair)
	}

	var efsUID string
	switch cmd.Mount {
	case model.MountEFS, model.MountEFSRoot:
		if !s.cfg.EFSEnabled() {
			return model.Notification{}, fmt.Errorf("%w: EFS mounts are not configured", model.ErrPolicyViolation)
		}
		efsUID, err = s.gateway.HomeEFSUid(ctx, actor)
		if err != nil {
			return model.Notification{}, err
		}
		if efsUID == "" {
			return model.Notification{}, fmt.Errorf("%w: no Studio profile for %s", model.ErrNotFound, actor)
		}
	case model.MountEBS:
		// Volume intent is recorded below, after the launch is accepted.
	}

	// Same-user launches serialize on the actor key so a double-submitted
	// form cannot race the EBS mount intent.
	unlock := s.registry.LockResource(string(actor))
	defer unlock()

	var volume *model.VolumeRecord
	if cmd.Mount == model.MountEBS {
		vol, ok := s.registry.VolumeOf(actor)
		if !ok {
			return model.Notification{}, fmt.Errorf("%w: no EBS volume, create one first", model.ErrNotFound)
		}
		// Held until the attach intent below is recorded, so the volume
		// cannot change state between the check and the intent.
		unlockVol := s.registry.LockResource(vol.VolumeID)
		defer unlockVol()
		if err := volumeReady(vol); err != nil {
			return model.Notification{}, err
		}
		if vol.State != model.VolumeStateAvailable || vol.PendingSizeGiB != 0 {
			return model.Notification{}, fmt.Errorf("%w: volume %s is %s, it must be available", model.ErrInvalidTransition, vol.VolumeID, vol.State)
		}
		volume = vol
	}

	script := ami.StartupScript + cmd.StartupScript
	spec := model.LaunchSpec{
		AMIID:              ami.ID,
		InstanceType:       cmd.InstanceType,
		KeyName:            string(actor),
		UserData:           buildUserData(ami.User, cmd.Mount, s.cfg.EFSIP, efsUID, script),
		RootVolumeSizeGiB:  s.cfg.RootEBSSize,
		SubnetID:           s.cfg.SubnetID,
		SecurityGroupIDs:   s.cfg.SecurityGroupIDs,
		IAMInstanceProfile: s.cfg.IAMInstanceProfile,
		Tags:               s.tagsForUser(actor),
		ClientToken:        uuid.NewString(),
	}

	instanceID, err := retryCloudValue(ctx, func() (string, error) {
		return s.gateway.CreateInstance(ctx, spec)
	})
	if err != nil {
		return model.Notification{}, err
	}

	// Tracked from the moment the create call is accepted, not when the
	// instance reaches running; the sweep absorbs the rest.
	s.registry.RecordInstance(&model.InstanceRecord{
		InstanceID:   instanceID,
		Owner:        actor,
		AMIKey:       cmd.AMIKey,
		AMIUser:      ami.User,
		InstanceType: cmd.InstanceType,
		LaunchTime:   time.Now(),
		State:        model.InstanceStatePending,
		Tags:         spec.Tags,
	})

	if volume != nil {
		volume.State = model.VolumeStateAttaching
		volume.AttachedInstance = instanceID
		volume.PendingAttach = true
	}

	s.logger.Info("instance launch accepted", "instance_id", instanceID, "owner", actor, "type", cmd.InstanceType)
	return model.Notification{
		Recipient:  actor,
		ResourceID: instanceID,
		Message: fmt.Sprintf("EC2 instance %s launched successfully. Once it is running you can connect with: ssh %s@%s",
			instanceID, ami.User, instanceID),
	}, nil
}

func (s *service) Terminate(ctx context.Context, actor model.User, instanceID string) (model.Notification, error) {
	unlock := s.registry.LockResource(instanceID)
	defer unlock()

	rec, err := s.ownedInstance(actor, instanceID)
	if err != nil {
		return model.Notification{}, err
	}

	// Terminate is legal from Running or Stopped only; an in-flight
	// transition must settle first.
	if rec.State != model.InstanceStateRunning && rec.State != model.InstanceStateStopped {
		return model.Notification{}, fmt.Errorf("%w: instance %s is %s, retry after the current transition completes",
			model.ErrInvalidTransition, instanceID, rec.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.TerminateInstance(ctx, instanceID)
	}); err != nil {
		return model.Notification{}, s.degradeInstance(rec, err)
	}

	s.closeRunningPeriod(rec, time.Now())
	rec.State = model.InstanceStateShuttingDown
	s.logger.Info("instance terminating", "instance_id", instanceID, "owner", actor)
	return model.Notification{
		Recipient:  actor,
		ResourceID: instanceID,
		Message:    fmt.Sprintf("Terminating instance %s.", instanceID),
	}, nil
}

func (s *service) Stop(ctx context.Context, actor model.User, instanceID string) (model.Notification, error) {
	unlock := s.registry.LockResource(instanceID)
	defer unlock()

	rec, err := s.ownedInstance(actor, instanceID)
	if err != nil {
		return model.Notification{}, err
	}
	if rec.State != model.InstanceStateRunning {
		return model.Notification{}, fmt.Errorf("%w: instance %s is %s, only running instances can be stopped",
			model.ErrInvalidTransition, instanceID, rec.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.StopInstance(ctx, instanceID)
	}); err != nil {
		return model.Notification{}, s.degradeInstance(rec, err)
	}

	rec.State = model.InstanceStateStopping
	return model.Notification{
		Recipient:  actor,
		ResourceID: instanceID,
		Message:    fmt.Sprintf("Stopping instance %s.", instanceID),
	}, nil
}

func (s *service) Start(ctx context.Context, actor model.User, instanceID string) (model.Notification, error) {
	unlock := s.registry.LockResource(instanceID)
	defer unlock()

	rec, err := s.ownedInstance(actor, instanceID)
	if err != nil {
		return model.Notification{}, err
	}
	if rec.State != model.InstanceStateStopped {
		return model.Notification{}, fmt.Errorf("%w: instance %s is %s, only stopped instances can be started",
			model.ErrInvalidTransition, instanceID, rec.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.StartInstance(ctx, instanceID)
	}); err != nil {
		return model.Notification{}, s.degradeInstance(rec, err)
	}

	// A fresh running period begins once the sweep observes running; the
	// warning flags re-arm for it.
	rec.State = model.InstanceStatePending
	rec.Warning = model.WarningState{}
	return model.Notification{
		Recipient:  actor,
		ResourceID: instanceID,
		Message:    fmt.Sprintf("Starting instance %s.", instanceID),
	}, nil
}

// ChangeType modifies the instance type. The platform only accepts the
// modification while the instance is stopped; this is not a local policy.
func (s *service) ChangeType(ctx context.Context, actor model.User, instanceID, instanceType string) (model.Notification, error) {
	unlock := s.registry.LockResource(instanceID)
	defer unlock()

	rec, err := s.ownedInstance(actor, instanceID)
	if err != nil {
		return model.Notification{}, err
	}
	if _, ok := s.cfg.InstanceTypes[instanceType]; !ok {
		return model.Notification{}, fmt.Errorf("%w: instance type %q is not in the catalog", model.ErrPolicyViolation, instanceType)
	}
	if rec.InstanceType == instanceType {
		return model.Notification{
			Recipient:  actor,
			ResourceID: instanceID,
			Message:    fmt.Sprintf("Instance %s is already of type %s.", instanceID, instanceType),
		}, nil
	}
	if rec.State != model.InstanceStateStopped {
		return model.Notification{}, fmt.Errorf("%w: instance %s is %s, stop it before changing its type",
			model.ErrInvalidTransition, instanceID, rec.State)
	}

	if err := retryCloud(ctx, func() error {
		return s.gateway.ModifyInstanceType(ctx, instanceID, instanceType)
	}); err != nil {
		return model.Notification{}, s.degradeInstance(rec, err)
	}

	rec.InstanceType = instanceType
	return model.Notification{
		Recipient:  actor,
		ResourceID: instanceID,
		Message:    fmt.Sprintf("Changed instance %s to type %s. Start it when ready.", instanceID, instanceType),
	}, nil
}

// ownedInstance resolves an instance id for an actor. Foreign instances are
// reported as not found rather than leaking their existence.
func (s *service) ownedInstance(actor model.User, instanceID string) (*model.InstanceRecord, error) {
	rec, ok := s.registry.Instance(instanceID)
	if !ok || rec.Owner != actor {
		return nil, fmt.Errorf("%w: instance %s", model.ErrNotFound, instanceID)
	}
	if rec.Degraded {
		return nil, fmt.Errorf("%w: instance %s (%s)", model.ErrDegraded, instanceID, rec.LastError)
	}
	return rec, nil
}

// closeRunningPeriod folds the current running period into the accrued
// total. Harmless when no period is open.
func (s *service) closeRunningPeriod(rec *model.InstanceRecord, now time.Time) {
	if rec.State == model.InstanceStateRunning && !rec.RunningSince.IsZero() {
		if elapsed := now.Sub(rec.RunningSince); elapsed > 0 {
			rec.AccruedRunning += elapsed
		}
	}
	rec.RunningSince = time.Time{}
}

func (s *service) tagsForUser(actor model.User) map[string]string {
	tags := make(map[string]string, len(s.cfg.DefaultTags)+1)
	for key, value := range s.cfg.DefaultTags {
		tags[key] = value
	}
	tags[model.OwnerTagKey] = string(actor)
	return tags
}
