package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elC0mpa/ec2-concierge/config"
	"github.com/elC0mpa/ec2-concierge/model"
	ports "github.com/elC0mpa/ec2-concierge/service"
	"github.com/elC0mpa/ec2-concierge/service/lifecycle"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
	"github.com/elC0mpa/ec2-concierge/utils"
)

func NewService(gateway ports.CloudGateway, reg *registry.Registry, pol policy.PolicyService, notifier ports.Notifier, cfg *config.Config, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		gateway:  gateway,
		registry: reg,
		policy:   pol,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes sweeps on the configured interval until ctx is cancelled.
func (s *service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.sweeping.CompareAndSwap(false, true) {
				s.logger.Warn("previous sweep still running, skipping tick")
				continue
			}
			go func() {
				defer s.sweeping.Store(false)
				if err := s.Sweep(ctx); err != nil {
					s.logger.Error("sweep finished with errors", "error", err)
				}
			}()
		}
	}
}

// Sweep runs one reconciliation pass. Concurrent callers share a single
// execution.
func (s *service) Sweep(ctx context.Context) error {
	_, err, _ := s.group.Do("sweep", func() (any, error) {
		return nil, s.sweep(ctx)
	})
	return err
}

func (s *service) sweep(ctx context.Context) error {
	now := time.Now()

	instanceSnapshots, err := s.gateway.ListInstances(ctx, model.InstanceFilter{})
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	volumeSnapshots, err := s.gateway.ListVolumes(ctx, model.VolumeFilter{})
	if err != nil {
		return fmt.Errorf("list volumes: %w", err)
	}

	var (
		errs  []error
		notes []model.Notification
	)

	notes = append(notes, s.reconcileInstances(instanceSnapshots, now)...)
	moreNotes, attachErrs := s.reconcileVolumes(ctx, volumeSnapshots)
	notes = append(notes, moreNotes...)
	errs = append(errs, attachErrs...)

	notes = append(notes, s.evaluatePolicy(now)...)

	if len(notes) > 0 {
		if err := s.notifier.Notify(ctx, notes); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}

	s.logger.Info("sweep complete",
		"instances", len(instanceSnapshots),
		"volumes", len(volumeSnapshots),
		"notifications", len(notes),
		"errors", len(errs))
	return errors.Join(errs...)
}

// reconcileInstances absorbs cloud-reported instance state into the
// registry. Pure state absorption, no cloud calls.
func (s *service) reconcileInstances(snapshots []model.InstanceSnapshot, now time.Time) []model.Notification {
	byID := make(map[string]model.InstanceSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.InstanceID] = snap
	}

	var notes []model.Notification

	for _, rec := range s.registry.AllInstances() {
		unlock := s.registry.LockResource(rec.InstanceID)
		snap, seen := byID[rec.InstanceID]
		delete(byID, rec.InstanceID)
		if rec.Degraded {
			if !rec.DegradedNotified {
				rec.DegradedNotified = true
				notes = append(notes, s.degradedNotes(rec.Owner, rec.InstanceID, rec.LastError)...)
			}
			unlock()
			continue
		}
		if !seen {
			// Gone from the cloud entirely; treat as terminated.
			s.logger.Warn("tracked instance no longer visible", "instance_id", rec.InstanceID, "owner", rec.Owner)
			absorbInstanceState(rec, model.InstanceSnapshot{State: model.InstanceStateTerminated}, now)
		} else {
			absorbInstanceState(rec, snap, now)
		}
		if rec.State == model.InstanceStateTerminated {
			s.registry.RemoveInstance(rec.InstanceID)
			notes = append(notes, model.Notification{
				Recipient:  rec.Owner,
				ResourceID: rec.InstanceID,
				Message:    fmt.Sprintf("Instance %s has been terminated.", rec.InstanceID),
			})
		}
		unlock()
	}

	// Tagged instances nobody tracks yet: adopt them, so the registry
	// converges after restarts or out-of-band launches.
	for _, snap := range byID {
		owner, ok := snap.Tags[model.OwnerTagKey]
		if !ok || snap.State == model.InstanceStateTerminated {
			continue
		}
		s.registry.RecordInstance(registry.InstanceFromSnapshot(snap, model.User(owner)))
	}

	return notes
}

// absorbInstanceState advances a record to match what the cloud reports.
func absorbInstanceState(rec *model.InstanceRecord, snap model.InstanceSnapshot, now time.Time) {
	if snap.InstanceType != "" {
		rec.InstanceType = snap.InstanceType
	}
	if snap.PublicDNS != "" {
		rec.PublicDNS = snap.PublicDNS
	}

	if snap.State == rec.State {
		return
	}

	switch snap.State {
	case model.InstanceStateRunning:
		// A listing captured before a user's stop or terminate call still
		// says running; never rewind an in-flight transition, or the next
		// absorbed stop would fold the same period twice.
		if rec.State == model.InstanceStateStopping || rec.State == model.InstanceStateShuttingDown {
			return
		}
		// A fresh running period: the platform resets LaunchTime on every
		// start, which anchors cost accrual and re-arms warnings.
		rec.State = model.InstanceStateRunning
		rec.RunningSince = snap.LaunchTime
		if rec.RunningSince.IsZero() {
			rec.RunningSince = now
		}
		rec.LaunchTime = rec.RunningSince
		rec.Warning = model.WarningState{}
	case model.InstanceStateStopped, model.InstanceStateTerminated:
		closePeriodAt(rec, snap.StateTransitionReason, now)
		rec.State = snap.State
	default:
		rec.State = snap.State
	}
}

// closePeriodAt folds the open running period into the accrued total. The
// stop timestamp the platform embeds in the transition reason is preferred
// over sweep time, since a sweep may observe the stop much later.
func closePeriodAt(rec *model.InstanceRecord, transitionReason string, now time.Time) {
	if rec.RunningSince.IsZero() {
		return
	}
	end := now
	if at, err := utils.ParseTransitionDate(transitionReason); err == nil && at.After(rec.RunningSince) {
		end = at
	}
	if elapsed := end.Sub(rec.RunningSince); elapsed > 0 {
		rec.AccruedRunning += elapsed
	}
	rec.RunningSince = time.Time{}
}

// reconcileVolumes absorbs volume state and completes deferred attaches
// recorded at launch time.
func (s *service) reconcileVolumes(ctx context.Context, snapshots []model.VolumeSnapshot) ([]model.Notification, []error) {
	byID := make(map[string]model.VolumeSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.VolumeID] = snap
	}

	var (
		notes []model.Notification
		errs  []error
	)

	for _, rec := range s.registry.AllVolumes() {
		unlock := s.registry.LockResource(rec.VolumeID)
		snap, seen := byID[rec.VolumeID]
		delete(byID, rec.VolumeID)
		if rec.Degraded {
			if !rec.DegradedNotified {
				rec.DegradedNotified = true
				notes = append(notes, s.degradedNotes(rec.Owner, rec.VolumeID, rec.LastError)...)
			}
			unlock()
			continue
		}
		if !seen {
			rec.State = model.VolumeStateDeleted
			s.registry.RemoveVolume(rec.VolumeID)
			notes = append(notes, model.Notification{
				Recipient:  rec.Owner,
				ResourceID: rec.VolumeID,
				Message:    "Your EBS volume has been deleted.",
			})
			unlock()
			continue
		}

		absorbVolumeState(rec, snap)

		if rec.PendingAttach && snap.State == model.VolumeStateAvailable {
			// Deferred attach from a launch: the instance had to reach
			// running first. Completing it here keeps user paths free of
			// waiters. A user-issued attach never sets the intent, so a
			// listing staler than that attach cannot repeat its cloud call.
			if note, err := s.completeAttach(ctx, rec); err != nil {
				errs = append(errs, err)
				if rec.Degraded && !rec.DegradedNotified {
					rec.DegradedNotified = true
					notes = append(notes, s.degradedNotes(rec.Owner, rec.VolumeID, rec.LastError)...)
				}
			} else if note != nil {
				notes = append(notes, *note)
			}
		}
		unlock()
	}

	for _, snap := range byID {
		owner, ok := snap.Tags[model.OwnerTagKey]
		if !ok || snap.State == model.VolumeStateDeleted {
			continue
		}
		rec := registry.VolumeFromSnapshot(snap, model.User(owner))
		if err := s.registry.RecordVolume(rec); err != nil {
			// Second tagged volume for the same owner: surface it rather
			// than silently track an invariant violation.
			errs = append(errs, err)
			notes = append(notes, model.Notification{
				Recipient:  model.User(owner),
				ToAdmin:    true,
				ResourceID: snap.VolumeID,
				Message:    fmt.Sprintf("Untracked extra volume %s found for %s; please clean it up manually.", snap.VolumeID, owner),
			})
		}
	}

	return notes, errs
}

func absorbVolumeState(rec *model.VolumeRecord, snap model.VolumeSnapshot) {
	if rec.PendingSizeGiB != 0 && snap.SizeGiB == rec.PendingSizeGiB {
		rec.PendingSizeGiB = 0
	}
	rec.SizeGiB = snap.SizeGiB

	switch snap.State {
	case model.VolumeStateInUse, model.VolumeStateAttaching:
		// The cloud has the attach, whoever issued it.
		rec.State = snap.State
		rec.AttachedInstance = snap.AttachedTo
		rec.PendingAttach = false
		if snap.State == model.VolumeStateInUse {
			rec.EverAttached = true
		}
	case model.VolumeStateAvailable:
		// A volume waiting on a deferred attach stays in attaching, as does
		// one whose user-issued attach the listing has not caught up with.
		if rec.State != model.VolumeStateAttaching || rec.AttachedInstance == "" {
			rec.State = model.VolumeStateAvailable
			rec.AttachedInstance = ""
		}
	default:
		rec.State = snap.State
	}
}

func (s *service) completeAttach(ctx context.Context, vol *model.VolumeRecord) (*model.Notification, error) {
	instance, ok := s.registry.Instance(vol.AttachedInstance)
	if !ok {
		// The target never came up or is gone; give the volume back.
		vol.State = model.VolumeStateAvailable
		vol.AttachedInstance = ""
		vol.PendingAttach = false
		return nil, nil
	}
	if instance.State != model.InstanceStateRunning {
		return nil, nil
	}

	if err := s.gateway.AttachVolume(ctx, vol.VolumeID, instance.InstanceID, lifecycle.RequestDevice); err != nil {
		if model.IsTransient(err) {
			// Keep the intent; the next sweep retries.
			vol.LastError = err.Error()
			return nil, fmt.Errorf("deferred attach %s: %w", vol.VolumeID, err)
		}
		vol.Degraded = true
		vol.LastError = err.Error()
		return nil, fmt.Errorf("%w: volume %s: %v", model.ErrDegraded, vol.VolumeID, err)
	}

	vol.PendingAttach = false
	firstUse := !vol.EverAttached
	device := lifecycle.DevicePath(instance.InstanceType)
	return &model.Notification{
		Recipient:  vol.Owner,
		ResourceID: vol.VolumeID,
		Message: fmt.Sprintf("EBS volume attached to instance %s as %s. %s",
			instance.InstanceID, device, lifecycle.MountInstructions(device, firstUse)),
	}, nil
}

// evaluatePolicy runs the cost engine over running instances and emits due
// warnings, flagging each so repeated sweeps stay idempotent.
func (s *service) evaluatePolicy(now time.Time) []model.Notification {
	var notes []model.Notification

	for _, rec := range s.registry.AllInstances() {
		unlock := s.registry.LockResource(rec.InstanceID)
		if rec.Degraded || rec.State != model.InstanceStateRunning {
			unlock()
			continue
		}

		decision := s.policy.Evaluate(rec, now)
		estimate := s.policy.EstimateCost(rec, now)

		if decision.GeneralWarning {
			rec.Warning.GeneralSent = true
			notes = append(notes, model.Notification{
				Recipient:  rec.Owner,
				ResourceID: rec.InstanceID,
				Message: fmt.Sprintf("Warning: your instance %s (%s) has been running for %d days (~$%.2f). Please consider terminating it.",
					rec.InstanceID, rec.InstanceType, estimate.RunningDays, estimate.AccruedUSD),
			})
		}
		if decision.LargeCostWarning {
			rec.Warning.LargeCostSent = true
			notes = append(notes, model.Notification{
				Recipient:  rec.Owner,
				ResourceID: rec.InstanceID,
				Message: fmt.Sprintf("Warning: your instance %s (%s) costs $%.2f/hr and has been running for %d days (~$%.2f). Please consider stopping it.",
					rec.InstanceID, rec.InstanceType, estimate.HourlyRate, estimate.RunningDays, estimate.AccruedUSD),
			})
		}
		unlock()
	}

	return notes
}

// degradedNotes builds the owner and admin escalations for a degraded
// resource.
func (s *service) degradedNotes(owner model.User, resourceID, lastError string) []model.Notification {
	notes := []model.Notification{{
		Recipient:  owner,
		ResourceID: resourceID,
		Message:    fmt.Sprintf("Automatic management of %s has been suspended after repeated failures: %s", resourceID, lastError),
	}}
	if s.cfg.AdminUser != "" {
		notes = append(notes, model.Notification{
			Recipient:  model.User(s.cfg.AdminUser),
			ToAdmin:    true,
			ResourceID: resourceID,
			Message:    fmt.Sprintf("Resource %s owned by %s is degraded: %s", resourceID, owner, lastError),
		})
	}
	return notes
}
