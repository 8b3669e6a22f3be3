package registry

import (
	"context"
	"fmt"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/elC0mpa/ec2-concierge/service"
)

func NewService() *Registry {
	return &Registry{
		instances: make(map[string]*model.InstanceRecord),
		volumes:   make(map[string]*model.VolumeRecord),
	}
}

// RecordInstance starts tracking an instance.
func (r *Registry) RecordInstance(rec *model.InstanceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[rec.InstanceID] = rec
}

// RecordVolume starts tracking a volume. It enforces the one-volume-per-user
// invariant: a second non-deleted volume for the same owner is rejected.
func (r *Registry) RecordVolume(rec *model.VolumeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.volumes {
		if existing.Owner == rec.Owner && existing.State != model.VolumeStateDeleted && existing.VolumeID != rec.VolumeID {
			return fmt.Errorf("%w: user %s already owns volume %s", model.ErrResourceConflict, rec.Owner, existing.VolumeID)
		}
	}
	r.volumes[rec.VolumeID] = rec
	return nil
}

// RemoveInstance stops tracking a terminated instance.
func (r *Registry) RemoveInstance(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceID)
}

// RemoveVolume stops tracking a deleted volume.
func (r *Registry) RemoveVolume(volumeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volumes, volumeID)
}

// Instance returns the tracked record for an instance id.
func (r *Registry) Instance(instanceID string) (*model.InstanceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.instances[instanceID]
	return rec, ok
}

// Volume returns the tracked record for a volume id.
func (r *Registry) Volume(volumeID string) (*model.VolumeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.volumes[volumeID]
	return rec, ok
}

// LookupOwner resolves a resource id of either kind to its owner.
func (r *Registry) LookupOwner(resourceID string) (model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.instances[resourceID]; ok {
		return rec.Owner, true
	}
	if rec, ok := r.volumes[resourceID]; ok {
		return rec.Owner, true
	}
	return "", false
}

// InstancesOf returns all instances owned by a user.
func (r *Registry) InstancesOf(owner model.User) []*model.InstanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.InstanceRecord
	for _, rec := range r.instances {
		if rec.Owner == owner {
			out = append(out, rec)
		}
	}
	return out
}

// VolumeOf returns the user's non-deleted volume, if any.
func (r *Registry) VolumeOf(owner model.User) (*model.VolumeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.volumes {
		if rec.Owner == owner && rec.State != model.VolumeStateDeleted {
			return rec, true
		}
	}
	return nil, false
}

// AllInstances returns every tracked instance.
func (r *Registry) AllInstances() []*model.InstanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.InstanceRecord, 0, len(r.instances))
	for _, rec := range r.instances {
		out = append(out, rec)
	}
	return out
}

// AllVolumes returns every tracked volume.
func (r *Registry) AllVolumes() []*model.VolumeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.VolumeRecord, 0, len(r.volumes))
	for _, rec := range r.volumes {
		out = append(out, rec)
	}
	return out
}

// Rebuild reconstructs the registry from cloud ownership tags, dropping all
// prior in-memory state. Warning flags start clean, which at worst repeats a
// warning after a restart.
func (r *Registry) Rebuild(ctx context.Context, gateway service.CloudGateway) error {
	instanceSnapshots, err := gateway.ListInstances(ctx, model.InstanceFilter{})
	if err != nil {
		return fmt.Errorf("rebuild instances: %w", err)
	}
	volumeSnapshots, err := gateway.ListVolumes(ctx, model.VolumeFilter{})
	if err != nil {
		return fmt.Errorf("rebuild volumes: %w", err)
	}

	instances := make(map[string]*model.InstanceRecord, len(instanceSnapshots))
	for _, snap := range instanceSnapshots {
		owner, ok := snap.Tags[model.OwnerTagKey]
		if !ok || snap.State == model.InstanceStateTerminated {
			continue
		}
		rec := InstanceFromSnapshot(snap, model.User(owner))
		instances[rec.InstanceID] = rec
	}

	volumes := make(map[string]*model.VolumeRecord, len(volumeSnapshots))
	for _, snap := range volumeSnapshots {
		owner, ok := snap.Tags[model.OwnerTagKey]
		if !ok || snap.State == model.VolumeStateDeleted {
			continue
		}
		volumes[snap.VolumeID] = VolumeFromSnapshot(snap, model.User(owner))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = instances
	r.volumes = volumes
	return nil
}

// InstanceFromSnapshot builds a fresh record from cloud-reported state.
func InstanceFromSnapshot(snap model.InstanceSnapshot, owner model.User) *model.InstanceRecord {
	rec := &model.InstanceRecord{
		InstanceID:   snap.InstanceID,
		Owner:        owner,
		InstanceType: snap.InstanceType,
		LaunchTime:   snap.LaunchTime,
		State:        snap.State,
		PublicDNS:    snap.PublicDNS,
		Tags:         snap.Tags,
	}
	if rec.State == model.InstanceStateRunning {
		rec.RunningSince = snap.LaunchTime
	}
	return rec
}

// VolumeFromSnapshot builds a fresh record from cloud-reported state.
func VolumeFromSnapshot(snap model.VolumeSnapshot, owner model.User) *model.VolumeRecord {
	return &model.VolumeRecord{
		VolumeID:         snap.VolumeID,
		Owner:            owner,
		SizeGiB:          snap.SizeGiB,
		State:            snap.State,
		AttachedInstance: snap.AttachedTo,
		Tags:             snap.Tags,
		EverAttached:     true,
	}
}
