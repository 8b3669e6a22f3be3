package service

import (
	"context"

	"github.com/elC0mpa/ec2-concierge/model"
)

// CloudGateway abstracts the compute/storage/identity control plane. Every
// mutating call is safe to retry: create calls carry client tokens and tag
// resources in the same request, and "already in the requested state" is
// success, not an error.
type CloudGateway interface {
	ListInstances(ctx context.Context, filter model.InstanceFilter) ([]model.InstanceSnapshot, error)
	CreateInstance(ctx context.Context, spec model.LaunchSpec) (string, error)
	TerminateInstance(ctx context.Context, instanceID string) error
	StartInstance(ctx context.Context, instanceID string) error
	StopInstance(ctx context.Context, instanceID string) error
	ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error

	ListVolumes(ctx context.Context, filter model.VolumeFilter) ([]model.VolumeSnapshot, error)
	CreateVolume(ctx context.Context, spec model.VolumeSpec) (string, error)
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error
	DetachVolume(ctx context.Context, volumeID string) error
	ResizeVolume(ctx context.Context, volumeID string, sizeGiB int32) error
	DeleteVolume(ctx context.Context, volumeID string) error

	ImportKeyPair(ctx context.Context, keyName, publicKey string) error
	DeleteKeyPair(ctx context.Context, keyName string) error
	HasKeyPair(ctx context.Context, keyName string) (bool, error)

	// HomeEFSUid resolves the SageMaker Studio home-directory uid for a
	// user. Returns empty when the user has no Studio profile.
	HomeEFSUid(ctx context.Context, user model.User) (string, error)
}

// Notifier delivers notification intents. The chat transport behind it is an
// external collaborator.
type Notifier interface {
	Notify(ctx context.Context, notes []model.Notification) error
}
