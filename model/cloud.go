package model

import "time"

// OwnerTagKey is the cloud tag recording which workspace identity created a
// resource. It is the durable source of truth for ownership; the in-process
// registry is only a cache over it.
const OwnerTagKey = "User"

// InstanceSnapshot is one instance as the cloud reports it.
type InstanceSnapshot struct {
	InstanceID            string
	InstanceType          string
	State                 InstanceState
	LaunchTime            time.Time
	PublicDNS             string
	StateTransitionReason string
	Tags                  map[string]string
}

// VolumeSnapshot is one volume as the cloud reports it.
type VolumeSnapshot struct {
	VolumeID   string
	SizeGiB    int32
	State      VolumeState
	AttachedTo string
	Tags       map[string]string
}

// InstanceFilter narrows an instance listing. The zero value lists every
// instance carrying the ownership tag.
type InstanceFilter struct {
	Owner  User
	States []InstanceState
}

// VolumeFilter narrows a volume listing.
type VolumeFilter struct {
	Owner User
}

// LaunchSpec carries everything needed for a single RunInstances call.
// ClientToken makes the call safe to retry.
type LaunchSpec struct {
	AMIID              string
	InstanceType       string
	KeyName            string
	UserData           string
	RootVolumeSizeGiB  int32
	SubnetID           string
	SecurityGroupIDs   []string
	IAMInstanceProfile string
	Tags               map[string]string
	ClientToken        string
}

// VolumeSpec carries everything needed for a single CreateVolume call.
type VolumeSpec struct {
	SizeGiB     int32
	Tags        map[string]string
	ClientToken string
}
