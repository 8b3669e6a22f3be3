package model

import "time"

// User is an opaque workspace identity. It doubles as the value of the
// ownership tag on every cloud resource the engine manages.
type User string

type InstanceState string

const (
	InstanceStatePending      InstanceState = "pending"
	InstanceStateRunning      InstanceState = "running"
	InstanceStateStopping     InstanceState = "stopping"
	InstanceStateStopped      InstanceState = "stopped"
	InstanceStateShuttingDown InstanceState = "shutting-down"
	InstanceStateTerminated   InstanceState = "terminated"
)

type VolumeState string

const (
	VolumeStateCreating  VolumeState = "creating"
	VolumeStateAvailable VolumeState = "available"
	VolumeStateAttaching VolumeState = "attaching"
	VolumeStateInUse     VolumeState = "in-use"
	VolumeStateDetaching VolumeState = "detaching"
	VolumeStateDeleting  VolumeState = "deleting"
	VolumeStateDeleted   VolumeState = "deleted"
)

// WarningState records which run-length warnings were already delivered for
// the current continuous running period. Cleared when a fresh running period
// begins, so a stop/start cycle re-arms both thresholds.
type WarningState struct {
	GeneralSent   bool
	LargeCostSent bool
}

// InstanceRecord is the engine's view of one EC2 instance. Mutated only by
// the lifecycle machines and the reconciliation sweep, always under the
// per-resource lock.
type InstanceRecord struct {
	InstanceID   string
	Owner        User
	AMIKey       string
	AMIUser      string
	InstanceType string
	LaunchTime   time.Time
	State        InstanceState
	PublicDNS    string
	Tags         map[string]string

	// RunningSince is the start of the current running period, zero unless
	// State is Running. AccruedRunning sums all completed running periods.
	RunningSince   time.Time
	AccruedRunning time.Duration

	Warning   WarningState
	Degraded  bool
	LastError string

	// DegradedNotified is set once the sweep has escalated the degraded
	// record to the owner and admin, so later sweeps stay silent.
	DegradedNotified bool
}

// VolumeRecord is the engine's view of one EBS volume. AttachedInstance is a
// weak reference: the instance lifecycle is independent of the volume's.
type VolumeRecord struct {
	VolumeID         string
	Owner            User
	SizeGiB          int32
	State            VolumeState
	AttachedInstance string
	Tags             map[string]string

	// PendingSizeGiB is set while a resize is in flight; the cloud rejects
	// further modifications until it reports the new size.
	PendingSizeGiB int32

	// EverAttached selects format-and-mount vs mount-only instructions
	// after an attach. Conservatively true for volumes discovered during a
	// registry rebuild, so stale data is never offered a format command.
	EverAttached bool

	// PendingAttach marks a launch-time attach intent the sweep completes
	// once the target instance is running. User-issued attaches never set
	// it; their cloud call has already been made.
	PendingAttach bool

	Degraded  bool
	LastError string

	DegradedNotified bool
}

// Attached reports whether the volume currently references an instance.
func (v *VolumeRecord) Attached() bool {
	switch v.State {
	case VolumeStateAttaching, VolumeStateInUse, VolumeStateDetaching:
		return true
	}
	return false
}

// Final reports whether the instance has reached its terminal state.
func (i *InstanceRecord) Final() bool {
	return i.State == InstanceStateTerminated
}
