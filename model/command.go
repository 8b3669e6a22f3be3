package model

// Action identifies one user intent arriving from the chat layer.
type Action string

const (
	ActionUploadKey     Action = "upload_key"
	ActionLaunch        Action = "launch"
	ActionTerminate     Action = "terminate"
	ActionChangeType    Action = "change_type"
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionCreateVolume  Action = "create_volume"
	ActionResizeVolume  Action = "resize_volume"
	ActionAttachVolume  Action = "attach_volume"
	ActionDetachVolume  Action = "detach_volume"
	ActionDestroyVolume Action = "destroy_volume"
	ActionStatus        Action = "status"
)

// MountOption selects the home-directory mount assembled into the launch
// user-data script.
type MountOption string

const (
	MountNone    MountOption = "none"
	MountEFS     MountOption = "efs"
	MountEFSRoot MountOption = "efs_root"
	MountEBS     MountOption = "ebs"
)

// Command is a pre-validated intent from the chat layer. Well-formedness is
// the form layer's job; semantic legality against current resource state is
// decided here.
type Command struct {
	Action Action `json:"action"`
	Actor  User   `json:"actor"`

	// UploadKey
	PublicKey string `json:"public_key,omitempty"`

	// Launch
	AMIKey        string      `json:"ami_key,omitempty"`
	InstanceType  string      `json:"instance_type,omitempty"`
	Mount         MountOption `json:"mount,omitempty"`
	StartupScript string      `json:"startup_script,omitempty"`

	// Instance operations
	InstanceID string `json:"instance_id,omitempty"`

	// Volume operations
	SizeGiB int32 `json:"size_gib,omitempty"`

	// DestroyVolume requires the confirmed form of the command.
	Confirmed bool `json:"confirmed,omitempty"`
}
