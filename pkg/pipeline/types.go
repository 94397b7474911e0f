package pipeline

// MaterializeRequest is the FSM input
type MaterializeRequest struct {
	ImageID    string
	DevicePath string
}

// MaterializeResponse is the FSM output (accumulated across transitions)
type MaterializeResponse struct {
	// From CheckDevice
	RunID      int64
	DevicePath string

	// From ResolveIdentity
	InstanceID       string
	AvailabilityZone string

	// From ResolveSnapshot
	SnapshotID string

	// From CreateVolume
	VolumeID string

	// From Complete/Failed
	Status       string
	ErrorMessage string
}

// State names
const (
	StateCheckDevice     = "check_device"
	StateResolveIdentity = "resolve_identity"
	StateResolveSnapshot = "resolve_snapshot"
	StateCreateVolume    = "create_volume"
	StateAttachVolume    = "attach_volume"
	StateWaitDevice      = "wait_device"
	StateComplete        = "complete"
	StateFailed          = "failed"
)
