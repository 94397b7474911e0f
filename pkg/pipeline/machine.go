// Package pipeline implements the AMI materialization workflow as a finite
// state machine. It resolves the host's identity and the image's backing
// snapshot, provisions a volume, attaches it, and waits for the device node,
// using the superfly/fsm library for orchestration.
package pipeline

import (
	"context"
	"time"

	"github.com/superfly/fsm"

	"vmi/pkg/db"
	"vmi/pkg/errors"
	"vmi/pkg/metadata"
)

// IdentityResolver reads the host's identity from the metadata service.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (*metadata.Identity, error)
}

// SnapshotResolver resolves an image id to its backing snapshot id.
type SnapshotResolver interface {
	ResolveSnapshot(ctx context.Context, imageID string) (string, error)
}

// VolumeProvisioner drives the volume lifecycle against the provider.
type VolumeProvisioner interface {
	CreateFromSnapshot(ctx context.Context, snapshotID, zone string) (string, error)
	WaitUntilAvailable(ctx context.Context, volumeID string, maxWait time.Duration) error
	Attach(ctx context.Context, volumeID, instanceID, devicePath string) error
}

// DeviceWaiter observes the local filesystem for the attached device.
type DeviceWaiter interface {
	Exists(path string) bool
	Wait(ctx context.Context, path string) error
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	repo       *db.Repository
	identity   IdentityResolver
	catalog    SnapshotResolver
	volumes    VolumeProvisioner
	devices    DeviceWaiter
	volumeWait time.Duration
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(
	repo *db.Repository,
	identity IdentityResolver,
	catalog SnapshotResolver,
	volumes VolumeProvisioner,
	devices DeviceWaiter,
	volumeWait time.Duration,
) *Machine {
	return &Machine{
		repo:       repo,
		identity:   identity,
		catalog:    catalog,
		volumes:    volumes,
		devices:    devices,
		volumeWait: volumeWait,
	}
}

// Register registers the materialization FSM. The transitions are strictly
// linear; every failure aborts the machine, and a failed run is re-issued
// from scratch rather than resumed.
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[MaterializeRequest, MaterializeResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[MaterializeRequest, MaterializeResponse](manager, "materialize").
		Start(StateCheckDevice, m.handleCheckDevice).
		To(StateResolveIdentity, m.handleResolveIdentity).
		To(StateResolveSnapshot, m.handleResolveSnapshot).
		To(StateCreateVolume, m.handleCreateVolume).
		To(StateAttachVolume, m.handleAttachVolume).
		To(StateWaitDevice, m.handleWaitDevice).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
