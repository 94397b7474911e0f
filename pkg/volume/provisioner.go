// Package volume provisions EBS volumes from snapshots and attaches them to
// instances.
package volume

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"vmi/pkg/errors"
)

// API is the slice of the EC2 API the provisioner needs. It embeds the
// generated DescribeVolumes client interface so the availability waiter can
// run against the same fake in tests.
type API interface {
	ec2.DescribeVolumesAPIClient
	CreateVolume(ctx context.Context, params *ec2.CreateVolumeInput, optFns ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error)
	AttachVolume(ctx context.Context, params *ec2.AttachVolumeInput, optFns ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error)
}

// Provisioner creates, waits on, and attaches EBS volumes.
type Provisioner struct {
	api API
}

// NewProvisioner creates a provisioner on top of an EC2 client.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// CreateFromSnapshot creates a volume from the snapshot in the given zone and
// returns its id. A create call that succeeds without returning a volume id
// is a hard failure: the volume may exist remotely but there is no handle to
// continue with.
func (p *Provisioner) CreateFromSnapshot(ctx context.Context, snapshotID, zone string) (string, error) {
	slog.Info("volume_create_started", "snapshot_id", snapshotID, "availability_zone", zone)

	out, err := p.api.CreateVolume(ctx, &ec2.CreateVolumeInput{
		SnapshotId:       aws.String(snapshotID),
		AvailabilityZone: aws.String(zone),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to create volume")
	}
	if out.VolumeId == nil || *out.VolumeId == "" {
		return "", fmt.Errorf("create volume from %s returned no volume id", snapshotID)
	}

	slog.Info("volume_created", "volume_id", *out.VolumeId, "snapshot_id", snapshotID)
	return *out.VolumeId, nil
}

// WaitUntilAvailable blocks until the volume reaches the available state,
// bounded by maxWait.
func (p *Provisioner) WaitUntilAvailable(ctx context.Context, volumeID string, maxWait time.Duration) error {
	slog.Info("volume_wait_available", "volume_id", volumeID, "max_wait", maxWait)

	waiter := ec2.NewVolumeAvailableWaiter(p.api)
	err := waiter.Wait(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	}, maxWait)
	if err != nil {
		slog.Error("volume_wait_failed", "volume_id", volumeID, "error", err)
		return fmt.Errorf("volume %s not available within %s: %w", volumeID, maxWait, err)
	}

	slog.Info("volume_available", "volume_id", volumeID)
	return nil
}

// Attach requests attachment of the volume to the instance at the given
// device path. Success confirms control-plane acceptance only: the provider
// may surface the device under a different name than requested, and OS-level
// visibility is observed separately.
func (p *Provisioner) Attach(ctx context.Context, volumeID, instanceID, devicePath string) error {
	slog.Info("volume_attach_started", "volume_id", volumeID, "instance_id", instanceID, "device", devicePath)

	_, err := p.api.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(devicePath),
	})
	if err != nil {
		slog.Error("volume_attach_failed", "volume_id", volumeID, "error", err)
		return errors.Wrap(err, "failed to attach volume")
	}

	slog.Info("volume_attach_accepted", "volume_id", volumeID, "device", devicePath)
	return nil
}
