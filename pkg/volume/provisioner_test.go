package volume

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type fakeEC2 struct {
	createOut *ec2.CreateVolumeOutput
	createErr error
	attachErr error

	// volumeStates is consumed one state per DescribeVolumes call; the last
	// entry repeats.
	volumeStates []types.VolumeState

	createCalls   int
	attachCalls   int
	describeCalls int
}

func (f *fakeEC2) CreateVolume(ctx context.Context, params *ec2.CreateVolumeInput, optFns ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
	f.createCalls++
	return f.createOut, f.createErr
}

func (f *fakeEC2) AttachVolume(ctx context.Context, params *ec2.AttachVolumeInput, optFns ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error) {
	f.attachCalls++
	return &ec2.AttachVolumeOutput{}, f.attachErr
}

func (f *fakeEC2) DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	i := f.describeCalls
	f.describeCalls++
	if i >= len(f.volumeStates) {
		i = len(f.volumeStates) - 1
	}
	return &ec2.DescribeVolumesOutput{
		Volumes: []types.Volume{{
			VolumeId: aws.String(params.VolumeIds[0]),
			State:    f.volumeStates[i],
		}},
	}, nil
}

func TestCreateFromSnapshot(t *testing.T) {
	api := &fakeEC2{createOut: &ec2.CreateVolumeOutput{VolumeId: aws.String("vol-1")}}
	p := NewProvisioner(api)

	volumeID, err := p.CreateFromSnapshot(context.Background(), "snap-1", "us-east-1a")
	if err != nil {
		t.Fatalf("failed to create volume: %v", err)
	}
	if volumeID != "vol-1" {
		t.Errorf("volume id mismatch: got %q, want vol-1", volumeID)
	}
	if api.createCalls != 1 {
		t.Errorf("expected 1 CreateVolume call, got %d", api.createCalls)
	}
}

func TestCreateFromSnapshot_NoVolumeID(t *testing.T) {
	api := &fakeEC2{createOut: &ec2.CreateVolumeOutput{}}
	p := NewProvisioner(api)

	_, err := p.CreateFromSnapshot(context.Background(), "snap-1", "us-east-1a")
	if err == nil {
		t.Fatal("expected error when no volume id is returned")
	}
	if !strings.Contains(err.Error(), "no volume id") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateFromSnapshot_ProviderError(t *testing.T) {
	api := &fakeEC2{createErr: fmt.Errorf("InsufficientVolumeCapacity")}
	p := NewProvisioner(api)

	_, err := p.CreateFromSnapshot(context.Background(), "snap-1", "us-east-1a")
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestWaitUntilAvailable(t *testing.T) {
	api := &fakeEC2{volumeStates: []types.VolumeState{types.VolumeStateAvailable}}
	p := NewProvisioner(api)

	if err := p.WaitUntilAvailable(context.Background(), "vol-1", 60*time.Second); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if api.describeCalls != 1 {
		t.Errorf("expected 1 DescribeVolumes call, got %d", api.describeCalls)
	}
}

func TestWaitUntilAvailable_Deadline(t *testing.T) {
	// Volume never leaves creating; a tiny deadline forces the timeout path.
	api := &fakeEC2{volumeStates: []types.VolumeState{types.VolumeStateCreating}}
	p := NewProvisioner(api)

	err := p.WaitUntilAvailable(context.Background(), "vol-1", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if !strings.Contains(err.Error(), "not available within") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAttach(t *testing.T) {
	api := &fakeEC2{}
	p := NewProvisioner(api)

	if err := p.Attach(context.Background(), "vol-1", "i-1", "/dev/xvdg"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if api.attachCalls != 1 {
		t.Errorf("expected 1 AttachVolume call, got %d", api.attachCalls)
	}
}

func TestAttach_Rejected(t *testing.T) {
	api := &fakeEC2{attachErr: fmt.Errorf("InvalidDevice.InUse")}
	p := NewProvisioner(api)

	err := p.Attach(context.Background(), "vol-1", "i-1", "/dev/xvdg")
	if err == nil {
		t.Fatal("expected rejection to propagate")
	}
}
