package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type fakeDescribeImages struct {
	out   *ec2.DescribeImagesOutput
	err   error
	calls int
}

func (f *fakeDescribeImages) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.calls++
	return f.out, f.err
}

func TestResolveSnapshot(t *testing.T) {
	api := &fakeDescribeImages{
		out: &ec2.DescribeImagesOutput{
			Images: []types.Image{
				{
					ImageId: aws.String("ami-1"),
					BlockDeviceMappings: []types.BlockDeviceMapping{
						{Ebs: &types.EbsBlockDevice{SnapshotId: aws.String("snap-1")}},
						{Ebs: &types.EbsBlockDevice{SnapshotId: aws.String("snap-2")}},
					},
				},
			},
		},
	}

	r := NewResolver(api)
	snapshotID, err := r.ResolveSnapshot(context.Background(), "ami-1")
	if err != nil {
		t.Fatalf("failed to resolve snapshot: %v", err)
	}
	// First mapping wins.
	if snapshotID != "snap-1" {
		t.Errorf("snapshot id mismatch: got %q, want snap-1", snapshotID)
	}
	if api.calls != 1 {
		t.Errorf("expected 1 DescribeImages call, got %d", api.calls)
	}
}

func TestResolveSnapshot_Failures(t *testing.T) {
	tests := []struct {
		name        string
		out         *ec2.DescribeImagesOutput
		err         error
		wantMessage string
	}{
		{
			name:        "no matching image",
			out:         &ec2.DescribeImagesOutput{},
			wantMessage: "no image found",
		},
		{
			name: "no block device mappings",
			out: &ec2.DescribeImagesOutput{
				Images: []types.Image{{ImageId: aws.String("ami-1")}},
			},
			wantMessage: "no block device mappings",
		},
		{
			name: "mapping without snapshot id",
			out: &ec2.DescribeImagesOutput{
				Images: []types.Image{
					{
						ImageId:             aws.String("ami-1"),
						BlockDeviceMappings: []types.BlockDeviceMapping{{Ebs: &types.EbsBlockDevice{}}},
					},
				},
			},
			wantMessage: "no snapshot id",
		},
		{
			name:        "api error",
			err:         fmt.Errorf("throttled"),
			wantMessage: "failed to describe images",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeDescribeImages{out: tt.out, err: tt.err})
			_, err := r.ResolveSnapshot(context.Background(), "ami-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error %q does not contain %q", err, tt.wantMessage)
			}
		})
	}
}
