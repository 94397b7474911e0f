// Package catalog resolves an AMI to the EBS snapshot backing it.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"vmi/pkg/errors"
)

// DescribeImagesAPI is the slice of the EC2 API the resolver needs.
type DescribeImagesAPI interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// Resolver looks up images in the EC2 catalog.
type Resolver struct {
	api DescribeImagesAPI
}

// NewResolver creates a resolver on top of an EC2 client.
func NewResolver(api DescribeImagesAPI) *Resolver {
	return &Resolver{api: api}
}

// ResolveSnapshot returns the snapshot id backing the given AMI.
//
// Selection is deliberately first-element-wins: the first returned image and
// the first entry of its block-device mappings. AMIs with multiple mappings
// are not disambiguated; this is a documented limitation.
func (r *Resolver) ResolveSnapshot(ctx context.Context, imageID string) (string, error) {
	slog.Info("catalog_describe_images", "image_id", imageID)

	out, err := r.api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to describe images")
	}

	if len(out.Images) == 0 {
		slog.Error("catalog_image_not_found", "image_id", imageID)
		return "", fmt.Errorf("no image found for %s", imageID)
	}

	image := out.Images[0]
	if len(image.BlockDeviceMappings) == 0 {
		slog.Error("catalog_no_block_device_mappings", "image_id", imageID)
		return "", fmt.Errorf("image %s has no block device mappings", imageID)
	}

	mapping := image.BlockDeviceMappings[0]
	if mapping.Ebs == nil || mapping.Ebs.SnapshotId == nil || *mapping.Ebs.SnapshotId == "" {
		slog.Error("catalog_no_snapshot_id", "image_id", imageID)
		return "", fmt.Errorf("image %s has no snapshot id on its first mapping", imageID)
	}

	snapshotID := *mapping.Ebs.SnapshotId
	slog.Info("catalog_snapshot_resolved", "image_id", imageID, "snapshot_id", snapshotID)

	return snapshotID, nil
}
