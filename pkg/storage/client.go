// Package storage lists S3 buckets reachable from the host's credentials.
package storage

import (
	"context"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vmi/pkg/errors"
)

// Client provides S3 storage operations
type Client struct {
	s3Client *s3.Client
}

// Bucket is a bucket name with its creation time
type Bucket struct {
	Name      string
	CreatedAt time.Time
}

// NewClient creates a new S3 client from the default credential chain
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &Client{s3Client: s3.NewFromConfig(cfg)}, nil
}

// ListBuckets returns all buckets visible to the caller
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	slog.Info("s3_list_buckets")

	out, err := c.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		slog.Error("s3_list_buckets_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list buckets")
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		bucket := Bucket{}
		if b.Name != nil {
			bucket.Name = *b.Name
		}
		if b.CreationDate != nil {
			bucket.CreatedAt = *b.CreationDate
		}
		buckets = append(buckets, bucket)
	}

	slog.Info("s3_list_buckets_complete", "bucket_count", len(buckets))
	return buckets, nil
}
