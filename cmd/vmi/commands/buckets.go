package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vmi/internal/config"
	"vmi/pkg/errors"
	"vmi/pkg/storage"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List S3 buckets visible to the host's credentials",
	RunE:  runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
}

func runBuckets(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	client, err := storage.NewClient(ctx, cfg.Region)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	buckets, err := client.ListBuckets(ctx)
	if err != nil {
		return errors.Wrap(err, "list buckets failed")
	}

	if len(buckets) == 0 {
		fmt.Println("No buckets found")
		return nil
	}

	fmt.Println("Buckets:")
	for _, b := range buckets {
		fmt.Printf("  - %s (created: %s)\n", b.Name, b.CreatedAt)
	}

	return nil
}
