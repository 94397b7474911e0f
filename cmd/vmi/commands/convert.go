package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"vmi/internal/config"
	"vmi/pkg/catalog"
	"vmi/pkg/db"
	"vmi/pkg/device"
	"vmi/pkg/errors"
	"vmi/pkg/metadata"
	"vmi/pkg/pipeline"
	"vmi/pkg/volume"
)

// Supported source and sink kinds.
const (
	sourceAMI  = "ami"
	sinkDevice = "device"
)

var convertCmd = &cobra.Command{
	Use:   "convert <source> <source-id> <sink> <sink-id>",
	Short: "Materialize a machine image onto a local block device",
	Long: `Materializes a virtual machine image onto a sink. Currently the only
supported conversion is source "ami" to sink "device", e.g.:

  vmi convert ami ami-0123456789abcdef0 device /dev/xvdg`,
	Args: cobra.ExactArgs(4),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	source, sourceID, sink, sinkID := args[0], args[1], args[2], args[3]
	if source != sourceAMI {
		return fmt.Errorf("unsupported source %q (only %q)", source, sourceAMI)
	}
	if sink != sinkDevice {
		return fmt.Errorf("unsupported sink %q (only %q)", sink, sinkDevice)
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return errors.Wrap(err, "AWS config failed")
	}
	ec2Client := ec2.NewFromConfig(awsCfg)

	// The orchestrator owns the metadata transport; nothing here is shared
	// process-wide.
	metadataClient := metadata.NewClient(cfg.IMDSEndpoint, cfg.IMDSTokenTTL, cfg.MetadataTimeout)
	resolver := catalog.NewResolver(ec2Client)
	provisioner := volume.NewProvisioner(ec2Client)
	waiter := device.NewWaiter(cfg.DevicePollInterval, cfg.DeviceWaitTimeout)

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := pipeline.NewMachine(repo, metadataClient, resolver, provisioner, waiter, cfg.VolumeWaitTimeout)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	req := &pipeline.MaterializeRequest{
		ImageID:    sourceID,
		DevicePath: sinkID,
	}
	resp := &pipeline.MaterializeResponse{}

	version, err := start(ctx, sourceID, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	slog.Info("fsm started", "version", version)

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "FSM execution failed")
	}

	slog.Info("convert completed",
		"status", resp.Status,
		"device", resp.DevicePath,
		"volume_id", resp.VolumeID,
		"snapshot_id", resp.SnapshotID,
	)

	return nil
}
