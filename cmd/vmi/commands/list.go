package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmi/internal/config"
	"vmi/pkg/db"
	"vmi/pkg/errors"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List materialization runs and their status",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.SQLitePath, ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	runs, err := repo.List()
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-24s %-20s %-24s %-10s %s\n", "IMAGE", "DEVICE", "VOLUME", "STATUS", "ERROR")
	fmt.Println("--------------------------------------------------------------------------------------------------------")

	for _, run := range runs {
		volumeID := run.VolumeID
		if volumeID == "" {
			volumeID = "-"
		}
		fmt.Printf("%-24s %-20s %-24s %-10s %s\n",
			run.ImageID, run.DevicePath, volumeID, run.Status, run.ErrorMessage)
	}

	return nil
}
