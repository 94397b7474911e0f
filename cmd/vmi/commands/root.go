package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vmi",
	Short: "Virtual machine images made simple",
	Long:  `Materializes cloud machine images onto local block devices of the EC2 host it runs on.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/runs.db", "SQLite run-history database path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm.db", "FSM BoltDB path")
	rootCmd.PersistentFlags().String("region", "us-east-1", "AWS region")
	rootCmd.PersistentFlags().String("imds-endpoint", "http://169.254.169.254", "Instance metadata endpoint")
	rootCmd.PersistentFlags().Duration("imds-token-ttl", 21600*time.Second, "Metadata token TTL")
	rootCmd.PersistentFlags().Duration("metadata-timeout", 3*time.Second, "Per-call metadata request timeout")
	rootCmd.PersistentFlags().Duration("volume-wait-timeout", 60*time.Second, "Max wait for the volume to become available")
	rootCmd.PersistentFlags().Duration("device-poll-interval", 500*time.Millisecond, "Device existence polling interval")
	rootCmd.PersistentFlags().Duration("device-wait-timeout", 2*time.Minute, "Max wait for the device node (0 = unbounded)")

	viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("imds-endpoint", rootCmd.PersistentFlags().Lookup("imds-endpoint"))
	viper.BindPFlag("imds-token-ttl", rootCmd.PersistentFlags().Lookup("imds-token-ttl"))
	viper.BindPFlag("metadata-timeout", rootCmd.PersistentFlags().Lookup("metadata-timeout"))
	viper.BindPFlag("volume-wait-timeout", rootCmd.PersistentFlags().Lookup("volume-wait-timeout"))
	viper.BindPFlag("device-poll-interval", rootCmd.PersistentFlags().Lookup("device-poll-interval"))
	viper.BindPFlag("device-wait-timeout", rootCmd.PersistentFlags().Lookup("device-wait-timeout"))
}
