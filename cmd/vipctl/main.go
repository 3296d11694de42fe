package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "vipctl",
		Short: "Admin tool for the VIP membership backend",
		Long:  `vipctl issues activation codes and runs the maintenance passes (notification dispatch, expiry sweep, reminders) against the configured database.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv("APP_CONFIG_FILE", configPath)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		newIssueCodesCommand(),
		newListCodesCommand(),
		newRunCommand(),
		newJobsCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
