package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/scheduler"
	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/statistics"
	"github.com/alanwang5210/telegram-bot/pkg/config"
)

var jobNames = []string{
	scheduler.JobDispatch,
	scheduler.JobExpire,
	scheduler.JobRemind,
	scheduler.JobPush,
	scheduler.JobSnapshot,
}

func newJobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the maintenance jobs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(jobNames, "\n"))
		},
	}
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one maintenance pass now",
		Long:      `Run a single pass of a scheduler job, e.g. "vipctl run notification_dispatch". The pass ignores the scheduler lease.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: jobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg           *config.Config
				log           *zap.SugaredLogger
				notifications *notification.Service
				m             *membership.Service
				messages      *broadcast.Service
				stats         *statistics.Service
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				jobs := scheduler.NewJobs(cfg, notifications, m, messages, stats, log)
				job, ok := scheduler.Find(jobs, args[0])
				if !ok {
					return fmt.Errorf("unknown job %q", args[0])
				}
				if err := job.Run(ctx); err != nil {
					return fmt.Errorf("%s: %w", job.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s done\n", job.Name)
				return nil
			}, &cfg, &log, &notifications, &m, &messages, &stats)
		},
	}
}
