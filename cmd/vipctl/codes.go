package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanwang5210/telegram-bot/internal/app/service/activation"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
)

func newIssueCodesCommand() *cobra.Command {
	var (
		plan  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "issue-codes",
		Short: "Issue activation codes for a plan",
		Long:  `Generate unused activation codes for the given plan and print one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *membership.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				codes, err := m.IssueCodes(ctx, plan, count)
				if err != nil {
					return err
				}
				for _, c := range codes {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			}, &m)
		},
	}
	cmd.Flags().StringVarP(&plan, "plan", "p", "", "Plan id (e.g. monthly)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of codes")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newListCodesCommand() *cobra.Command {
	var (
		plan  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list-codes",
		Short: "List unused activation codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var codes *activation.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				items, err := codes.ListUnused(ctx, plan, limit)
				if err != nil {
					return err
				}
				for _, c := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Code, c.PlanID, c.CreatedAt.Format("2006-01-02"))
				}
				return nil
			}, &codes)
		},
	}
	cmd.Flags().StringVarP(&plan, "plan", "p", "", "Only codes of this plan")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum number of codes")
	return cmd
}
