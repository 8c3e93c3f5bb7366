package main

import (
	"time"

	"github.com/spf13/cobra"

	"fansapprove/internal/service"
)

func newAggregateCmd() *cobra.Command {
	var day, from, to string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute daily player metrics",
		Long:  "Rebuilds player_daily_metrics for --day (today, yesterday or YYYY-MM-DD; default yesterday) or for every day in --from..--to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			ctx := cmd.Context()

			if from != "" || to != "" {
				if from == "" {
					from = to
				}
				if to == "" {
					to = from
				}
				start, err := service.ParseDay(from, now)
				if err != nil {
					return err
				}
				end, err := service.ParseDay(to, now)
				if err != nil {
					return err
				}
				a, log, err := openApp(ctx)
				if err != nil {
					return err
				}
				defer a.Close()
				defer log.Sync()

				results, err := a.Aggregate.RecomputeRange(ctx, start, end)
				if perr := printJSON(results); perr != nil {
					return perr
				}
				return err
			}

			target, err := service.ParseDay(day, now)
			if err != nil {
				return err
			}
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Aggregate.RecomputeDay(ctx, target)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&day, "day", "d", "yesterday", "day to recompute")
	cmd.Flags().StringVar(&from, "from", "", "first day of a range")
	cmd.Flags().StringVar(&to, "to", "", "last day of a range")
	return cmd
}
