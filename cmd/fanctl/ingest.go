package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Crawl configured sources and store new comments",
		Long:  "Crawls every configured source, or only --source (a subreddit, feed name or type:name), and records mentions and sentiment for new comments.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			if source != "" {
				result, err := a.Ingest.RunByName(ctx, source)
				if err != nil {
					_ = printJSON(result)
					return fmt.Errorf("ingesting %s: %w (sources: %v)", source, err, a.Ingest.SourceNames())
				}
				return printJSON(result)
			}
			results, err := a.Ingest.RunAll(ctx)
			if perr := printJSON(results); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "only this source")
	return cmd
}

func newReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <comment-id>...",
		Short: "Recompute mentions and sentiment for stored comments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid comment id %q", arg)
				}
				ids = append(ids, id)
			}
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Ingest.Reprocess(ctx, ids)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}
