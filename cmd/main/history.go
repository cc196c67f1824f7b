package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded generation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadCommandConfig(cmd, opts)
			if err != nil {
				return err
			}
			if !config.Server.HistoryEnabled {
				return errors.New("history is disabled in the configuration")
			}
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("--limit must be between 1 and 1000, got %d", limit)
			}

			logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel)
			history, err := OpenHistoryStore(config.Server.HistoryDatabasePath, logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = history.Close()
			}()

			out := cmd.OutOrStdout()
			styled := shouldUseColor(out)

			if summary {
				s, err := history.Summary(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"runs", strconv.FormatInt(s.TotalRuns, 10)},
					{"output tokens", strconv.FormatInt(s.TotalOutputTokens, 10)},
					{"mean output tokens", strconv.FormatFloat(s.MeanOutputTokens, 'f', 2, 64)},
					{"dead ends", strconv.FormatInt(s.DeadEnds, 10)},
				}
				return writeLines(out, formatTable(nil, rows, map[int]bool{1: true}, styled))
			}

			runs, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, err = fmt.Fprintln(out, "No runs recorded.")
				return err
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.CreatedAt.Local().Format(time.DateTime),
					run.Source,
					strconv.Itoa(run.NGram),
					strconv.Itoa(run.CorpusTokens),
					strconv.Itoa(run.OutputTokens),
					run.Reason,
				})
			}
			headers := []string{"ID", "CREATED", "SOURCE", "N", "CORPUS", "OUTPUT", "REASON"}
			return writeLines(out, formatTable(headers, rows, map[int]bool{0: true, 3: true, 4: true, 5: true}, styled))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "number of runs to list")
	cmd.Flags().BoolVar(&summary, "summary", false, "print totals instead of individual runs")
	return cmd
}
