package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var (
	historySince   string
	historyTool    string
	historyOutcome string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent proxied invocations",
	Long: `History displays a table of recent invocations with their outcome and
token counts. Results are ordered by timestamp, newest first. Output payloads
are never stored, only their token counts.`,
	Example: `  terse history
  terse history --limit 50
  terse history --tool git --since 24h
  terse history --outcome fallback-rule-failed --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := server.ParseSince(historySince, time.Now())
		if err != nil {
			return err
		}
		opts := store.HistoryOpts{
			Since: since,
			Tool:  historyTool,
			Limit: historyLimit,
		}
		if historyOutcome != "" {
			if opts.Outcome, err = model.ParseOutcome(historyOutcome); err != nil {
				return err
			}
		}

		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		invs, err := s.History(context.Background(), opts)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}

		if jsonOutput {
			if invs == nil {
				invs = []model.Invocation{}
			}
			return printJSON(invs)
		}

		if len(invs) == 0 {
			fmt.Println("No invocations recorded.")
			return nil
		}

		tbl := NewTable(os.Stdout, "WHEN", "COMMAND", "OUTCOME", "RAW", "CONDENSED", "SAVED", "EXIT")
		for _, inv := range invs {
			tbl.Row(
				humanize.Time(inv.Timestamp),
				truncate(inv.Command, 40),
				string(inv.Outcome),
				humanize.Comma(int64(inv.RawTokens)),
				humanize.Comma(int64(inv.CondensedTokens)),
				fmt.Sprintf("%.0f%%", inv.SavingsPct),
				fmt.Sprintf("%d", inv.ExitCode),
			)
		}
		return tbl.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "only show invocations since this time (RFC3339 or duration like 30m, 24h, 7d)")
	historyCmd.Flags().StringVar(&historyTool, "tool", "", "filter by tool name")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "filter by outcome")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of results")
	rootCmd.AddCommand(historyCmd)
}
