package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var (
	gainSince string
	gainTool  string
	gainDaily int
)

var gainCmd = &cobra.Command{
	Use:   "gain",
	Short: "Show how many tokens terse has saved",
	Long: `Display ledger totals: invocations, raw and condensed token counts, the
overall savings percentage, a per-tool breakdown and outcome counts.

Use --daily N to show per-day totals for the last N days instead of the
per-tool breakdown.`,
	Example: `  terse gain
  terse gain --since 7d
  terse gain --tool git
  terse gain --daily 14 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := server.ParseSince(gainSince, time.Now())
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		ctx := context.Background()
		opts := store.QueryOpts{Since: since, Tool: gainTool}

		if gainDaily > 0 {
			days, err := s.Daily(ctx, gainDaily)
			if err != nil {
				return fmt.Errorf("daily totals: %w", err)
			}
			if jsonOutput {
				return printJSON(days)
			}
			return printDaily(days)
		}

		sum, err := s.Summary(ctx, opts)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		tools, err := s.ByTool(ctx, opts)
		if err != nil {
			return fmt.Errorf("tool totals: %w", err)
		}
		if jsonOutput {
			if tools == nil {
				tools = []store.ToolStats{}
			}
			return printJSON(struct {
				Summary store.Summary     `json:"summary"`
				Tools   []store.ToolStats `json:"tools"`
			}{sum, tools})
		}
		return printGain(sum, tools)
	},
}

func init() {
	gainCmd.Flags().StringVar(&gainSince, "since", "", "only count invocations since this time (RFC3339 or duration like 24h, 7d)")
	gainCmd.Flags().StringVar(&gainTool, "tool", "", "restrict totals to one tool")
	gainCmd.Flags().IntVar(&gainDaily, "daily", 0, "show per-day totals for the last N days")
	rootCmd.AddCommand(gainCmd)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGain(sum store.Summary, tools []store.ToolStats) error {
	st := newStyles(os.Stdout)

	fmt.Println(st.heading.Render("Token savings"))
	fmt.Printf("  Invocations:   %s (%s filtered)\n", humanize.Comma(int64(sum.Invocations)), humanize.Comma(int64(sum.Filtered)))
	if sum.Invocations == 0 {
		return nil
	}
	fmt.Printf("  Raw tokens:    %s\n", humanize.Comma(int64(sum.RawTokens)))
	fmt.Printf("  Condensed:     %s\n", humanize.Comma(int64(sum.CondensedTokens)))
	fmt.Printf("  Saved:         %s (%.1f%%) %s\n", humanize.Comma(int64(sum.SavedTokens)), sum.SavingsPct, st.meter(sum.SavingsPct, 20))
	fmt.Printf("  Time in tools: %s\n", (time.Duration(sum.TotalDurationMs) * time.Millisecond).String())
	fmt.Printf("  Date range:    %s to %s\n", sum.Earliest.Local().Format("2006-01-02"), sum.Latest.Local().Format("2006-01-02"))
	fmt.Printf("  Last 24h:      %d\n", sum.Last24h)
	fmt.Printf("  Last 7d:       %d\n", sum.Last7d)
	fmt.Printf("  Last 30d:      %d\n", sum.Last30d)

	if len(tools) > 0 {
		fmt.Println()
		fmt.Println(st.heading.Render("By tool"))
		tbl := NewTable(os.Stdout, "TOOL", "RUNS", "FILTERED", "SAVED", "SAVINGS", "AVG TIME")
		for _, t := range tools {
			tbl.Row(
				t.Tool,
				humanize.Comma(int64(t.Invocations)),
				humanize.Comma(int64(t.Filtered)),
				humanize.Comma(int64(t.SavedTokens)),
				fmt.Sprintf("%.1f%%", t.SavingsPct),
				time.Duration(t.AvgDurationMs*float64(time.Millisecond)).Round(time.Millisecond).String(),
			)
		}
		if err := tbl.Flush(); err != nil {
			return err
		}
	}

	if len(sum.ByOutcome) > 0 {
		fmt.Println()
		fmt.Println(st.heading.Render("By outcome"))
		for _, o := range sum.ByOutcome {
			fmt.Printf("  %-26s %d\n", o.Name, o.Count)
		}
	}
	return nil
}

func printDaily(days []store.DayStats) error {
	if len(days) == 0 {
		fmt.Println("No invocations recorded.")
		return nil
	}
	tbl := NewTable(os.Stdout, "DAY", "RUNS", "RAW", "CONDENSED", "SAVED", "SAVINGS")
	for _, d := range days {
		tbl.Row(
			d.Day,
			humanize.Comma(int64(d.Invocations)),
			humanize.Comma(int64(d.RawTokens)),
			humanize.Comma(int64(d.CondensedTokens)),
			humanize.Comma(int64(d.SavedTokens)),
			fmt.Sprintf("%.1f%%", d.SavingsPct),
		)
	}
	return tbl.Flush()
}
