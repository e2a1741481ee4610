package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportSince  string
	exportTool   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw ledger rows",
	Long: `Export dumps every recorded invocation in JSON (one object per line) or
CSV format, oldest first.

Output is written to stdout, suitable for piping to jq, spreadsheets, or
other processing tools.`,
	Example: `  terse export
  terse export --format csv > ledger.csv
  terse export --since 2026-01-01
  terse export --since 7d --tool git | jq '.savings_pct'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFormat
		if jsonOutput {
			format = "json"
		}
		if format != "json" && format != "csv" {
			return fmt.Errorf("unsupported format %q (use json or csv)", format)
		}

		opts := store.HistoryOpts{Tool: exportTool}
		if exportSince != "" {
			t, err := parseSince(exportSince)
			if err != nil {
				return fmt.Errorf("invalid --since value %q: %w", exportSince, err)
			}
			opts.Since = t
		}

		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		invs, err := s.History(context.Background(), opts)
		if err != nil {
			return fmt.Errorf("list invocations: %w", err)
		}
		slices.Reverse(invs)

		if format == "csv" {
			return writeInvocationsCSV(invs)
		}
		return writeInvocationsJSON(invs)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or csv")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only export records after this time (RFC3339, YYYY-MM-DD or duration like 7d)")
	exportCmd.Flags().StringVar(&exportTool, "tool", "", "only export records for this tool")
	rootCmd.AddCommand(exportCmd)
}

// parseSince parses a time string in RFC3339, date-only, or duration format.
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := server.ParseSince(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 (e.g. 2026-01-01T00:00:00Z), date (e.g. 2026-01-01) or duration (e.g. 7d)")
	}
	return t, nil
}

// writeInvocationsJSON writes invocations as one JSON object per line (JSONL).
func writeInvocationsJSON(invocations []model.Invocation) error {
	enc := json.NewEncoder(os.Stdout)
	for _, inv := range invocations {
		if err := enc.Encode(inv); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}
	return nil
}

// writeInvocationsCSV writes invocations as CSV with a header row.
func writeInvocationsCSV(invocations []model.Invocation) error {
	w := csv.NewWriter(os.Stdout)
	header := []string{
		"id", "timestamp", "tool", "subcommand", "command", "outcome", "rule_id",
		"raw_tokens", "condensed_tokens", "savings_pct", "exit_code", "duration_ms",
		"instance_id", "cwd",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, inv := range invocations {
		row := []string{
			inv.ID,
			inv.Timestamp.Format(time.RFC3339Nano),
			inv.Tool,
			inv.Subcommand,
			inv.Command,
			string(inv.Outcome),
			inv.RuleID,
			strconv.Itoa(inv.RawTokens),
			strconv.Itoa(inv.CondensedTokens),
			strconv.FormatFloat(inv.SavingsPct, 'f', 2, 64),
			strconv.Itoa(inv.ExitCode),
			strconv.FormatInt(inv.DurationMs, 10),
			inv.InstanceID,
			inv.CWD,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
