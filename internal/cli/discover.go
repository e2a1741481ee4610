package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scbrown/terse/internal/analyze"
	"github.com/scbrown/terse/internal/filter/rules"
	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var (
	discoverSince string
	discoverTop   int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Rank commands that ran without a filter rule",
	Long: `Discover lists (tool, subcommand) pairs that were proxied without a
matching rule, ordered by how often they ran and then by how many raw tokens
they produced. These are the best candidates for new rules.

Each candidate is tagged with a coarse category, whether the tool already has
rules for other subcommands, and the closest tool that has rules.`,
	Example: `  terse discover
  terse discover --top 5 --since 7d
  terse discover --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := server.ParseSince(discoverSince, time.Now())
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		cands, err := s.Discover(context.Background(), store.DiscoverOpts{Since: since, Top: discoverTop})
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		found := analyze.Annotate(cands, ruleTools())

		if jsonOutput {
			return printJSON(found)
		}
		if len(found) == 0 {
			fmt.Println("No rule-less invocations recorded.")
			return nil
		}

		tbl := NewTable(os.Stdout, "COMMAND", "RUNS", "RAW TOKENS", "CATEGORY", "LAST SEEN", "NOTE")
		for _, d := range found {
			name := d.Tool
			if d.Subcommand != "" {
				name += " " + d.Subcommand
			}
			note := ""
			switch {
			case d.HasToolRules:
				note = "tool has other rules"
			case d.SimilarTo != "":
				note = "similar to " + d.SimilarTo
			}
			tbl.Row(
				name,
				humanize.Comma(int64(d.Count)),
				humanize.Comma(int64(d.RawTokens)),
				d.Category,
				humanize.Time(d.LastSeen),
				note,
			)
		}
		return tbl.Flush()
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSince, "since", "", "only consider invocations since this time (RFC3339 or duration like 24h, 7d)")
	discoverCmd.Flags().IntVar(&discoverTop, "top", 20, "maximum number of candidates")
	rootCmd.AddCommand(discoverCmd)
}

// ruleTools returns the tools with built-in rules, ignoring disabled_rules so
// discovery hints stay stable.
func ruleTools() []string {
	reg, err := rules.NewRegistry(0, nil)
	if err != nil {
		return nil
	}
	return reg.Tools()
}
