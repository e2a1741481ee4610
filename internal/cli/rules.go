package cli

import (
	"fmt"
	"os"

	"github.com/scbrown/terse/internal/filter"
	"github.com/scbrown/terse/internal/filter/rules"
	"github.com/spf13/cobra"
)

// ruleInfo is the JSON shape of one registered rule.
type ruleInfo struct {
	ID         filter.RuleID `json:"id"`
	Tool       string        `json:"tool"`
	Subcommand string        `json:"subcommand,omitempty"`
	Stream     string        `json:"stream"`
	MinSavings float64       `json:"min_savings"`
	Rationale  string        `json:"rationale"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the registered filter rules",
	Long: `List every filter rule terse applies, with the tool and subcommand it
matches, the stream it condenses, and the minimum savings percentage it must
deliver before its output is used. Rules named in the disabled_rules config
key are omitted.`,
	Example: `  terse rules
  terse rules --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := rules.NewRegistry(float64(settings.MinSavingsOr(filter.DefaultMinSavings)), settings.DisabledRules)
		if err != nil {
			return err
		}
		list := reg.Rules()

		if jsonOutput {
			out := make([]ruleInfo, 0, len(list))
			for _, r := range list {
				out = append(out, ruleInfo{
					ID:         r.ID,
					Tool:       r.Tool,
					Subcommand: r.Subcommand,
					Stream:     r.Stream.String(),
					MinSavings: r.MinSavings,
					Rationale:  r.Rationale,
				})
			}
			return printJSON(out)
		}

		tbl := NewTable(os.Stdout, "ID", "TOOL", "SUBCOMMAND", "STREAM", "MIN SAVINGS", "RATIONALE")
		for _, r := range list {
			sub := r.Subcommand
			if sub == "" {
				sub = "*"
			}
			tbl.Row(string(r.ID), r.Tool, sub, r.Stream.String(), fmt.Sprintf("%.0f%%", r.MinSavings), truncate(r.Rationale, 60))
		}
		return tbl.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
