package cli

import (
	"fmt"

	"github.com/scbrown/terse/internal/cmdparse"
	"github.com/scbrown/terse/internal/filter"
	"github.com/scbrown/terse/internal/filter/rules"
	"github.com/spf13/cobra"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <command>",
	Short: "Prefix rule-covered commands in a shell command string with terse",
	Long: `Rewrite parses a shell command string, splits it on |, &&, || and ;, and
prefixes every segment whose tool has a filter rule with "terse". It is meant
to be called from an agent's pre-command hook.

Prints the rewritten command and exits 0 when something changed. Exits 1
with no output when nothing would change, so the hook can pass the original
command through.`,
	Example: `  terse rewrite "git status && make build"
  # terse git status && make build`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := rules.NewRegistry(float64(settings.MinSavingsOr(filter.DefaultMinSavings)), settings.DisabledRules)
		if err != nil {
			return err
		}
		out, changed := rewriteCommand(args[0], reg)
		if !changed {
			return &exitError{code: 1}
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
}

// rewriteCommand prefixes each segment of full that a rule in reg covers.
func rewriteCommand(full string, reg *filter.Registry) (string, bool) {
	return cmdparse.Prefix(full, cmdparse.Parse(full), "terse", func(seg cmdparse.Segment) bool {
		tool := filter.NormalizeTool(cmdparse.Unquote(seg.Command))
		if tool == "terse" {
			return false
		}
		_, ok := reg.Lookup(tool, filter.Subcommand(seg.Args()))
		return ok
	})
}
