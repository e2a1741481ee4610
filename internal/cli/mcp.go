package cli

import (
	"fmt"

	"github.com/scbrown/terse/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve ledger queries to agents over MCP (stdio)",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the
terse_gain, terse_history and terse_discover tools, so an agent can read its
own savings without shelling out.`,
	Example: `  # Register with an MCP client
  terse mcp`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()
		return mcp.Run(s, ruleTools(), versionString())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
