package cli

import (
	"fmt"
	"os"

	"github.com/scbrown/terse/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or modify configuration",
	Long: `View or change terse configuration stored in ~/.terse/config.toml.

With no arguments, shows all configuration settings.
With one argument, shows the value of that key.
With two arguments, sets the key to the given value. An empty value resets
the key to its default.

Settings:
  db_path         Path to the SQLite ledger
  default_format  Default output format: "table" or "json"
  store_mode      "local" (default) or "remote"
  remote_url      Base URL of a terse serve instance (store_mode=remote)
  min_savings     Default minimum savings percentage (0-100, default 60)
  disabled_rules  Comma-separated rule IDs to skip
  record          "false" stops writing invocations to the ledger`,
	Example: `  terse config
  terse config db_path
  terse config db_path /custom/path/ledger.db
  terse config min_savings 50
  terse config disabled_rules git-log,jq
  terse config store_mode remote
  terse config remote_url http://ledger.internal:7274`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			return showConfig(cfg)
		case 1:
			return getConfig(cfg, args[0])
		default:
			return setConfig(cfg, args[0], args[1])
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig(cfg *config.Config) error {
	if jsonOutput {
		return printJSON(cfg)
	}

	tbl := NewTable(os.Stdout, "KEY", "VALUE")
	for _, key := range config.ValidKeys() {
		val, _ := cfg.Get(key)
		if val == "" {
			val = "(not set)"
		}
		tbl.Row(key, val)
	}
	return tbl.Flush()
}

func getConfig(cfg *config.Config, key string) error {
	val, err := cfg.Get(key)
	if err != nil {
		return err
	}
	if val == "" {
		return nil
	}
	fmt.Println(val)
	return nil
}

func setConfig(cfg *config.Config, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.SaveTo(configPath); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", key, value)
	return nil
}
