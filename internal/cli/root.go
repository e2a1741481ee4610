// Package cli defines the cobra command tree for the terse CLI.
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/scbrown/terse/internal/config"
	"github.com/scbrown/terse/internal/errors"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	jsonOutput bool
	verbose    bool
	storeMode  string
	remoteURL  string

	// settings is the config file merged in by the persistent pre-run.
	settings = &config.Config{}
)

// configPath is the path to the config file, settable for testing.
var configPath = config.Path()

func defaultDBPath() string {
	return filepath.Join(config.Dir(), "ledger.db")
}

// rootCmd is the top-level terse command.
var rootCmd = &cobra.Command{
	Use:   "terse [tool [args...]]",
	Short: "Condense command output before it reaches an agent's context",
	Long: `terse runs a command, condenses its output with a registered filter rule
when one applies, and records how many tokens the condensation saved.

Any first argument that is not a terse subcommand is treated as the tool to
run: "terse git status" runs git status. Use "terse run -- <tool>" for tools
whose names collide with a subcommand. The wrapped tool's exit code is
returned unchanged. terse reserves 200 (tool not found), 201 (tool could
not be started) and 202 (internal proxy fault).

Savings are recorded in a SQLite ledger at ~/.terse/ledger.db (configurable
via --db, TERSE_DB or terse config db_path). Set TERSE_DISABLE=1 to pass
every command through untouched.`,
	Example: `  # Run git status through the proxy
  terse git status

  # How many tokens has terse saved?
  terse gain
  terse gain --daily 7

  # Which commands ran without a rule?
  terse discover --top 10`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadSettings(cmd.Flags().Changed("db"), cmd.Flags().Changed("json"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "path to SQLite ledger")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log filter decisions to stderr")
}

// loadSettings merges the config file and environment into the flag
// variables. Explicit flags win over TERSE_DB, which wins over the file.
func loadSettings(dbChanged, jsonChanged bool) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terse: %v\n", err)
		cfg = &config.Config{}
	}
	settings = cfg
	if !dbChanged {
		if env := os.Getenv("TERSE_DB"); env != "" {
			dbPath = env
		} else if cfg.DBPath != "" {
			dbPath = cfg.DBPath
		}
	}
	if cfg.DefaultFormat == "json" && !jsonChanged {
		jsonOutput = true
	}
	if cfg.StoreMode != "" && storeMode == "" {
		storeMode = cfg.StoreMode
	}
	if cfg.RemoteURL != "" && remoteURL == "" {
		remoteURL = cfg.RemoteURL
	}
}

// openStore returns a store.Store based on the current configuration.
// When store_mode is "remote", it returns a RemoteStore pointing at remote_url.
// Otherwise it opens the local SQLite ledger.
func openStore() (store.Store, error) {
	if storeMode == "remote" {
		if remoteURL == "" {
			return nil, fmt.Errorf("store_mode is \"remote\" but remote_url is not set; use: terse config remote_url <url>")
		}
		return store.NewRemote(remoteURL), nil
	}
	return store.New(dbPath)
}

// newLogger returns the diagnostic logger: stderr with -v, discarded otherwise.
func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "terse: ", 0)
}

// exitError carries a process exit code out of a command without printing
// anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs terse with the given arguments (without the program name)
// and returns the process exit code.
func Execute(args []string) int {
	if tool, rest, ok := proxyArgs(args); ok {
		return runProxy(tool, rest)
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "terse: %v\n", err)
	if errors.Is(err, errors.CodeInternal) {
		return errors.ExitInternal
	}
	return 1
}
