package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/scbrown/terse/internal/errors"
	"github.com/scbrown/terse/internal/executor"
	"github.com/scbrown/terse/internal/filter"
	"github.com/scbrown/terse/internal/filter/rules"
	"github.com/scbrown/terse/internal/proxy"
	"github.com/scbrown/terse/internal/shellarg"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run -- <tool> [args...]",
	Short: "Run a tool through the proxy explicitly",
	Long: `Run a tool through the filtering proxy. This is what "terse <tool>" does
implicitly; use it when the tool's name collides with a terse subcommand.`,
	Example: `  terse run -- rules --list
  terse run -v -- go test ./...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := runProxyLoaded(args[0], args[1:]); code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// proxyArgs decides whether args select proxy mode: leading root flags are
// consumed, and the next argument must not name a subcommand.
func proxyArgs(args []string) (tool string, rest []string, ok bool) {
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "--db":
			i += 2
			continue
		case strings.HasPrefix(a, "--db="), a == "--json", a == "-v", a == "--verbose":
			i++
			continue
		}
		break
	}
	if i >= len(args) || strings.HasPrefix(args[i], "-") || isSubcommand(args[i]) {
		return "", nil, false
	}
	if err := rootCmd.PersistentFlags().Parse(args[:i]); err != nil {
		return "", nil, false
	}
	return args[i], args[i+1:], true
}

// isSubcommand reports whether name is a terse subcommand or alias.
func isSubcommand(name string) bool {
	switch name {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

// runProxy loads settings and runs tool through the proxy pipeline.
func runProxy(tool string, args []string) int {
	flags := rootCmd.PersistentFlags()
	loadSettings(flags.Changed("db"), flags.Changed("json"))
	return runProxyLoaded(tool, args)
}

func runProxyLoaded(tool string, args []string) int {
	logger := newLogger()
	router := &proxy.Router{
		Runner:     executor.Exec{},
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Logger:     logger,
		Platform:   shellarg.Current(),
		InstanceID: uuid.NewString(),
	}

	if os.Getenv("TERSE_DISABLE") == "1" {
		router.Passthrough = true
	} else {
		reg, err := rules.NewRegistry(float64(settings.MinSavingsOr(filter.DefaultMinSavings)), settings.DisabledRules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "terse: rules: %v\n", err)
			return errors.ExitInternal
		}
		router.Engine = filter.NewEngine(reg, logger)
		if settings.RecordEnabled() {
			s, err := openStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "terse: analytics: %v\n", err)
			} else {
				defer s.Close()
				router.Store = s
			}
		}
	}

	// terse stays alive until the child exits so it can relay what it
	// printed and its exit status; termination signals go to the child.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	router.Signals = sigCh

	return router.Run(context.Background(), tool, args)
}
