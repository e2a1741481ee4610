package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version and Commit are set at build time via -ldflags.
//
//	go build -ldflags "-X github.com/scbrown/terse/internal/cli.Version=v0.2.0
//	  -X github.com/scbrown/terse/internal/cli.Commit=48cae1d"
var (
	Version = ""
	Commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and commit hash",
	Long: `Print the terse version string.

When built from a tagged release, shows the release version.
Otherwise shows "dev". The git commit hash is included when known.

Examples:
  terse v0.3.0 (48cae1d)
  terse dev (48cae1d)`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("terse %s\n", versionString())
	},
}

// versionString returns "VERSION (COMMIT)", or just the version when the
// commit is unknown.
func versionString() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	c := Commit
	if c == "" {
		c = commitFromBuildInfo()
	}
	if c == "" {
		return v
	}
	return fmt.Sprintf("%s (%s)", v, shortCommit(c))
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// commitFromBuildInfo extracts vcs.revision from Go's embedded build info.
func commitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// shortCommit returns the first 7 characters of a commit hash.
func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
