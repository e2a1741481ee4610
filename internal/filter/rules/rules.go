// Package rules holds the built-in condensation catalog. Each rule is a pure
// function over a tool's captured output; the table returned by Default is
// registered once at startup.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scbrown/terse/internal/filter"
)

// Rule identifiers.
const (
	Grep      filter.RuleID = "grep"
	Ripgrep   filter.RuleID = "rg"
	JSONCat   filter.RuleID = "json-cat"
	JQ        filter.RuleID = "jq"
	GitStatus filter.RuleID = "git-status"
	GitLog    filter.RuleID = "git-log"
	GoTest    filter.RuleID = "go-test"
	LsLong    filter.RuleID = "ls-long"
)

var errUnrecognized = fmt.Errorf("unrecognized output: %w", filter.ErrDecline)

// Default returns the built-in rule table.
func Default() []filter.Rule {
	return []filter.Rule{
		{
			ID: Grep, Tool: "grep", Condense: condenseGrep,
			Rationale: "group matches by file, cap per-file and total matches, trim long lines",
		},
		{
			ID: Ripgrep, Tool: "rg", Condense: condenseGrep,
			Rationale: "group matches by file, cap per-file and total matches, trim long lines",
		},
		{
			ID: JSONCat, Tool: "cat", Condense: condenseJSONFiles,
			Rationale: "show the structure of .json files (types, not values)",
		},
		{
			ID: JQ, Tool: "jq", Condense: condenseJSON,
			Rationale: "show the structure of jq output (types, not values)",
		},
		{
			ID: GitStatus, Tool: "git", Subcommand: "status", Condense: condenseGitStatus, MinSavings: 30,
			Rationale: "branch, ahead/behind and per-section file lists without hint text",
		},
		{
			ID: GitLog, Tool: "git", Subcommand: "log", Condense: condenseGitLog, MinSavings: 40,
			Rationale: "one line per commit: short hash, subject, author",
		},
		{
			ID: GoTest, Tool: "go", Subcommand: "test", Condense: condenseGoTest, MinSavings: 50,
			Rationale: "failures with their output plus a package summary",
		},
		{
			ID: LsLong, Tool: "ls", Condense: condenseLsLong, MinSavings: 40,
			Rationale: "names with human sizes instead of full long-format rows",
		},
	}
}

// NewRegistry builds a registry from Default, skipping rules whose ID is in
// disabled.
func NewRegistry(defaultMin float64, disabled []string) (*filter.Registry, error) {
	skip := make(map[filter.RuleID]bool, len(disabled))
	for _, id := range disabled {
		if id = strings.TrimSpace(id); id != "" {
			skip[filter.RuleID(id)] = true
		}
	}
	reg := filter.NewRegistry(defaultMin)
	var errs []error
	for _, r := range Default() {
		if skip[r.ID] {
			continue
		}
		if err := reg.Register(r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// lines splits output into lines without the trailing empty element.
func lines(raw []byte) []string {
	s := strings.TrimRight(string(raw), "\n")
	if s == "" {
		return nil
	}
	out := strings.Split(s, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}

// positional returns the arguments that are not flags, skipping the values
// of flags listed in valueFlags.
func positional(args []string, valueFlags map[string]bool) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return append(out, args[i+1:]...)
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			if valueFlags[a] {
				i++
			}
			continue
		}
		out = append(out, a)
	}
	return out
}
