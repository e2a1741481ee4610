// Package filter maps wrapped tool invocations to condensation rules and
// applies them under a strict fallback contract: when a rule is missing,
// fails, or under-delivers, the raw output is emitted unchanged.
package filter

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// DefaultMinSavings is the minimum savings percentage a rule must deliver
// when it does not declare its own threshold.
const DefaultMinSavings = 60

// RuleID identifies a registered rule variant, e.g. "git-status".
type RuleID string

// Stream selects which captured output stream a rule condenses.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// CondenseFunc reduces raw output to a smaller representation. It receives
// the wrapped command's arguments (without the tool name) and must be pure.
type CondenseFunc func(raw []byte, args []string) ([]byte, error)

// Rule describes one condensation capability.
//
// Subcommand is matched against the invocation's subcommand: empty matches
// any, "name" matches exactly, and "pre*" matches by prefix.
type Rule struct {
	ID         RuleID
	Tool       string
	Subcommand string
	Stream     Stream
	Condense   CondenseFunc
	MinSavings float64
	Rationale  string
}

type matchKind int

const (
	matchExact matchKind = iota
	matchPrefix
	matchAny
)

func (r *Rule) kind() (matchKind, string) {
	switch {
	case r.Subcommand == "":
		return matchAny, ""
	case strings.HasSuffix(r.Subcommand, "*"):
		return matchPrefix, strings.TrimSuffix(r.Subcommand, "*")
	default:
		return matchExact, r.Subcommand
	}
}

func (r *Rule) matches(sub string) bool {
	k, p := r.kind()
	switch k {
	case matchAny:
		return true
	case matchPrefix:
		return strings.HasPrefix(sub, p)
	default:
		return sub == p
	}
}

// Registry holds the rules known to a process. It is built once at startup
// and read-only afterwards.
type Registry struct {
	defaultMin float64
	byTool     map[string][]Rule
	ids        map[RuleID]bool
}

// NewRegistry returns an empty registry. Rules registered with a zero
// MinSavings inherit defaultMin.
func NewRegistry(defaultMin float64) *Registry {
	return &Registry{
		defaultMin: defaultMin,
		byTool:     make(map[string][]Rule),
		ids:        make(map[RuleID]bool),
	}
}

// DefaultMin returns the threshold applied to rules without their own.
func (r *Registry) DefaultMin() float64 {
	return r.defaultMin
}

// Register adds a rule. It fails on a missing ID, tool or condense
// function, on a negative threshold, and on a duplicate ID or
// (tool, subcommand) key.
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("register rule: missing id")
	}
	if rule.Condense == nil {
		return fmt.Errorf("register rule %s: missing condense function", rule.ID)
	}
	if rule.MinSavings < 0 || rule.MinSavings > 100 {
		return fmt.Errorf("register rule %s: min savings %v out of range", rule.ID, rule.MinSavings)
	}
	tool := NormalizeTool(rule.Tool)
	if tool == "" {
		return fmt.Errorf("register rule %s: missing tool", rule.ID)
	}
	if r.ids[rule.ID] {
		return fmt.Errorf("register rule %s: duplicate id", rule.ID)
	}
	for _, existing := range r.byTool[tool] {
		if existing.Subcommand == rule.Subcommand {
			return fmt.Errorf("register rule %s: key (%s, %q) already taken by %s",
				rule.ID, tool, rule.Subcommand, existing.ID)
		}
	}
	rule.Tool = tool
	if rule.MinSavings == 0 {
		rule.MinSavings = r.defaultMin
	}

	rules := append(r.byTool[tool], rule)
	sort.SliceStable(rules, func(i, j int) bool {
		ki, pi := rules[i].kind()
		kj, pj := rules[j].kind()
		if ki != kj {
			return ki < kj
		}
		return len(pi) > len(pj)
	})
	r.byTool[tool] = rules
	r.ids[rule.ID] = true
	return nil
}

// Lookup returns the most specific rule for tool and subcommand: an exact
// subcommand beats the longest matching prefix, which beats a tool-wide rule.
func (r *Registry) Lookup(tool, subcommand string) (*Rule, bool) {
	rules := r.byTool[NormalizeTool(tool)]
	for i := range rules {
		if rules[i].matches(subcommand) {
			rule := rules[i]
			return &rule, true
		}
	}
	return nil, false
}

// Has reports whether any rule is registered for tool.
func (r *Registry) Has(tool string) bool {
	return len(r.byTool[NormalizeTool(tool)]) > 0
}

// Tools returns the sorted names of tools with at least one rule.
func (r *Registry) Tools() []string {
	tools := make([]string, 0, len(r.byTool))
	for t := range r.byTool {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// Rules returns every registered rule ordered by tool, then match priority.
func (r *Registry) Rules() []Rule {
	var out []Rule
	for _, t := range r.Tools() {
		out = append(out, r.byTool[t]...)
	}
	return out
}

// NormalizeTool reduces a tool reference to the name rules are keyed on:
// the base name, without a trailing ".exe", lower-cased on Windows.
func NormalizeTool(tool string) string {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return ""
	}
	if runtime.GOOS == "windows" {
		tool = strings.ToLower(tool)
	}
	tool = filepath.Base(tool)
	if strings.HasSuffix(strings.ToLower(tool), ".exe") {
		tool = tool[:len(tool)-len(".exe")]
	}
	return tool
}

// Subcommand returns the first argument that is not a flag, or "".
func Subcommand(args []string) string {
	for _, a := range args {
		if a == "" || strings.HasPrefix(a, "-") {
			continue
		}
		return a
	}
	return ""
}
