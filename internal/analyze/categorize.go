package analyze

import (
	"strings"

	"github.com/scbrown/terse/internal/store"
)

// Tool categories used to group discovery candidates.
const (
	CategoryVCS     = "vcs"
	CategoryBuild   = "build"
	CategoryPackage = "package"
	CategoryLint    = "lint"
	CategoryHosting = "hosting"
	CategorySearch  = "search"
	CategoryFiles   = "files"
	CategoryOther   = "other"
)

var toolCategories = map[string]string{
	"git": CategoryVCS, "hg": CategoryVCS, "svn": CategoryVCS, "jj": CategoryVCS,

	"go": CategoryBuild, "make": CategoryBuild, "cmake": CategoryBuild, "cargo": CategoryBuild,
	"gradle": CategoryBuild, "mvn": CategoryBuild, "bazel": CategoryBuild, "tsc": CategoryBuild,
	"docker": CategoryBuild, "pytest": CategoryBuild, "jest": CategoryBuild, "vitest": CategoryBuild,

	"npm": CategoryPackage, "pnpm": CategoryPackage, "yarn": CategoryPackage, "pip": CategoryPackage,
	"uv": CategoryPackage, "poetry": CategoryPackage, "brew": CategoryPackage, "apt": CategoryPackage,
	"gem": CategoryPackage, "bundle": CategoryPackage,

	"golangci-lint": CategoryLint, "eslint": CategoryLint, "ruff": CategoryLint, "prettier": CategoryLint,
	"clippy": CategoryLint, "shellcheck": CategoryLint, "staticcheck": CategoryLint, "mypy": CategoryLint,

	"gh": CategoryHosting, "glab": CategoryHosting, "kubectl": CategoryHosting, "aws": CategoryHosting,
	"gcloud": CategoryHosting, "az": CategoryHosting,

	"grep": CategorySearch, "rg": CategorySearch, "ag": CategorySearch, "fd": CategorySearch,
	"find": CategorySearch,

	"ls": CategoryFiles, "cat": CategoryFiles, "tree": CategoryFiles, "head": CategoryFiles,
	"tail": CategoryFiles, "jq": CategoryFiles, "du": CategoryFiles, "wc": CategoryFiles,
}

// Categorize returns the category for a tool name, or CategoryOther.
func Categorize(tool string) string {
	if c, ok := toolCategories[normalize(tool)]; ok {
		return c
	}
	if strings.HasSuffix(tool, "-lint") || strings.HasSuffix(tool, "lint") {
		return CategoryLint
	}
	return CategoryOther
}

// Discovery annotates a rule-less candidate with its category and the
// closest tool that already has rules.
type Discovery struct {
	store.Candidate
	Category string `json:"category"`
	// HasToolRules is set when the tool has rules, just not for this
	// subcommand.
	HasToolRules bool   `json:"has_tool_rules"`
	SimilarTo    string `json:"similar_to,omitempty"`
}

// Annotate classifies discovery candidates. ruleTools lists tool names
// with at least one registered rule.
func Annotate(cands []store.Candidate, ruleTools []string) []Discovery {
	covered := make(map[string]bool, len(ruleTools))
	for _, t := range ruleTools {
		covered[normalize(t)] = true
	}
	out := make([]Discovery, 0, len(cands))
	for _, c := range cands {
		d := Discovery{
			Candidate:    c,
			Category:     Categorize(c.Tool),
			HasToolRules: covered[normalize(c.Tool)],
		}
		if !d.HasToolRules {
			if s := Suggest(c.Tool, ruleTools); len(s) > 0 {
				d.SimilarTo = s[0].Name
			}
		}
		out = append(out, d)
	}
	return out
}
