package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(raw []byte, _ []string) ([]byte, error) { return raw, nil }

func mustRegistry(t *testing.T, rules ...Rule) *Registry {
	t.Helper()
	reg := NewRegistry(DefaultMinSavings)
	for _, r := range rules {
		require.NoError(t, reg.Register(r))
	}
	return reg
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := mustRegistry(t, Rule{ID: "git-status", Tool: "git", Subcommand: "status", Condense: identity})

	err := reg.Register(Rule{ID: "git-status-2", Tool: "git", Subcommand: "status", Condense: identity})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken by git-status")

	err = reg.Register(Rule{ID: "git-status", Tool: "git", Subcommand: "log", Condense: identity})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")

	// Same key after tool normalization.
	err = reg.Register(Rule{ID: "git-exe", Tool: "/usr/bin/git.exe", Subcommand: "status", Condense: identity})
	require.Error(t, err)
}

func TestRegisterValidates(t *testing.T) {
	reg := NewRegistry(DefaultMinSavings)
	assert.Error(t, reg.Register(Rule{Tool: "git", Condense: identity}))
	assert.Error(t, reg.Register(Rule{ID: "x", Condense: identity}))
	assert.Error(t, reg.Register(Rule{ID: "x", Tool: "git"}))
	assert.Error(t, reg.Register(Rule{ID: "x", Tool: "git", Condense: identity, MinSavings: -1}))
	assert.Error(t, reg.Register(Rule{ID: "x", Tool: "git", Condense: identity, MinSavings: 101}))
}

func TestLookupPriority(t *testing.T) {
	reg := mustRegistry(t,
		Rule{ID: "git-any", Tool: "git", Condense: identity},
		Rule{ID: "git-st", Tool: "git", Subcommand: "st*", Condense: identity},
		Rule{ID: "git-sta", Tool: "git", Subcommand: "sta*", Condense: identity},
		Rule{ID: "git-status", Tool: "git", Subcommand: "status", Condense: identity},
	)

	tests := []struct {
		sub  string
		want RuleID
	}{
		{"status", "git-status"},
		{"stash", "git-sta"},
		{"stage", "git-sta"},
		{"stripspace", "git-st"},
		{"log", "git-any"},
		{"", "git-any"},
	}
	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			r, ok := reg.Lookup("git", tt.sub)
			require.True(t, ok)
			assert.Equal(t, tt.want, r.ID)
		})
	}

	_, ok := reg.Lookup("hg", "status")
	assert.False(t, ok)
}

func TestLookupIsDeterministicRegardlessOfOrder(t *testing.T) {
	a := mustRegistry(t,
		Rule{ID: "a", Tool: "go", Subcommand: "te*", Condense: identity},
		Rule{ID: "b", Tool: "go", Subcommand: "test*", Condense: identity},
	)
	b := mustRegistry(t,
		Rule{ID: "b", Tool: "go", Subcommand: "test*", Condense: identity},
		Rule{ID: "a", Tool: "go", Subcommand: "te*", Condense: identity},
	)
	ra, _ := a.Lookup("go", "test")
	rb, _ := b.Lookup("go", "test")
	assert.Equal(t, RuleID("b"), ra.ID)
	assert.Equal(t, ra.ID, rb.ID)
}

func TestLookupNormalizesTool(t *testing.T) {
	reg := mustRegistry(t, Rule{ID: "ls", Tool: "ls", Condense: identity})
	for _, tool := range []string{"ls", "/bin/ls", "ls.exe", "./ls"} {
		_, ok := reg.Lookup(tool, "")
		assert.True(t, ok, tool)
	}
}

func TestRegisterAppliesDefaultThreshold(t *testing.T) {
	reg := NewRegistry(40)
	require.NoError(t, reg.Register(Rule{ID: "a", Tool: "a", Condense: identity}))
	require.NoError(t, reg.Register(Rule{ID: "b", Tool: "b", Condense: identity, MinSavings: 75}))

	ra, _ := reg.Lookup("a", "")
	rb, _ := reg.Lookup("b", "")
	assert.Equal(t, 40.0, ra.MinSavings)
	assert.Equal(t, 75.0, rb.MinSavings)
}

func TestRulesOrdered(t *testing.T) {
	reg := mustRegistry(t,
		Rule{ID: "ls", Tool: "ls", Condense: identity},
		Rule{ID: "git-any", Tool: "git", Condense: identity},
		Rule{ID: "git-status", Tool: "git", Subcommand: "status", Condense: identity},
	)
	var ids []RuleID
	for _, r := range reg.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []RuleID{"git-status", "git-any", "ls"}, ids)
	assert.Equal(t, []string{"git", "ls"}, reg.Tools())
	assert.True(t, reg.Has("git"))
	assert.False(t, reg.Has("npm"))
}

func TestSubcommand(t *testing.T) {
	assert.Equal(t, "status", Subcommand([]string{"status", "-s"}))
	assert.Equal(t, "log", Subcommand([]string{"--no-pager", "log"}))
	assert.Equal(t, "", Subcommand([]string{"-la"}))
	assert.Equal(t, "", Subcommand(nil))
}

func TestStreamString(t *testing.T) {
	assert.Equal(t, "stdout", Stdout.String())
	assert.Equal(t, "stderr", Stderr.String())
}
