package cli

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/scbrown/terse/internal/errors"
	"github.com/scbrown/terse/internal/filter/rules"
	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/store"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func ledgerRows(t *testing.T, db string) []model.Invocation {
	t.Helper()
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	invs, err := s.History(context.Background(), store.HistoryOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return invs
}

func TestProxyArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		tool string
		rest []string
		ok   bool
	}{
		{"plain tool", []string{"git", "status"}, "git", []string{"status"}, true},
		{"leading verbose", []string{"-v", "git", "log", "-3"}, "git", []string{"log", "-3"}, true},
		{"leading db", []string{"--db", "x.db", "ls", "-l"}, "ls", []string{"-l"}, true},
		{"db equals", []string{"--db=x.db", "--json", "make"}, "make", []string{}, true},
		{"subcommand", []string{"gain", "--daily", "3"}, "", nil, false},
		{"help", []string{"help"}, "", nil, false},
		{"flags only", []string{"--json"}, "", nil, false},
		{"unknown flag", []string{"-x", "git"}, "", nil, false},
		{"empty", nil, "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCLI(t)
			tool, rest, ok := proxyArgs(tt.args)
			if ok != tt.ok || tool != tt.tool {
				t.Fatalf("proxyArgs(%v) = %q, %v, %v", tt.args, tool, rest, ok)
			}
			if ok && strings.Join(rest, " ") != strings.Join(tt.rest, " ") {
				t.Errorf("rest = %v, want %v", rest, tt.rest)
			}
		})
	}
}

func TestProxyArgsSetsDB(t *testing.T) {
	resetCLI(t)
	if _, _, ok := proxyArgs([]string{"--db", "/tmp/other.db", "ls"}); !ok {
		t.Fatal("expected proxy mode")
	}
	if dbPath != "/tmp/other.db" || !rootCmd.PersistentFlags().Changed("db") {
		t.Errorf("dbPath = %q, changed = %v", dbPath, rootCmd.PersistentFlags().Changed("db"))
	}
}

func TestIsSubcommand(t *testing.T) {
	for _, name := range []string{"run", "gain", "history", "discover", "rewrite", "rules", "config", "export", "serve", "mcp", "version", "help"} {
		if !isSubcommand(name) {
			t.Errorf("%s should be a subcommand", name)
		}
	}
	for _, name := range []string{"git", "ls", "grep", "make"} {
		if isSubcommand(name) {
			t.Errorf("%s should not be a subcommand", name)
		}
	}
}

func TestProxyRecordsAndPassesExitCode(t *testing.T) {
	skipOnWindows(t)
	db := resetCLI(t)

	stdout, stderr, code := runCLI(t, "sh", "-c", "echo hello; echo oops >&2; exit 3")
	if code != 3 {
		t.Errorf("exit = %d, want 3", code)
	}
	if stdout != "hello\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "oops\n" {
		t.Errorf("stderr = %q", stderr)
	}

	rows := ledgerRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Tool != "sh" || r.Outcome != model.OutcomeNoRule || r.ExitCode != 3 {
		t.Errorf("row = %+v", r)
	}
	if r.InstanceID == "" || r.CWD == "" {
		t.Errorf("row missing instance or cwd: %+v", r)
	}
	if r.RawTokens != r.CondensedTokens {
		t.Errorf("fallback must not change counts: %+v", r)
	}
}

func TestProxyExplicitRun(t *testing.T) {
	skipOnWindows(t)
	db := resetCLI(t)
	stdout, _, code := runCLI(t, "run", "--", "sh", "-c", "printf 'x\\n'")
	if code != 0 || stdout != "x\n" {
		t.Errorf("code = %d, stdout = %q", code, stdout)
	}
	if n := len(ledgerRows(t, db)); n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}
}

func TestProxyToolNotFound(t *testing.T) {
	db := resetCLI(t)
	stdout, stderr, code := runCLI(t, "terse-no-such-tool-xyz", "arg")
	if code != errors.ExitToolNotFound {
		t.Errorf("exit = %d, want %d", code, errors.ExitToolNotFound)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.HasPrefix(stderr, "terse: terse-no-such-tool-xyz: command not found") {
		t.Errorf("stderr = %q", stderr)
	}
	if n := len(ledgerRows(t, db)); n != 0 {
		t.Errorf("ledger rows = %d, want 0", n)
	}
}

func TestProxyDisabledByEnv(t *testing.T) {
	skipOnWindows(t)
	db := resetCLI(t)
	t.Setenv("TERSE_DISABLE", "1")

	stdout, _, code := runCLI(t, "sh", "-c", "echo raw")
	if code != 0 || stdout != "raw\n" {
		t.Errorf("code = %d, stdout = %q", code, stdout)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("passthrough should not open the ledger (stat err = %v)", err)
	}
}

func TestProxyRecordDisabled(t *testing.T) {
	skipOnWindows(t)
	db := resetCLI(t)
	if _, _, code := runCLI(t, "config", "record", "false"); code != 0 {
		t.Fatal("config set failed")
	}
	if _, _, code := runCLI(t, "sh", "-c", "exit 0"); code != 0 {
		t.Errorf("exit = %d", code)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("record=false should not open the ledger (stat err = %v)", err)
	}
}

func TestProxyUnknownDisabledRuleIsIgnored(t *testing.T) {
	skipOnWindows(t)
	resetCLI(t)
	if _, _, code := runCLI(t, "config", "disabled_rules", "not-a-rule"); code != 0 {
		t.Fatal("config set failed")
	}
	if _, _, code := runCLI(t, "sh", "-c", "exit 4"); code != 4 {
		t.Errorf("exit = %d, want 4", code)
	}
}

func TestRewriteCommand(t *testing.T) {
	reg, err := rules.NewRegistry(60, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{"git status", "terse git status", true},
		{"git status && make build", "terse git status && make build", true},
		{"cat a.json | jq .", "terse cat a.json | terse jq .", true},
		{"GOFLAGS=-v go test ./...", "GOFLAGS=-v terse go test ./...", true},
		{"go build ./...", "go build ./...", false},
		{"git diff", "git diff", false},
		{"terse git status", "terse git status", false},
		{"make", "make", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, changed := rewriteCommand(tt.in, reg)
		if got != tt.want || changed != tt.changed {
			t.Errorf("rewriteCommand(%q) = %q, %v; want %q, %v", tt.in, got, changed, tt.want, tt.changed)
		}
	}
}

func TestRewriteCmdExitCodes(t *testing.T) {
	resetCLI(t)
	stdout, _, code := runCLI(t, "rewrite", "rg -n TODO; make test")
	if code != 0 || stdout != "terse rg -n TODO; make test\n" {
		t.Errorf("code = %d, stdout = %q", code, stdout)
	}
	stdout, stderr, code := runCLI(t, "rewrite", "make test")
	if code != 1 || stdout != "" || stderr != "" {
		t.Errorf("unchanged: code = %d, stdout = %q, stderr = %q", code, stdout, stderr)
	}
}
