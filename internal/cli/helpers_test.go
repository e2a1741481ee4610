package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scbrown/terse/internal/config"
	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/pflag"
)

// resetCLI points terse at a fresh ledger and config file and restores every
// flag to its default. It returns the ledger path.
func resetCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")
	configPath = filepath.Join(dir, "config.toml")
	t.Setenv("TERSE_DB", db)
	t.Setenv("TERSE_DISABLE", "")

	resetFlags := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}
	settings = &config.Config{}
	storeMode, remoteURL = "", ""

	t.Cleanup(func() {
		configPath = config.Path()
		jsonOutput = false
		verbose = false
	})
	return db
}

// seedLedger appends invocations to the ledger at db.
func seedLedger(t *testing.T, db string, invs ...model.Invocation) {
	t.Helper()
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	for _, inv := range invs {
		if err := s.Append(context.Background(), inv); err != nil {
			t.Fatalf("seed %s: %v", inv.Tool, err)
		}
	}
}

// filtered builds a filtered invocation.
func filtered(tool, sub string, raw, condensed int, ts time.Time) model.Invocation {
	return model.Invocation{
		Tool:            tool,
		Subcommand:      sub,
		Command:         tool + " " + sub,
		RawTokens:       raw,
		CondensedTokens: condensed,
		SavingsPct:      100 * float64(raw-condensed) / float64(raw),
		Outcome:         model.OutcomeFiltered,
		RuleID:          tool + "-" + sub,
		DurationMs:      40,
		Timestamp:       ts,
	}
}

// unfiltered builds a fallback-no-rule invocation.
func unfiltered(tool, sub string, raw int, ts time.Time) model.Invocation {
	return model.Invocation{
		Tool:            tool,
		Subcommand:      sub,
		Command:         tool + " " + sub,
		RawTokens:       raw,
		CondensedTokens: raw,
		Outcome:         model.OutcomeNoRule,
		DurationMs:      10,
		Timestamp:       ts,
	}
}

// capture runs fn with os.Stdout and os.Stderr redirected, returning both.
func capture(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()
	oldOut, oldErr := os.Stdout, os.Stderr
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe: %v", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe: %v", err)
	}
	os.Stdout, os.Stderr = outW, errW

	var outBuf, errBuf bytes.Buffer
	done := make(chan struct{}, 2)
	go func() { io.Copy(&outBuf, outR); done <- struct{}{} }()
	go func() { io.Copy(&errBuf, errR); done <- struct{}{} }()

	defer func() {
		os.Stdout, os.Stderr = oldOut, oldErr
	}()
	fn()
	outW.Close()
	errW.Close()
	<-done
	<-done
	return outBuf.String(), errBuf.String()
}

// captureStdout runs fn while capturing stdout, returning the output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	out, _ := capture(t, fn)
	return out
}

// runCLI executes terse with args and returns stdout, stderr and the exit code.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	stdout, stderr = capture(t, func() {
		code = Execute(args)
	})
	return stdout, stderr, code
}
