package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/scbrown/terse/internal/config"
)

func TestConfigCmdShowEmpty(t *testing.T) {
	resetCLI(t)
	output, _, code := runCLI(t, "config")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(output, "KEY") || !strings.Contains(output, "VALUE") {
		t.Errorf("expected table headers, got: %s", output)
	}
	for _, key := range config.ValidKeys() {
		if !strings.Contains(output, key) {
			t.Errorf("expected %s key, got: %s", key, output)
		}
	}
	if !strings.Contains(output, "(not set)") {
		t.Errorf("expected (not set) for empty values, got: %s", output)
	}
}

func TestConfigCmdGet(t *testing.T) {
	resetCLI(t)
	cfg := &config.Config{DBPath: "/custom/ledger.db"}
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}
	output, _, code := runCLI(t, "config", "db_path")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if strings.TrimSpace(output) != "/custom/ledger.db" {
		t.Errorf("got %q, want /custom/ledger.db", output)
	}
}

func TestConfigCmdGetEmpty(t *testing.T) {
	resetCLI(t)
	output, _, code := runCLI(t, "config", "min_savings")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if strings.TrimSpace(output) != "" {
		t.Errorf("expected empty output for unset key, got %q", output)
	}
}

func TestConfigCmdSet(t *testing.T) {
	resetCLI(t)
	output, _, code := runCLI(t, "config", "disabled_rules", "git-log,jq")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(output, "disabled_rules = git-log,jq") {
		t.Errorf("expected confirmation, got: %s", output)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.DisabledRules) != 2 || cfg.DisabledRules[0] != "git-log" || cfg.DisabledRules[1] != "jq" {
		t.Errorf("persisted value: got %v", cfg.DisabledRules)
	}
}

func TestConfigCmdSetInvalidValue(t *testing.T) {
	resetCLI(t)
	_, stderr, code := runCLI(t, "config", "min_savings", "250")
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "terse: min_savings must be") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConfigCmdInvalidKey(t *testing.T) {
	resetCLI(t)
	if _, _, code := runCLI(t, "config", "bad_key"); code == 0 {
		t.Fatal("expected failure for unknown key")
	}
}

func TestConfigCmdShowJSON(t *testing.T) {
	resetCLI(t)
	cfg := &config.Config{DBPath: "/custom/ledger.db", StoreMode: "local"}
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	output, _, _ := runCLI(t, "config", "--json")
	var result config.Config
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("json unmarshal: %v\nOutput: %s", err, output)
	}
	if result.DBPath != "/custom/ledger.db" {
		t.Errorf("db_path: got %q", result.DBPath)
	}
	if result.StoreMode != "local" {
		t.Errorf("store_mode: got %q", result.StoreMode)
	}
}

func TestConfigCmdTooManyArgs(t *testing.T) {
	resetCLI(t)
	if _, _, code := runCLI(t, "config", "a", "b", "c"); code == 0 {
		t.Fatal("expected failure for too many args")
	}
}

func TestConfigDefaultFormatJSON(t *testing.T) {
	resetCLI(t)
	cfg := &config.Config{DefaultFormat: "json"}
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}
	output, _, code := runCLI(t, "history")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if strings.TrimSpace(output) != "[]" {
		t.Errorf("expected JSON empty list, got %q", output)
	}
}
