//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startServe launches `terse serve` and waits for the health endpoint.
func startServe(t *testing.T, e *env, addr string) *exec.Cmd {
	t.Helper()
	cmd := e.command("serve", "--addr", addr)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start terse serve: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return cmd
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("terse serve did not become healthy within 10s on %s", addr)
	return nil
}

// TestRemoteLedger records a proxy invocation into a ledger served by another
// terse process and reads it back.
func TestRemoteLedger(t *testing.T) {
	t.Parallel()
	server := newEnv(t)
	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	startServe(t, server, addr)

	client := newEnv(t)
	client.writeConfig(fmt.Sprintf("store_mode = \"remote\"\nremote_url = \"http://%s\"\n", addr))
	if _, _, code := client.run(nil, "sh", "-c", "echo remote; exit 2"); code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}

	resp, err := http.Get("http://" + addr + "/api/v1/invocations")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	var invs []struct {
		Tool     string `json:"tool"`
		ExitCode int    `json:"exit_code"`
		Outcome  string `json:"outcome"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&invs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(invs) != 1 || invs[0].Tool != "sh" || invs[0].ExitCode != 2 || invs[0].Outcome != "fallback-no-rule" {
		t.Errorf("history = %+v", invs)
	}

	var report struct {
		Summary struct {
			Invocations int `json:"invocations"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(client.mustRun("gain", "--json")), &report); err != nil {
		t.Fatalf("parse gain: %v", err)
	}
	if report.Summary.Invocations != 1 {
		t.Errorf("remote gain invocations = %d, want 1", report.Summary.Invocations)
	}
}
