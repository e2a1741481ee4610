package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/store"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	srv := New(s)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func invocation(tool, sub string, outcome model.Outcome, raw, condensed int, ts time.Time) model.Invocation {
	if outcome.Fallback() {
		condensed = raw
	}
	inv := model.Invocation{
		Tool:            tool,
		Subcommand:      sub,
		Args:            []string{sub},
		RawTokens:       raw,
		CondensedTokens: condensed,
		Outcome:         outcome,
		DurationMs:      5,
		Timestamp:       ts,
	}
	if raw > 0 {
		inv.SavingsPct = 100 * float64(raw-condensed) / float64(raw)
	}
	return inv
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := testServer(t)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/api/v1/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestAppendAndHistory(t *testing.T) {
	_, ts := testServer(t)

	inv := invocation("git", "status", model.OutcomeFiltered, 100, 20, time.Now().UTC())
	body, _ := json.Marshal(inv)
	resp, err := http.Post(ts.URL+"/api/v1/invocations", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST invocation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var invs []model.Invocation
	if code := getJSON(t, ts.URL+"/api/v1/invocations", &invs); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(invs) != 1 {
		t.Fatalf("got %d invocations, want 1", len(invs))
	}
	if invs[0].Tool != "git" || invs[0].RawTokens != 100 || invs[0].CondensedTokens != 20 {
		t.Errorf("unexpected invocation: %+v", invs[0])
	}
	if invs[0].ID == "" {
		t.Error("expected ID to be assigned")
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	_, ts := testServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"tool":`},
		{"missing tool", `{"outcome":"filtered","raw_tokens":1,"condensed_tokens":1}`},
		{"unknown outcome", `{"tool":"git","outcome":"shrunk"}`},
		{"fallback with savings", `{"tool":"git","outcome":"fallback-no-rule","raw_tokens":10,"condensed_tokens":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/invocations", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var e map[string]string
			json.NewDecoder(resp.Body).Decode(&e)
			if e["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestGainEndpoints(t *testing.T) {
	srv, ts := testServer(t)
	now := time.Now().UTC()
	ctx := context.Background()
	for _, inv := range []model.Invocation{
		invocation("git", "status", model.OutcomeFiltered, 100, 20, now.Add(-time.Minute)),
		invocation("git", "log", model.OutcomeFiltered, 200, 50, now.Add(-2*time.Minute)),
		invocation("make", "", model.OutcomeNoRule, 100, 100, now.Add(-3*time.Minute)),
	} {
		if err := srv.store.Append(ctx, inv); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var sum store.Summary
	if code := getJSON(t, ts.URL+"/api/v1/gain", &sum); code != http.StatusOK {
		t.Fatalf("gain status = %d", code)
	}
	if sum.Invocations != 3 || sum.SavedTokens != 230 {
		t.Errorf("summary = %+v, want 3 invocations / 230 saved", sum)
	}

	var tools []store.ToolStats
	getJSON(t, ts.URL+"/api/v1/gain/tools", &tools)
	if len(tools) != 2 || tools[0].Tool != "git" {
		t.Errorf("tools = %+v, want git first", tools)
	}

	var filtered store.Summary
	getJSON(t, ts.URL+"/api/v1/gain?tool=make", &filtered)
	if filtered.Invocations != 1 || filtered.SavedTokens != 0 {
		t.Errorf("tool-filtered summary = %+v", filtered)
	}

	var days []store.DayStats
	getJSON(t, ts.URL+"/api/v1/gain/daily?days=7", &days)
	if len(days) == 0 {
		t.Error("expected at least one day of totals")
	}

	var cands []store.Candidate
	getJSON(t, ts.URL+"/api/v1/discover?top=5", &cands)
	if len(cands) != 1 || cands[0].Tool != "make" {
		t.Errorf("candidates = %+v, want make", cands)
	}
}

func TestHistoryFilters(t *testing.T) {
	srv, ts := testServer(t)
	now := time.Now().UTC()
	ctx := context.Background()
	srv.store.Append(ctx, invocation("git", "status", model.OutcomeFiltered, 100, 20, now.Add(-48*time.Hour)))
	srv.store.Append(ctx, invocation("git", "log", model.OutcomeBelowThreshold, 100, 100, now.Add(-time.Hour)))
	srv.store.Append(ctx, invocation("ls", "", model.OutcomeFiltered, 50, 10, now))

	var invs []model.Invocation
	getJSON(t, ts.URL+"/api/v1/invocations?since=24h", &invs)
	if len(invs) != 2 {
		t.Errorf("since=24h: got %d, want 2", len(invs))
	}
	getJSON(t, ts.URL+"/api/v1/invocations?outcome=filtered&limit=1", &invs)
	if len(invs) != 1 || invs[0].Tool != "ls" {
		t.Errorf("outcome+limit: got %+v", invs)
	}
	getJSON(t, ts.URL+"/api/v1/invocations?tool=git", &invs)
	if len(invs) != 2 {
		t.Errorf("tool=git: got %d, want 2", len(invs))
	}
}

func TestBadParams(t *testing.T) {
	_, ts := testServer(t)
	for _, path := range []string{
		"/api/v1/gain?since=yesterday",
		"/api/v1/invocations?limit=ten",
		"/api/v1/invocations?outcome=shrunk",
		"/api/v1/gain/daily?days=-1",
		"/api/v1/discover?top=x",
	} {
		if code := getJSON(t, ts.URL+path, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, code)
		}
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	_, ts := testServer(t)
	for _, path := range []string{"/api/v1/invocations", "/api/v1/gain/tools", "/api/v1/discover"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var raw json.RawMessage
		json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if string(raw) != "[]" {
			t.Errorf("%s = %s, want []", path, raw)
		}
	}
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	_, ts := testServer(t)
	remote := store.NewRemote(ts.URL + "/")
	defer remote.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	if err := remote.Append(ctx, invocation("grep", "", model.OutcomeFiltered, 400, 80, now)); err != nil {
		t.Fatalf("remote Append: %v", err)
	}
	if err := remote.Append(ctx, invocation("cargo", "build", model.OutcomeNoRule, 60, 60, now)); err != nil {
		t.Fatalf("remote Append: %v", err)
	}

	sum, err := remote.Summary(ctx, store.QueryOpts{})
	if err != nil {
		t.Fatalf("remote Summary: %v", err)
	}
	if sum.Invocations != 2 || sum.SavedTokens != 320 {
		t.Errorf("summary = %+v", sum)
	}

	hist, err := remote.History(ctx, store.HistoryOpts{Tool: "grep"})
	if err != nil {
		t.Fatalf("remote History: %v", err)
	}
	if len(hist) != 1 || hist[0].Outcome != model.OutcomeFiltered {
		t.Errorf("history = %+v", hist)
	}

	cands, err := remote.Discover(ctx, store.DiscoverOpts{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("remote Discover: %v", err)
	}
	if len(cands) != 1 || cands[0].Tool != "cargo" || cands[0].Subcommand != "build" {
		t.Errorf("candidates = %+v", cands)
	}

	tools, err := remote.ByTool(ctx, store.QueryOpts{})
	if err != nil || len(tools) != 2 {
		t.Errorf("ByTool = %+v, %v", tools, err)
	}
	if _, err := remote.Daily(ctx, 3); err != nil {
		t.Errorf("Daily: %v", err)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"30m", now.Add(-30 * time.Minute)},
		{"24h", now.Add(-24 * time.Hour)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"2026-03-01T00:00:00Z", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseSince(tt.in, now)
		if err != nil {
			t.Errorf("ParseSince(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"yesterday", "7w", "-3d", "d"} {
		if _, err := ParseSince(bad, now); err == nil {
			t.Errorf("ParseSince(%q) succeeded, want error", bad)
		}
	}
}

func TestShutdown(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
