package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scbrown/terse/internal/model"
)

func TestRemoteAppendPostsInvocation(t *testing.T) {
	var got model.Invocation
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/invocations" {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	r := NewRemote(ts.URL + "/")
	inv := record("git", "status", model.OutcomeFiltered, 200, 40, time.Now())
	if err := r.Append(context.Background(), inv); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got.ID == "" || got.Tool != "git" || got.RawTokens != 200 {
		t.Errorf("server received %+v", got)
	}
}

func TestRemoteAppendValidatesLocally(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	err := NewRemote(ts.URL).Append(context.Background(), model.Invocation{Outcome: model.OutcomeFiltered})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Error("invalid record should not reach the server")
	}
}

func TestRemoteErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"disk full"}`))
	}))
	defer ts.Close()

	_, err := NewRemote(ts.URL).Summary(context.Background(), QueryOpts{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("got %v, want error mentioning disk full", err)
	}
}

func TestRemoteQueryParams(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	r := NewRemote(ts.URL)
	if _, err := r.History(context.Background(), HistoryOpts{Tool: "git", Limit: 5, Outcome: model.OutcomeNoRule}); err != nil {
		t.Fatalf("History: %v", err)
	}
	for _, want := range []string{"tool=git", "limit=5", "outcome=fallback-no-rule"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}
