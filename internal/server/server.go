// Package server provides an HTTP server that wraps the store.Store interface,
// so several machines or containers can share one terse ledger.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/store"
)

// maxBody caps the size of an appended invocation record.
const maxBody = 1 << 20

// Server wraps a store.Store and exposes it over HTTP.
type Server struct {
	store store.Store
	mux   *http.ServeMux
	srv   *http.Server
}

// New creates a Server that delegates to the given store.
func New(s store.Store) *Server {
	srv := &Server{store: s, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/invocations", s.handleAppend)
	s.mux.HandleFunc("GET /api/v1/invocations", s.handleHistory)
	s.mux.HandleFunc("GET /api/v1/gain", s.handleSummary)
	s.mux.HandleFunc("GET /api/v1/gain/tools", s.handleByTool)
	s.mux.HandleFunc("GET /api/v1/gain/daily", s.handleDaily)
	s.mux.HandleFunc("GET /api/v1/discover", s.handleDiscover)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.srv.Serve(ln)
}

// Handler returns the HTTP handler for use with httptest.Server or custom listeners.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var inv model.Invocation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&inv); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}
	if err := inv.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.store.Append(r.Context(), inv); err != nil {
		writeErr(w, http.StatusInternalServerError, "appending invocation: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts, err := parseHistoryOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	invs, err := s.store.History(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing invocations: %v", err)
		return
	}
	if invs == nil {
		invs = []model.Invocation{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	sum, err := s.store.Summary(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "computing summary: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleByTool(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	stats, err := s.store.ByTool(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "computing tool totals: %v", err)
		return
	}
	if stats == nil {
		stats = []store.ToolStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	days, err := parseInt(r, "days")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	stats, err := s.store.Daily(r.Context(), days)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "computing daily totals: %v", err)
		return
	}
	if stats == nil {
		stats = []store.DayStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	opts, err := parseDiscoverOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	cands, err := s.store.Discover(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "discovering candidates: %v", err)
		return
	}
	if cands == nil {
		cands = []store.Candidate{}
	}
	writeJSON(w, http.StatusOK, cands)
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// writeErr writes a JSON error response.
func writeErr(w http.ResponseWriter, status int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, status, map[string]string{"error": msg})
}
