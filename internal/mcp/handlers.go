package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scbrown/terse/internal/analyze"
	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	defaultDiscoverTop  = 10
)

var gainToolDef = mcp.NewTool("terse_gain",
	mcp.WithDescription("Token savings from filtered command output: totals, per-tool breakdown and optional per-day history."),
	mcp.WithString("since", mcp.Description("Only count invocations since this RFC3339 time or duration (e.g. 24h, 7d)")),
	mcp.WithString("tool", mcp.Description("Restrict totals to one tool")),
	mcp.WithNumber("daily", mcp.Description("Include per-day totals for this many days")),
)

var historyToolDef = mcp.NewTool("terse_history",
	mcp.WithDescription("Most recent proxied invocations, newest first. Output payloads are never stored."),
	mcp.WithString("since", mcp.Description("Only invocations since this RFC3339 time or duration")),
	mcp.WithString("tool", mcp.Description("Filter by tool name")),
	mcp.WithString("outcome", mcp.Description("Filter by outcome: filtered, fallback-no-rule, fallback-rule-failed, fallback-below-threshold, incomplete")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 500)")),
)

var discoverToolDef = mcp.NewTool("terse_discover",
	mcp.WithDescription("Commands that ran without a filter rule, ranked by frequency then raw token volume."),
	mcp.WithString("since", mcp.Description("Only invocations since this RFC3339 time or duration")),
	mcp.WithNumber("top", mcp.Description("Max candidates (default 10)")),
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store     store.Store
	ruleTools []string
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(s store.Store, ruleTools []string) *Handlers {
	return &Handlers{store: s, ruleTools: ruleTools, now: time.Now}
}

// GainRequest represents the arguments for terse_gain.
type GainRequest struct {
	Since string `json:"since,omitempty"`
	Tool  string `json:"tool,omitempty"`
	Daily int    `json:"daily,omitempty"`
}

// GainOutput is the terse_gain result.
type GainOutput struct {
	Summary store.Summary     `json:"summary"`
	Tools   []store.ToolStats `json:"tools"`
	Daily   []store.DayStats  `json:"daily,omitempty"`
}

// HistoryRequest represents the arguments for terse_history.
type HistoryRequest struct {
	Since   string `json:"since,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// DiscoverRequest represents the arguments for terse_discover.
type DiscoverRequest struct {
	Since string `json:"since,omitempty"`
	Top   int    `json:"top,omitempty"`
}

// HandleGain handles the terse_gain tool.
func (h *Handlers) HandleGain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[GainRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	since, err := server.ParseSince(in.Since, h.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := store.QueryOpts{Since: since, Tool: in.Tool}

	var out GainOutput
	if out.Summary, err = h.store.Summary(ctx, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary: %v", err)), nil
	}
	if out.Tools, err = h.store.ByTool(ctx, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tool totals: %v", err)), nil
	}
	if out.Tools == nil {
		out.Tools = []store.ToolStats{}
	}
	if in.Daily > 0 {
		if out.Daily, err = h.store.Daily(ctx, in.Daily); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("daily totals: %v", err)), nil
		}
	}
	return mcp.NewToolResultJSON(out)
}

// HandleHistory handles the terse_history tool.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[HistoryRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	since, err := server.ParseSince(in.Since, h.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := store.HistoryOpts{Since: since, Tool: in.Tool, Limit: in.Limit}
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultHistoryLimit
	case opts.Limit > maxHistoryLimit:
		opts.Limit = maxHistoryLimit
	}
	if in.Outcome != "" {
		if opts.Outcome, err = model.ParseOutcome(in.Outcome); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	invs, err := h.store.History(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history: %v", err)), nil
	}
	if invs == nil {
		invs = []model.Invocation{}
	}
	return mcp.NewToolResultJSON(map[string]any{"invocations": invs})
}

// HandleDiscover handles the terse_discover tool.
func (h *Handlers) HandleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[DiscoverRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	since, err := server.ParseSince(in.Since, h.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	top := in.Top
	if top <= 0 {
		top = defaultDiscoverTop
	}
	cands, err := h.store.Discover(ctx, store.DiscoverOpts{Since: since, Top: top})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discover: %v", err)), nil
	}
	return mcp.NewToolResultJSON(map[string]any{"candidates": analyze.Annotate(cands, h.ruleTools)})
}
