// Package store defines the analytics ledger: an append-only record of
// every proxied invocation plus the aggregate queries computed over it.
package store

import (
	"context"
	"time"

	"github.com/scbrown/terse/internal/model"
)

// Store is the persistence interface for the analytics ledger. Append is the
// only mutation; every query is computed from committed rows.
type Store interface {
	// Append persists one invocation. A missing ID or timestamp is filled in.
	Append(ctx context.Context, inv model.Invocation) error

	// Summary returns ledger-wide totals.
	Summary(ctx context.Context, opts QueryOpts) (Summary, error)

	// ByTool returns per-tool totals ordered by saved tokens, then count.
	ByTool(ctx context.Context, opts QueryOpts) ([]ToolStats, error)

	// Daily returns per-day totals for the last days days, newest first.
	Daily(ctx context.Context, days int) ([]DayStats, error)

	// History returns the most recent invocations, newest first.
	History(ctx context.Context, opts HistoryOpts) ([]model.Invocation, error)

	// Discover ranks (tool, subcommand) pairs that ran without a rule.
	Discover(ctx context.Context, opts DiscoverOpts) ([]Candidate, error)

	// Close releases any resources held by the store.
	Close() error
}

// QueryOpts narrows aggregate queries.
type QueryOpts struct {
	Since time.Time // Only invocations at or after this time.
	Tool  string    // Filter by tool name.
}

// HistoryOpts controls History.
type HistoryOpts struct {
	Since   time.Time
	Tool    string
	Outcome model.Outcome
	Limit   int // Maximum results; 0 means no limit.
}

// DiscoverOpts controls Discover.
type DiscoverOpts struct {
	Since time.Time
	Top   int // Maximum candidates; 0 means no limit.
}

// NameCount pairs a name (tool name or outcome) with its occurrence count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary holds ledger-wide totals.
type Summary struct {
	Invocations     int         `json:"invocations"`
	Filtered        int         `json:"filtered"`
	RawTokens       int         `json:"raw_tokens"`
	CondensedTokens int         `json:"condensed_tokens"`
	SavedTokens     int         `json:"saved_tokens"`
	SavingsPct      float64     `json:"savings_pct"`
	TotalDurationMs int64       `json:"total_duration_ms"`
	ByOutcome       []NameCount `json:"by_outcome"`
	Earliest        time.Time   `json:"earliest"`
	Latest          time.Time   `json:"latest"`
	Last24h         int         `json:"last_24h"`
	Last7d          int         `json:"last_7d"`
	Last30d         int         `json:"last_30d"`
}

// ToolStats holds per-tool totals.
type ToolStats struct {
	Tool            string  `json:"tool"`
	Invocations     int     `json:"invocations"`
	Filtered        int     `json:"filtered"`
	RawTokens       int     `json:"raw_tokens"`
	CondensedTokens int     `json:"condensed_tokens"`
	SavedTokens     int     `json:"saved_tokens"`
	SavingsPct      float64 `json:"savings_pct"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
}

// DayStats holds totals for one UTC day.
type DayStats struct {
	Day             string  `json:"day"`
	Invocations     int     `json:"invocations"`
	RawTokens       int     `json:"raw_tokens"`
	CondensedTokens int     `json:"condensed_tokens"`
	SavedTokens     int     `json:"saved_tokens"`
	SavingsPct      float64 `json:"savings_pct"`
}

// Candidate is a (tool, subcommand) pair seen without a matching rule.
type Candidate struct {
	Tool       string    `json:"tool"`
	Subcommand string    `json:"subcommand,omitempty"`
	Count      int       `json:"count"`
	RawTokens  int       `json:"raw_tokens"`
	LastSeen   time.Time `json:"last_seen"`
}
