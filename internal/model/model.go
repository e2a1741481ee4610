// Package model defines core types for terse: invocations of wrapped tools
// and the outcome of filtering their output.
package model

import (
	"bytes"
	"fmt"
	"time"
)

// Outcome tags how an invocation's output was treated.
type Outcome string

const (
	OutcomeFiltered       Outcome = "filtered"
	OutcomeNoRule         Outcome = "fallback-no-rule"
	OutcomeRuleFailed     Outcome = "fallback-rule-failed"
	OutcomeBelowThreshold Outcome = "fallback-below-threshold"
	OutcomeIncomplete     Outcome = "incomplete"
)

// Outcomes lists every valid outcome tag.
var Outcomes = []Outcome{
	OutcomeFiltered,
	OutcomeNoRule,
	OutcomeRuleFailed,
	OutcomeBelowThreshold,
	OutcomeIncomplete,
}

// Valid reports whether o is a known outcome tag.
func (o Outcome) Valid() bool {
	for _, k := range Outcomes {
		if o == k {
			return true
		}
	}
	return false
}

// Fallback reports whether the raw output was emitted unchanged.
func (o Outcome) Fallback() bool {
	return o != OutcomeFiltered
}

// ParseOutcome converts a string to an Outcome, rejecting unknown tags.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Invocation is one execution of a wrapped command. Output payloads are kept
// in memory for the duration of the invocation and never persisted.
type Invocation struct {
	ID              string    `json:"id"`
	Tool            string    `json:"tool"`
	Subcommand      string    `json:"subcommand,omitempty"`
	Args            []string  `json:"args,omitempty"`
	Command         string    `json:"command"`
	RawOutput       []byte    `json:"-"`
	CondensedOutput []byte    `json:"-"`
	RawTokens       int       `json:"raw_tokens"`
	CondensedTokens int       `json:"condensed_tokens"`
	SavingsPct      float64   `json:"savings_pct"`
	ExitCode        int       `json:"exit_code"`
	Outcome         Outcome   `json:"outcome"`
	RuleID          string    `json:"rule_id,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	InstanceID      string    `json:"instance_id,omitempty"`
	CWD             string    `json:"cwd,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// SavedTokens returns the number of tokens removed by filtering.
func (inv Invocation) SavedTokens() int {
	return inv.RawTokens - inv.CondensedTokens
}

// Validate checks the invariants an invocation must hold before it is
// appended to the ledger.
func (inv Invocation) Validate() error {
	if inv.Tool == "" {
		return fmt.Errorf("invocation: missing tool")
	}
	if !inv.Outcome.Valid() {
		return fmt.Errorf("invocation: unknown outcome %q", inv.Outcome)
	}
	if inv.RawTokens < 0 || inv.CondensedTokens < 0 {
		return fmt.Errorf("invocation: negative token count")
	}
	if inv.Outcome == OutcomeFiltered && inv.CondensedTokens > inv.RawTokens {
		return fmt.Errorf("invocation: filtered output larger than raw (%d > %d)", inv.CondensedTokens, inv.RawTokens)
	}
	if inv.Outcome.Fallback() {
		if inv.CondensedTokens != inv.RawTokens {
			return fmt.Errorf("invocation: %s with differing token counts", inv.Outcome)
		}
		if inv.RawOutput != nil && !bytes.Equal(inv.RawOutput, inv.CondensedOutput) {
			return fmt.Errorf("invocation: %s with altered output", inv.Outcome)
		}
	}
	if inv.Timestamp.IsZero() {
		return fmt.Errorf("invocation: missing timestamp")
	}
	return nil
}
