package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"unicode/utf8"

	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/tokens"
)

// Input is the captured result of one wrapped command.
type Input struct {
	Tool       string
	Subcommand string
	Args       []string
	Stdout     []byte
	Stderr     []byte
}

// Result is the engine's verdict. Stdout and Stderr are what the caller
// should receive; for every fallback outcome they are the raw streams.
type Result struct {
	Outcome         model.Outcome
	RuleID          RuleID
	Stream          Stream
	Stdout          []byte
	Stderr          []byte
	RawTokens       int
	CondensedTokens int
	SavingsPct      float64
	Err             error
}

// ErrDecline is returned (possibly wrapped) by a rule that does not
// recognize the output it was given. The engine treats it as if no rule
// matched.
var ErrDecline = errors.New("rule declined")

// Errors recorded on Result.Err when a rule breaks its contract.
var (
	ErrEmptyOutput = errors.New("rule produced empty output from non-empty input")
	ErrInvalidUTF8 = errors.New("rule produced invalid UTF-8 from valid input")
	ErrOutputGrew  = errors.New("rule output is larger than its input")
)

// Engine applies registered rules to captured output.
type Engine struct {
	Registry *Registry
	Logger   *log.Logger
}

// NewEngine returns an engine over reg. A nil logger discards diagnostics.
func NewEngine(reg *Registry, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{Registry: reg, Logger: logger}
}

// ruleResult is the tagged outcome of a single rule call.
type ruleResult struct {
	out []byte
	err error
}

// invoke calls the rule's condense function behind a recover boundary so
// that a faulty rule can never take the process down with it. The rule gets
// its own copy of the raw bytes.
func invoke(rule *Rule, raw []byte, args []string) (res ruleResult) {
	defer func() {
		if p := recover(); p != nil {
			res = ruleResult{err: fmt.Errorf("rule %s panicked: %v", rule.ID, p)}
		}
	}()
	out, err := rule.Condense(bytes.Clone(raw), args)
	if err != nil {
		return ruleResult{err: fmt.Errorf("rule %s: %w", rule.ID, err)}
	}
	return ruleResult{out: out}
}

// Apply runs the matching rule, if any, against in and decides which bytes
// the caller receives. The stream a rule does not target is never touched.
func (e *Engine) Apply(in Input) Result {
	res := Result{Stdout: in.Stdout, Stderr: in.Stderr, Stream: Stdout}

	var rule *Rule
	if e.Registry != nil {
		rule, _ = e.Registry.Lookup(in.Tool, in.Subcommand)
	}
	if rule == nil {
		n := tokens.EstimateBytes(in.Stdout)
		res.Outcome = model.OutcomeNoRule
		res.RawTokens, res.CondensedTokens = n, n
		return res
	}

	res.RuleID = rule.ID
	res.Stream = rule.Stream
	raw := in.Stdout
	if rule.Stream == Stderr {
		raw = in.Stderr
	}
	rawTokens := tokens.EstimateBytes(raw)
	res.RawTokens = rawTokens

	fallback := func(o model.Outcome, err error) Result {
		res.Outcome = o
		res.CondensedTokens = rawTokens
		res.SavingsPct = 0
		res.Err = err
		if err != nil {
			e.Logger.Printf("filter %s: %s %s: %v", rule.ID, in.Tool, o, err)
		}
		return res
	}

	if len(raw) == 0 {
		res.Outcome = model.OutcomeFiltered
		return res
	}

	rr := invoke(rule, raw, in.Args)
	if errors.Is(rr.err, ErrDecline) {
		res.Outcome = model.OutcomeNoRule
		res.RuleID = ""
		res.Stream = Stdout
		res.RawTokens = tokens.EstimateBytes(in.Stdout)
		res.CondensedTokens = res.RawTokens
		return res
	}
	if rr.err != nil {
		return fallback(model.OutcomeRuleFailed, rr.err)
	}
	if len(rr.out) == 0 {
		return fallback(model.OutcomeRuleFailed, ErrEmptyOutput)
	}
	if utf8.Valid(raw) && !utf8.Valid(rr.out) {
		return fallback(model.OutcomeRuleFailed, ErrInvalidUTF8)
	}

	condensed := tokens.EstimateBytes(rr.out)
	savings := tokens.Savings(rawTokens, condensed)
	if condensed > rawTokens {
		return fallback(model.OutcomeBelowThreshold, ErrOutputGrew)
	}
	if savings < rule.MinSavings {
		return fallback(model.OutcomeBelowThreshold,
			fmt.Errorf("savings %.1f%% below threshold %.0f%%", savings, rule.MinSavings))
	}

	res.Outcome = model.OutcomeFiltered
	res.CondensedTokens = condensed
	res.SavingsPct = savings
	if rule.Stream == Stderr {
		res.Stderr = rr.out
	} else {
		res.Stdout = rr.out
	}
	return res
}
