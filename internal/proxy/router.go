// Package proxy wires the pipeline for one wrapped command: normalize the
// argv, run the child, filter its output, record the savings, and relay the
// result to the caller.
package proxy

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/scbrown/terse/internal/analyze"
	"github.com/scbrown/terse/internal/errors"
	"github.com/scbrown/terse/internal/executor"
	"github.com/scbrown/terse/internal/filter"
	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/shellarg"
	"github.com/scbrown/terse/internal/store"
	"github.com/scbrown/terse/internal/tokens"
)

// DefaultAppendTimeout bounds how long a proxy invocation waits on the ledger.
const DefaultAppendTimeout = 3 * time.Second

// Router owns the end-to-end handling of one invocation. It is the only
// writer of the caller's streams and writes each of them at most once.
type Router struct {
	Runner executor.Runner
	Engine *filter.Engine
	Store  store.Store // nil disables recording

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger

	// Signals delivered to the proxy are relayed to the child.
	Signals <-chan os.Signal

	Platform   shellarg.Platform
	InstanceID string
	Dir        string

	// Passthrough skips filtering and recording entirely.
	Passthrough   bool
	AppendTimeout time.Duration
	Now           func() time.Time
}

// Run executes tool with args and returns the exit code the proxy process
// should exit with: the child's own code, or a reserved proxy code when the
// child could not be run at all.
func (r *Router) Run(ctx context.Context, tool string, args []string) int {
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	cmd, err := shellarg.Normalize(tool, args, r.Platform)
	if err != nil {
		var idx int
		reason := err.Error()
		var ue *shellarg.UnsafeArgumentError
		if stderrors.As(err, &ue) {
			idx, reason = ue.Index, ue.Reason
		}
		return r.fail(errors.NewUnsafeArgument(tool, idx, reason))
	}

	start := r.now()
	res, err := r.Runner.Run(ctx, cmd, executor.Options{Stdin: r.Stdin, Dir: r.Dir, Signals: r.Signals})
	if err != nil {
		return r.fail(err)
	}

	if r.Passthrough {
		return r.emit(res.Stdout, res.Stderr, res.ExitCode)
	}

	sub := filter.Subcommand(args)
	var out filter.Result
	if res.Signaled {
		n := tokens.EstimateBytes(res.Stdout)
		out = filter.Result{
			Outcome:         model.OutcomeIncomplete,
			Stdout:          res.Stdout,
			Stderr:          res.Stderr,
			RawTokens:       n,
			CondensedTokens: n,
		}
		logger.Printf("%s: killed by %s; passing output through", cmd.Name, res.Signal)
	} else {
		out = r.engine().Apply(filter.Input{
			Tool:       cmd.Name,
			Subcommand: sub,
			Args:       cmd.Args,
			Stdout:     res.Stdout,
			Stderr:     res.Stderr,
		})
	}
	logger.Printf("%s: %s raw=%d condensed=%d savings=%.1f%% exit=%d in %s",
		cmd.String(), out.Outcome, out.RawTokens, out.CondensedTokens, out.SavingsPct, res.ExitCode, res.Duration)

	rawTarget, emitted := res.Stdout, out.Stdout
	if out.Stream == filter.Stderr {
		rawTarget, emitted = res.Stderr, out.Stderr
	}
	r.record(ctx, model.Invocation{
		Tool:            filter.NormalizeTool(cmd.Name),
		Subcommand:      sub,
		Args:            cmd.Args,
		Command:         cmd.String(),
		RawOutput:       rawTarget,
		CondensedOutput: emitted,
		RawTokens:       out.RawTokens,
		CondensedTokens: out.CondensedTokens,
		SavingsPct:      out.SavingsPct,
		ExitCode:        res.ExitCode,
		Outcome:         out.Outcome,
		RuleID:          string(out.RuleID),
		DurationMs:      res.Duration.Milliseconds(),
		InstanceID:      r.InstanceID,
		CWD:             r.cwd(),
		Timestamp:       start,
	})

	return r.emit(out.Stdout, out.Stderr, res.ExitCode)
}

// record appends inv to the ledger. Failures are reported once on stderr
// and never change the invocation's result.
func (r *Router) record(ctx context.Context, inv model.Invocation) {
	if r.Store == nil {
		return
	}
	timeout := r.AppendTimeout
	if timeout <= 0 {
		timeout = DefaultAppendTimeout
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := r.Store.Append(actx, inv); err != nil {
		fmt.Fprintf(r.stderr(), "terse: analytics: %v\n", err)
	}
}

// emit writes the final streams once. A failed write is a proxy fault.
func (r *Router) emit(stdout, stderr []byte, code int) int {
	if len(stdout) > 0 {
		if _, err := r.stdout().Write(stdout); err != nil {
			fmt.Fprintf(r.stderr(), "terse: write output: %v\n", err)
			return errors.ExitInternal
		}
	}
	if len(stderr) > 0 {
		if _, err := r.stderr().Write(stderr); err != nil {
			return errors.ExitInternal
		}
	}
	return code
}

// fail reports a proxy-level error and returns its reserved exit code.
func (r *Router) fail(err error) int {
	msg := err.Error()
	var pErr *errors.ProxyError
	if stderrors.As(err, &pErr) {
		msg = pErr.Message
	}
	if pErr != nil && pErr.Code == errors.CodeToolNotFound {
		if hint := r.didYouMean(pErr.Tool); hint != "" {
			msg += " (did you mean " + hint + "?)"
		}
	}
	if pErr != nil && pErr.Code == errors.CodeSpawnFailed && pErr.Err != nil {
		msg += ": " + pErr.Err.Error()
	}
	fmt.Fprintf(r.stderr(), "terse: %s\n", msg)
	return errors.ExitCode(err)
}

// didYouMean suggests a tool with registered rules close to tool.
func (r *Router) didYouMean(tool string) string {
	eng := r.engine()
	if eng.Registry == nil {
		return ""
	}
	s := analyze.Suggest(filter.NormalizeTool(tool), eng.Registry.Tools())
	if len(s) == 0 {
		return ""
	}
	names := make([]string, len(s))
	for i, x := range s {
		names[i] = x.Name
	}
	return strings.Join(names, ", ")
}

func (r *Router) engine() *filter.Engine {
	if r.Engine == nil {
		return filter.NewEngine(nil, r.Logger)
	}
	return r.Engine
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Router) cwd() string {
	if r.Dir != "" {
		return r.Dir
	}
	wd, _ := os.Getwd()
	return wd
}

func (r *Router) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Router) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}
