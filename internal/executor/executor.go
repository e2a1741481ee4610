// Package executor runs the wrapped tool as a single child process and
// captures its output and exit status.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/scbrown/terse/internal/errors"
	"github.com/scbrown/terse/internal/shellarg"
)

// Options controls how the child process is started.
type Options struct {
	Stdin io.Reader // forwarded unchanged; nil means no input
	Dir   string    // working directory; empty means the current one
	Env   []string  // nil inherits the proxy's environment

	// Signals received on this channel while the child runs are relayed
	// to it. A nil channel relays nothing.
	Signals <-chan os.Signal
}

// Result is the captured outcome of one child process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Signaled bool   // terminated by a signal rather than exiting
	Signal   string // signal name when Signaled
	Duration time.Duration
}

// Runner executes a normalized command. The proxy depends on this interface
// so tests can substitute canned results.
type Runner interface {
	Run(ctx context.Context, cmd shellarg.Command, opts Options) (*Result, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

// Run starts cmd, waits for it to finish, and returns its captured output.
// A non-zero exit is not an error: it is reported in Result.ExitCode. Errors
// are returned only when the child could not be started, as a
// *errors.ProxyError with CodeToolNotFound or CodeSpawnFailed.
func (Exec) Run(ctx context.Context, cmd shellarg.Command, opts Options) (*Result, error) {
	return Run(ctx, cmd, opts)
}

// Run is the package-level form of Exec.Run.
func Run(ctx context.Context, cmd shellarg.Command, opts Options) (*Result, error) {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		if perr := notExecutableOnPath(cmd.Name); perr != nil {
			return nil, errors.NewSpawnFailed(cmd.Name, perr)
		}
		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewToolNotFound(cmd.Name, err)
		}
		return nil, errors.NewSpawnFailed(cmd.Name, err)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = opts.Dir
	c.Env = opts.Env
	if opts.Stdin != nil {
		c.Stdin = opts.Stdin
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	if err := c.Start(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewToolNotFound(cmd.Name, err)
		}
		return nil, errors.NewSpawnFailed(cmd.Name, err)
	}
	done := make(chan struct{})
	go relay(c.Process, opts.Signals, done)
	waitErr := c.Wait()
	close(done)

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if waitErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if !stderrors.As(waitErr, &exitErr) {
		// I/O failure copying stdin or output after the child started.
		return nil, errors.NewInternal(waitErr)
	}
	res.ExitCode = exitErr.ExitCode()
	if sig, ok := signalOf(exitErr.ProcessState); ok {
		res.Signaled = true
		res.Signal = sig.name
		res.ExitCode = 128 + sig.num
	}
	return res, nil
}

// relay forwards signals to p until done is closed.
func relay(p *os.Process, signals <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-signals:
			// The child may already have exited; Wait reports the outcome.
			_ = p.Signal(sig)
		case <-done:
			return
		}
	}
}

type signalInfo struct {
	name string
	num  int
}
