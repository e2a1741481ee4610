// Package shellarg turns a tool name and argument list into a discrete argv
// for process creation. Arguments are never joined into a string that a shell
// would interpret; the quoting helpers here exist only to display commands.
package shellarg

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Platform selects the quoting rules of a shell family.
type Platform int

const (
	POSIX Platform = iota
	Windows
)

func (p Platform) String() string {
	if p == Windows {
		return "windows"
	}
	return "posix"
}

// Current returns the platform of the running process.
func Current() Platform {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return POSIX
}

// ErrUnsafeArgument is returned when an argument cannot be passed to the
// child process without being reinterpreted.
var ErrUnsafeArgument = errors.New("unsafe argument")

// Command is a normalized process invocation.
type Command struct {
	Name     string
	Args     []string
	Platform Platform
}

// Argv returns the full argument vector including the program name.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String renders the command for display using the platform's quoting.
func (c Command) String() string {
	return Join(c.Argv(), c.Platform)
}

// UnsafeArgumentError describes which argument failed validation.
type UnsafeArgumentError struct {
	Index  int // 0 is the tool name
	Reason string
}

func (e *UnsafeArgumentError) Error() string {
	return fmt.Sprintf("argument %d: %s", e.Index, e.Reason)
}

func (e *UnsafeArgumentError) Unwrap() error { return ErrUnsafeArgument }

// Normalize validates tool and args for platform p and returns the argv to
// hand to the process-creation primitive. It fails closed: an argument that
// cannot be represented exactly produces an error, never a lossy rewrite.
func Normalize(tool string, args []string, p Platform) (Command, error) {
	if strings.TrimSpace(tool) == "" {
		return Command{}, &UnsafeArgumentError{Index: 0, Reason: "empty tool name"}
	}
	if strings.IndexByte(tool, 0) >= 0 {
		return Command{}, &UnsafeArgumentError{Index: 0, Reason: "tool name contains NUL byte"}
	}

	batch := p == Windows && isBatchFile(tool)
	out := make([]string, len(args))
	for i, a := range args {
		if strings.IndexByte(a, 0) >= 0 {
			return Command{}, &UnsafeArgumentError{Index: i + 1, Reason: "contains NUL byte"}
		}
		// cmd.exe parses batch file arguments with its own rules; these
		// characters cannot be escaped reliably there.
		if batch && strings.ContainsAny(a, "%\"\r\n") {
			return Command{}, &UnsafeArgumentError{Index: i + 1, Reason: "character not representable for batch file"}
		}
		out[i] = a
	}
	return Command{Name: tool, Args: out, Platform: p}, nil
}

func isBatchFile(tool string) bool {
	ext := strings.ToLower(filepath.Ext(tool))
	return ext == ".bat" || ext == ".cmd"
}

// Quote quotes a single argument for display on platform p.
func Quote(arg string, p Platform) string {
	if p == Windows {
		return windowsQuote(arg)
	}
	return shellquote.Join(arg)
}

// Join quotes and space-joins argv for display on platform p.
func Join(argv []string, p Platform) string {
	if p == POSIX {
		return shellquote.Join(argv...)
	}
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = windowsQuote(a)
	}
	return strings.Join(parts, " ")
}

// Split parses a POSIX shell word list into arguments without performing
// any expansion.
func Split(s string) ([]string, error) {
	return shellquote.Split(s)
}

// windowsQuote follows the CommandLineToArgvW rules: backslashes are literal
// unless they precede a double quote.
func windowsQuote(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\n\v\"") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			for ; slashes > 0; slashes-- {
				b.WriteByte('\\')
			}
			b.WriteByte('\\')
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	for ; slashes > 0; slashes-- {
		b.WriteByte('\\')
	}
	b.WriteByte('"')
	return b.String()
}
