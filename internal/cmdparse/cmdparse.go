// Package cmdparse provides lightweight shell command parsing for the rewrite
// hook. It splits command strings on pipes and chain operators, identifies the
// program each segment runs, and inserts a wrapper in front of chosen segments.
package cmdparse

import (
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Segment represents one command in a pipeline or chain.
type Segment struct {
	Command string   // program name as written (e.g., "git")
	Tokens  []string // all tokens after the command
	Env     []string // leading NAME=value assignments
	Raw     string   // original text of this segment (trimmed)
	Start   int      // byte offset of Raw in the full command string
	End     int      // byte offset end (exclusive)

	// CommandStart is the byte offset of Command in the full command string.
	CommandStart int
}

// Args returns the segment's arguments with shell quoting removed. Tokens that
// cannot be unquoted are returned as written.
func (s Segment) Args() []string {
	out := make([]string, 0, len(s.Tokens))
	for _, tok := range s.Tokens {
		out = append(out, Unquote(tok))
	}
	return out
}

// Parse splits a command string into Segments on |, &&, ||, ;.
// It respects single and double quotes and backslash escapes.
// Start and End offsets point to the trimmed segment text within
// the original command string.
func Parse(cmd string) []Segment {
	parts := splitOperators(cmd)
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p.text)
		if trimmed == "" {
			continue
		}
		leading := len(p.text) - len(strings.TrimLeft(p.text, " \t\n"))
		trimStart := p.start + leading

		s := Segment{
			Raw:   trimmed,
			Start: trimStart,
			End:   trimStart + len(trimmed),
		}
		toks := tokenize(trimmed)
		i := 0
		for i < len(toks) && isAssignment(toks[i].text) {
			s.Env = append(s.Env, toks[i].text)
			i++
		}
		if i < len(toks) {
			s.Command = toks[i].text
			s.CommandStart = trimStart + toks[i].start
			for _, t := range toks[i+1:] {
				s.Tokens = append(s.Tokens, t.text)
			}
		}
		segs = append(segs, s)
	}
	return segs
}

// Prefix inserts word before the command of every segment for which wrap
// returns true. It reports whether the command string changed.
func Prefix(full string, segs []Segment, word string, wrap func(Segment) bool) (string, bool) {
	var picked []Segment
	for _, s := range segs {
		if s.Command != "" && wrap(s) {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		return full, false
	}
	// Insert from the end so earlier offsets stay valid.
	sort.Slice(picked, func(i, j int) bool { return picked[i].CommandStart > picked[j].CommandStart })
	out := full
	for _, s := range picked {
		out = out[:s.CommandStart] + word + " " + out[s.CommandStart:]
	}
	return out, true
}

// SubstituteCommand replaces the command name in a segment.
func SubstituteCommand(seg Segment, newCmd string) string {
	if seg.Command == "" {
		return seg.Raw
	}
	at := seg.CommandStart - seg.Start
	return seg.Raw[:at] + newCmd + seg.Raw[at+len(seg.Command):]
}

// ApplyToFull replaces the segment at [seg.Start, seg.End) in the original
// full command string with the corrected segment text.
func ApplyToFull(full string, seg Segment, corrected string) string {
	return full[:seg.Start] + corrected + full[seg.End:]
}

// Unquote strips shell quoting from a single token.
func Unquote(tok string) string {
	words, err := shellquote.Split(tok)
	if err != nil || len(words) != 1 {
		return tok
	}
	return words[0]
}

func isAssignment(tok string) bool {
	eq := strings.IndexByte(tok, '=')
	if eq <= 0 {
		return false
	}
	for i, r := range tok[:eq] {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// part is an internal type for split results.
type part struct {
	text  string
	start int
	end   int
}

// splitOperators splits on unquoted |, &&, ||, ; while preserving offsets.
func splitOperators(cmd string) []part {
	var parts []part
	inSingle := false
	inDouble := false
	escaped := false
	segStart := 0

	cut := func(i, width int) {
		parts = append(parts, part{text: cmd[segStart:i], start: segStart, end: i})
		segStart = i + width
	}

	i := 0
	for i < len(cmd) {
		ch := cmd[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && !inSingle:
			escaped = true
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case ch == ';':
			cut(i, 1)
		case ch == '|' && i+1 < len(cmd) && cmd[i+1] == '|':
			cut(i, 2)
			i++
		case ch == '|':
			cut(i, 1)
		case ch == '&' && i+1 < len(cmd) && cmd[i+1] == '&':
			cut(i, 2)
			i++
		}
		i++
	}
	if segStart < len(cmd) {
		parts = append(parts, part{text: cmd[segStart:], start: segStart, end: len(cmd)})
	}
	return parts
}

type token struct {
	text  string
	start int
}

// tokenize splits a command segment into tokens, respecting quotes and escapes.
// Quotes are preserved in the token text.
func tokenize(s string) []token {
	var tokens []token
	var current strings.Builder
	start := -1
	inSingle := false
	inDouble := false
	escaped := false

	flush := func() {
		if start >= 0 {
			tokens = append(tokens, token{text: current.String(), start: start})
			current.Reset()
			start = -1
		}
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch == ' ' || ch == '\t' || ch == '\n') && !inSingle && !inDouble && !escaped {
			flush()
			continue
		}
		if start < 0 {
			start = i
		}
		current.WriteByte(ch)
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && !inSingle:
			escaped = true
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		}
	}
	flush()
	return tokens
}
