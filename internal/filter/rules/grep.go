package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	grepMaxLineLen  = 80
	grepPerFile     = 10
	grepMaxResults  = 50
	grepPathCompact = 50
)

// grep/rg flags that consume the next argument.
var grepValueFlags = map[string]bool{
	"-A": true, "-B": true, "-C": true, "-m": true, "-f": true,
	"-g": true, "-t": true, "-T": true, "-M": true, "-j": true,
	"--glob": true, "--type": true, "--max-count": true, "--context": true,
	"--after-context": true, "--before-context": true, "--file": true,
}

type grepMatch struct {
	line    int
	content string
}

// grepPattern finds the search pattern: an explicit -e value, or the first
// positional argument.
func grepPattern(args []string) string {
	for i, a := range args {
		if (a == "-e" || a == "--regexp") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--regexp="); ok {
			return v
		}
	}
	if pos := positional(args, grepValueFlags); len(pos) > 0 {
		return pos[0]
	}
	return ""
}

// grepTarget returns the single path being searched, or "" when there are
// several paths or none.
func grepTarget(args []string) string {
	explicit := false
	for _, a := range args {
		if a == "-e" || a == "--regexp" || a == "-f" || a == "--file" ||
			strings.HasPrefix(a, "--regexp=") || strings.HasPrefix(a, "--file=") {
			explicit = true
			break
		}
	}
	flags := grepValueFlags
	if explicit {
		flags = make(map[string]bool, len(grepValueFlags)+2)
		for k := range grepValueFlags {
			flags[k] = true
		}
		flags["-e"], flags["--regexp"] = true, true
	}
	paths := positional(args, flags)
	if !explicit && len(paths) > 0 {
		paths = paths[1:]
	}
	if len(paths) != 1 || paths[0] == "-" {
		return ""
	}
	return paths[0]
}

// parseGrepLine understands "file:line:content", "line:content",
// "file:content" and bare content. When a single target was searched, output
// without that file prefix belongs to the target.
func parseGrepLine(l, target string) (file string, line int, content string) {
	parts := strings.SplitN(l, ":", 3)
	if target != "" && len(parts) > 1 && !ownedBy(parts[0], target) {
		if n, err := strconv.Atoi(parts[0]); err == nil {
			return target, n, l[len(parts[0])+1:]
		}
		return target, 0, l
	}
	switch len(parts) {
	case 3:
		if n, err := strconv.Atoi(parts[1]); err == nil {
			return parts[0], n, parts[2]
		}
		return parts[0], 0, parts[1] + ":" + parts[2]
	case 2:
		if n, err := strconv.Atoi(parts[0]); err == nil {
			return "", n, parts[1]
		}
		return parts[0], 0, parts[1]
	}
	if target != "" {
		return target, 0, l
	}
	return "", 0, l
}

// ownedBy reports whether file is target itself or lies beneath it.
func ownedBy(file, target string) bool {
	return file == target || strings.HasPrefix(file, strings.TrimSuffix(target, "/")+"/")
}

func condenseGrep(raw []byte, args []string) ([]byte, error) {
	pattern := grepPattern(args)
	target := grepTarget(args)
	ls := lines(raw)
	if strings.TrimSpace(string(raw)) == "" {
		return []byte(fmt.Sprintf("0 for '%s'\n", pattern)), nil
	}

	byFile := make(map[string][]grepMatch)
	total := 0
	for _, l := range ls {
		if l == "" || l == "--" {
			continue
		}
		file, n, content := parseGrepLine(l, target)
		byFile[file] = append(byFile[file], grepMatch{line: n, content: cleanGrepLine(content, grepMaxLineLen, pattern)})
		total++
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var b strings.Builder
	fmt.Fprintf(&b, "%d in %dF:\n\n", total, len(files))
	shown := 0
	for _, f := range files {
		if shown >= grepMaxResults {
			break
		}
		matches := byFile[f]
		name := compactPath(f)
		if name == "" {
			name = "(input)"
		}
		fmt.Fprintf(&b, "%s (%d):\n", name, len(matches))
		for i, m := range matches {
			if i >= grepPerFile || shown >= grepMaxResults {
				break
			}
			if m.line > 0 {
				fmt.Fprintf(&b, "  %4d: %s\n", m.line, m.content)
			} else {
				fmt.Fprintf(&b, "  %s\n", m.content)
			}
			shown++
		}
		if len(matches) > grepPerFile {
			fmt.Fprintf(&b, "  +%d\n", len(matches)-grepPerFile)
		}
		b.WriteByte('\n')
	}
	if total > shown {
		fmt.Fprintf(&b, "... +%d\n", total-shown)
	}
	return []byte(b.String()), nil
}

// cleanGrepLine trims the line and, when it is longer than maxLen runes,
// keeps a window around the first case-insensitive occurrence of pattern.
func cleanGrepLine(line string, maxLen int, pattern string) string {
	trimmed := strings.TrimSpace(line)
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	runes := []rune(trimmed)
	pos := -1
	if pattern != "" {
		lower := []rune(strings.ToLower(trimmed))
		if idx := strings.Index(string(lower), strings.ToLower(pattern)); idx >= 0 && len(lower) == len(runes) {
			pos = utf8.RuneCountInString(string(lower)[:idx])
		}
	}
	if pos < 0 {
		return string(runes[:maxLen-3]) + "..."
	}

	start := pos - maxLen/3
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end >= len(runes) {
		end = len(runes)
		start = end - maxLen
	}
	slice := string(runes[start:end])
	switch {
	case start > 0 && end < len(runes):
		return "..." + slice + "..."
	case start > 0:
		return "..." + slice
	default:
		return slice + "..."
	}
}

// compactPath shortens long paths to first/.../parent/file.
func compactPath(path string) string {
	if len(path) <= grepPathCompact {
		return path
	}
	parts := strings.Split(path, "/")
	if len(parts) <= 3 {
		return path
	}
	return parts[0] + "/.../" + parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
