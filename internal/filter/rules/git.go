package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const gitStatusMaxFiles = 20

var (
	gitAheadRe    = regexp.MustCompile(`is ahead of '([^']+)' by (\d+) commit`)
	gitBehindRe   = regexp.MustCompile(`is behind '([^']+)' by (\d+) commit`)
	gitDivergedRe = regexp.MustCompile(`have (\d+) and (\d+) different commits`)
)

// Short codes for `git status` change kinds.
var gitChangeCodes = map[string]string{
	"modified":      "M",
	"new file":      "A",
	"deleted":       "D",
	"renamed":       "R",
	"copied":        "C",
	"typechange":    "T",
	"both modified": "U",
	"both added":    "U",
	"both deleted":  "U",
}

type gitSection struct {
	name  string
	files []string
}

func condenseGitStatus(raw []byte, _ []string) ([]byte, error) {
	var (
		branch   string
		tracking []string
		clean    bool
		sections []*gitSection
		cur      *gitSection
	)
	for _, l := range lines(raw) {
		switch {
		case strings.HasPrefix(l, "On branch "):
			branch = strings.TrimPrefix(l, "On branch ")
		case strings.HasPrefix(l, "HEAD detached "):
			branch = "(" + l + ")"
		case gitAheadRe.MatchString(l):
			m := gitAheadRe.FindStringSubmatch(l)
			tracking = append(tracking, fmt.Sprintf("ahead %s of %s", m[2], m[1]))
		case gitBehindRe.MatchString(l):
			m := gitBehindRe.FindStringSubmatch(l)
			tracking = append(tracking, fmt.Sprintf("behind %s of %s", m[2], m[1]))
		case gitDivergedRe.MatchString(l):
			m := gitDivergedRe.FindStringSubmatch(l)
			tracking = append(tracking, fmt.Sprintf("diverged +%s -%s", m[1], m[2]))
		case strings.HasPrefix(l, "nothing to commit"):
			clean = true
		case strings.HasPrefix(l, "Changes to be committed:"):
			cur = &gitSection{name: "staged"}
			sections = append(sections, cur)
		case strings.HasPrefix(l, "Changes not staged for commit:"):
			cur = &gitSection{name: "modified"}
			sections = append(sections, cur)
		case strings.HasPrefix(l, "Untracked files:"):
			cur = &gitSection{name: "untracked"}
			sections = append(sections, cur)
		case strings.HasPrefix(l, "Unmerged paths:"):
			cur = &gitSection{name: "conflicts"}
			sections = append(sections, cur)
		case strings.HasPrefix(l, "\t") && cur != nil:
			cur.files = append(cur.files, gitStatusEntry(strings.TrimPrefix(l, "\t")))
		}
	}
	if branch == "" && len(sections) == 0 && !clean {
		return nil, errUnrecognized
	}

	var b strings.Builder
	if branch != "" {
		b.WriteString("branch: " + branch)
		if len(tracking) > 0 {
			b.WriteString(" (" + strings.Join(tracking, ", ") + ")")
		}
		b.WriteByte('\n')
	}
	for _, s := range sections {
		files := s.files
		extra := 0
		if len(files) > gitStatusMaxFiles {
			extra = len(files) - gitStatusMaxFiles
			files = files[:gitStatusMaxFiles]
		}
		fmt.Fprintf(&b, "%s (%d): %s", s.name, len(s.files), strings.Join(files, ", "))
		if extra > 0 {
			fmt.Fprintf(&b, ", +%d", extra)
		}
		b.WriteByte('\n')
	}
	if clean && len(sections) == 0 {
		b.WriteString("clean\n")
	}
	return []byte(b.String()), nil
}

// gitStatusEntry turns "modified:   a.go" into "M a.go"; untracked entries
// have no kind and are returned as is.
func gitStatusEntry(e string) string {
	kind, file, ok := strings.Cut(e, ":")
	if !ok {
		return strings.TrimSpace(e)
	}
	code, known := gitChangeCodes[strings.TrimSpace(kind)]
	if !known {
		return strings.TrimSpace(e)
	}
	return code + " " + strings.TrimSpace(file)
}

// condenseGitLog reduces the default `git log` format to one line per
// commit. Other formats (--oneline, --format) are declined.
func condenseGitLog(raw []byte, _ []string) ([]byte, error) {
	type commit struct {
		hash, author, subject string
	}
	var commits []*commit
	var cur *commit
	for _, l := range lines(raw) {
		switch {
		case strings.HasPrefix(l, "commit "):
			fields := strings.Fields(l)
			if len(fields) < 2 {
				continue
			}
			h := fields[1]
			if len(h) > 7 {
				h = h[:7]
			}
			cur = &commit{hash: h}
			commits = append(commits, cur)
		case cur == nil:
			continue
		case strings.HasPrefix(l, "Author:"):
			a := strings.TrimSpace(strings.TrimPrefix(l, "Author:"))
			if i := strings.Index(a, " <"); i > 0 {
				a = a[:i]
			}
			cur.author = a
		case strings.HasPrefix(l, "    ") && cur.subject == "":
			cur.subject = strings.TrimSpace(l)
		}
	}
	if len(commits) == 0 {
		return nil, errUnrecognized
	}
	var b strings.Builder
	for _, c := range commits {
		fmt.Fprintf(&b, "%s %s", c.hash, c.subject)
		if c.author != "" {
			fmt.Fprintf(&b, " (%s)", c.author)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
