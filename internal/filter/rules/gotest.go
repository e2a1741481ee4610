package rules

import (
	"fmt"
	"strings"
)

const goTestMaxBlock = 20

// condenseGoTest keeps failing tests with their indented output, panics and
// compiler errors, and replaces passing noise with a package summary.
// `go test -json` output is declined.
func condenseGoTest(raw []byte, _ []string) ([]byte, error) {
	var (
		kept        []string
		failedPkgs  []string
		ok, noTests int
		capturing   bool
		captured    int
	)
	for _, l := range lines(raw) {
		if strings.HasPrefix(l, "{") {
			return nil, errUnrecognized
		}
		if capturing {
			if strings.HasPrefix(l, "    ") || strings.HasPrefix(l, "\t") || (l != "" && l[0] == ' ') {
				if captured < goTestMaxBlock {
					kept = append(kept, l)
				} else if captured == goTestMaxBlock {
					kept = append(kept, "    ...")
				}
				captured++
				continue
			}
			capturing = false
		}

		switch {
		case strings.HasPrefix(l, "ok ") || strings.HasPrefix(l, "ok\t"):
			ok++
		case strings.HasPrefix(l, "?"):
			noTests++
		case strings.HasPrefix(l, "FAIL\t") || strings.HasPrefix(l, "FAIL "):
			if f := strings.Fields(l); len(f) >= 2 {
				failedPkgs = append(failedPkgs, f[1])
			}
		case strings.HasPrefix(l, "--- FAIL:"), strings.HasPrefix(l, "panic:"):
			kept = append(kept, l)
			capturing, captured = true, 0
		case strings.HasPrefix(l, "# "), strings.Contains(l, ".go:"):
			kept = append(kept, l)
		}
	}
	if ok+noTests+len(failedPkgs) == 0 && len(kept) == 0 {
		return nil, errUnrecognized
	}

	var b strings.Builder
	for _, l := range kept {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "go test: %d ok, %d failed", ok, len(failedPkgs))
	if noTests > 0 {
		fmt.Fprintf(&b, ", %d without tests", noTests)
	}
	b.WriteByte('\n')
	for _, p := range failedPkgs {
		fmt.Fprintf(&b, "FAIL %s\n", p)
	}
	return []byte(b.String()), nil
}
