//go:build !windows

package executor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// notExecutableOnPath returns an fs.ErrPermission error when name is a bare
// command that exists on PATH but is not executable. exec.LookPath reports
// that case as not found.
func notExecutableOnPath(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return nil
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			return fmt.Errorf("%s: %w", p, fs.ErrPermission)
		}
	}
	return nil
}
