package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// condenseLsLong rewrites `ls -l` rows as "name (size)" and "dir/".
// Short listings are already compact and are declined.
func condenseLsLong(raw []byte, _ []string) ([]byte, error) {
	var dirs, files []string
	rows := 0
	for _, l := range lines(raw) {
		if l == "" || strings.HasPrefix(l, "total ") {
			continue
		}
		f := strings.Fields(l)
		if len(f) < 9 || !isModeString(f[0]) {
			// Directory headers ("src:") appear when listing several paths.
			if strings.HasSuffix(l, ":") {
				files = append(files, l)
				continue
			}
			return nil, errUnrecognized
		}
		name := strings.Join(f[8:], " ")
		if name == "." || name == ".." {
			continue
		}
		rows++
		switch f[0][0] {
		case 'd':
			dirs = append(dirs, name+"/")
		case 'l':
			files = append(files, name)
		default:
			size, err := strconv.ParseUint(f[4], 10, 64)
			if err != nil {
				files = append(files, name)
				continue
			}
			files = append(files, fmt.Sprintf("%s (%s)", name, humanize.Bytes(size)))
		}
	}
	if rows == 0 {
		return nil, errUnrecognized
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d dirs, %d files\n", len(dirs), rows-len(dirs))
	for _, d := range dirs {
		b.WriteString(d + "\n")
	}
	for _, f := range files {
		b.WriteString(f + "\n")
	}
	return []byte(b.String()), nil
}

// isModeString matches permission strings like "-rw-r--r--" or
// "drwxr-xr-x@".
func isModeString(s string) bool {
	if len(s) < 10 {
		return false
	}
	if !strings.ContainsRune("-dlcbps", rune(s[0])) {
		return false
	}
	for _, c := range s[1:10] {
		if !strings.ContainsRune("rwxsStT-", c) {
			return false
		}
	}
	return true
}
