//go:build windows

package executor

import "os"

// signalOf always reports false: Windows processes end with an exit code,
// including when terminated externally.
func signalOf(ps *os.ProcessState) (signalInfo, bool) {
	return signalInfo{}, false
}
