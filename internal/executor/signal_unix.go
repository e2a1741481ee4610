//go:build !windows

package executor

import (
	"os"
	"syscall"
)

// signalOf reports the signal that terminated the process, if any.
func signalOf(ps *os.ProcessState) (signalInfo, bool) {
	if ps == nil {
		return signalInfo{}, false
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return signalInfo{}, false
	}
	sig := ws.Signal()
	return signalInfo{name: sig.String(), num: int(sig)}, true
}
