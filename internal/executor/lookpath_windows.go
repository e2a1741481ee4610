//go:build windows

package executor

// notExecutableOnPath is always nil: Windows decides executability by
// extension, which exec.LookPath already applies.
func notExecutableOnPath(string) error {
	return nil
}
