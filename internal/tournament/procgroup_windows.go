//go:build windows

package tournament

import "os/exec"

// setupProcessGroup is a no-op on Windows; context cancellation still kills
// the judge process itself.
func setupProcessGroup(_ *exec.Cmd) {}
