//go:build windows

package verification

import "os/exec"

// configureProcess keeps the default cancellation, which kills the direct
// child only.
func configureProcess(cmd *exec.Cmd) {}

func reapProcessGroup(cmd *exec.Cmd) {}
