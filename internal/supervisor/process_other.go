//go:build !unix

package supervisor

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func terminateProcess(cmd *exec.Cmd, pid int, waitCh <-chan error) {
	_ = cmd.Process.Kill()
}
