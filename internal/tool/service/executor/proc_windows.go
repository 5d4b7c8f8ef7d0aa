//go:build windows

package executor

import (
	"os"
	"os/exec"
)

func shellArgv(command string) []string {
	return []string{"cmd", "/C", command}
}

func prepare(cmd *exec.Cmd) {}

func interrupt(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(os.Interrupt)
}

func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
