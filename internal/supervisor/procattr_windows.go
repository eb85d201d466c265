//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
)

func setProcAttr(cmd *exec.Cmd) {}

// terminateGroup asks taskkill to end the process tree.
func terminateGroup(pid int) {
	_ = exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func killGroup(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
