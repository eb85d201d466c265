//go:build !linux

package ports

import (
	"os/exec"
	"strconv"
	"strings"
)

// ownerOf asks lsof for the listener on port. Platforms without lsof get no owner.
func ownerOf(port int) (int, string) {
	out, err := exec.Command("lsof", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-n", "-P").Output()
	if err != nil {
		return 0, ""
	}
	return parseLsof(string(out), port)
}

func parseLsof(out string, port int) (int, string) {
	suffix := ":" + strconv.Itoa(port)
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return 0, ""
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		if strings.HasSuffix(fields[8], suffix) {
			pid, _ := strconv.Atoi(fields[1])
			return pid, fields[0]
		}
	}
	return 0, ""
}
