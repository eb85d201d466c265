//go:build linux

package ports

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ownerOf maps the port to a socket inode via /proc/net/tcp, then finds the
// process holding that inode among /proc/<pid>/fd.
func ownerOf(port int) (int, string) {
	var inode string
	for _, table := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(table)
		if err != nil {
			continue
		}
		if inode = listeningInode(string(data), port); inode != "" {
			break
		}
	}
	if inode == "" {
		return 0, ""
	}
	target := "socket:[" + inode + "]"

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, ""
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err == nil && link == target {
				comm, _ := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
				return pid, strings.TrimSpace(string(comm))
			}
		}
	}
	return 0, ""
}

// listeningInode finds the inode column for port in a /proc/net/tcp table.
func listeningInode(table string, port int) string {
	want := fmt.Sprintf("%04X", port)
	lines := strings.Split(table, "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		_, localPort, ok := strings.Cut(fields[1], ":")
		if !ok || localPort != want {
			continue
		}
		// 0A is TCP_LISTEN.
		if fields[3] != "0A" {
			continue
		}
		return fields[9]
	}
	return ""
}
