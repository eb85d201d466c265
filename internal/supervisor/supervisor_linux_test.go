package supervisor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
)

// alive reports whether pid exists and is not a zombie.
func alive(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	stat := string(b)
	i := strings.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		return false
	}
	state := stat[i+2]
	return state != 'Z' && state != 'X'
}

func TestReapKillsLeftoverDescendants(t *testing.T) {
	tests := []struct {
		name string
		reap func(t *testing.T, s *Supervisor, name string)
	}{
		{"IsRunning", func(t *testing.T, s *Supervisor, name string) {
			waitFor(t, name+" reaped", func() bool { return !s.IsRunning(name) })
		}},
		{"ReapDead", func(t *testing.T, s *Supervisor, name string) {
			waitFor(t, name+" reaped", func() bool { return len(s.ReapDead()) == 1 })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			script := filepath.Join(dir, "detach.sh")
			body := "#!/bin/sh\nsleep 30 &\necho $!\n"
			if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
				t.Fatalf("write script: %v", err)
			}

			s := New()
			if err := s.Start("detach", dir, script, 0); err != nil {
				t.Fatalf("Start: %v", err)
			}

			var child int
			waitFor(t, "child pid", func() bool {
				for _, line := range s.Output("detach") {
					if pid, err := strconv.Atoi(line); err == nil {
						child = pid
						return true
					}
				}
				return false
			})
			t.Cleanup(func() { _ = syscall.Kill(child, syscall.SIGKILL) })

			tt.reap(t, s, "detach")
			waitFor(t, "background child to die", func() bool { return !alive(child) })
		})
	}
}
