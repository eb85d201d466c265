// Package gitstatus reads working-tree status by shelling out to the git binary.
package gitstatus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNotRepository is returned when the path has no .git entry.
var ErrNotRepository = errors.New("not a git repository")

// waitDelay bounds how long Wait blocks on inherited pipes after git is killed.
const waitDelay = time.Second

// Status summarizes a working tree relative to its index and upstream.
type Status struct {
	Branch    string `json:"branch"`
	Staged    int    `json:"staged"`
	Modified  int    `json:"modified"`
	Untracked int    `json:"untracked"`
	Ahead     int    `json:"ahead"`
	Behind    int    `json:"behind"`
}

// Clean reports whether there is nothing staged, modified or untracked.
func (s *Status) Clean() bool {
	return s.Staged == 0 && s.Modified == 0 && s.Untracked == 0
}

// IsRepo reports whether path contains a .git directory or file (worktrees use a file).
func IsRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// Get returns the status of the repository at path. Ahead/behind stay zero
// when the branch has no upstream. Every git invocation is bound to ctx.
func Get(ctx context.Context, path string) (*Status, error) {
	if !IsRepo(path) {
		return nil, ErrNotRepository
	}

	var st Status

	out, err := run(ctx, path, "branch", "--show-current")
	if err != nil {
		return nil, err
	}
	st.Branch = strings.TrimSpace(out)
	if st.Branch == "" {
		st.Branch = "HEAD"
	}

	out, err = run(ctx, path, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	st.Staged, st.Modified, st.Untracked = parsePorcelain(out)

	// No upstream is not an error.
	if out, err := run(ctx, path, "rev-list", "--left-right", "--count", "@{u}...HEAD"); err == nil {
		st.Behind, st.Ahead = parseLeftRight(out)
	}

	return &st, nil
}

// RemoteURL returns the URL of the origin remote, or "" if there is none.
func RemoteURL(ctx context.Context, path string) string {
	out, err := run(ctx, path, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Fetch runs `git fetch --all --prune` in path.
func Fetch(ctx context.Context, path string) error {
	_, err := run(ctx, path, "fetch", "--all", "--prune")
	return err
}

// Clone runs `git clone url dest`, creating dest's parent if needed.
func Clone(ctx context.Context, url, dest string) error {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	_, err := run(ctx, parent, "clone", "--quiet", url, dest)
	return err
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), ctxErr)
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// parsePorcelain counts entries from `git status --porcelain` (v1) output.
// The first column is the index state, the second the worktree state.
func parsePorcelain(out string) (staged, modified, untracked int) {
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 2 {
			continue
		}
		index, worktree := line[0], line[1]
		if index != ' ' && index != '?' {
			staged++
		}
		if worktree == 'M' || worktree == 'D' {
			modified++
		}
		if index == '?' {
			untracked++
		}
	}
	return staged, modified, untracked
}

// parseLeftRight parses "<behind>\t<ahead>" from rev-list --left-right --count.
func parseLeftRight(out string) (behind, ahead int) {
	parts := strings.Fields(out)
	if len(parts) != 2 {
		return 0, 0
	}
	behind, _ = strconv.Atoi(parts[0])
	ahead, _ = strconv.Atoi(parts[1])
	return behind, ahead
}
