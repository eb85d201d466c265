// Package scanner finds existing git checkouts under the usual project directories.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zpdzap/devdeck/internal/gitstatus"
)

// Roots are the directories under home that are searched, one level deep.
var Roots = []string{
	"projects", "Projects",
	"dev", "Dev",
	"code", "Code",
	"src",
	filepath.Join("Documents", "Projects"),
	filepath.Join("Documents", "projects"),
}

const remoteTimeout = 5 * time.Second

// Repo is a checkout found by Scan.
type Repo struct {
	Path      string
	Name      string
	RemoteURL string
}

// Scan returns the git repositories directly under each root in home and
// under every extra directory, deduplicated and sorted by path.
func Scan(home string, extra ...string) []Repo {
	dirs := make([]string, 0, len(Roots)+len(extra))
	for _, root := range Roots {
		dirs = append(dirs, filepath.Join(home, root))
	}
	dirs = append(dirs, extra...)

	seen := make(map[string]bool)
	var repos []Repo
	for _, dir := range dirs {
		for _, r := range scanDir(dir) {
			// A symlinked root can list the same checkout twice.
			key := r.Path
			if real, err := filepath.EvalSymlinks(r.Path); err == nil {
				key = real
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			repos = append(repos, r)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Path < repos[j].Path })
	return repos
}

func scanDir(dir string) []Repo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var repos []Repo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !gitstatus.IsRepo(path) {
			continue
		}
		repos = append(repos, Inspect(path))
	}
	return repos
}

// Inspect describes the checkout at path: its directory name and origin URL.
func Inspect(path string) Repo {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	return Repo{
		Path:      path,
		Name:      filepath.Base(path),
		RemoteURL: gitstatus.RemoteURL(ctx, path),
	}
}
