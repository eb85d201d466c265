// Package syncrepo keeps the project store in a private GitHub repository
// cloned under the devdeck data directory.
package syncrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zpdzap/devdeck/internal/store"
)

// RepoName is the name of the sync repository under the user's account.
const RepoName = "devdeck-sync"

const (
	branch    = "main"
	readme    = "# devdeck sync\n\nProject list shared between machines by devdeck.\n"
	waitDelay = time.Second
)

// ErrNotInitialized is returned when the sync directory has not been cloned yet.
var ErrNotInitialized = errors.New("sync directory not initialized")

// GitHub is the subset of the gh CLI that Init needs.
type GitHub interface {
	Username(ctx context.Context) (string, error)
	RepoExists(ctx context.Context, repo string) bool
	CreateRepo(ctx context.Context, repo string) error
	CloneRepo(ctx context.Context, repo, dest string) error
}

// Repo is the local clone of the sync repository.
type Repo struct {
	dir    string
	logger *log.Logger

	// Background pushes from the dashboard may overlap.
	mu sync.Mutex
}

func New(dir string, logger *log.Logger) *Repo {
	if logger == nil {
		logger = log.Default()
	}
	return &Repo{dir: dir, logger: logger}
}

// Dir is the clone's path.
func (r *Repo) Dir() string { return r.dir }

// StorePath is the project store file inside the clone.
func (r *Repo) StorePath() string { return filepath.Join(r.dir, store.FileName) }

// Initialized reports whether the clone exists.
func (r *Repo) Initialized() bool {
	_, err := os.Stat(filepath.Join(r.dir, ".git"))
	return err == nil
}

// Init clones <user>/devdeck-sync, creating it first when it does not exist.
// An existing clone is pulled instead.
func (r *Repo) Init(ctx context.Context, hub GitHub) error {
	if r.Initialized() {
		r.logger.Info("sync directory exists, pulling", "dir", r.dir)
		return r.Pull(ctx)
	}

	user, err := hub.Username(ctx)
	if err != nil {
		return fmt.Errorf("resolve github user: %w", err)
	}
	full := user + "/" + RepoName

	if hub.RepoExists(ctx, full) {
		r.logger.Info("cloning sync repo", "repo", full)
		return hub.CloneRepo(ctx, full, r.dir)
	}

	r.logger.Info("creating sync repo", "repo", full)
	if err := hub.CreateRepo(ctx, full); err != nil {
		return err
	}
	if err := hub.CloneRepo(ctx, full, r.dir); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(r.dir, "README.md"), []byte(readme), 0o644); err != nil {
		return fmt.Errorf("write README: %w", err)
	}
	if err := r.git(ctx, "add", "README.md"); err != nil {
		return err
	}
	if err := r.git(ctx, "commit", "-m", "Initial commit"); err != nil {
		return err
	}
	return r.git(ctx, "push", "-u", "origin", "HEAD:"+branch)
}

// Pull rebases local commits onto the remote main branch.
func (r *Repo) Pull(ctx context.Context) error {
	if !r.Initialized() {
		return ErrNotInitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.git(ctx, "pull", "--rebase", "origin", branch)
}

// Push commits the project store if it changed and pushes it. A rejected push
// is retried once after rebasing onto the remote.
func (r *Repo) Push(ctx context.Context, message string) error {
	if !r.Initialized() {
		return ErrNotInitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.git(ctx, "add", store.FileName); err != nil {
		return err
	}
	changed, err := r.hasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !changed {
		r.logger.Debug("sync push skipped, nothing staged")
		return nil
	}
	if err := r.git(ctx, "commit", "-m", message); err != nil {
		return err
	}

	if err := r.git(ctx, "push", "origin", "HEAD:"+branch); err != nil {
		r.logger.Warn("sync push rejected, rebasing", "err", err)
		if err := r.git(ctx, "pull", "--rebase", "origin", branch); err != nil {
			return err
		}
		return r.git(ctx, "push", "origin", "HEAD:"+branch)
	}
	return nil
}

func (r *Repo) hasStagedChanges(ctx context.Context) (bool, error) {
	cmd := r.command(ctx, "diff", "--cached", "--quiet")
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}

func (r *Repo) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.WaitDelay = waitDelay
	return cmd
}

func (r *Repo) git(ctx context.Context, args ...string) error {
	out, err := r.command(ctx, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return nil
}
