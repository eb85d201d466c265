// Package gh wraps the GitHub CLI.
package gh

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLI runs the gh binary. The zero value uses "gh" from PATH.
type CLI struct {
	Bin string
}

func (c CLI) bin() string {
	if c.Bin == "" {
		return "gh"
	}
	return c.Bin
}

func (c CLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gh %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// CheckAuth reports whether gh has a logged-in account.
func (c CLI) CheckAuth(ctx context.Context) bool {
	_, err := c.run(ctx, "auth", "status")
	return err == nil
}

// Username returns the login of the authenticated account.
func (c CLI) Username(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "api", "user", "--jq", ".login")
	if err != nil {
		return "", err
	}
	login := strings.TrimSpace(out)
	if login == "" {
		return "", fmt.Errorf("gh api user: empty login")
	}
	return login, nil
}

// RepoExists reports whether owner/name is visible to the account.
func (c CLI) RepoExists(ctx context.Context, repo string) bool {
	_, err := c.run(ctx, "repo", "view", repo)
	return err == nil
}

// CreateRepo creates a private repository.
func (c CLI) CreateRepo(ctx context.Context, repo string) error {
	_, err := c.run(ctx, "repo", "create", repo, "--private")
	return err
}

// CloneRepo clones repo into dest.
func (c CLI) CloneRepo(ctx context.Context, repo, dest string) error {
	_, err := c.run(ctx, "repo", "clone", repo, dest)
	return err
}
