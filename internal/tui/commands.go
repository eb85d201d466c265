package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/ports"
	"github.com/zpdzap/devdeck/internal/scanner"
	"github.com/zpdzap/devdeck/internal/supervisor"
	"github.com/zpdzap/devdeck/internal/syncrepo"
)

const (
	syncTimeout     = 30 * time.Second
	cloneTimeout    = 5 * time.Minute
	portScanTimeout = 2 * time.Second
	// portSettle gives a freshly started server time to bind before rescanning.
	portSettle = 1500 * time.Millisecond
)

// Command represents a parsed slash command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a slash command string into a Command.
// Returns nil if the input is not a valid command.
func ParseCommand(input string) *Command {
	input = strings.TrimSpace(input)
	if input == "" || input[0] != '/' {
		return nil
	}

	parts := strings.Fields(input)
	return &Command{
		Name: parts[0],
		Args: parts[1:],
	}
}

func scanPortsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), portScanTimeout)
		defer cancel()
		return portsScannedMsg(ports.Scan(ctx))
	}
}

func delayedPortScanCmd() tea.Cmd {
	return tea.Tick(portSettle, func(time.Time) tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), portScanTimeout)
		defer cancel()
		return portsScannedMsg(ports.Scan(ctx))
	})
}

func stopCmd(sup *supervisor.Supervisor, name string) tea.Cmd {
	return func() tea.Msg {
		sup.Stop(name)
		return processStoppedMsg{name: name}
	}
}

func pushCmd(repo *syncrepo.Repo, message string) tea.Cmd {
	if repo == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		return syncPushedMsg{err: repo.Push(ctx, message)}
	}
}

func refreshCmd(repo *syncrepo.Repo) tea.Cmd {
	return func() tea.Msg {
		if repo == nil || !repo.Initialized() {
			return refreshedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		return refreshedMsg{err: repo.Pull(ctx)}
	}
}

func inspectCmd(path string) tea.Cmd {
	return func() tea.Msg {
		return repoInspectedMsg{repo: scanner.Inspect(path)}
	}
}

func cloneCmd(name, url, dest string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cloneTimeout)
		defer cancel()
		return clonedMsg{name: name, path: dest, err: gitstatus.Clone(ctx, url, dest)}
	}
}

// fetchCmd refreshes remote-tracking refs so ahead/behind counts are current.
func fetchCmd(path string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fetchedMsg{path: path, err: gitstatus.Fetch(ctx, path)}
	}
}
