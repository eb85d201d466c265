package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/devdeck/internal/ports"
	"github.com/zpdzap/devdeck/internal/scanner"
)

// tickMsg drives worker polling, reaping and port rescans.
type tickMsg time.Time

// portsScannedMsg carries the result of a background port scan.
type portsScannedMsg []ports.Info

// processStoppedMsg is sent once Stop has reaped the child.
type processStoppedMsg struct {
	name string
}

// syncPushedMsg reports the outcome of a background push.
type syncPushedMsg struct {
	err error
}

// refreshedMsg is sent after a full refresh pulled the sync repo.
type refreshedMsg struct {
	err error
}

// storeChangedMsg is sent by the file watcher when projects.toml changes on disk.
type storeChangedMsg struct{}

// repoInspectedMsg carries a repository looked up for /add.
type repoInspectedMsg struct {
	repo scanner.Repo
}

// clonedMsg reports a clone of a synced project into the install directory.
type clonedMsg struct {
	name string
	path string
	err  error
}

// fetchedMsg is sent once a fetch before a run has finished.
type fetchedMsg struct {
	path string
	err  error
}

type confirmDeleteExpiredMsg struct{}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
