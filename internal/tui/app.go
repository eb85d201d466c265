package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits, then stops every dev server it started.
func Run(deps Deps) error {
	m := newModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if w, err := watchStore(m.Store.Path(), p.Send, m.Logger); err != nil {
		m.Logger.Warn("store watcher disabled", "err", err)
	} else {
		defer w.Close()
	}

	_, err := p.Run()
	m.Supervisor.StopAll()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
