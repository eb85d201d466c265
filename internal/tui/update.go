package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/ports"
	"github.com/zpdzap/devdeck/internal/store"
	"github.com/zpdzap/devdeck/internal/supervisor"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6 // account for "  > /" prefix
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case portsScannedMsg:
		m.openPorts = []ports.Info(msg)
		m.lastPortScan = time.Now()
		m.scanningPorts = false
		return m, nil

	case processStoppedMsg:
		m.setMessage(fmt.Sprintf("Stopped %s", msg.name))
		return m, scanPortsCmd()

	case syncPushedMsg:
		if msg.err != nil {
			m.Logger.Warn("sync push failed", "err", msg.err)
			m.setError(fmt.Sprintf("Sync failed: %v", msg.err))
		}
		return m, nil

	case refreshedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.Logger.Warn("sync pull failed", "err", msg.err)
			m.setError(fmt.Sprintf("Sync pull failed: %v", msg.err))
		} else {
			m.setMessage("Refreshed")
		}
		if err := m.Store.Reload(); err != nil {
			m.setError(fmt.Sprintf("Reload failed: %v", err))
		}
		m.reloadProjects()
		m.Worker.InvalidateAll()
		m.requested = make(map[string]time.Time)
		m.requestStale(time.Now())
		return m, scanPortsCmd()

	case storeChangedMsg:
		if err := m.Store.Reload(); err != nil {
			m.Logger.Warn("store reload failed", "err", err)
			return m, nil
		}
		m.reloadProjects()
		return m, nil

	case repoInspectedMsg:
		return m.addRepo(msg.repo.Name, msg.repo.RemoteURL, msg.repo.Path)

	case clonedMsg:
		if msg.err != nil {
			m.Logger.Warn("clone failed", "name", msg.name, "err", msg.err)
			m.setError(fmt.Sprintf("Clone failed: %v", msg.err))
			return m, nil
		}
		return m.linkLocation(msg.name, msg.path)

	case fetchedMsg:
		if msg.err != nil {
			m.Logger.Debug("fetch failed", "path", msg.path, "err", msg.err)
			return m, nil
		}
		m.requested[msg.path] = time.Now()
		m.Worker.Request(msg.path)
		return m, nil

	case confirmDeleteExpiredMsg:
		m.confirmDelete = false
		m.confirmDeleteName = ""
		return m, nil

	case tea.KeyMsg:
		if m.commanding {
			return m.handleCommandMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	// Forward to input if in command mode
	if m.commanding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	m.Worker.Poll()
	for _, name := range m.Supervisor.ReapDead() {
		m.setMessage(fmt.Sprintf("%s exited", name))
	}
	m.requestStale(now)

	cmds := []tea.Cmd{tickCmd(m.Config.TickDuration())}
	if !m.scanningPorts && now.Sub(m.lastPortScan) >= m.Config.PortScanEveryDuration() {
		m.scanningPorts = true
		cmds = append(cmds, scanPortsCmd())
	}
	return m, tea.Batch(cmds...)
}

// requestStale queues a probe for every local project whose entry is stale
// and that has not been queued within the stale window.
func (m *model) requestStale(now time.Time) {
	window := m.Config.StaleAfterDuration()
	for _, p := range m.projects {
		path := m.localPath(p)
		if path == "" || !m.Worker.IsStale(path) {
			continue
		}
		if at, ok := m.requested[path]; ok && now.Sub(at) < window {
			continue
		}
		m.requested[path] = now
		m.Worker.Request(path)
	}
}

// handleNormalMode handles keys when navigating the project list.
func (m model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dismiss help modal
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		case "ctrl+c", "q":
			return m.quit()
		}
		return m, nil
	}

	// If confirming a delete, second d confirms, anything else cancels
	if m.confirmDelete {
		m.confirmDelete = false
		name := m.confirmDeleteName
		m.confirmDeleteName = ""
		if msg.String() == "d" {
			return m.deleteProject(name)
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m.quit()

	case "/":
		m.commanding = true
		m.input.Focus()
		m.input.SetValue("")
		return m, textinput.Blink

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		} else if len(m.projects) > 0 {
			m.cursor = len(m.projects) - 1
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.projects)-1 {
			m.cursor++
		}
		return m, nil

	case "r":
		return m.runSelected()

	case "x":
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !m.Supervisor.IsRunning(p.Name) {
			m.setError(fmt.Sprintf("%s is not running", p.Name))
			return m, nil
		}
		m.setMessage(fmt.Sprintf("Stopping %s...", p.Name))
		return m, stopCmd(m.Supervisor, p.Name)

	case "g":
		return m.cloneSelected()

	case "l":
		m.showLogs = !m.showLogs
		return m, nil

	case "f5", "R":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		m.setMessage("Refreshing...")
		return m, refreshCmd(m.Sync)

	case "y":
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		path := m.localPath(p)
		if path == "" {
			m.setError(fmt.Sprintf("%s has no path on this machine", p.Name))
			return m, nil
		}
		if err := clipboard.WriteAll(path); err != nil {
			m.setError(fmt.Sprintf("Copy failed: %v", err))
			return m, nil
		}
		m.setMessage(fmt.Sprintf("Copied %s", path))
		return m, nil

	case "d":
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.confirmDelete = true
		m.confirmDeleteName = p.Name
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
			return confirmDeleteExpiredMsg{}
		})
	}

	return m, nil
}

// handleCommandMode handles keys when the command input is active.
func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()

	case "esc":
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		m.commanding = false
		m.input.Blur()
		return m.processInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) processInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	// Allow commands with or without the / prefix
	if input[0] != '/' {
		input = "/" + input
	}
	cmd := ParseCommand(input)
	if cmd == nil {
		return m, nil
	}

	switch cmd.Name {
	case "/add":
		if len(cmd.Args) < 1 {
			m.setError("Usage: /add <path>")
			return m, nil
		}
		path, err := absDir(strings.Join(cmd.Args, " "))
		if err != nil {
			m.setError(err.Error())
			return m, nil
		}
		if !gitstatus.IsRepo(path) {
			m.setError(fmt.Sprintf("%s is not a git repository", path))
			return m, nil
		}
		m.setMessage(fmt.Sprintf("Adding %s...", filepath.Base(path)))
		return m, inspectCmd(path)

	case "/path":
		p, ok := m.selected()
		if !ok {
			m.setError("No project selected")
			return m, nil
		}
		if len(cmd.Args) < 1 {
			m.setError("Usage: /path <dir>")
			return m, nil
		}
		path, err := absDir(strings.Join(cmd.Args, " "))
		if err != nil {
			m.setError(err.Error())
			return m, nil
		}
		if err := m.Store.SetLocation(p.Name, m.MachineID, path); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		m.setMessage(fmt.Sprintf("%s now at %s", p.Name, path))
		return m.persist(fmt.Sprintf("Set path for %s", p.Name))

	case "/cmd":
		p, ok := m.selected()
		if !ok {
			m.setError("No project selected")
			return m, nil
		}
		command := strings.Join(cmd.Args, " ")
		if err := m.Store.SetRunCommand(p.Name, m.MachineID, command); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		if command == "" {
			m.setMessage(fmt.Sprintf("Cleared run command for %s", p.Name))
		} else {
			m.setMessage(fmt.Sprintf("Run command for %s: %s", p.Name, command))
		}
		return m.persist(fmt.Sprintf("Set run command for %s", p.Name))

	case "/clone":
		return m.cloneSelected()

	case "/rm":
		p, ok := m.selected()
		if !ok {
			m.setError("No project selected")
			return m, nil
		}
		return m.deleteProject(p.Name)

	case "/quit":
		return m.quit()

	default:
		m.setError(fmt.Sprintf("Unknown command: %s", strings.TrimPrefix(cmd.Name, "/")))
		return m, nil
	}
}

// runCommand resolves what r would launch for p: the per-machine override,
// else the detected command.
func (m model) runCommand(p store.Project) (string, *config.Detection) {
	det, _ := m.Worker.Detection(m.localPath(p))
	if loc, ok := p.Locations[m.MachineID]; ok && loc.RunCommand != "" {
		return loc.RunCommand, det
	}
	if det != nil {
		return det.RunCommand, det
	}
	return "", nil
}

func (m model) runSelected() (tea.Model, tea.Cmd) {
	p, ok := m.selected()
	if !ok {
		return m, nil
	}
	path := m.localPath(p)
	if path == "" {
		m.setError(fmt.Sprintf("%s has no path on this machine (use /path <dir>)", p.Name))
		return m, nil
	}
	if m.Supervisor.IsRunning(p.Name) {
		m.setError(fmt.Sprintf("%s is already running", p.Name))
		return m, nil
	}

	command, det := m.runCommand(p)
	if command == "" {
		m.setError(fmt.Sprintf("No run command for %s (use /cmd <command>)", p.Name))
		return m, nil
	}

	port := 0
	if det != nil && det.IsJavaScript() {
		if free, ok := ports.FindAvailable(); ok {
			port = free
		}
	}

	if err := m.Supervisor.Start(p.Name, path, command, port); err != nil {
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			m.setError(fmt.Sprintf("%s is already running", p.Name))
		} else {
			m.setError(fmt.Sprintf("Start failed: %v", err))
		}
		return m, nil
	}

	if port > 0 {
		m.setMessage(fmt.Sprintf("Started %s: %s on :%d", p.Name, command, port))
	} else {
		m.setMessage(fmt.Sprintf("Started %s: %s", p.Name, command))
	}
	cmds := []tea.Cmd{delayedPortScanCmd()}
	if gitstatus.IsRepo(path) {
		cmds = append(cmds, fetchCmd(path, m.Config.GitTimeoutDuration()))
	}
	return m, tea.Batch(cmds...)
}

// cloneSelected clones a project synced from another machine into
// install_dir/<name>. An existing repository at the destination is linked
// without cloning.
func (m model) cloneSelected() (tea.Model, tea.Cmd) {
	p, ok := m.selected()
	if !ok {
		m.setError("No project selected")
		return m, nil
	}
	if path := m.localPath(p); path != "" {
		m.setError(fmt.Sprintf("%s is already at %s", p.Name, path))
		return m, nil
	}
	if p.RepoURL == "" {
		m.setError(fmt.Sprintf("%s has no remote to clone from", p.Name))
		return m, nil
	}
	install, ok := m.Config.InstallDirPath()
	if !ok {
		m.setError("Set install_dir in config.yaml to clone projects")
		return m, nil
	}

	dest := filepath.Join(install, p.Name)
	if _, err := os.Stat(dest); err == nil {
		if !gitstatus.IsRepo(dest) {
			m.setError(fmt.Sprintf("%s exists and is not a git repository", dest))
			return m, nil
		}
		return m.linkLocation(p.Name, dest)
	}

	m.setMessage(fmt.Sprintf("Cloning %s into %s...", p.Name, dest))
	return m, cloneCmd(p.Name, p.RepoURL, dest)
}

// linkLocation records path as name's location on this machine and pushes.
func (m model) linkLocation(name, path string) (tea.Model, tea.Cmd) {
	if err := m.Store.SetLocation(name, m.MachineID, path); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	m.setMessage(fmt.Sprintf("%s now at %s", name, path))
	return m.persist(fmt.Sprintf("Clone %s on %s", name, m.MachineID))
}

func (m model) addRepo(name, remote, path string) (tea.Model, tea.Cmd) {
	if err := m.Store.Add(name, remote); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			m.setError(fmt.Sprintf("%s is already in the list", name))
		} else {
			m.setError(err.Error())
		}
		return m, nil
	}
	if err := m.Store.SetLocation(name, m.MachineID, path); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	m.setMessage(fmt.Sprintf("Added %s", name))
	return m.persist(fmt.Sprintf("Add %s", name))
}

func (m model) deleteProject(name string) (tea.Model, tea.Cmd) {
	if err := m.Store.Remove(name); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	var cmds []tea.Cmd
	if m.Supervisor.IsRunning(name) {
		cmds = append(cmds, stopCmd(m.Supervisor, name))
	}
	m.setMessage(fmt.Sprintf("Removed %s", name))
	next, cmd := m.persist(fmt.Sprintf("Remove %s", name))
	return next, tea.Batch(append(cmds, cmd)...)
}

// persist saves the store, refreshes the list and pushes in the background.
func (m model) persist(commitMsg string) (tea.Model, tea.Cmd) {
	if err := m.Store.Save(); err != nil {
		m.setError(fmt.Sprintf("Save failed: %v", err))
		return m, nil
	}
	m.reloadProjects()
	m.requestStale(time.Now())
	return m, pushCmd(m.Sync, commitMsg)
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// absDir resolves a user-typed directory, expanding ~/.
func absDir(input string) (string, error) {
	path, err := filepath.Abs(config.ExpandHome(input))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return path, nil
}
