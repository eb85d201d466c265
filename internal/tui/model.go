package tui

import (
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/ports"
	"github.com/zpdzap/devdeck/internal/store"
	"github.com/zpdzap/devdeck/internal/supervisor"
	"github.com/zpdzap/devdeck/internal/syncrepo"
	"github.com/zpdzap/devdeck/internal/worker"
)

// Deps are the long-lived objects the dashboard drives.
type Deps struct {
	Config     *config.Config
	Store      *store.Store
	Sync       *syncrepo.Repo // nil disables pushes and pulls
	Worker     *worker.Worker
	Supervisor *supervisor.Supervisor
	MachineID  string
	Logger     *log.Logger
}

// model is the Bubble Tea model for the devdeck dashboard.
type model struct {
	Deps

	projects []store.Project

	input      textinput.Model
	spinner    spinner.Model
	cursor     int
	message    string
	isError    bool
	commanding bool // true when in command mode (/ pressed)
	quitting   bool
	width      int
	height     int

	// requested holds when each path was last queued for probing, so a slow
	// probe is not queued again on every tick.
	requested map[string]time.Time

	openPorts     []ports.Info
	lastPortScan  time.Time
	scanningPorts bool
	refreshing    bool

	showLogs bool
	showHelp bool

	// Double-press delete confirmation
	confirmDelete     bool
	confirmDeleteName string
}

func newModel(deps Deps) model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "add <path>, path <dir>, cmd <command>, clone, rm | quit"
	ti.CharLimit = 256
	ti.Width = 80
	ti.Blur()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Get initial terminal size so the first render isn't at width=0
	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	return model{
		Deps:      deps,
		projects:  deps.Store.List(),
		input:     ti,
		spinner:   sp,
		width:     w,
		height:    h,
		requested: make(map[string]time.Time),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.Config.TickDuration()), m.spinner.Tick, scanPortsCmd())
}

// selected returns the project under the cursor.
func (m model) selected() (store.Project, bool) {
	if m.cursor < 0 || m.cursor >= len(m.projects) {
		return store.Project{}, false
	}
	return m.projects[m.cursor], true
}

// localPath is where p lives on this machine, or "".
func (m model) localPath(p store.Project) string {
	return p.Locations[m.MachineID].Path
}

// reloadProjects refreshes the cached project list and keeps the cursor in range.
func (m *model) reloadProjects() {
	m.projects = m.Store.List()
	if m.cursor >= len(m.projects) {
		m.cursor = max(0, len(m.projects)-1)
	}
}

func (m *model) setMessage(msg string) {
	m.message = msg
	m.isError = false
}

func (m *model) setError(msg string) {
	m.message = msg
	m.isError = true
}

// probing reports whether any local project is waiting on a probe result.
func (m model) probing() bool {
	for _, p := range m.projects {
		if path := m.localPath(p); path != "" && m.Worker.IsStale(path) {
			return true
		}
	}
	return m.refreshing
}
