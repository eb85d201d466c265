package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/store"
)

const minLogLines = 3

func (m model) View() string {
	if m.quitting {
		return ""
	}

	title := "devdeck"
	if m.probing() {
		title += " " + m.spinner.View()
	}
	machine := machineStyle.Render(m.MachineID)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(machine) - 4
	if gap < 1 {
		gap = 1
	}
	header := headerStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + machine)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")

	if len(m.projects) == 0 {
		b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
		b.WriteString("\n")
		b.WriteString(emptyStyle.Render("No projects yet. Press / and type: add <path>"))
		b.WriteString("\n\n")
	} else {
		running := make(map[string]bool)
		for _, name := range m.Supervisor.Running() {
			running[name] = true
		}
		for i, p := range m.projects {
			b.WriteString(m.renderProject(i, p, running[p.Name]))
			b.WriteString("\n")
		}
		b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
		b.WriteString("\n")
	}

	b.WriteString(m.renderPortsBar())
	b.WriteString("\n")

	if m.showLogs {
		b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
		b.WriteString("\n")
		footerLines := 4
		if m.commanding {
			footerLines++
		}
		height := max(minLogLines, m.height-1-len(m.projects)-1-1-1-footerLines)
		b.WriteString(m.renderLogs(height))
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	switch {
	case m.commanding:
		b.WriteString(hotkeysStyle.Render("[enter] execute  [esc] cancel"))
	case m.confirmDelete:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Remove %s? Press d again to confirm, any other key to cancel", m.confirmDeleteName)))
	default:
		b.WriteString(hotkeysStyle.Render("[↑↓] select  [r]un  [x] stop  [l]ogs  [R]efresh  [g] clone  [y]ank path  [d]elete  [/] command  [?] help"))
	}
	b.WriteString("\n")

	m.renderStatusAndInput(&b)

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

func (m model) renderProject(index int, p store.Project, running bool) string {
	cursor := "  "
	nStyle := nameStyle
	if index == m.cursor {
		cursor = "▸ "
		nStyle = selectedNameStyle
	}

	icon := statusStopped.Render("○")
	if running {
		icon = statusRunning.Render("●")
	}

	parts := []string{fmt.Sprintf("  %s%s %s", cursor, icon, nStyle.Render(p.Name))}

	path := m.localPath(p)
	if path == "" {
		parts = append(parts, missingStyle.Render("not on this machine"))
		return strings.Join(parts, "  ")
	}

	if det, ok := m.Worker.Detection(path); ok && det.ProjectType != "" {
		parts = append(parts, typeStyle.Render(string(det.ProjectType)))
	}
	if st, ok := m.Worker.GitStatus(path); ok {
		parts = append(parts, formatGit(st))
	}
	if running {
		if port, ok := m.Supervisor.Port(p.Name); ok {
			parts = append(parts, portStyle.Render(fmt.Sprintf(":%d", port)))
		}
	}
	return strings.Join(parts, "  ")
}

// formatGit renders a status as "branch +staged ~modified ?untracked ↑ahead ↓behind",
// omitting zero counts.
func formatGit(st *gitstatus.Status) string {
	parts := []string{branchStyle.Render(st.Branch)}
	var dirty []string
	if st.Staged > 0 {
		dirty = append(dirty, fmt.Sprintf("+%d", st.Staged))
	}
	if st.Modified > 0 {
		dirty = append(dirty, fmt.Sprintf("~%d", st.Modified))
	}
	if st.Untracked > 0 {
		dirty = append(dirty, fmt.Sprintf("?%d", st.Untracked))
	}
	if len(dirty) > 0 {
		parts = append(parts, dirtyStyle.Render(strings.Join(dirty, " ")))
	}
	var sync []string
	if st.Ahead > 0 {
		sync = append(sync, fmt.Sprintf("↑%d", st.Ahead))
	}
	if st.Behind > 0 {
		sync = append(sync, fmt.Sprintf("↓%d", st.Behind))
	}
	if len(sync) > 0 {
		parts = append(parts, syncStyle.Render(strings.Join(sync, " ")))
	}
	return strings.Join(parts, " ")
}

func (m model) renderPortsBar() string {
	if len(m.openPorts) == 0 {
		return portsBarStyle.Render("Ports: none")
	}
	labels := make([]string, len(m.openPorts))
	for i, info := range m.openPorts {
		labels[i] = info.Label()
	}
	return portsBarStyle.Render("Ports: " + strings.Join(labels, "  "))
}

func (m model) renderLogs(height int) string {
	var b strings.Builder
	p, ok := m.selected()
	var lines []string
	if ok {
		lines = m.Supervisor.Output(p.Name)
	}
	if len(lines) == 0 {
		b.WriteString(logEmptyStyle.Render("No output"))
		b.WriteString("\n")
		for i := 1; i < height; i++ {
			b.WriteString("\n")
		}
		return b.String()
	}

	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for _, line := range lines {
		if w := m.width - 4; w > 0 && len(line) > w {
			line = line[:w]
		}
		if strings.HasPrefix(line, "[stderr] ") {
			b.WriteString(logStderrStyle.Render(line))
		} else {
			b.WriteString(logStyle.Render(line))
		}
		b.WriteString("\n")
	}
	for i := len(lines); i < height; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderStatusAndInput(b *strings.Builder) {
	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(messageStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	if m.commanding {
		b.WriteString("  ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
}

func (m model) renderHelpOverlay(base string) string {
	help := strings.Join([]string{
		helpHeaderStyle.Render("Navigation"),
		helpKeyStyle.Render("  ↑/k  ↓/j") + helpDescStyle.Render("   Select project"),
		"",
		helpHeaderStyle.Render("Actions"),
		helpKeyStyle.Render("  r") + helpDescStyle.Render("           Run dev server"),
		helpKeyStyle.Render("  x") + helpDescStyle.Render("           Stop dev server"),
		helpKeyStyle.Render("  l") + helpDescStyle.Render("           Toggle log pane"),
		helpKeyStyle.Render("  R / F5") + helpDescStyle.Render("      Pull and refresh everything"),
		helpKeyStyle.Render("  g") + helpDescStyle.Render("           Clone into install_dir"),
		helpKeyStyle.Render("  y") + helpDescStyle.Render("           Copy path"),
		helpKeyStyle.Render("  d") + helpDescStyle.Render("           Remove project (press twice)"),
		"",
		helpHeaderStyle.Render("Commands"),
		helpKeyStyle.Render("  /") + helpDescStyle.Render("           Open command bar"),
		helpDescStyle.Render("  /add <path>"),
		helpDescStyle.Render("  /path <dir>"),
		helpDescStyle.Render("  /cmd <command>   (empty clears)"),
		helpDescStyle.Render("  /clone"),
		helpDescStyle.Render("  /rm"),
		"",
		helpKeyStyle.Render("  q") + helpDescStyle.Render("  quit") + "     " + helpKeyStyle.Render("?") + helpDescStyle.Render("  close this help"),
	}, "\n")

	modal := helpStyle.Render(help)

	modalWidth := lipgloss.Width(modal)
	modalHeight := lipgloss.Height(modal)
	xOffset := max(0, (m.width-modalWidth)/2)
	yOffset := max(0, (m.height-modalHeight)/2)

	baseLines := strings.Split(base, "\n")
	for i, mLine := range strings.Split(modal, "\n") {
		row := yOffset + i
		if row >= len(baseLines) {
			break
		}
		baseLines[row] = strings.Repeat(" ", xOffset) + mLine + strings.Repeat(" ", max(0, m.width-xOffset-lipgloss.Width(mLine)))
	}
	return strings.Join(baseLines, "\n")
}
