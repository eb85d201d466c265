package tui

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/probe"
	"github.com/zpdzap/devdeck/internal/store"
	"github.com/zpdzap/devdeck/internal/supervisor"
	"github.com/zpdzap/devdeck/internal/worker"
)

const testMachine = "box-1234abcd"

func newTestModel(t *testing.T, names ...string) model {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), store.FileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, n := range names {
		if err := st.Add(n, ""); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	w := worker.New(func(path string) probe.Result { return probe.Result{Path: path} })
	t.Cleanup(w.Close)
	sup := supervisor.New()
	t.Cleanup(sup.StopAll)

	return newModel(Deps{
		Config:     config.Default(),
		Store:      st,
		Worker:     w,
		Supervisor: sup,
		MachineID:  testMachine,
	})
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func command(t *testing.T, m model, input string) model {
	t.Helper()
	m.input.SetValue(input)
	next, _ := m.processInput()
	return next.(model)
}

func TestNavigationWraps(t *testing.T) {
	m := newTestModel(t, "alpha", "beta", "gamma")

	m = press(t, m, "j", "j", "j")
	if m.cursor != 2 {
		t.Errorf("cursor = %d after three downs, want 2", m.cursor)
	}
	m = press(t, m, "k", "k", "k")
	if m.cursor != 2 {
		t.Errorf("cursor = %d after wrapping up, want 2", m.cursor)
	}
}

func TestDeleteNeedsDoublePress(t *testing.T) {
	m := newTestModel(t, "alpha", "beta")

	m = press(t, m, "d", "j")
	if len(m.projects) != 2 {
		t.Fatalf("project removed without confirmation")
	}
	if m.confirmDelete {
		t.Error("confirmation still pending after another key")
	}

	m.cursor = 0
	m = press(t, m, "d", "d")
	if len(m.projects) != 1 || m.projects[0].Name != "beta" {
		t.Errorf("projects = %+v, want only beta", m.projects)
	}
	if _, ok := m.Store.Get("alpha"); ok {
		t.Error("alpha still in store")
	}
}

func TestCmdSetsAndClearsRunCommand(t *testing.T) {
	m := newTestModel(t, "alpha")

	m = command(t, m, "cmd npm run start")
	if m.isError {
		t.Fatalf("unexpected error: %s", m.message)
	}
	loc, _ := m.Store.Location("alpha", testMachine)
	if loc.RunCommand != "npm run start" {
		t.Errorf("RunCommand = %q, want %q", loc.RunCommand, "npm run start")
	}

	m = command(t, m, "/cmd")
	loc, _ = m.Store.Location("alpha", testMachine)
	if loc.RunCommand != "" {
		t.Errorf("RunCommand = %q, want cleared", loc.RunCommand)
	}
}

func TestPathCommand(t *testing.T) {
	m := newTestModel(t, "alpha")
	dir := t.TempDir()

	m = command(t, m, "path "+dir)
	if m.isError {
		t.Fatalf("unexpected error: %s", m.message)
	}
	if got := m.localPath(m.projects[0]); got != dir {
		t.Errorf("localPath = %q, want %q", got, dir)
	}

	m = command(t, m, "path "+filepath.Join(dir, "missing"))
	if !m.isError {
		t.Error("expected error for a missing directory")
	}
}

func TestAddRejectsNonRepository(t *testing.T) {
	m := newTestModel(t)
	m = command(t, m, "add "+t.TempDir())
	if !m.isError || !strings.Contains(m.message, "not a git repository") {
		t.Errorf("message = %q, want not a git repository error", m.message)
	}
}

func TestAddRepoAndDuplicate(t *testing.T) {
	m := newTestModel(t)
	dir := t.TempDir()

	next, _ := m.addRepo("alpha", "https://example.com/alpha.git", dir)
	m = next.(model)
	if m.isError {
		t.Fatalf("unexpected error: %s", m.message)
	}
	if len(m.projects) != 1 || m.localPath(m.projects[0]) != dir {
		t.Fatalf("projects = %+v", m.projects)
	}

	next, _ = m.addRepo("Alpha", "", dir)
	m = next.(model)
	if !m.isError {
		t.Error("duplicate add did not report an error")
	}
}

func TestUnknownCommand(t *testing.T) {
	m := newTestModel(t, "alpha")
	m = command(t, m, "frobnicate")
	if !m.isError || m.message != "Unknown command: frobnicate" {
		t.Errorf("message = %q", m.message)
	}
}

func TestRunWithoutPath(t *testing.T) {
	m := newTestModel(t, "alpha")
	m = press(t, m, "r")
	if !m.isError || !strings.Contains(m.message, "no path on this machine") {
		t.Errorf("message = %q", m.message)
	}
}

func TestRunAndDoubleRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	m := newTestModel(t, "alpha")
	dir := t.TempDir()
	m.Store.SetLocation("alpha", testMachine, dir)
	m.Store.SetRunCommand("alpha", testMachine, "sleep 30")
	m.reloadProjects()

	m = press(t, m, "r")
	if m.isError {
		t.Fatalf("run failed: %s", m.message)
	}
	if !m.Supervisor.IsRunning("alpha") {
		t.Fatal("alpha not running after r")
	}

	m = press(t, m, "r")
	if !m.isError || !strings.Contains(m.message, "already running") {
		t.Errorf("message = %q, want already running", m.message)
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(key("q"))
	if !next.(model).quitting {
		t.Error("quitting = false after q")
	}
	if cmd == nil {
		t.Error("q returned no command")
	}
}

func TestFormatGit(t *testing.T) {
	clean := formatGit(&gitstatus.Status{Branch: "main"})
	if !strings.Contains(clean, "main") || strings.ContainsAny(clean, "+~?↑↓") {
		t.Errorf("clean = %q", clean)
	}

	dirty := formatGit(&gitstatus.Status{Branch: "dev", Staged: 1, Modified: 2, Untracked: 3, Ahead: 4, Behind: 5})
	for _, want := range []string{"dev", "+1", "~2", "?3", "↑4", "↓5"} {
		if !strings.Contains(dirty, want) {
			t.Errorf("dirty = %q, missing %q", dirty, want)
		}
	}
}

func TestViewListsProjects(t *testing.T) {
	m := newTestModel(t, "alpha", "beta")
	out := m.View()
	for _, want := range []string{"alpha", "beta", "not on this machine", "Ports:"} {
		if !strings.Contains(out, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

// bareOrigin returns a bare repository with one commit to clone from.
func bareOrigin(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	src := t.TempDir()
	git(t, src, "init", "-q")
	git(t, src, "-c", "user.name=devdeck", "-c", "user.email=devdeck@example.com", "commit", "-q", "--allow-empty", "-m", "initial")
	origin := filepath.Join(t.TempDir(), "alpha.git")
	git(t, src, "clone", "-q", "--bare", src, origin)
	return origin
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
}

func withInstallDir(m model, dir string) model {
	cfg := config.Default()
	cfg.InstallDir = dir
	m.Config = cfg
	return m
}

func TestCloneIntoInstallDir(t *testing.T) {
	origin := bareOrigin(t)
	install := t.TempDir()

	m := newTestModel(t)
	if err := m.Store.Add("alpha", origin); err != nil {
		t.Fatalf("Add: %v", err)
	}
	m.reloadProjects()
	m = withInstallDir(m, install)

	next, cmd := m.Update(key("g"))
	m = next.(model)
	if m.isError || cmd == nil {
		t.Fatalf("g: message = %q, cmd = %v", m.message, cmd)
	}
	raw := cmd()
	msg, ok := raw.(clonedMsg)
	if !ok {
		t.Fatalf("clone command returned %T", raw)
	}
	if msg.err != nil {
		t.Fatalf("clone: %v", msg.err)
	}

	next, _ = m.Update(msg)
	m = next.(model)
	want := filepath.Join(install, "alpha")
	if m.isError {
		t.Fatalf("unexpected error: %s", m.message)
	}
	if got := m.localPath(m.projects[0]); got != want {
		t.Errorf("localPath = %q, want %q", got, want)
	}
	if !gitstatus.IsRepo(want) {
		t.Error("clone destination is not a repository")
	}

	reopened, err := store.Open(m.Store.Path())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if loc, _ := reopened.Location("alpha", testMachine); loc.Path != want {
		t.Errorf("saved path = %q, want %q", loc.Path, want)
	}
}

func TestCloneLinksExistingRepository(t *testing.T) {
	install := t.TempDir()
	dest := filepath.Join(install, "alpha")
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := newTestModel(t)
	m.Store.Add("alpha", "https://example.com/u/alpha.git")
	m.reloadProjects()
	m = withInstallDir(m, install)

	m = command(t, m, "clone")
	if m.isError {
		t.Fatalf("unexpected error: %s", m.message)
	}
	if got := m.localPath(m.projects[0]); got != dest {
		t.Errorf("localPath = %q, want %q", got, dest)
	}
}

func TestCloneRefusals(t *testing.T) {
	install := t.TempDir()
	if err := os.MkdirAll(filepath.Join(install, "plain"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		remote  string
		install string
		local   bool
		want    string
	}{
		{"noremote", "", install, false, "no remote"},
		{"noinstall", "https://example.com/u/x.git", "", false, "install_dir"},
		{"local", "https://example.com/u/x.git", install, true, "already at"},
		{"plain", "https://example.com/u/plain.git", install, false, "not a git repository"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t)
			m.Store.Add(tt.name, tt.remote)
			if tt.local {
				m.Store.SetLocation(tt.name, testMachine, t.TempDir())
			}
			m.reloadProjects()
			m = withInstallDir(m, tt.install)

			next, cmd := m.Update(key("g"))
			m = next.(model)
			if !m.isError || !strings.Contains(m.message, tt.want) {
				t.Errorf("message = %q, want error containing %q", m.message, tt.want)
			}
			if cmd != nil {
				t.Error("refused clone still returned a command")
			}
		})
	}
}

func TestCloneFailureReported(t *testing.T) {
	m := newTestModel(t, "alpha")
	next, _ := m.Update(clonedMsg{name: "alpha", path: "/nowhere", err: errors.New("exit status 128")})
	m = next.(model)
	if !m.isError || !strings.Contains(m.message, "Clone failed") {
		t.Errorf("message = %q", m.message)
	}
	if m.localPath(m.projects[0]) != "" {
		t.Error("failed clone recorded a location")
	}
}

func TestFetchedQueuesProbe(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t)
	w := worker.New(func(path string) probe.Result {
		calls.Add(1)
		return probe.Result{Path: path}
	})
	t.Cleanup(w.Close)
	m.Worker = w

	next, _ := m.Update(fetchedMsg{path: "/broken", err: errors.New("no remote")})
	m = next.(model)
	next, _ = m.Update(fetchedMsg{path: "/repo"})
	m = next.(model)

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("probes = %d, want 1", got)
	}
	if _, ok := m.requested["/repo"]; !ok {
		t.Error("fetched path not marked as requested")
	}
	if _, ok := m.requested["/broken"]; ok {
		t.Error("failed fetch queued a probe")
	}
}
