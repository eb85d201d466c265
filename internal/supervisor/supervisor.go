// Package supervisor launches project dev servers and keeps their recent output.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrAlreadyRunning = errors.New("already running")
)

const (
	DefaultGracePeriod = 500 * time.Millisecond
	DefaultMaxLines    = 1000

	stderrPrefix  = "[stderr] "
	maxLineLength = 1024 * 1024
)

// process is one tracked child.
type process struct {
	name   string
	cmd    *exec.Cmd
	port   int
	output *ringBuffer
	done   chan struct{} // closed once the child has been waited on
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// killOrphans kills whatever is left in the exited child's process group.
func (p *process) killOrphans() {
	killGroup(p.cmd.Process.Pid)
}

// Supervisor tracks child processes by name.
type Supervisor struct {
	mu    sync.Mutex
	procs map[string]*process

	grace    time.Duration
	maxLines int
	logger   *log.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithGracePeriod sets how long Stop waits after SIGTERM before SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithMaxLines sets the per-process output buffer capacity.
func WithMaxLines(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxLines = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		procs:    make(map[string]*process),
		grace:    DefaultGracePeriod,
		maxLines: DefaultMaxLines,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start spawns command in cwd under name. The command is split on whitespace,
// not interpreted by a shell. When port is positive the child sees PORT=<port>.
func (s *Supervisor) Start(name, cwd, command string, port int) error {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return ErrEmptyCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.procs[name]; ok {
		if !existing.exited() {
			return fmt.Errorf("start %s: %w", name, ErrAlreadyRunning)
		}
		existing.killOrphans()
		delete(s.procs, name)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	if port > 0 {
		cmd.Env = append(cmd.Env, "PORT="+strconv.Itoa(port))
	}
	setProcAttr(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return fmt.Errorf("start %s: %w", name, err)
	}
	// The child holds its own copies; readers see EOF once every writer is gone.
	stdoutW.Close()
	stderrW.Close()

	p := &process{
		name:   name,
		cmd:    cmd,
		port:   port,
		output: newRingBuffer(s.maxLines),
		done:   make(chan struct{}),
	}
	go s.readLines(p, stdoutR, "")
	go s.readLines(p, stderrR, stderrPrefix)
	go func() {
		err := cmd.Wait()
		s.logger.Debug("process exited", "name", name, "pid", cmd.Process.Pid, "err", err)
		close(p.done)
	}()

	s.procs[name] = p
	s.logger.Info("process started", "name", name, "pid", cmd.Process.Pid, "cmd", command, "port", port)
	return nil
}

func (s *Supervisor) readLines(p *process, f *os.File, prefix string) {
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		p.output.Append(prefix + scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("output reader stopped", "name", p.name, "err", err)
	}
}

// Stop terminates the named process: SIGTERM to its group, a grace period,
// then SIGKILL. It returns once the child has been reaped. Unknown names are a no-op.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	p, ok := s.procs[name]
	if ok {
		delete(s.procs, name)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	s.terminate(p)
	return nil
}

func (s *Supervisor) terminate(p *process) {
	if p.exited() {
		p.killOrphans()
		return
	}
	pid := p.cmd.Process.Pid
	terminateGroup(pid)

	select {
	case <-p.done:
		s.logger.Info("process stopped", "name", p.name, "pid", pid)
		return
	case <-time.After(s.grace):
	}

	killGroup(pid)
	_ = p.cmd.Process.Kill()
	<-p.done
	s.logger.Info("process killed", "name", p.name, "pid", pid)
}

// StopAll stops every tracked process.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	procs := make([]*process, 0, len(s.procs))
	for _, p := range s.procs {
		procs = append(procs, p)
	}
	s.procs = make(map[string]*process)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *process) {
			defer wg.Done()
			s.terminate(p)
		}(p)
	}
	wg.Wait()
}

// IsRunning reports whether name is tracked and alive. An exited entry is
// removed as a side effect, along with any descendants it left behind.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[name]
	if !ok {
		return false
	}
	if p.exited() {
		p.killOrphans()
		delete(s.procs, name)
		return false
	}
	return true
}

// ReapDead removes every exited entry and returns their names, sorted.
func (s *Supervisor) ReapDead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reaped []string
	for name, p := range s.procs {
		if p.exited() {
			p.killOrphans()
			delete(s.procs, name)
			reaped = append(reaped, name)
		}
	}
	sort.Strings(reaped)
	return reaped
}

// Output returns a copy of the buffered output for name.
func (s *Supervisor) Output(name string) []string {
	s.mu.Lock()
	p, ok := s.procs[name]
	s.mu.Unlock()
	if !ok {
		return []string{}
	}
	return p.output.Lines()
}

// Running returns the tracked names, sorted. Exited entries not yet reaped are included.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.procs))
	for name := range s.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Port returns the port assigned to name at start.
func (s *Supervisor) Port(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[name]
	if !ok || p.port == 0 {
		return 0, false
	}
	return p.port, true
}
