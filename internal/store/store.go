// Package store persists the synced project list as TOML.
//
// Each project carries one Location per machine id, so the same file can be
// shared between machines through the sync repository.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the store's file inside the sync directory.
const FileName = "projects.toml"

var (
	ErrDuplicate = errors.New("project already exists")
	ErrNotFound  = errors.New("project not found")
)

// Location is where a project lives on one machine.
type Location struct {
	Path       string `toml:"path"`
	RunCommand string `toml:"run_command,omitempty"`
}

// Project is one entry of projects.toml.
type Project struct {
	Name      string              `toml:"name"`
	RepoURL   string              `toml:"repo_url,omitempty"`
	Locations map[string]Location `toml:"locations,omitempty"`
}

type document struct {
	Projects []Project `toml:"projects"`
}

// Store is the in-memory project list backed by a TOML file.
type Store struct {
	mu       sync.Mutex
	path     string
	projects []Project
	firstRun bool
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory list with the file's contents, for example
// after a sync pull. A missing file empties the store.
func (s *Store) Reload() error {
	var doc document
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read store: %w", err)
	default:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstRun = data == nil
	s.projects = doc.Projects
	s.sort()
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// FirstRun reports whether the file did not exist when opened.
func (s *Store) FirstRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstRun
}

// Save writes the store atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := toml.Marshal(document{Projects: s.projects})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	s.mu.Lock()
	s.firstRun = false
	s.mu.Unlock()
	return nil
}

// Add inserts a new project. Names are unique case-insensitively.
func (s *Store) Add(name, repoURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("project name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(name) >= 0 {
		return fmt.Errorf("%s: %w", name, ErrDuplicate)
	}
	s.projects = append(s.projects, Project{Name: name, RepoURL: repoURL})
	s.sort()
	return nil
}

// Remove deletes the named project.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	s.projects = append(s.projects[:i], s.projects[i+1:]...)
	return nil
}

// Get returns a copy of the named project.
func (s *Store) Get(name string) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return Project{}, false
	}
	return clone(s.projects[i]), true
}

// List returns copies of all projects sorted by name, case-insensitively.
func (s *Store) List() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = clone(p)
	}
	return out
}

// SetLocation records where name lives on machine, keeping any run command.
func (s *Store) SetLocation(name, machine, path string) error {
	return s.update(name, machine, func(loc *Location) { loc.Path = path })
}

// SetRunCommand overrides the run command for name on machine. An empty
// command clears the override.
func (s *Store) SetRunCommand(name, machine, command string) error {
	return s.update(name, machine, func(loc *Location) { loc.RunCommand = strings.TrimSpace(command) })
}

func (s *Store) update(name, machine string, fn func(*Location)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	p := &s.projects[i]
	if p.Locations == nil {
		p.Locations = make(map[string]Location)
	}
	loc := p.Locations[machine]
	fn(&loc)
	p.Locations[machine] = loc
	return nil
}

// Location returns name's location on machine.
func (s *Store) Location(name, machine string) (Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return Location{}, false
	}
	loc, ok := s.projects[i].Locations[machine]
	return loc, ok
}

// Export writes the project list as TOML.
func (s *Store) Export(w io.Writer) error {
	s.mu.Lock()
	doc := document{Projects: s.projects}
	s.mu.Unlock()
	return toml.NewEncoder(w).Encode(doc)
}

// Import merges projects from a TOML document. Existing projects win; only
// unknown names are added. It returns the number added.
func (s *Store) Import(r io.Reader) (int, error) {
	var doc document
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("parse import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range doc.Projects {
		if strings.TrimSpace(p.Name) == "" || s.index(p.Name) >= 0 {
			continue
		}
		s.projects = append(s.projects, clone(p))
		added++
	}
	s.sort()
	return added, nil
}

func (s *Store) index(name string) int {
	for i, p := range s.projects {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Store) sort() {
	sort.SliceStable(s.projects, func(i, j int) bool {
		return strings.ToLower(s.projects[i].Name) < strings.ToLower(s.projects[j].Name)
	})
}

func clone(p Project) Project {
	if p.Locations != nil {
		locs := make(map[string]Location, len(p.Locations))
		for k, v := range p.Locations {
			locs[k] = v
		}
		p.Locations = locs
	}
	return p
}
