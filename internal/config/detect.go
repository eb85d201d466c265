package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ProjectType is the language family a project directory belongs to.
type ProjectType string

const (
	ProjectJavaScript ProjectType = "javascript"
	ProjectRust       ProjectType = "rust"
	ProjectGo         ProjectType = "go"
	ProjectPython     ProjectType = "python"
	ProjectUnknown    ProjectType = "unknown"
)

// PackageManager is the tool used to install and run a project.
// The empty value means none was detected.
type PackageManager string

const (
	PMNone   PackageManager = ""
	PMNpm    PackageManager = "npm"
	PMPnpm   PackageManager = "pnpm"
	PMYarn   PackageManager = "yarn"
	PMBun    PackageManager = "bun"
	PMCargo  PackageManager = "cargo"
	PMGo     PackageManager = "go"
	PMPython PackageManager = "python"
)

// Detection describes what kind of project lives in a directory and how to run it.
type Detection struct {
	ProjectType    ProjectType    `json:"project_type"`
	PackageManager PackageManager `json:"package_manager,omitempty"`
	RunCommand     string         `json:"run_command,omitempty"`
}

// IsJavaScript reports whether the project is a Node-style project that takes a PORT.
func (d *Detection) IsJavaScript() bool {
	return d != nil && d.ProjectType == ProjectJavaScript
}

// scriptPreference is the order in which package.json scripts are picked as the run command.
var scriptPreference = []string{"dev", "start", "serve", "watch"}

// Detect inspects the project directory and returns its type, package manager and run command.
// An error is returned only when package.json exists but cannot be read or parsed.
func Detect(projectDir string) (*Detection, error) {
	if exists(projectDir, "package.json") {
		return detectJS(projectDir)
	}

	checks := []struct {
		file string
		det  Detection
	}{
		{"Cargo.toml", Detection{ProjectRust, PMCargo, "cargo run"}},
		{"go.mod", Detection{ProjectGo, PMGo, "go run ."}},
		{"manage.py", Detection{ProjectPython, PMPython, "python manage.py runserver"}},
		{"main.py", Detection{ProjectPython, PMPython, "python main.py"}},
	}
	for _, c := range checks {
		if exists(projectDir, c.file) {
			det := c.det
			return &det, nil
		}
	}

	return &Detection{ProjectType: ProjectUnknown}, nil
}

func detectJS(projectDir string) (*Detection, error) {
	pm := PMNpm
	switch {
	case exists(projectDir, "pnpm-lock.yaml"):
		pm = PMPnpm
	case exists(projectDir, "yarn.lock"):
		pm = PMYarn
	case exists(projectDir, "bun.lockb"), exists(projectDir, "bun.lock"):
		pm = PMBun
	}

	data, err := os.ReadFile(filepath.Join(projectDir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("reading package.json: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parsing package.json: invalid JSON")
	}

	det := &Detection{ProjectType: ProjectJavaScript, PackageManager: pm}
	scripts := gjson.GetBytes(data, "scripts")
	if scripts.IsObject() {
		for _, name := range scriptPreference {
			if scripts.Get(name).Exists() {
				det.RunCommand = fmt.Sprintf("%s run %s", pm, name)
				break
			}
		}
	}
	return det, nil
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
