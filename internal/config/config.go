package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DirName       = ".devdeck"
	ConfigFile    = "config.yaml"
	LogFile       = "deck.log"
	MachineIDFile = "machine-id"
	SyncDir       = "sync"
	ProbeCacheDir = "probecache"
)

const (
	DefaultStaleAfter    = 30 * time.Second
	DefaultGitTimeout    = 5 * time.Second
	DefaultGracePeriod   = 500 * time.Millisecond
	DefaultTick          = time.Second
	DefaultPortScanEvery = 30 * time.Second
)

// Config is the per-machine configuration stored in ~/.devdeck/config.yaml.
type Config struct {
	InstallDir    string `yaml:"install_dir,omitempty"`
	StaleAfter    string `yaml:"stale_after,omitempty"`
	GitTimeout    string `yaml:"git_timeout,omitempty"`
	GracePeriod   string `yaml:"grace_period,omitempty"`
	Tick          string `yaml:"tick,omitempty"`
	PortScanEvery string `yaml:"port_scan_every,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`

	// parsed
	staleAfter    time.Duration
	gitTimeout    time.Duration
	gracePeriod   time.Duration
	tick          time.Duration
	portScanEvery time.Duration
}

// Dir returns the devdeck data directory under the user's home.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Default returns a config with every duration set to its default.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.resolve()
	return cfg
}

// Load reads config.yaml from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config.yaml into dir.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644)
}

// Exists returns true if config.yaml exists in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFile))
	return err == nil
}

func (c *Config) resolve() error {
	fields := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"stale_after", c.StaleAfter, DefaultStaleAfter, &c.staleAfter},
		{"git_timeout", c.GitTimeout, DefaultGitTimeout, &c.gitTimeout},
		{"grace_period", c.GracePeriod, DefaultGracePeriod, &c.gracePeriod},
		{"tick", c.Tick, DefaultTick, &c.tick},
		{"port_scan_every", c.PortScanEvery, DefaultPortScanEvery, &c.portScanEvery},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.dst = f.def
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", f.name, f.raw)
		}
		*f.dst = d
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func (c *Config) StaleAfterDuration() time.Duration    { return c.staleAfter }
func (c *Config) GitTimeoutDuration() time.Duration    { return c.gitTimeout }
func (c *Config) GracePeriodDuration() time.Duration   { return c.gracePeriod }
func (c *Config) TickDuration() time.Duration          { return c.tick }
func (c *Config) PortScanEveryDuration() time.Duration { return c.portScanEvery }

// InstallDirPath returns the install directory with a leading ~/ expanded.
// Relative paths are rejected so nothing gets cloned relative to the cwd.
func (c *Config) InstallDirPath() (string, bool) {
	if c.InstallDir == "" {
		return "", false
	}
	path := ExpandHome(c.InstallDir)
	if !filepath.IsAbs(path) {
		return "", false
	}
	return path, true
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
