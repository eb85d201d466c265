// Package machine gives this host a stable id used to key per-machine project locations.
package machine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zpdzap/devdeck/internal/config"
)

// GetOrCreate returns the id stored in dir, generating "<hostname>-<8 hex>" on first use.
func GetOrCreate(dir string) (string, error) {
	id, err := Get(dir)
	if err != nil || id != "" {
		return id, err
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	id = NewID(host)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.MachineIDFile), []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("write machine id: %w", err)
	}
	return id, nil
}

// Get returns the stored id, or "" when none has been created yet.
func Get(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, config.MachineIDFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read machine id: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// NewID builds an id from host and a random suffix.
func NewID(host string) string {
	return host + "-" + uuid.NewString()[:8]
}
