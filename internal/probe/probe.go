// Package probe computes git status and project detection for a single path.
package probe

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gitstatus"
)

// Result is the outcome of probing one path. A nil field means the data is
// unavailable: no repository, a failed git call, or an unreadable project.
type Result struct {
	Path      string
	Git       *gitstatus.Status
	Detection *config.Detection
}

// Prober runs status probes with a bounded git deadline.
type Prober struct {
	gitTimeout time.Duration
	logger     *log.Logger
}

// New returns a Prober whose git invocations are cancelled after gitTimeout.
func New(gitTimeout time.Duration, logger *log.Logger) *Prober {
	if gitTimeout <= 0 {
		gitTimeout = config.DefaultGitTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Prober{gitTimeout: gitTimeout, logger: logger}
}

// Probe never fails as a whole; errors degrade the affected field to nil.
func (p *Prober) Probe(path string) Result {
	res := Result{Path: path}

	// Skip the git subprocesses entirely for non-repositories.
	if gitstatus.IsRepo(path) {
		ctx, cancel := context.WithTimeout(context.Background(), p.gitTimeout)
		st, err := gitstatus.Get(ctx, path)
		cancel()
		if err != nil {
			p.logger.Debug("git status failed", "path", path, "err", err)
		} else {
			res.Git = st
		}
	}

	det, err := config.Detect(path)
	if err != nil {
		p.logger.Debug("detection failed", "path", path, "err", err)
	} else {
		res.Detection = det
	}

	return res
}
