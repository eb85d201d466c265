// Package worker runs status probes on a dedicated goroutine so the dashboard
// never blocks on git or filesystem I/O.
//
// The controller calls Request to queue a path and Poll on every tick to drain
// finished results into a path-keyed cache. Reads (GitStatus, Detection) only
// ever consult the cache; refreshing is driven explicitly through IsStale and
// Request.
package worker

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/probe"
)

const defaultQueueSize = 256

// ProbeFunc computes a probe result for one path. It runs on the worker goroutine.
type ProbeFunc func(path string) probe.Result

// entry is a cached probe result together with the time it arrived.
type entry struct {
	Git       *gitstatus.Status `json:"git,omitempty"`
	Detection *config.Detection `json:"detection,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Worker owns one probing goroutine and the cache of its results.
type Worker struct {
	mu    sync.RWMutex
	cache map[string]entry

	requests chan string
	results  chan probe.Result
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	staleAfter time.Duration
	queueSize  int
	now        func() time.Time
	snapshot   *DiskCache
	logger     *log.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithStaleAfter sets the age after which a cache entry is considered stale.
func WithStaleAfter(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithQueueSize sets the capacity of the request and result queues.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithSnapshot seeds the cache from a persisted snapshot and writes every
// ingested result back to it. The Worker takes ownership and closes it.
func WithSnapshot(d *DiskCache) Option {
	return func(w *Worker) { w.snapshot = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New starts the worker goroutine. It lives until Close.
func New(fn ProbeFunc, opts ...Option) *Worker {
	w := &Worker{
		cache:      make(map[string]entry),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		staleAfter: config.DefaultStaleAfter,
		queueSize:  defaultQueueSize,
		now:        time.Now,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.requests = make(chan string, w.queueSize)
	w.results = make(chan probe.Result, w.queueSize)

	if w.snapshot != nil {
		seeded, err := w.snapshot.Load()
		if err != nil {
			w.logger.Warn("loading probe snapshot failed", "err", err)
		}
		for path, e := range seeded {
			w.cache[path] = e
		}
	}

	go w.loop(fn)
	return w
}

func (w *Worker) loop(fn ProbeFunc) {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case path := <-w.requests:
			res := w.safeProbe(fn, path)
			select {
			case w.results <- res:
			case <-w.quit:
				return
			}
		}
	}
}

// safeProbe keeps one misbehaving path from killing the goroutine for every other path.
func (w *Worker) safeProbe(fn ProbeFunc, path string) (res probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("probe panicked", "path", path, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			res = probe.Result{Path: path}
		}
	}()
	res = fn(path)
	res.Path = path
	return res
}

// Request queues a probe for path without blocking. No deduplication is done.
// After Close, or when the queue is full, the request is dropped.
func (w *Worker) Request(path string) {
	select {
	case <-w.quit:
		w.logger.Debug("probe request after close dropped", "path", path)
		return
	default:
	}
	select {
	case w.requests <- path:
	default:
		w.logger.Warn("probe queue full, request dropped", "path", path)
	}
}

// Poll drains every finished result into the cache without blocking.
// It reports whether anything was updated.
func (w *Worker) Poll() bool {
	updated := false
	for {
		select {
		case res := <-w.results:
			e := entry{Git: res.Git, Detection: res.Detection, FetchedAt: w.now()}
			w.mu.Lock()
			w.cache[res.Path] = e
			w.mu.Unlock()
			if w.snapshot != nil {
				w.snapshot.PutAsync(res.Path, e)
			}
			updated = true
		default:
			return updated
		}
	}
}

// GitStatus returns the cached git status for path, if any.
func (w *Worker) GitStatus(path string) (*gitstatus.Status, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.cache[path]
	if !ok || e.Git == nil {
		return nil, false
	}
	return e.Git, true
}

// Detection returns the cached project detection for path, if any.
func (w *Worker) Detection(path string) (*config.Detection, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.cache[path]
	if !ok || e.Detection == nil {
		return nil, false
	}
	return e.Detection, true
}

// IsStale is true when path has no entry or its entry is older than the stale window.
func (w *Worker) IsStale(path string) bool {
	w.mu.RLock()
	e, ok := w.cache[path]
	w.mu.RUnlock()
	if !ok {
		return true
	}
	return w.now().Sub(e.FetchedAt) > w.staleAfter
}

// InvalidateAll drops every cached entry, including the persisted snapshot.
func (w *Worker) InvalidateAll() {
	w.mu.Lock()
	w.cache = make(map[string]entry)
	w.mu.Unlock()
	if w.snapshot != nil {
		w.snapshot.ClearAsync()
	}
}

// Close stops the goroutine and waits for the probe in flight to finish.
func (w *Worker) Close() {
	w.stopOnce.Do(func() {
		close(w.quit)
		<-w.done
		if w.snapshot != nil {
			w.snapshot.Close()
		}
	})
}
