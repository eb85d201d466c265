package worker

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gitstatus"
	"github.com/zpdzap/devdeck/internal/probe"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// pollUntil polls w until cond holds or the deadline passes.
func pollUntil(t *testing.T, w *Worker, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w.Poll()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func detectionProbe(cmd string) ProbeFunc {
	return func(path string) probe.Result {
		return probe.Result{Path: path, Detection: &config.Detection{ProjectType: config.ProjectGo, RunCommand: cmd}}
	}
}

func TestUnknownPathIsStale(t *testing.T) {
	w := New(detectionProbe("go run ."))
	defer w.Close()

	if !w.IsStale("/nowhere") {
		t.Error("IsStale = false for a path never probed")
	}
	if _, ok := w.GitStatus("/nowhere"); ok {
		t.Error("GitStatus returned a value for a path never probed")
	}
}

func TestStalenessFollowsClock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := New(detectionProbe("go run ."), WithClock(clock.Now), WithStaleAfter(30*time.Second))
	defer w.Close()

	w.Request("/p")
	pollUntil(t, w, func() bool { _, ok := w.Detection("/p"); return ok })

	if w.IsStale("/p") {
		t.Error("IsStale = true right after ingest")
	}
	clock.Advance(30 * time.Second)
	if w.IsStale("/p") {
		t.Error("IsStale = true at exactly the stale window")
	}
	clock.Advance(time.Millisecond)
	if !w.IsStale("/p") {
		t.Error("IsStale = false past the stale window")
	}
}

func TestLastResultWins(t *testing.T) {
	var calls atomic.Int32
	fn := func(path string) probe.Result {
		n := calls.Add(1)
		cmd := "first"
		if n == 2 {
			cmd = "second"
		}
		return probe.Result{Path: path, Detection: &config.Detection{RunCommand: cmd}}
	}
	w := New(fn)
	defer w.Close()

	w.Request("/p")
	w.Request("/p")
	pollUntil(t, w, func() bool {
		d, ok := w.Detection("/p")
		return ok && calls.Load() == 2 && d.RunCommand == "second"
	})
}

func TestPollReportsUpdates(t *testing.T) {
	w := New(detectionProbe("x"))
	defer w.Close()

	if w.Poll() {
		t.Error("Poll = true with nothing requested")
	}
	w.Request("/p")
	deadline := time.Now().Add(5 * time.Second)
	for !w.Poll() {
		if time.Now().After(deadline) {
			t.Fatal("Poll never reported an update")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if w.Poll() {
		t.Error("Poll = true after results were drained")
	}
}

func TestRealProbeNoGit(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\n"), 0o644)

	w := New(probe.New(time.Second, nil).Probe)
	defer w.Close()

	w.Request(dir)
	pollUntil(t, w, func() bool { _, ok := w.Detection(dir); return ok })

	if _, ok := w.GitStatus(dir); ok {
		t.Error("GitStatus present for a directory without .git")
	}
	d, _ := w.Detection(dir)
	if d.ProjectType != config.ProjectRust || d.RunCommand == "" {
		t.Errorf("Detection = %+v, want rust with a run command", d)
	}
}

func TestPanickingProbeDoesNotKillWorker(t *testing.T) {
	fn := func(path string) probe.Result {
		if path == "/bad" {
			panic("boom")
		}
		return probe.Result{Path: path, Git: &gitstatus.Status{Branch: "main"}}
	}
	w := New(fn)
	defer w.Close()

	w.Request("/bad")
	w.Request("/good")
	pollUntil(t, w, func() bool { _, ok := w.GitStatus("/good"); return ok })

	if _, ok := w.GitStatus("/bad"); ok {
		t.Error("GitStatus present for a path whose probe panicked")
	}
	if w.IsStale("/bad") {
		t.Error("panicked probe should still record an empty, fresh entry")
	}
}

func TestInvalidateAll(t *testing.T) {
	w := New(detectionProbe("x"))
	defer w.Close()

	w.Request("/a")
	w.Request("/b")
	pollUntil(t, w, func() bool {
		_, a := w.Detection("/a")
		_, b := w.Detection("/b")
		return a && b
	})

	w.InvalidateAll()
	if !w.IsStale("/a") || !w.IsStale("/b") {
		t.Error("entries not stale after InvalidateAll")
	}
	if _, ok := w.Detection("/a"); ok {
		t.Error("Detection survived InvalidateAll")
	}
}

func TestRequestAfterClose(t *testing.T) {
	w := New(detectionProbe("x"))
	w.Close()
	w.Close()

	w.Request("/p")
	if w.Poll() {
		t.Error("Poll = true after Close")
	}
}

func TestQueueFullDropsRequest(t *testing.T) {
	release := make(chan struct{})
	fn := func(path string) probe.Result {
		<-release
		return probe.Result{Path: path}
	}
	w := New(fn, WithQueueSize(1))
	defer w.Close()
	defer close(release)

	for i := 0; i < 10; i++ {
		w.Request("/p")
	}
}

func TestSnapshotSeedsCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "probecache")

	disk, err := OpenDiskCache(dbPath, nil)
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	w := New(detectionProbe("npm run dev"), WithSnapshot(disk))
	w.Request("/p")
	pollUntil(t, w, func() bool { _, ok := w.Detection("/p"); return ok })
	w.Close()

	disk, err = OpenDiskCache(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	w = New(func(path string) probe.Result { return probe.Result{Path: path} }, WithSnapshot(disk))
	d, ok := w.Detection("/p")
	if !ok || d.RunCommand != "npm run dev" {
		t.Errorf("seeded Detection = %+v, %v; want npm run dev", d, ok)
	}

	w.InvalidateAll()
	w.Close()

	disk, err = OpenDiskCache(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer disk.Close()
	got, err := disk.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("snapshot has %d entries after InvalidateAll, want 0", len(got))
	}
}
