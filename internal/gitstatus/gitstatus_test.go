package gitstatus

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	out := "M  staged.go\n" +
		" M modified.go\n" +
		"MM both.go\n" +
		" D deleted.go\n" +
		"A  added.go\n" +
		"?? new.txt\n" +
		"?? other.txt\n" +
		"\n"

	staged, modified, untracked := parsePorcelain(out)
	if staged != 3 {
		t.Errorf("staged = %d, want 3", staged)
	}
	if modified != 3 {
		t.Errorf("modified = %d, want 3", modified)
	}
	if untracked != 2 {
		t.Errorf("untracked = %d, want 2", untracked)
	}
}

func TestParseLeftRight(t *testing.T) {
	tests := []struct {
		in         string
		wantBehind int
		wantAhead  int
	}{
		{"2\t5\n", 2, 5},
		{"0 0", 0, 0},
		{"", 0, 0},
		{"garbage", 0, 0},
	}
	for _, tt := range tests {
		behind, ahead := parseLeftRight(tt.in)
		if behind != tt.wantBehind || ahead != tt.wantAhead {
			t.Errorf("parseLeftRight(%q) = (%d, %d), want (%d, %d)", tt.in, behind, ahead, tt.wantBehind, tt.wantAhead)
		}
	}
}

func TestGetNotRepository(t *testing.T) {
	_, err := Get(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("err = %v, want ErrNotRepository", err)
	}
}

func TestGetCountsChanges(t *testing.T) {
	dir := initRepo(t)

	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644)
	gitRun(t, dir, "add", "a.txt")
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644)

	st, err := Get(context.Background(), dir)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Branch == "" {
		t.Error("Branch is empty")
	}
	if st.Staged != 1 {
		t.Errorf("Staged = %d, want 1", st.Staged)
	}
	if st.Modified != 1 {
		t.Errorf("Modified = %d, want 1", st.Modified)
	}
	if st.Untracked != 1 {
		t.Errorf("Untracked = %d, want 1", st.Untracked)
	}
	if st.Ahead != 0 || st.Behind != 0 {
		t.Errorf("Ahead/Behind = %d/%d, want 0/0 without upstream", st.Ahead, st.Behind)
	}
	if st.Clean() {
		t.Error("Clean() = true, want false")
	}
}

func TestGetCancelledContext(t *testing.T) {
	dir := initRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Get(ctx, dir); err == nil {
		t.Error("expected error with cancelled context")
	}
}

func TestRemoteURL(t *testing.T) {
	dir := initRepo(t)
	if got := RemoteURL(context.Background(), dir); got != "" {
		t.Errorf("RemoteURL = %q, want empty", got)
	}

	gitRun(t, dir, "remote", "add", "origin", "https://example.com/u/repo.git")
	if got := RemoteURL(context.Background(), dir); got != "https://example.com/u/repo.git" {
		t.Errorf("RemoteURL = %q, want origin url", got)
	}
}

func TestFetchUpdatesBehind(t *testing.T) {
	origin := initOrigin(t)
	root := t.TempDir()
	local := filepath.Join(root, "local")
	other := filepath.Join(root, "other")
	gitRun(t, root, "clone", "-q", origin, local)
	gitRun(t, root, "clone", "-q", origin, other)

	commit(t, other, "upstream change")
	gitRun(t, other, "push", "-q", "origin", "HEAD")

	st, err := Get(context.Background(), local)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Behind != 0 {
		t.Fatalf("Behind = %d before fetch, want 0", st.Behind)
	}

	if err := Fetch(context.Background(), local); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, err = Get(context.Background(), local)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Behind != 1 || st.Ahead != 0 {
		t.Errorf("Ahead/Behind = %d/%d after fetch, want 0/1", st.Ahead, st.Behind)
	}
}

func TestFetchNotRepository(t *testing.T) {
	if err := Fetch(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error fetching outside a repository")
	}
}

func TestClone(t *testing.T) {
	origin := initOrigin(t)
	dest := filepath.Join(t.TempDir(), "nested", "app")

	if err := Clone(context.Background(), origin, dest); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !IsRepo(dest) {
		t.Fatal("dest is not a repository after Clone")
	}
	if got := RemoteURL(context.Background(), dest); got != origin {
		t.Errorf("RemoteURL = %q, want %q", got, origin)
	}

	if err := Clone(context.Background(), filepath.Join(t.TempDir(), "missing.git"), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error cloning a missing remote")
	}
}

// initOrigin returns the path of a bare repository holding one commit.
func initOrigin(t *testing.T) string {
	t.Helper()
	src := initRepo(t)
	commit(t, src, "initial")
	origin := filepath.Join(t.TempDir(), "origin.git")
	gitRun(t, src, "clone", "-q", "--bare", src, origin)
	return origin
}

func commit(t *testing.T, dir, msg string) {
	t.Helper()
	gitRun(t, dir, "-c", "user.name=devdeck", "-c", "user.email=devdeck@example.com", "commit", "-q", "--allow-empty", "-m", msg)
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitRun(t, dir, "init", "-q")
	return dir
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
}
