package git

import (
	"bytes"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

// isolateGitConfig keeps the developer's global and system git config out of the test.
func isolateGitConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(home, ".gitconfig"))
	t.Setenv("GIT_TERMINAL_PROMPT", "0")
}

func newTestClient(t *testing.T, dir string) (*Client, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient(NewExecRunner(dir, logger, false), dir, logger)
	client.TempDir = filepath.Join(t.TempDir(), "scratch")
	return client, &logs
}

// initRepo creates a repository on branch main with a configured identity.
func initRepo(t *testing.T, dir string) {
	t.Helper()
	mustRunGit(t, dir, "init")
	mustRunGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	mustRunGit(t, dir, "config", "user.name", "Test User")
	mustRunGit(t, dir, "config", "user.email", "test@example.com")
}

func commitFile(t *testing.T, dir, name, contents, message string) string {
	t.Helper()
	writeFile(t, filepath.Join(dir, name), contents)
	mustRunGit(t, dir, "add", name)
	mustRunGit(t, dir, "commit", "-m", message)
	return revParse(t, dir, "HEAD")
}

func initBare(t *testing.T, path string) {
	t.Helper()
	mustRunGit(t, "", "init", "--bare", path)
}

func revParse(t *testing.T, dir, rev string) string {
	t.Helper()
	return strings.TrimSpace(string(mustCaptureGit(t, dir, "rev-parse", rev)))
}

func bareRef(t *testing.T, bare, ref string) (string, bool) {
	t.Helper()
	cmd := exec.Command("git", "--git-dir", bare, "rev-parse", "--verify", "--quiet", ref)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

func parentCount(t *testing.T, gitDirArgs []string, rev string) int {
	t.Helper()
	args := append(append([]string{}, gitDirArgs...), "rev-list", "--parents", "-n", "1", rev)
	out := mustCaptureGit(t, "", args...)
	return len(strings.Fields(string(out))) - 1
}

func mustRunGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	_ = mustCaptureGit(t, dir, args...)
}

func mustCaptureGit(t *testing.T, dir string, args ...string) []byte {
	t.Helper()
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	cmdArgs := append([]string{"-C", dir}, args...)
	if dir == "" {
		cmdArgs = args
	}
	cmd := exec.Command("git", cmdArgs...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(cmdArgs, " "), err, string(output))
	}
	return output
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file failed: %v", err)
	}
	return string(data)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
