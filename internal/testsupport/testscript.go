// Package testsupport builds the ws binary and prepares fixture
// configuration for testscript-based CLI tests.
package testsupport

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce sync.Once
	wsPath    string
	buildErr  error
)

// BuildWS builds the ws binary once and returns its path.
func BuildWS(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "ws-bin-")
		if err != nil {
			buildErr = err
			return
		}

		wsPath = filepath.Join(binDir, "ws")
		cmd := exec.Command("go", "build", "-o", wsPath, "./cmd/ws")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build ws: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return wsPath
}

// SetupScriptEnv prepares a complete single-filesystem installation inside
// the script's work directory: two candidate spaces with trash
// subdirectories, a database directory, and a ws.conf whose db account is
// the current (unprivileged) user so record chowns succeed without any
// capability.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("WS", BuildWS(t))

	for _, dir := range []string{
		filepath.Join("spaces", "a", ".trash"),
		filepath.Join("spaces", "b", ".trash"),
		filepath.Join("db", ".trash"),
	} {
		if err := os.MkdirAll(filepath.Join(env.WorkDir, dir), 0o755); err != nil {
			return err
		}
	}

	conf := fmt.Sprintf(`dbuid = %d
dbgid = %d
default = "scratch"
duration = 30
maxextensions = 3

[workspaces.scratch]
spaces = [%q, %q]
database = %q
deleted = ".trash"
duration = 30
maxextensions = 2
`,
		os.Getuid(), os.Getgid(),
		filepath.Join(env.WorkDir, "spaces", "a"),
		filepath.Join(env.WorkDir, "spaces", "b"),
		filepath.Join(env.WorkDir, "db"),
	)

	confPath := filepath.Join(env.WorkDir, "ws.conf")
	if err := os.WriteFile(confPath, []byte(conf), 0o644); err != nil {
		return err
	}
	env.Setenv("WS_CONF", confPath)
	env.Setenv("WS_PRIVATE_CONF", filepath.Join(env.WorkDir, "ws_private.conf"))

	u, err := user.Current()
	if err != nil {
		return err
	}
	env.Setenv("USERNAME", u.Username)

	return nil
}

// CmdEnvSet stores the trimmed contents of a file in an env var.
func CmdEnvSet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("envset does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: envset VAR FILE")
	}

	value := strings.TrimSpace(ts.ReadFile(args[1]))
	ts.Setenv(args[0], value)
}

// CmdTrashed finds the single trash entry whose name starts with the given
// prefix and stores the full tagged name in an env var. Release tags
// entries with the wall-clock timestamp, so scripts cannot spell the name
// literally.
func CmdTrashed(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("trashed does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: trashed DIR PREFIX VAR")
	}

	dirEntries, err := os.ReadDir(ts.MkAbs(args[0]))
	if err != nil {
		ts.Fatalf("read trash directory: %v", err)
	}

	var found []string
	for _, entry := range dirEntries {
		if strings.HasPrefix(entry.Name(), args[1]) {
			found = append(found, entry.Name())
		}
	}
	if len(found) != 1 {
		ts.Fatalf("expected one trash entry with prefix %q, found %d", args[1], len(found))
	}
	ts.Setenv(args[2], found[0])
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
