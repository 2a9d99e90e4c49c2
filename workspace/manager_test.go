package workspace_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/identity"
	"github.com/wskit/ws/internal/privs"
	"github.com/wskit/ws/workspace"
)

// fixedNow keeps expirations and trash tags deterministic.
var fixedNow = time.Unix(1700000000, 0)

// testEnv is a complete single-filesystem installation rooted in a temp
// directory. The db account is the current user so record chowns succeed
// without privilege.
type testEnv struct {
	root string
	cfg  *config.Config
	id   identity.Identity
	diag bytes.Buffer

	// space picks the candidate space index; 0 unless a test overrides.
	space int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{
		filepath.Join("spaces", "a", ".trash"),
		filepath.Join("spaces", "b", ".trash"),
		filepath.Join("db", ".trash"),
		filepath.Join("restricted", "db"),
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	conf := fmt.Sprintf(`
dbuid = %d
dbgid = %d
default = "scratch"
duration = 60
maxextensions = 3

[workspaces.scratch]
spaces = [%q, %q]
database = %q
deleted = ".trash"
duration = 30
maxextensions = 2

[workspaces.restricted]
spaces = [%q]
database = %q
deleted = ".trash"
user_acl = ["carol"]
`,
		os.Getuid(), os.Getgid(),
		filepath.Join(root, "spaces", "a"),
		filepath.Join(root, "spaces", "b"),
		filepath.Join(root, "db"),
		filepath.Join(root, "restricted"),
		filepath.Join(root, "restricted", "db"),
	)

	cfg, err := config.Parse([]byte(conf))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	return &testEnv{
		root: root,
		cfg:  cfg,
		id: identity.Identity{
			UID:          os.Getuid(),
			GID:          os.Getgid(),
			Username:     "alice",
			PrimaryGroup: "hpc",
			Groups:       []string{"hpc"},
		},
	}
}

func (env *testEnv) manager(t *testing.T) *workspace.Manager {
	t.Helper()
	return workspace.New(workspace.Options{
		Config:   env.cfg,
		Identity: env.id,
		Broker:   privs.NewUnprivileged(),
		Diag:     &env.diag,
		Now:      func() time.Time { return fixedNow },
		RandInt:  func(n int) int { return env.space % n },
	})
}

func (env *testEnv) managerWithMover(t *testing.T, mv *fakeMover) *workspace.Manager {
	t.Helper()
	return workspace.New(workspace.Options{
		Config:   env.cfg,
		Identity: env.id,
		Broker:   privs.NewUnprivileged(),
		Mover:    mv,
		Diag:     &env.diag,
		Now:      func() time.Time { return fixedNow },
		RandInt:  func(n int) int { return env.space % n },
	})
}

func (env *testEnv) recordPath(name string) string {
	return filepath.Join(env.root, "db", env.id.Username+"-"+name)
}

func (env *testEnv) trashedRecordPath(tag string) string {
	return filepath.Join(env.root, "db", ".trash", tag)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
