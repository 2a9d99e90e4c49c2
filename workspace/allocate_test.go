package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/privs"
	"github.com/wskit/ws/internal/recorddb"
	"github.com/wskit/ws/workspace"
)

func TestAllocate_CreatesWorkspace(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if !result.Created {
		t.Error("expected Created")
	}
	if result.Filesystem != "scratch" {
		t.Errorf("filesystem = %q, expected scratch", result.Filesystem)
	}

	want := filepath.Join(env.root, "spaces", "a", "alice-proj")
	if result.Directory != want {
		t.Errorf("directory = %q, expected %q", result.Directory, want)
	}

	info, err := os.Stat(result.Directory)
	if err != nil {
		t.Fatalf("stat workspace: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o700 {
		t.Errorf("mode = %o, expected 700", mode)
	}

	store := recorddb.NewStore(privs.NewUnprivileged())
	rec, err := store.Read(env.recordPath("proj"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if rec.Workspace != result.Directory {
		t.Errorf("record workspace = %q, expected %q", rec.Workspace, result.Directory)
	}
	if rec.Extensions != 2 {
		t.Errorf("record extensions = %d, expected filesystem maximum 2", rec.Extensions)
	}
	if rec.Acctcode != "hpc" {
		t.Errorf("record acctcode = %q, expected primary group", rec.Acctcode)
	}
	if rec.Expiration != fixedNow.Add(30*24*time.Hour).Unix() {
		t.Errorf("record expiration = %d, expected 30 days out", rec.Expiration)
	}
}

func TestAllocate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	first, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	second, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}

	if second.Created || second.Extended {
		t.Error("second allocate must neither create nor extend")
	}
	if second.Directory != first.Directory {
		t.Errorf("directory changed: %q then %q", first.Directory, second.Directory)
	}
	if second.Extensions != first.Extensions {
		t.Errorf("extensions changed: %d then %d", first.Extensions, second.Extensions)
	}
}

func TestAllocate_ClampsDuration(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("the fixture identity is privileged under uid 0 and bypasses the clamp")
	}

	env := newTestEnv(t)
	mgr := env.manager(t)

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj", DurationDays: 60})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if result.Remaining != 30*24*time.Hour {
		t.Errorf("remaining = %v, expected clamp to 30 days", result.Remaining)
	}
	if !strings.Contains(env.diag.String(), "Warning:") {
		t.Error("clamping must surface a warning")
	}
}

func TestAllocate_RemainingIsWholeDays(t *testing.T) {
	env := newTestEnv(t)
	// A wall clock is never on a whole-second boundary; the reported
	// remaining time must still cover the full granted period.
	mgr := workspace.New(workspace.Options{
		Config:   env.cfg,
		Identity: env.id,
		Broker:   privs.NewUnprivileged(),
		Diag:     &env.diag,
		Now:      func() time.Time { return fixedNow.Add(700 * time.Millisecond) },
		RandInt:  func(int) int { return 0 },
	})

	created, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if created.Remaining != 30*24*time.Hour {
		t.Errorf("created remaining = %v, expected exactly 30 days", created.Remaining)
	}

	reused, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if reused.Remaining != 30*24*time.Hour {
		t.Errorf("reused remaining = %v, expected exactly 30 days", reused.Remaining)
	}

	extended, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj", Extend: true})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if extended.Remaining != 30*24*time.Hour {
		t.Errorf("extended remaining = %v, expected exactly 30 days", extended.Remaining)
	}
}

func TestAllocate_PicksConfiguredSpace(t *testing.T) {
	env := newTestEnv(t)
	env.space = 1
	mgr := env.manager(t)

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	want := filepath.Join(env.root, "spaces", "b", "alice-proj")
	if result.Directory != want {
		t.Errorf("directory = %q, expected %q", result.Directory, want)
	}
}

func TestAllocate_ACLDenied(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	_, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj", Filesystem: "restricted"})
	if !errors.Is(err, workspace.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	// Denial must leave nothing behind.
	if exists(filepath.Join(env.root, "restricted", "db", "alice-proj")) {
		t.Error("record created despite denial")
	}
	entries, err := os.ReadDir(filepath.Join(env.root, "restricted"))
	if err != nil {
		t.Fatalf("read restricted space: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "db" {
			t.Errorf("unexpected entry %q in restricted space", entry.Name())
		}
	}
}

func TestAllocate_Prefix(t *testing.T) {
	env := newTestEnv(t)
	mgr := workspace.New(workspace.Options{
		Config:   env.cfg,
		Identity: env.id,
		Broker:   privs.NewUnprivileged(),
		Diag:     &env.diag,
		Now:      func() time.Time { return fixedNow },
		RandInt:  func(int) int { return 0 },
		Prefix: func(filesystem, username string) (string, error) {
			return "sub", nil
		},
	})

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	want := filepath.Join(env.root, "spaces", "a", "sub", "alice-proj")
	if result.Directory != want {
		t.Errorf("directory = %q, expected %q", result.Directory, want)
	}
}

func TestAllocate_PrefixFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	mgr := workspace.New(workspace.Options{
		Config:   env.cfg,
		Identity: env.id,
		Broker:   privs.NewUnprivileged(),
		Diag:     &env.diag,
		Now:      func() time.Time { return fixedNow },
		RandInt:  func(int) int { return 0 },
		Prefix: func(filesystem, username string) (string, error) {
			return "", errors.New("lua blew up")
		},
	})

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("a failing callout must not abort allocation: %v", err)
	}

	want := filepath.Join(env.root, "spaces", "a", "alice-proj")
	if result.Directory != want {
		t.Errorf("directory = %q, expected no prefix", result.Directory)
	}
	if !strings.Contains(env.diag.String(), "Warning:") {
		t.Error("callout failure must surface a warning")
	}
}

func TestAllocate_UnknownFilesystem(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	_, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj", Filesystem: "nope"})
	if !errors.Is(err, config.ErrUnknownFilesystem) {
		t.Fatalf("expected ErrUnknownFilesystem, got %v", err)
	}
}

func TestAllocate_InvalidName(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	for _, name := range []string{"../evil", "a/b", "", ".hidden", "x..y"} {
		if _, err := mgr.Allocate(workspace.AllocateOptions{Name: name}); !errors.Is(err, workspace.ErrInvalidName) {
			t.Errorf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestExtend_ConsumesExtensions(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	if _, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	result, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj", Extend: true})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !result.Extended || result.Extensions != 1 {
		t.Fatalf("result = %+v, expected extended with 1 remaining", result)
	}

	result, err = mgr.Allocate(workspace.AllocateOptions{Name: "proj", Extend: true})
	if err != nil {
		t.Fatalf("second extend: %v", err)
	}
	if result.Extensions != 0 {
		t.Fatalf("extensions = %d, expected 0", result.Extensions)
	}

	// The budget is exhausted; further extends fail and mutate nothing.
	_, err = mgr.Allocate(workspace.AllocateOptions{Name: "proj", Extend: true})
	if !errors.Is(err, workspace.ErrNoExtensionsLeft) {
		t.Fatalf("expected ErrNoExtensionsLeft, got %v", err)
	}

	store := recorddb.NewStore(privs.NewUnprivileged())
	rec, err := store.Read(env.recordPath("proj"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if rec.Extensions != 0 {
		t.Errorf("extensions = %d, expected to stay 0", rec.Extensions)
	}
}

func TestExtend_MissingRecord(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	_, err := mgr.Allocate(workspace.AllocateOptions{Name: "ghost", Extend: true})
	if !errors.Is(err, workspace.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
