package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wskit/ws/workspace"
)

func TestRelease_MovesRecordAndDirectory(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	allocated, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := os.WriteFile(filepath.Join(allocated.Directory, "data.txt"), []byte("results"), 0o600); err != nil {
		t.Fatalf("write content: %v", err)
	}

	released, err := mgr.Release(workspace.ReleaseOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	wantTag := "alice-proj-1700000000"
	if released.TrashedName != wantTag {
		t.Errorf("trashed name = %q, expected %q", released.TrashedName, wantTag)
	}

	if exists(env.recordPath("proj")) {
		t.Error("live record still present")
	}
	if !exists(env.trashedRecordPath(wantTag)) {
		t.Error("trashed record missing")
	}

	if exists(allocated.Directory) {
		t.Error("live directory still present")
	}
	trashedData := filepath.Join(env.root, "spaces", "a", ".trash", wantTag, "data.txt")
	if !exists(trashedData) {
		t.Errorf("trashed directory content missing at %s", trashedData)
	}
}

func TestRelease_MissingRecord(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.manager(t)

	_, err := mgr.Release(workspace.ReleaseOptions{Name: "ghost"})
	if !errors.Is(err, workspace.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

// fakeMover records the fallback call and performs the move itself.
type fakeMover struct {
	calls [][2]string
}

func (m *fakeMover) Move(source, target string) error {
	m.calls = append(m.calls, [2]string{source, target})
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Rename(source, target)
}

func TestRelease_FallsBackToMover(t *testing.T) {
	env := newTestEnv(t)
	mv := &fakeMover{}
	mgr := env.managerWithMover(t, mv)

	allocated, err := mgr.Allocate(workspace.AllocateOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Without the trash directory next to the workspace, the plain
	// rename fails and the external mover takes over.
	if err := os.Remove(filepath.Join(env.root, "spaces", "a", ".trash")); err != nil {
		t.Fatalf("remove trash dir: %v", err)
	}

	released, err := mgr.Release(workspace.ReleaseOptions{Name: "proj"})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	if len(mv.calls) != 1 {
		t.Fatalf("mover calls = %d, expected 1", len(mv.calls))
	}
	if mv.calls[0][0] != allocated.Directory || mv.calls[0][1] != released.Directory {
		t.Errorf("mover called with %v", mv.calls[0])
	}
}
