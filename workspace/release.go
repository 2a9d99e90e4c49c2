package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wskit/ws/internal/privs"
)

// ReleaseOptions are the inputs of one release request.
type ReleaseOptions struct {
	Name       string
	Filesystem string
}

// ReleaseResult reports where the released workspace went.
type ReleaseResult struct {
	// TrashedName is the generation-tagged name under the trash
	// namespace, usable later with Restore.
	TrashedName string

	// Directory is the trashed directory's new location.
	Directory string
}

// Release moves a live workspace and its record into the trash namespace.
//
// The trashed name carries the release timestamp as a generation label, so
// a future workspace with the same name can be released without colliding.
// The record moves first; if the subsequent directory move fails the pair
// is left split between live and trash namespaces, reported with both
// paths for manual reconciliation, and never retried automatically.
func (m *Manager) Release(opts ReleaseOptions) (ReleaseResult, error) {
	if err := validateName(opts.Name); err != nil {
		return ReleaseResult{}, err
	}

	_, fs, err := m.resolveFilesystem(opts.Filesystem)
	if err != nil {
		return ReleaseResult{}, err
	}

	// Only the caller's own workspaces can be released.
	recPath := filepath.Join(fs.Database, m.id.Username+"-"+opts.Name)
	rec, err := m.records.Read(recPath)
	if err != nil {
		return ReleaseResult{}, err
	}

	tag := m.id.Username + "-" + opts.Name + "-" + strconv.FormatInt(m.now().Unix(), 10)

	recTarget := filepath.Join(fs.Database, fs.Deleted, tag)
	if err := m.records.Rename(recPath, recTarget); err != nil {
		return ReleaseResult{}, fmt.Errorf("%w: move record %s: %v", ErrRelease, recPath, err)
	}

	dirTarget := filepath.Join(filepath.Dir(rec.Workspace), fs.Deleted, tag)
	if err := m.moveDirectory(rec.Workspace, dirTarget); err != nil {
		// The record already sits in the trash; say so explicitly,
		// recovery is manual.
		return ReleaseResult{}, fmt.Errorf("%w: record moved to %s but directory %s could not be moved to %s: %v",
			ErrRelease, recTarget, rec.Workspace, dirTarget, err)
	}

	return ReleaseResult{TrashedName: tag, Directory: dirTarget}, nil
}

// moveDirectory renames a directory under raised capability, falling back
// to the external mover when rename fails (directory renames return EXDEV
// on some filesystems even within one namespace).
func (m *Manager) moveDirectory(source, target string) error {
	return m.broker.With(privs.DACOverride, func() error {
		if err := os.Rename(source, target); err == nil {
			return nil
		}
		return m.mv.Move(source, target)
	})
}
