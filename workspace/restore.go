package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RestoreOptions are the inputs of one restore request.
type RestoreOptions struct {
	// TrashedName is the full tagged name from Release, of the form
	// <owner>-<name>-<timestamp>.
	TrashedName string

	// Target names an existing live workspace that receives the trashed
	// content.
	Target string

	Filesystem string

	// User restores on another user's behalf; privileged callers only.
	User string
}

// RestoreResult reports where the trashed content landed.
type RestoreResult struct {
	Directory string
}

// Restore moves a trashed workspace's content into an existing live
// workspace and consumes the trashed record.
//
// The target must have been allocated beforehand; restore never creates
// directories. The trashed content appears as a subdirectory of the target
// named after the trashed name.
func (m *Manager) Restore(opts RestoreOptions) (RestoreResult, error) {
	if err := validateName(opts.TrashedName); err != nil {
		return RestoreResult{}, err
	}
	if err := validateName(opts.Target); err != nil {
		return RestoreResult{}, err
	}

	_, fs, err := m.resolveFilesystem(opts.Filesystem)
	if err != nil {
		return RestoreResult{}, err
	}

	owner := m.id.Username
	if opts.User != "" && m.id.Privileged() {
		owner = opts.User
	}

	// Unprivileged callers may only touch their own trashed entries;
	// the trashed record is not owned by them, so the name prefix is
	// the authorization boundary.
	if !strings.HasPrefix(opts.TrashedName, owner+"-") {
		return RestoreResult{}, ErrNotAuthorized
	}

	targetRecPath := filepath.Join(fs.Database, owner+"-"+opts.Target)
	targetRec, err := m.records.Read(targetRecPath)
	if errors.Is(err, ErrRecordNotFound) {
		return RestoreResult{}, fmt.Errorf("%w: %s", ErrTargetNotFound, targetRecPath)
	}
	if err != nil {
		return RestoreResult{}, err
	}

	trashedRecPath := filepath.Join(fs.Database, fs.Deleted, opts.TrashedName)
	trashedRec, err := m.records.Read(trashedRecPath)
	if err != nil {
		return RestoreResult{}, err
	}

	// The trashed directory sits in the trash sibling of the original
	// workspace's parent, under the tagged name.
	source := filepath.Join(filepath.Dir(trashedRec.Workspace), fs.Deleted, opts.TrashedName)
	dest := filepath.Join(targetRec.Workspace, opts.TrashedName)

	if err := m.moveDirectory(source, dest); err != nil {
		return RestoreResult{}, fmt.Errorf("%w: move %s to %s: %v", ErrRestore, source, dest, err)
	}

	if err := m.records.Remove(trashedRecPath); err != nil {
		return RestoreResult{}, fmt.Errorf("%w: directory restored to %s but record %s could not be removed: %v",
			ErrRestore, dest, trashedRecPath, err)
	}

	return RestoreResult{Directory: dest}, nil
}

// RestorableEntry is one trashed workspace the caller may restore.
type RestorableEntry struct {
	// Name is the full tagged trash name.
	Name string

	// ReleasedAt is parsed from the name's timestamp tag; zero when the
	// name does not carry one.
	ReleasedAt time.Time
}

// Restorable lists the caller's trashed workspaces on the resolved
// filesystem, sorted by name.
func (m *Manager) Restorable(explicitFilesystem string) ([]RestorableEntry, error) {
	_, fs, err := m.resolveFilesystem(explicitFilesystem)
	if err != nil {
		return nil, err
	}

	trashDir := filepath.Join(fs.Database, fs.Deleted)
	dirEntries, err := os.ReadDir(trashDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trash directory %s: %w", trashDir, err)
	}

	var entries []RestorableEntry
	for _, de := range dirEntries {
		name := de.Name()
		if !strings.HasPrefix(name, m.id.Username+"-") {
			continue
		}
		entries = append(entries, RestorableEntry{
			Name:       name,
			ReleasedAt: releaseTime(name),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// releaseTime extracts the generation timestamp from a tagged trash name.
func releaseTime(name string) time.Time {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(name[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
