package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wskit/ws/internal/callout"
	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/identity"
	"github.com/wskit/ws/internal/policy"
	"github.com/wskit/ws/internal/privs"
	"github.com/wskit/ws/internal/recorddb"
)

// AllocateOptions are the inputs of one allocate (or extend) request.
type AllocateOptions struct {
	// Name is the workspace name, unique per filesystem and owner.
	Name string

	// Filesystem explicitly requests a filesystem. Empty means resolve
	// through the default precedence chain.
	Filesystem string

	// DurationDays is the requested lifetime. Zero or negative means
	// "as long as allowed".
	DurationDays int

	// Extend consumes one extension of an existing workspace instead of
	// reusing it unchanged.
	Extend bool

	// ReminderDays and Mailaddress are stored in the record for the
	// external expiry mailer.
	ReminderDays int
	Mailaddress  string

	// User acts on another user's workspace. Privileged callers may
	// allocate on someone's behalf; combined with Extend, a caller with
	// access to the directory may extend a workspace they do not own.
	User string
}

// AllocateResult reports the outcome of an allocate request.
type AllocateResult struct {
	// Directory is the workspace path, the operation's sole stdout
	// output.
	Directory string

	// Filesystem is the resolved filesystem name.
	Filesystem string

	// Extensions is the number of extensions remaining on the record.
	Extensions int

	// Remaining is the time left until expiration.
	Remaining time.Duration

	// Created reports whether a new workspace was made (as opposed to
	// reused or extended).
	Created bool

	// Extended reports whether an extension was consumed.
	Extended bool
}

// Allocate creates a workspace, reuses an existing one, or extends it.
//
// The record file decides which: present means live (reuse or extend),
// absent means create. An extend request against an absent record is a hard
// error. Creation prepares the directory completely, under privilege
// brackets with rollback, before the record is written; a record without a
// backing directory is never observable.
func (m *Manager) Allocate(opts AllocateOptions) (AllocateResult, error) {
	if err := validateName(opts.Name); err != nil {
		return AllocateResult{}, err
	}

	fsName, fs, err := m.resolveFilesystem(opts.Filesystem)
	if err != nil {
		return AllocateResult{}, err
	}

	limits := policy.ResolveLimits(m.id, m.cfg, m.ucfg, fsName, opts.DurationDays)
	if limits.Clamped {
		m.warnf("duration longer than allowed for this workspace")
		m.warnf("setting duration to allowed maximum of %d days", limits.DurationDays)
	}

	// The record owner defaults to the caller. A privileged caller may
	// name someone else; with --extend anyone may name the owner of the
	// workspace they want extended, subject to the access check below.
	owner := m.id.Username
	if opts.User != "" && (opts.Extend || m.id.Privileged()) {
		owner = opts.User
	}

	recPath := filepath.Join(fs.Database, owner+"-"+opts.Name)

	rec, err := m.records.Read(recPath)
	switch {
	case err == nil:
		return m.allocateExisting(opts, fsName, recPath, rec, limits)
	case errors.Is(err, recorddb.ErrNotFound):
		if opts.Extend {
			return AllocateResult{}, fmt.Errorf("workspace cannot be extended: %w", err)
		}
		return m.create(opts, fsName, fs, owner, recPath, limits)
	default:
		return AllocateResult{}, err
	}
}

// allocateExisting handles the record-present case: report the workspace,
// extending it first if requested.
func (m *Manager) allocateExisting(opts AllocateOptions, fsName, recPath string, rec recorddb.Record, limits policy.Limits) (AllocateResult, error) {
	result := AllocateResult{
		Directory:  rec.Workspace,
		Filesystem: fsName,
		Extensions: rec.Extensions,
		Remaining:  time.Duration(rec.Expiration-m.now().Unix()) * time.Second,
	}

	if !opts.Extend {
		m.infof("reusing workspace.")
		return result, nil
	}

	if opts.User != "" && opts.User != m.id.Username && !m.id.Privileged() {
		m.infof("you are not owner of the workspace.")
		if unix.Access(rec.Workspace, unix.R_OK|unix.W_OK|unix.X_OK) != nil {
			m.infof("and you have no permissions to access the workspace, workspace will not be extended.")
			return AllocateResult{}, ErrNotAuthorized
		}
	}

	if rec.Extensions <= 0 {
		return AllocateResult{}, fmt.Errorf("%w for %s", ErrNoExtensionsLeft, rec.Workspace)
	}

	m.infof("extending workspace.")
	// Expiration and remaining time come from one whole-second clock
	// reading, so a fresh extension reports exactly the granted days.
	now := m.now().Unix()
	rec.Expiration = now + int64(limits.DurationDays)*24*3600
	rec.Extensions--
	if err := m.records.Update(recPath, rec, m.cfg.DBUID, m.cfg.DBGID); err != nil {
		return AllocateResult{}, err
	}

	result.Extensions = rec.Extensions
	result.Remaining = time.Duration(rec.Expiration-now) * time.Second
	result.Extended = true
	return result, nil
}

// create performs the absent-to-live transition.
func (m *Manager) create(opts AllocateOptions, fsName string, fs config.Filesystem, owner, recPath string, limits policy.Limits) (AllocateResult, error) {
	m.infof("creating workspace.")

	ownerID := m.id
	if owner != m.id.Username {
		var err error
		ownerID, err = identity.Lookup(owner)
		if err != nil {
			return AllocateResult{}, err
		}
	}

	space := fs.Spaces[m.randInt(len(fs.Spaces))]
	dir := filepath.Join(space, m.resolvePrefix(fsName, fs, owner), owner+"-"+opts.Name)

	err := m.broker.With(privs.DACOverride, func() error {
		return os.MkdirAll(dir, 0755)
	})
	if err != nil {
		return AllocateResult{}, fmt.Errorf("%w: %s: %v", ErrWorkspaceCreate, dir, err)
	}

	err = m.broker.With(privs.Chown, func() error {
		return os.Chown(dir, ownerID.UID, ownerID.GID)
	})
	if err != nil {
		m.rollbackDirectory(dir)
		return AllocateResult{}, fmt.Errorf("%w: %s: %v", ErrOwnershipChange, dir, err)
	}

	err = m.broker.With(privs.DACOverride, func() error {
		return os.Chmod(dir, 0700)
	})
	if err != nil {
		m.rollbackDirectory(dir)
		return AllocateResult{}, fmt.Errorf("%w: %s: %v", ErrPermissionChange, dir, err)
	}

	// The directory is fully prepared; only now does the record come
	// into existence. Exclusive creation makes a lost race with a
	// concurrent allocation of the same name visible instead of letting
	// both invocations claim success.
	now := m.now().Unix()
	expiration := now + int64(limits.DurationDays)*24*3600
	rec := recorddb.Record{
		Workspace:   dir,
		Expiration:  expiration,
		Extensions:  limits.MaxExtensions,
		Acctcode:    m.id.PrimaryGroup,
		Reminder:    opts.ReminderDays,
		Mailaddress: opts.Mailaddress,
	}
	if err := m.records.Create(recPath, rec, m.cfg.DBUID, m.cfg.DBGID); err != nil {
		if errors.Is(err, recorddb.ErrExists) {
			// Another invocation won the race after our absence
			// check. Their directory may be this very path, so
			// no rollback: rerun without flags to pick up the
			// existing workspace.
			return AllocateResult{}, err
		}
		m.rollbackDirectory(dir)
		return AllocateResult{}, err
	}

	return AllocateResult{
		Directory:  dir,
		Filesystem: fsName,
		Extensions: rec.Extensions,
		Remaining:  time.Duration(expiration-now) * time.Second,
		Created:    true,
	}, nil
}

// resolvePrefix consults the prefix callout, degrading to an empty prefix
// with a warning when the callout cannot run.
func (m *Manager) resolvePrefix(fsName string, fs config.Filesystem, owner string) string {
	prefixFn := m.prefix
	if prefixFn == nil {
		if fs.PrefixCallout == "" {
			return ""
		}
		prefixFn = callout.Script(fs.PrefixCallout)
	}

	prefix, err := prefixFn(fsName, owner)
	if err != nil {
		m.warnf("prefix callout failed, continuing without prefix: %v", err)
		return ""
	}
	if prefix != "" {
		m.infof("prefix=%s", prefix)
	}
	return prefix
}

// rollbackDirectory removes a partially created workspace directory.
func (m *Manager) rollbackDirectory(dir string) {
	err := m.broker.With(privs.DACOverride, func() error {
		return os.Remove(dir)
	})
	if err != nil {
		m.warnf("could not remove partially created directory %s: %v", dir, err)
	}
}
