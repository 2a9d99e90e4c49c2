package workspace

import (
	"errors"

	"github.com/wskit/ws/internal/policy"
	"github.com/wskit/ws/internal/recorddb"
)

var (
	// ErrRecordNotFound indicates no record exists for the workspace name.
	ErrRecordNotFound = recorddb.ErrNotFound
	// ErrTargetNotFound indicates a restore target that is not a live
	// workspace.
	ErrTargetNotFound = errors.New("target workspace does not exist")
	// ErrAccessDenied indicates the filesystem's ACLs reject the caller.
	ErrAccessDenied = policy.ErrAccessDenied
	// ErrNotAuthorized indicates the caller may not act on this
	// workspace (extend or restore on someone else's behalf).
	ErrNotAuthorized = errors.New("not authorized for this workspace")
	// ErrNoExtensionsLeft indicates an extend request on a record whose
	// extension budget is exhausted.
	ErrNoExtensionsLeft = errors.New("no extensions remaining")
	// ErrInvalidName indicates a workspace name that could escape the
	// database or space directories.
	ErrInvalidName = errors.New("invalid workspace name")

	// ErrWorkspaceCreate indicates the workspace directory could not be
	// created.
	ErrWorkspaceCreate = errors.New("could not create workspace directory")
	// ErrOwnershipChange indicates the directory could not be handed to
	// the requesting user; the partially created directory is rolled
	// back.
	ErrOwnershipChange = errors.New("could not change owner of workspace directory")
	// ErrPermissionChange indicates the directory mode could not be
	// restricted; the partially created directory is rolled back.
	ErrPermissionChange = errors.New("could not change permissions of workspace directory")

	// ErrRelease indicates a failed release. If the record had already
	// moved, the failure message names both paths: the pair needs manual
	// reconciliation and is never retried automatically.
	ErrRelease = errors.New("could not release workspace")
	// ErrRestore indicates a failed restore, with the same
	// manual-reconciliation caveat.
	ErrRestore = errors.New("could not restore workspace")
)
