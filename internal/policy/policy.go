// Package policy decides which filesystem a request lands on and which
// limits apply to it.
package policy

import (
	"errors"

	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/identity"
)

// ErrAccessDenied indicates the identity is not allowed to use the
// requested filesystem.
var ErrAccessDenied = errors.New("not allowed to use this workspace filesystem")

// ResolveFilesystem returns the name of the filesystem a request applies
// to. An explicit request is passed through untouched; the caller's config
// lookup rejects unknown names, and ACL checking happens separately.
// Otherwise defaults resolve in order: per-user default, primary-group
// default, any secondary-group default in group-list order, global default.
func ResolveFilesystem(id identity.Identity, cfg *config.Config, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	userDefaults := make(map[string]string)
	groupDefaults := make(map[string]string)
	for _, name := range cfg.FilesystemNames() {
		fs := cfg.Workspaces[name]
		for _, u := range fs.UserDefault {
			if _, ok := userDefaults[u]; !ok {
				userDefaults[u] = name
			}
		}
		for _, g := range fs.GroupDefault {
			if _, ok := groupDefaults[g]; !ok {
				groupDefaults[g] = name
			}
		}
	}

	if name, ok := userDefaults[id.Username]; ok {
		return name, nil
	}
	if name, ok := groupDefaults[id.PrimaryGroup]; ok {
		return name, nil
	}
	for _, g := range id.Groups {
		if name, ok := groupDefaults[g]; ok {
			return name, nil
		}
	}

	return cfg.Default, nil
}

// CheckACL authorizes the identity against the filesystem's ACLs. Both
// lists empty means open access. Otherwise the username must appear in
// user_acl or one of the identity's groups in group_acl.
func CheckACL(id identity.Identity, fs config.Filesystem) error {
	if len(fs.UserACL) == 0 && len(fs.GroupACL) == 0 {
		return nil
	}

	for _, u := range fs.UserACL {
		if u == id.Username {
			return nil
		}
	}
	for _, g := range fs.GroupACL {
		if id.MemberOf(g) {
			return nil
		}
	}

	return ErrAccessDenied
}

// Limits are the resolved duration and extension ceilings for one request.
type Limits struct {
	// DurationDays is the effective workspace duration.
	DurationDays int

	// MaxExtensions is the extension ceiling a new record starts with.
	MaxExtensions int

	// Clamped is set when the requested duration exceeded the ceiling
	// and was reduced. Callers surface this as a warning, not an error.
	Clamped bool
}

// ResolveLimits computes the effective duration and extension ceiling.
// Each value resolves per-user exception > per-filesystem > global. An
// unprivileged request above the duration ceiling is clamped down;
// privileged identities bypass the clamp.
func ResolveLimits(id identity.Identity, cfg *config.Config, ucfg *config.UserConfig, filesystem string, requestedDays int) Limits {
	ceiling := firstDefined(cfg.Duration,
		func() (int, bool) { return ucfg.ExceptionDuration(filesystem, id.Username) },
		func() (int, bool) { return cfg.FilesystemDuration(filesystem) },
	)
	maxExtensions := firstDefined(cfg.MaxExtensions,
		func() (int, bool) { return ucfg.ExceptionMaxExtensions(filesystem, id.Username) },
		func() (int, bool) { return cfg.FilesystemMaxExtensions(filesystem) },
	)

	limits := Limits{DurationDays: requestedDays, MaxExtensions: maxExtensions}
	if requestedDays <= 0 {
		limits.DurationDays = ceiling
	} else if !id.Privileged() && requestedDays > ceiling {
		limits.DurationDays = ceiling
		limits.Clamped = true
	}

	return limits
}

// firstDefined returns the first present value from the ordered sources,
// falling back to the global default when none is present.
func firstDefined(fallback int, sources ...func() (int, bool)) int {
	for _, source := range sources {
		if v, ok := source(); ok {
			return v
		}
	}
	return fallback
}
