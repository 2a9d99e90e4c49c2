// Package identity resolves the invoking user's identity from the OS.
package identity

import (
	"fmt"
	"os/user"
	"strconv"
)

// Identity describes the invoking user. It is resolved once per invocation
// and treated as immutable afterward.
type Identity struct {
	UID          int
	GID          int
	Username     string
	PrimaryGroup string

	// Groups holds the names of all groups the user belongs to, in the
	// order the OS reports them. Resolution precedence depends on this
	// order, so it is preserved as-is.
	Groups []string
}

// Privileged reports whether the identity may bypass policy limits and act
// on behalf of other users.
func (id Identity) Privileged() bool {
	return id.UID == 0
}

// MemberOf reports whether the identity belongs to the named group.
func (id Identity) MemberOf(group string) bool {
	for _, g := range id.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Current resolves the identity of the real (not effective) invoking user.
// In a setuid binary the effective uid may be elevated; ownership and policy
// decisions always follow the real uid.
func Current() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, fmt.Errorf("resolve current user: %w", err)
	}

	return Lookup(u.Username)
}

// Lookup resolves the identity of the named user.
func Lookup(username string) (Identity, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user %s: %w", username, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse uid for %s: %w", username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse gid for %s: %w", username, err)
	}

	primary, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup primary group for %s: %w", username, err)
	}

	groupIDs, err := u.GroupIds()
	if err != nil {
		return Identity{}, fmt.Errorf("list groups for %s: %w", username, err)
	}

	groups := make([]string, 0, len(groupIDs))
	for _, gidStr := range groupIDs {
		grp, err := user.LookupGroupId(gidStr)
		if err != nil {
			// Stale gid with no group entry; skip it like getgrgid
			// returning NULL.
			continue
		}
		groups = append(groups, grp.Name)
	}

	return Identity{
		UID:          uid,
		GID:          gid,
		Username:     u.Username,
		PrimaryGroup: primary.Name,
		Groups:       groups,
	}, nil
}
