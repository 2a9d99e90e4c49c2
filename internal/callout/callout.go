// Package callout runs the optional prefix callout that computes a
// path prefix for new workspace directories.
package callout

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// PrefixFunc computes the path prefix used between a space directory and
// the workspace name, for example a hashed per-user subdirectory.
type PrefixFunc func(filesystem, username string) (string, error)

// None is the default prefix strategy: no prefix at all.
func None(filesystem, username string) (string, error) {
	return "", nil
}

// Script returns a PrefixFunc that executes the program at path with the
// filesystem and username as arguments and takes its trimmed stdout as the
// prefix. Callers treat any returned error as a degradation to an empty
// prefix, never as a fatal condition.
func Script(path string) PrefixFunc {
	return func(filesystem, username string) (string, error) {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("prefix callout %s: %w", path, err)
		}

		out, err := exec.Command(path, filesystem, username).Output()
		if err != nil {
			return "", fmt.Errorf("prefix callout %s: %w", path, err)
		}

		return strings.TrimSpace(string(out)), nil
	}
}
