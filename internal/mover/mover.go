// Package mover falls back to an external move when rename cannot cross
// filesystem boundaries.
package mover

import (
	"fmt"
	"os"
	"os/exec"
)

// Runner moves a file tree between two paths that may live on different
// filesystems. It exists as an interface so lifecycle tests can substitute
// a fake instead of spawning processes.
type Runner interface {
	Move(source, target string) error
}

// MV is the production Runner: it fork/execs /bin/mv directly. A shell is
// deliberately not involved; the binary may run setuid and must not let
// the caller's environment pick the program.
type MV struct{}

// Move runs /bin/mv source target and waits for it.
func (MV) Move(source, target string) error {
	cmd := exec.Command("/bin/mv", source, target)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mv %s %s: %w", source, target, err)
	}
	return nil
}
