// Package privs brackets individual syscalls with elevated privilege.
//
// The ws binary runs either with file capabilities (CAP_DAC_OVERRIDE and
// CAP_CHOWN permitted) or as a setuid-root executable. Both variants expose
// the same Broker: Raise puts exactly one capability into effect, Lower
// drops back to the unprivileged baseline. Callers never pair Raise/Lower by
// hand; they go through With, which lowers on every exit path.
//
// A failed Lower is fatal. Continuing to run with privilege the caller
// believes has been dropped is worse than dying, so the broker aborts the
// process rather than returning an error the caller might ignore.
package privs

import (
	"errors"
	"fmt"
	"os"
)

// Capability names one of the two privileges the tool ever needs.
type Capability int

const (
	// DACOverride bypasses file read/write/execute permission checks.
	// Needed to create directories in spaces the user cannot write and to
	// touch record files owned by the db account.
	DACOverride Capability = iota

	// Chown changes file ownership to arbitrary uids, used to hand the
	// workspace directory to the user and the record file to the db
	// account.
	Chown
)

func (c Capability) String() string {
	switch c {
	case DACOverride:
		return "CAP_DAC_OVERRIDE"
	case Chown:
		return "CAP_CHOWN"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// ErrAlreadyRaised indicates a nested raise attempt. The broker is not
// reentrant: one invocation performs one operation and holds at most one
// capability at a time.
var ErrAlreadyRaised = errors.New("capability already raised")

// strategy is the platform mechanism behind the broker: toggling effective
// capability bits, or switching the effective uid on setuid installs.
type strategy interface {
	raise(c Capability) error
	lower(c Capability) error

	// drop reduces held privilege to the baseline: nothing in effect,
	// only the two needed capabilities permitted (or euid == db uid).
	drop() error
}

// Broker mediates all privilege transitions for the process.
type Broker struct {
	strat  strategy
	raised bool

	// fatal is invoked when lowering privilege fails. Defaults to
	// printing the error and exiting; tests substitute a recorder.
	fatal func(err error)
}

func newBroker(strat strategy) *Broker {
	return &Broker{
		strat: strat,
		fatal: func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		},
	}
}

// With runs fn while the given capability is in effect. The capability is
// lowered on every exit path, including when fn returns an error. If raising
// fails, fn is never called. If lowering fails, the process aborts.
func (b *Broker) With(c Capability, fn func() error) error {
	if b.raised {
		return ErrAlreadyRaised
	}
	if err := b.strat.raise(c); err != nil {
		return fmt.Errorf("raise %s: %w", c, err)
	}
	b.raised = true

	defer func() {
		b.raised = false
		if err := b.strat.lower(c); err != nil {
			b.fatal(fmt.Errorf("lower %s: %w", c, err))
		}
	}()

	return fn()
}

// Drop reduces the process to its unprivileged baseline. It must be called
// once at startup, before any request input is examined.
func (b *Broker) Drop() error {
	if err := b.strat.drop(); err != nil {
		return fmt.Errorf("drop privileges: %w", err)
	}
	return nil
}

// SetFatalHandler replaces the abort-on-failed-lower behavior. Only tests
// should call this.
func (b *Broker) SetFatalHandler(fn func(err error)) {
	b.fatal = fn
}

// NewUnprivileged returns a broker whose brackets are no-ops. Privileged
// syscalls then run with whatever rights the process already has.
func NewUnprivileged() *Broker {
	return newBroker(noopStrategy{})
}

type noopStrategy struct{}

func (noopStrategy) raise(Capability) error { return nil }
func (noopStrategy) lower(Capability) error { return nil }
func (noopStrategy) drop() error            { return nil }
