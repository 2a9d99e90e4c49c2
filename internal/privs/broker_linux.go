package privs

import (
	"fmt"
	"os"
	"syscall"

	"github.com/moby/sys/capability"
)

// NewBroker selects the privilege mechanism available to this process and
// returns a broker over it. dbUID is the unprivileged identity the setuid
// variant falls back to between brackets.
//
// Preference order: effective-capability toggling when CAP_DAC_OVERRIDE and
// CAP_CHOWN are in the permitted set, euid switching when the binary runs
// setuid root, otherwise an unprivileged broker whose syscalls run with the
// caller's own rights (useful on filesystems the caller can already write,
// and in tests).
func NewBroker(dbUID int) (*Broker, error) {
	// Pid 0 addresses the calling process; capset refuses to modify
	// any other pid, so a concrete pid here would break every Apply.
	caps, err := capability.NewPid2(0)
	if err == nil {
		if err := caps.Load(); err == nil &&
			caps.Get(capability.PERMITTED, capability.CAP_DAC_OVERRIDE) &&
			caps.Get(capability.PERMITTED, capability.CAP_CHOWN) {
			return newBroker(&capsStrategy{caps: caps}), nil
		}
	}

	if os.Geteuid() == 0 && os.Getuid() != 0 {
		return newBroker(&setuidStrategy{dbUID: dbUID}), nil
	}

	return NewUnprivileged(), nil
}

func capValue(c Capability) capability.Cap {
	if c == Chown {
		return capability.CAP_CHOWN
	}
	return capability.CAP_DAC_OVERRIDE
}

// capsStrategy toggles bits in the process's effective capability set.
type capsStrategy struct {
	caps capability.Capabilities
}

func (s *capsStrategy) raise(c Capability) error {
	if err := s.caps.Load(); err != nil {
		return fmt.Errorf("load capability sets: %w", err)
	}
	s.caps.Set(capability.EFFECTIVE, capValue(c))
	if err := s.caps.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("apply capability sets: %w", err)
	}
	return nil
}

func (s *capsStrategy) lower(c Capability) error {
	if err := s.caps.Load(); err != nil {
		return fmt.Errorf("load capability sets: %w", err)
	}
	s.caps.Unset(capability.EFFECTIVE, capValue(c))
	if err := s.caps.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("apply capability sets: %w", err)
	}
	return nil
}

func (s *capsStrategy) drop() error {
	s.caps.Clear(capability.CAPS)
	s.caps.Set(capability.PERMITTED, capability.CAP_DAC_OVERRIDE, capability.CAP_CHOWN)
	if err := s.caps.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("apply capability sets: %w", err)
	}
	return nil
}

// setuidStrategy switches the effective uid between root and the db account.
// Used when the platform provides no fine-grained capabilities and the
// binary is installed setuid root.
type setuidStrategy struct {
	dbUID int
}

func (s *setuidStrategy) raise(Capability) error {
	if err := syscall.Seteuid(0); err != nil {
		return fmt.Errorf("seteuid 0: %w", err)
	}
	return nil
}

func (s *setuidStrategy) lower(Capability) error {
	if err := syscall.Seteuid(s.dbUID); err != nil {
		return fmt.Errorf("seteuid %d: %w", s.dbUID, err)
	}
	return nil
}

func (s *setuidStrategy) drop() error {
	if err := syscall.Seteuid(s.dbUID); err != nil {
		return fmt.Errorf("seteuid %d: %w", s.dbUID, err)
	}
	return nil
}
