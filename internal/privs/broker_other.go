//go:build !linux

package privs

// NewBroker returns an unprivileged broker on platforms without Linux
// capabilities. The setuid variant is Linux-only as well: ws relies on
// per-syscall euid switching semantics that are not portable.
func NewBroker(dbUID int) (*Broker, error) {
	return NewUnprivileged(), nil
}
