package workspace

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/wskit/ws/internal/callout"
	"github.com/wskit/ws/internal/config"
	"github.com/wskit/ws/internal/identity"
	"github.com/wskit/ws/internal/mover"
	"github.com/wskit/ws/internal/policy"
	"github.com/wskit/ws/internal/privs"
	"github.com/wskit/ws/internal/recorddb"
)

// Manager orchestrates the workspace lifecycle for a single invocation.
//
// One Manager serves one resolved identity and performs exactly one
// operation; there is no in-process concurrency. Across processes the
// record file is the only mutual-exclusion signal.
type Manager struct {
	cfg     *config.Config
	ucfg    *config.UserConfig
	id      identity.Identity
	broker  *privs.Broker
	records *recorddb.Store
	mv      mover.Runner
	prefix  callout.PrefixFunc
	diag    io.Writer
	now     func() time.Time
	randInt func(n int) int
}

// Options configures a Manager. Config, Identity, and Broker are required;
// everything else has production defaults.
type Options struct {
	Config     *config.Config
	UserConfig *config.UserConfig
	Identity   identity.Identity
	Broker     *privs.Broker

	// Mover handles directory moves that cross filesystem boundaries.
	// Defaults to fork/exec of /bin/mv.
	Mover mover.Runner

	// Prefix overrides the per-filesystem prefix callout. When nil, the
	// filesystem's configured prefix_callout script is used, or no
	// prefix if none is configured.
	Prefix callout.PrefixFunc

	// Diag receives Info/Warning diagnostics. Defaults to stderr;
	// stdout stays reserved for the resolved workspace path.
	Diag io.Writer

	// Now and RandInt exist for deterministic tests.
	Now     func() time.Time
	RandInt func(n int) int
}

// New returns a Manager over the given collaborators.
func New(opts Options) *Manager {
	m := &Manager{
		cfg:     opts.Config,
		ucfg:    opts.UserConfig,
		id:      opts.Identity,
		broker:  opts.Broker,
		records: recorddb.NewStore(opts.Broker),
		mv:      opts.Mover,
		prefix:  opts.Prefix,
		diag:    opts.Diag,
		now:     opts.Now,
		randInt: opts.RandInt,
	}
	if m.ucfg == nil {
		m.ucfg = &config.UserConfig{}
	}
	if m.mv == nil {
		m.mv = mover.MV{}
	}
	if m.diag == nil {
		m.diag = os.Stderr
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.randInt == nil {
		m.randInt = rand.Intn
	}
	return m
}

// resolveFilesystem picks the filesystem for this request. An explicitly
// requested filesystem is checked against its ACLs; defaults resolve
// through the policy precedence chain.
func (m *Manager) resolveFilesystem(explicit string) (string, config.Filesystem, error) {
	name, err := policy.ResolveFilesystem(m.id, m.cfg, explicit)
	if err != nil {
		return "", config.Filesystem{}, err
	}

	fs, err := m.cfg.Filesystem(name)
	if err != nil {
		return "", config.Filesystem{}, err
	}

	if explicit != "" {
		if err := policy.CheckACL(m.id, fs); err != nil {
			return "", config.Filesystem{}, err
		}
	}

	return name, fs, nil
}

// validName matches names that stay inside the database and space
// directories. Record names embed the owner as <owner>-<name>, so dashes
// are allowed but separators and dot-runs are not.
var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func validateName(name string) error {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (m *Manager) infof(format string, args ...any) {
	fmt.Fprintf(m.diag, "Info: "+format+"\n", args...)
}

func (m *Manager) warnf(format string, args ...any) {
	fmt.Fprintf(m.diag, "Warning: "+format+"\n", args...)
}
