// Package config loads the ws.conf and ws_private.conf configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the global configuration lives. Overridable through
// the WS_CONF environment variable (tests point it at fixtures).
const DefaultPath = "/etc/ws.conf"

// DefaultUserPath is where the per-user exception configuration lives.
// Overridable through WS_PRIVATE_CONF. The file is maintained by the
// administrator, not by users: it grants limits, it never restricts them.
const DefaultUserPath = "/etc/ws_private.conf"

var (
	// ErrMissing indicates the global configuration file does not exist.
	ErrMissing = errors.New("no config file")
	// ErrUnknownFilesystem indicates a filesystem name with no
	// [workspaces.<name>] entry.
	ErrUnknownFilesystem = errors.New("unknown filesystem")
)

// Config is the global ws.conf file.
type Config struct {
	// DBUID and DBGID identify the unprivileged system account that owns
	// all workspace record files.
	DBUID int `toml:"dbuid"`
	DBGID int `toml:"dbgid"`

	// Default is the filesystem used when no per-user or per-group
	// default matches.
	Default string `toml:"default"`

	// Duration and MaxExtensions are global fallbacks, in days and
	// count respectively.
	Duration      int `toml:"duration"`
	MaxExtensions int `toml:"maxextensions"`

	Workspaces map[string]Filesystem `toml:"workspaces"`

	meta toml.MetaData
}

// Filesystem is one [workspaces.<name>] block.
type Filesystem struct {
	// Spaces are the candidate directories workspaces are created in.
	// Allocation picks one at random to spread load.
	Spaces []string `toml:"spaces"`

	// Database is the directory holding the record files.
	Database string `toml:"database"`

	// Deleted is the trash subdirectory name, used both under Database
	// and under each workspace directory's parent.
	Deleted string `toml:"deleted"`

	UserACL  []string `toml:"user_acl"`
	GroupACL []string `toml:"group_acl"`

	// UserDefault and GroupDefault name users/groups for which this
	// filesystem is the default.
	UserDefault  []string `toml:"userdefault"`
	GroupDefault []string `toml:"groupdefault"`

	Duration      int `toml:"duration"`
	MaxExtensions int `toml:"maxextensions"`

	// PrefixCallout is an optional executable computing a path prefix,
	// called with the filesystem and username as arguments.
	PrefixCallout string `toml:"prefix_callout"`
}

// UserConfig is the ws_private.conf file with per-user limit exceptions.
type UserConfig struct {
	Workspaces map[string]UserFilesystem `toml:"workspaces"`

	meta toml.MetaData
}

// UserFilesystem holds the exceptions of one filesystem.
type UserFilesystem struct {
	UserExceptions map[string]Exception `toml:"userexceptions"`
}

// Exception raises the limits of a single user on a single filesystem.
type Exception struct {
	Duration      int `toml:"duration"`
	MaxExtensions int `toml:"maxextensions"`
}

// Path returns the global config path, honoring WS_CONF.
func Path() string {
	if p := os.Getenv("WS_CONF"); p != "" {
		return p
	}
	return DefaultPath
}

// UserPath returns the user exception config path, honoring WS_PRIVATE_CONF.
func UserPath() string {
	if p := os.Getenv("WS_PRIVATE_CONF"); p != "" {
		return p
	}
	return DefaultUserPath
}

// Load reads and validates the global configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates global configuration TOML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	cfg.meta = meta

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	for _, key := range []string{"dbuid", "dbgid", "default", "duration", "maxextensions"} {
		if !c.meta.IsDefined(key) {
			return fmt.Errorf("missing required key %q", key)
		}
	}

	for name, fs := range c.Workspaces {
		if len(fs.Spaces) == 0 {
			return fmt.Errorf("workspace %s: missing spaces", name)
		}
		if fs.Database == "" {
			return fmt.Errorf("workspace %s: missing database", name)
		}
		if fs.Deleted == "" {
			return fmt.Errorf("workspace %s: missing deleted", name)
		}
	}

	if _, ok := c.Workspaces[c.Default]; !ok {
		return fmt.Errorf("default filesystem %q has no workspace entry", c.Default)
	}

	return nil
}

// Filesystem returns the named filesystem block.
func (c *Config) Filesystem(name string) (Filesystem, error) {
	fs, ok := c.Workspaces[name]
	if !ok {
		return Filesystem{}, fmt.Errorf("%w: %s", ErrUnknownFilesystem, name)
	}
	return fs, nil
}

// FilesystemNames returns all configured filesystem names, sorted.
func (c *Config) FilesystemNames() []string {
	names := make([]string, 0, len(c.Workspaces))
	for name := range c.Workspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilesystemDuration returns the per-filesystem duration and whether the
// key is actually present in the file.
func (c *Config) FilesystemDuration(name string) (int, bool) {
	if !c.meta.IsDefined("workspaces", name, "duration") {
		return 0, false
	}
	return c.Workspaces[name].Duration, true
}

// FilesystemMaxExtensions returns the per-filesystem extension ceiling and
// whether the key is present.
func (c *Config) FilesystemMaxExtensions(name string) (int, bool) {
	if !c.meta.IsDefined("workspaces", name, "maxextensions") {
		return 0, false
	}
	return c.Workspaces[name].MaxExtensions, true
}

// LoadUser reads the per-user exception configuration. A missing file is
// not an error; exceptions are optional.
func LoadUser(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user config file %s: %w", path, err)
	}

	cfg, err := ParseUser(data)
	if err != nil {
		return nil, fmt.Errorf("user config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseUser decodes per-user exception TOML.
func ParseUser(data []byte) (*UserConfig, error) {
	var cfg UserConfig
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	cfg.meta = meta

	return &cfg, nil
}

// ExceptionDuration returns the user's duration exception on the given
// filesystem, and whether one is present.
func (u *UserConfig) ExceptionDuration(filesystem, username string) (int, bool) {
	if !u.meta.IsDefined("workspaces", filesystem, "userexceptions", username, "duration") {
		return 0, false
	}
	return u.Workspaces[filesystem].UserExceptions[username].Duration, true
}

// ExceptionMaxExtensions returns the user's extension-ceiling exception on
// the given filesystem, and whether one is present.
func (u *UserConfig) ExceptionMaxExtensions(filesystem, username string) (int, bool) {
	if !u.meta.IsDefined("workspaces", filesystem, "userexceptions", username, "maxextensions") {
		return 0, false
	}
	return u.Workspaces[filesystem].UserExceptions[username].MaxExtensions, true
}
