// Package recorddb persists workspace records as YAML files owned by the
// db system account.
//
// One record file per live workspace, named <owner>-<name> inside the
// filesystem's database directory. The record directory is typically not
// writable by ordinary users, so writes run under a raised capability, and
// every written file is handed to the db account so the workspace owner
// cannot forge expiration times or extension counts.
package recorddb

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wskit/ws/internal/privs"
)

var (
	// ErrNotFound indicates no record file exists at the given path.
	ErrNotFound = errors.New("workspace record not found")
	// ErrMalformed indicates a record file exists but cannot be decoded,
	// or lacks one of the six mandatory fields.
	ErrMalformed = errors.New("malformed workspace record")
	// ErrExists indicates an exclusive create found a record already in
	// place.
	ErrExists = errors.New("workspace record already exists")
)

// Record is the persisted metadata of one workspace.
type Record struct {
	// Workspace is the absolute path of the workspace directory.
	Workspace string `yaml:"workspace"`

	// Expiration is the expiry time in Unix seconds.
	Expiration int64 `yaml:"expiration"`

	// Extensions is the number of extensions still available. It only
	// ever decreases over a record's life.
	Extensions int `yaml:"extensions"`

	Acctcode    string `yaml:"acctcode"`
	Reminder    int    `yaml:"reminder"`
	Mailaddress string `yaml:"mailaddress"`
}

// rawRecord mirrors Record with pointer fields so a missing key is
// distinguishable from a zero value.
type rawRecord struct {
	Workspace   *string `yaml:"workspace"`
	Expiration  *int64  `yaml:"expiration"`
	Extensions  *int    `yaml:"extensions"`
	Acctcode    *string `yaml:"acctcode"`
	Reminder    *int    `yaml:"reminder"`
	Mailaddress *string `yaml:"mailaddress"`
}

// Store reads and writes record files. It holds no state beyond the
// privilege broker; the filesystem is the database.
type Store struct {
	broker *privs.Broker
}

// NewStore returns a Store whose privileged file operations go through the
// given broker.
func NewStore(broker *privs.Broker) *Store {
	return &Store{broker: broker}
}

// Read loads and validates the record at path. All six fields are
// mandatory; a missing or mistyped field yields ErrMalformed.
func (s *Store) Read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", path, err)
	}

	var raw rawRecord
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	switch {
	case raw.Workspace == nil:
		return Record{}, fmt.Errorf("%w: %s: missing workspace", ErrMalformed, path)
	case raw.Expiration == nil:
		return Record{}, fmt.Errorf("%w: %s: missing expiration", ErrMalformed, path)
	case raw.Extensions == nil:
		return Record{}, fmt.Errorf("%w: %s: missing extensions", ErrMalformed, path)
	case raw.Acctcode == nil:
		return Record{}, fmt.Errorf("%w: %s: missing acctcode", ErrMalformed, path)
	case raw.Reminder == nil:
		return Record{}, fmt.Errorf("%w: %s: missing reminder", ErrMalformed, path)
	case raw.Mailaddress == nil:
		return Record{}, fmt.Errorf("%w: %s: missing mailaddress", ErrMalformed, path)
	}

	return Record{
		Workspace:   *raw.Workspace,
		Expiration:  *raw.Expiration,
		Extensions:  *raw.Extensions,
		Acctcode:    *raw.Acctcode,
		Reminder:    *raw.Reminder,
		Mailaddress: *raw.Mailaddress,
	}, nil
}

// Exists reports whether a record file is present at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create writes a new record exclusively. A record already in place fails
// with ErrExists: the record file doubles as the mutual-exclusion signal
// between concurrent allocations of the same name.
func (s *Store) Create(path string, rec Record, ownerUID, ownerGID int) error {
	return s.write(path, rec, ownerUID, ownerGID, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

// Update overwrites an existing record in place.
func (s *Store) Update(path string, rec Record, ownerUID, ownerGID int) error {
	return s.write(path, rec, ownerUID, ownerGID, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *Store) write(path string, rec Record, ownerUID, ownerGID int, flags int) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = s.broker.With(privs.DACOverride, func() error {
		f, err := os.OpenFile(path, flags, 0664)
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		if err != nil {
			return fmt.Errorf("open record %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write record %s: %w", path, err)
		}
		return f.Close()
	})
	if err != nil {
		return err
	}

	err = s.broker.With(privs.Chown, func() error {
		return os.Chown(path, ownerUID, ownerGID)
	})
	if err != nil {
		// A freshly created record the db account does not own must
		// not survive: the workspace owner could rewrite it. An update
		// touches a file the db account already owns, so removing it
		// there would orphan a live workspace instead.
		if flags&os.O_EXCL != 0 {
			s.broker.With(privs.DACOverride, func() error {
				os.Remove(path)
				return nil
			})
		}
		return fmt.Errorf("chown record %s: %w", path, err)
	}

	return nil
}

// Rename moves a record file under raised capability.
func (s *Store) Rename(oldPath, newPath string) error {
	return s.broker.With(privs.DACOverride, func() error {
		return os.Rename(oldPath, newPath)
	})
}

// Remove deletes a record file under raised capability.
func (s *Store) Remove(path string) error {
	return s.broker.With(privs.DACOverride, func() error {
		return os.Remove(path)
	})
}
