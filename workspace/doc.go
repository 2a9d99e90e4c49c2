// Package workspace implements the lifecycle of time-limited workspace
// directories: allocation, extension, release into a trash namespace, and
// restoration of trashed content into a live workspace.
//
// A workspace is a directory created on behalf of a user in one of the
// configured spaces of a filesystem, owned by that user and accessible only
// to them. Its metadata lives in a record file owned by a separate db
// account, so the workspace owner cannot tamper with expiration times or
// extension counts. The record's presence is also the liveness signal: a
// name is live exactly while its record file exists under the database
// directory.
//
// Every filesystem mutation that needs more rights than the invoking user
// holds runs inside a privilege bracket (internal/privs) spanning just that
// syscall.
package workspace
