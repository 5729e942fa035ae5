// Package constants provides shared constants used throughout the ebbsync
// codebase: timeouts, file permissions, and store defaults that should be
// consistent across the library and the CLI.
package constants

import "time"

// Timeout constants define various timeout durations used in the engine
const (
	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// ReconcileTimeout is the default ceiling for one reconciliation run
	ReconcileTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// ShutdownTimeout is how long graceful shutdown waits for an active
	// run to drain
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Store defaults
const (
	// DefaultStoreFile is the SQLite store filename created by the CLI
	// when no explicit path is given
	DefaultStoreFile = "ebbsync.db"

	// DefaultSQLiteBusyTimeout bounds how long SQLite waits on a locked
	// database before reporting a busy error
	DefaultSQLiteBusyTimeout = 5 * time.Second
)
