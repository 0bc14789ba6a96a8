package store

import "strings"

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite or a
	// connection URL for PostgreSQL.
	DSN string
}

// Option defines a functional option for configuring store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL is
// recognized by URL scheme or key=value connection parameters; anything
// else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
