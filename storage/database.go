package storage

import (
	"fmt"
)

// DatabaseType identifies a supported database backend
type DatabaseType string

const (
	// MySQL backend
	MySQL DatabaseType = "mysql"
	// PostgreSQL backend
	PostgreSQL DatabaseType = "postgresql"
)

// DatabaseBackend is a Backend over a relational database
type DatabaseBackend interface {
	Backend
	// InitDatabase creates the tables the backend writes to
	InitDatabase() error
}

// NewDatabaseBackend creates a database backend for the given type
func NewDatabaseBackend(dbType string, dsn string) (DatabaseBackend, error) {
	switch DatabaseType(dbType) {
	case MySQL:
		return NewMySQLStorage(dsn)
	case PostgreSQL, "postgres":
		return NewPostgreSQLStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
