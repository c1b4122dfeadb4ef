// Package adapters translates backend configuration into database/sql driver
// names and connection strings, one adapter per database engine.
package adapters

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Predefined adapter errors.
var (
	// ErrUnsupportedBackend is returned when an unregistered backend name is requested.
	ErrUnsupportedBackend = errors.New("unsupported database backend")
	// ErrMissingFile is returned when a SQLite configuration has no file path.
	ErrMissingFile = errors.New("sqlite path missing")
)

// Adapter describes how to open a connection for one database engine.
type Adapter interface {
	// Name returns the backend name, also used to look up the SQL dialect.
	Name() string
	// DriverName returns the database/sql driver name.
	DriverName() string
	// DSN returns the driver-specific connection string.
	DSN() string
	// Configure tunes a freshly opened pool before first use.
	Configure(db *sql.DB)
}

// Constructor builds an Adapter from configuration.
type Constructor func(cfg Config) (Adapter, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register adds a backend constructor under name. Built-in backends register
// themselves in init; callers extend the table with explicit calls at startup.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// New builds the adapter registered under name.
func New(name string, cfg Config) (Adapter, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, name)
	}
	return ctor(cfg)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dsnAdapter wraps an already-formatted connection string.
type dsnAdapter struct {
	driverName string
	dsn        string
}

// FromDSN returns an adapter for a raw driver name and connection string.
func FromDSN(driverName, dsn string) Adapter {
	return &dsnAdapter{driverName: driverName, dsn: dsn}
}

func (a *dsnAdapter) Name() string       { return a.driverName }
func (a *dsnAdapter) DriverName() string { return a.driverName }
func (a *dsnAdapter) DSN() string        { return a.dsn }

func (a *dsnAdapter) Configure(db *sql.DB) {
	if isMemoryDSN(a.driverName, a.dsn) {
		db.SetMaxOpenConns(1)
	}
}
