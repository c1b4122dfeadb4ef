package adapters

import (
	"database/sql"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

const memoryFile = ":memory:"

type sqliteAdapter struct {
	driverName string
	dsn        string
	memory     bool
}

func init() {
	Register("sqlite", newSQLite("sqlite"))
	Register("sqlite3", newSQLite("sqlite3"))
}

func newSQLite(driverName string) Constructor {
	return func(cfg Config) (Adapter, error) {
		if cfg.File == "" {
			return nil, ErrMissingFile
		}

		dsn := cfg.File
		if len(cfg.Options) > 0 {
			q := url.Values{}
			for k, v := range cfg.Options {
				q.Set(k, v)
			}
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + q.Encode()
		}

		return &sqliteAdapter{
			driverName: driverName,
			dsn:        dsn,
			memory:     cfg.File == memoryFile,
		}, nil
	}
}

func (a *sqliteAdapter) Name() string       { return a.driverName }
func (a *sqliteAdapter) DriverName() string { return a.driverName }
func (a *sqliteAdapter) DSN() string        { return a.dsn }

// Configure pins in-memory databases to one connection; every new connection
// to ":memory:" would otherwise see a fresh, empty database.
func (a *sqliteAdapter) Configure(db *sql.DB) {
	if a.memory {
		db.SetMaxOpenConns(1)
	}
}

func isMemoryDSN(driverName, dsn string) bool {
	if driverName != "sqlite" && driverName != "sqlite3" {
		return false
	}
	return dsn == memoryFile || strings.HasPrefix(dsn, memoryFile+"?")
}
