package adapters

import (
	"database/sql"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver, registered as "postgres"
)

type postgresAdapter struct {
	dsn string
}

func init() {
	Register("postgres", newPostgres)
}

// newPostgres builds a lib/pq key/value connection string. A unix socket
// directory is passed as host, which is how libpq addresses sockets.
func newPostgres(cfg Config) (Adapter, error) {
	var pairs []string
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, key+"="+pqQuote(value))
		}
	}

	host := cfg.Host
	if cfg.UnixSocket != "" {
		host = cfg.UnixSocket
	}
	add("host", host)
	if cfg.Port != 0 {
		add("port", strconv.Itoa(cfg.Port))
	}
	add("user", cfg.User)
	add("password", cfg.Password)
	add("dbname", cfg.DBName)
	add("sslmode", cfg.SSLMode)
	if cfg.Charset != "" {
		add("client_encoding", cfg.Charset)
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, cfg.Options[k])
	}

	return &postgresAdapter{dsn: strings.Join(pairs, " ")}, nil
}

// pqQuote quotes a value when it contains characters significant to the
// key/value connection string syntax.
func pqQuote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (a *postgresAdapter) Name() string       { return "postgres" }
func (a *postgresAdapter) DriverName() string { return "postgres" }
func (a *postgresAdapter) DSN() string        { return a.dsn }

func (a *postgresAdapter) Configure(_ *sql.DB) {}
