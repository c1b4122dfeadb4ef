package adapters

import (
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const (
	defaultMySQLHost = "127.0.0.1"
	defaultMySQLPort = 3306
)

type mysqlAdapter struct {
	dsn string
}

func init() {
	Register("mysql", newMySQL)
}

// newMySQL formats a go-sql-driver DSN. A unix socket takes precedence over
// host and port; charset and options become DSN parameters.
func newMySQL(cfg Config) (Adapter, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.DBName

	switch {
	case cfg.UnixSocket != "":
		mc.Net = "unix"
		mc.Addr = cfg.UnixSocket
	case cfg.Host != "" || cfg.Port != 0:
		host := cfg.Host
		if host == "" {
			host = defaultMySQLHost
		}
		port := cfg.Port
		if port == 0 {
			port = defaultMySQLPort
		}
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	params := make(map[string]string, len(cfg.Options)+1)
	if cfg.Charset != "" {
		params["charset"] = cfg.Charset
	}
	for k, v := range cfg.Options {
		params[k] = v
	}
	if len(params) > 0 {
		mc.Params = params
	}

	return &mysqlAdapter{dsn: mc.FormatDSN()}, nil
}

func (a *mysqlAdapter) Name() string       { return "mysql" }
func (a *mysqlAdapter) DriverName() string { return "mysql" }
func (a *mysqlAdapter) DSN() string        { return a.dsn }

func (a *mysqlAdapter) Configure(_ *sql.DB) {}
