//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coregx/norm"
)

const (
	testDatabase = "testdb"
	testUser     = "user"
	testPassword = "password"
)

// DatabaseSetup encapsulates database connection and cleanup.
type DatabaseSetup struct {
	DB        *norm.DB
	Container testcontainers.Container
	Backend   string
}

// Close cleans up database resources.
func (ds *DatabaseSetup) Close() {
	if ds.DB != nil {
		ds.DB.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// SetupPostgreSQLTestDB creates a PostgreSQL test database.
// Uses testcontainers if available, falls back to POSTGRES_TEST_DSN.
func SetupPostgreSQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		db, err := norm.Open("postgres", dsn)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Backend: "postgres"}
	}

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	cfg := containerConfig(t, pgContainer, "5432/tcp")
	cfg.SSLMode = "disable"

	db, err := norm.Init("postgres", cfg)
	require.NoError(t, err)

	return &DatabaseSetup{DB: db, Container: pgContainer, Backend: "postgres"}
}

// SetupMySQLTestDB creates a MySQL test database.
// Uses testcontainers if available, falls back to MYSQL_TEST_DSN.
func SetupMySQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		db, err := norm.Open("mysql", dsn)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Backend: "mysql"}
	}

	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase(testDatabase),
		mysql.WithUsername(testUser),
		mysql.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	cfg := containerConfig(t, mysqlContainer, "3306/tcp")
	cfg.Charset = "utf8mb4"

	db, err := norm.Init("mysql", cfg)
	require.NoError(t, err)

	return &DatabaseSetup{DB: db, Container: mysqlContainer, Backend: "mysql"}
}

// SetupSQLiteTestDB creates an in-memory SQLite database.
// Always works, no external dependencies.
func SetupSQLiteTestDB(t *testing.T) *DatabaseSetup {
	db, err := norm.Init("sqlite", norm.Config{File: ":memory:"})
	require.NoError(t, err)

	return &DatabaseSetup{DB: db, Backend: "sqlite"}
}

// containerConfig builds connection settings from a running container's
// mapped address.
func containerConfig(t *testing.T, c testcontainers.Container, port string) norm.Config {
	ctx := context.Background()

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)

	return norm.Config{
		Host:     host,
		Port:     mapped.Int(),
		User:     testUser,
		Password: testPassword,
		DBName:   testDatabase,
	}
}

// CreateSchema creates the app_user and balance tables for the backend.
func CreateSchema(t *testing.T, ds *DatabaseSetup) {
	var statements []string

	switch ds.Backend {
	case "postgres":
		statements = []string{
			`CREATE TABLE IF NOT EXISTS app_user (
				id SERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				dob TIMESTAMP NULL,
				status VARCHAR(32)
			)`,
			`CREATE TABLE IF NOT EXISTS balance (
				id SERIAL PRIMARY KEY,
				user_id INTEGER NOT NULL,
				amount DOUBLE PRECISION
			)`,
		}
	case "mysql":
		statements = []string{
			`CREATE TABLE IF NOT EXISTS app_user (
				id INT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				dob DATETIME NULL,
				status VARCHAR(32)
			)`,
			`CREATE TABLE IF NOT EXISTS balance (
				id INT AUTO_INCREMENT PRIMARY KEY,
				user_id INT NOT NULL,
				amount DOUBLE
			)`,
		}
	case "sqlite":
		statements = []string{
			`CREATE TABLE IF NOT EXISTS app_user (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				dob TEXT,
				status TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS balance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				amount REAL
			)`,
		}
	}

	for _, stmt := range statements {
		_, err := ds.DB.ExecDDL(context.Background(), stmt)
		require.NoError(t, err)
	}
}
