package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregx/norm/internal/adapters"
)

// mockDB returns a DB for the given dialect without a connection.
// Use it for tests that only inspect generated SQL.
func mockDB(name string) *DB {
	db, err := newDB(name, &connection{closed: true}, nil)
	if err != nil {
		panic(err)
	}
	return db
}

var testSchema = []string{
	`CREATE TABLE user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		dob TEXT,
		status TEXT
	)`,
	`CREATE TABLE balance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		amount REAL NOT NULL
	)`,
}

// openTestDB opens an in-memory SQLite database with the user and balance tables.
func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()

	db, err := Init("sqlite", adapters.Config{File: ":memory:"}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, ddl := range testSchema {
		_, err = db.ExecDDL(context.Background(), ddl)
		require.NoError(t, err)
	}
	return db
}

// seedUsers inserts jack (id 1) and rose (id 2) with one balance each.
func seedUsers(t *testing.T, db *DB) {
	t.Helper()

	id, err := db.With("user").Insert(map[string]any{"name": "jack", "dob": "2015-11-08 00:00:00", "status": "active"})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	id, err = db.With("user").Insert(map[string]any{"name": "rose", "status": "inactive"})
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	_, err = db.With("balance").BatchInsert([][]any{{1, 15.5}, {2, 7.25}}, "user_id", "amount")
	require.NoError(t, err)
}

// eventRecorder collects query hook events.
type eventRecorder struct {
	mu     sync.Mutex
	events []QueryEvent
}

func (r *eventRecorder) hook(_ context.Context, e QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) last() QueryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return QueryEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *eventRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
