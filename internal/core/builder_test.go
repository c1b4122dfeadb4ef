package core

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder_SelectSQL(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		build   func(qb *QueryBuilder) *QueryBuilder
		fields  []string
		want    string
	}{
		{
			name:    "all columns",
			dialect: "sqlite",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb },
			want:    "SELECT * FROM user",
		},
		{
			name:    "fields joined with comma",
			dialect: "sqlite",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb.Where("id", 1) },
			fields:  []string{"id", "name"},
			want:    "SELECT id,name FROM user WHERE id = :p1",
		},
		{
			name:    "order and limit",
			dialect: "mysql",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Where("status", "active").OrderBy("name", "id DESC").Limit(10)
			},
			want: "SELECT * FROM user WHERE status = :p1 ORDER BY name,id DESC LIMIT 10",
		},
		{
			name:    "mysql offset",
			dialect: "mysql",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb.Limit(10, 20) },
			want:    "SELECT * FROM user LIMIT 20, 10",
		},
		{
			name:    "postgres offset",
			dialect: "postgres",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb.Limit(10, 20) },
			want:    "SELECT * FROM user LIMIT 10 OFFSET 20",
		},
		{
			name:    "zero limit is omitted",
			dialect: "postgres",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb.Limit(0, 5) },
			want:    "SELECT * FROM user",
		},
		{
			name:    "order replaced",
			dialect: "sqlite",
			build:   func(qb *QueryBuilder) *QueryBuilder { return qb.OrderBy("id").OrderBy("name") },
			want:    "SELECT * FROM user ORDER BY name",
		},
		{
			name:    "joins in call order",
			dialect: "sqlite",
			build: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Join("balance", "balance.user_id = user.id").
					LeftJoin("address", "address.user_id = user.id").
					Where("user.id", 1)
			},
			fields: []string{"user.id", "user.name", "balance.amount"},
			want: "SELECT user.id,user.name,balance.amount FROM user " +
				"JOIN balance ON balance.user_id = user.id " +
				"LEFT JOIN address ON address.user_id = user.id WHERE user.id = :p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := tt.build(mockDB(tt.dialect).With("user"))
			got, _ := qb.SelectSQL(tt.fields...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryBuilder_SelectSQLParams(t *testing.T) {
	qb := mockDB("sqlite").With("user").
		Where("id", "<", 2).
		Where("id", 1)

	query, params := qb.SelectSQL("name")
	assert.Equal(t, "SELECT name FROM user WHERE id < :p1 AND id = :p2", query)
	assert.Equal(t, map[string]any{":p1": 2, ":p2": 1}, params)
}

func TestQueryBuilder_Insert(t *testing.T) {
	rec := &eventRecorder{}
	db := openTestDB(t, WithQueryHook(rec.hook))

	t.Run("bound values in sorted column order", func(t *testing.T) {
		id, err := db.With("user").Insert(map[string]any{"name": "jack", "dob": "2015-11-08 00:00:00"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		e := rec.last()
		assert.Equal(t, "INSERT INTO user (dob,name) VALUES (:p1,:p2)", e.SQL)
		assert.Equal(t, map[string]any{":p1": "2015-11-08 00:00:00", ":p2": "jack"}, e.Params)
		assert.Equal(t, "INSERT", e.Operation)
	})

	t.Run("raw value is inlined", func(t *testing.T) {
		id, err := db.With("user").Insert(map[string]any{"name": "rose", "dob": Raw("CURRENT_TIMESTAMP")})
		require.NoError(t, err)
		assert.Equal(t, int64(2), id)

		e := rec.last()
		assert.Equal(t, "INSERT INTO user (dob,name) VALUES (CURRENT_TIMESTAMP,:p1)", e.SQL)
		assert.Equal(t, map[string]any{":p1": "rose"}, e.Params)

		row, err := db.With("user").Where("id", id).Get("dob")
		require.NoError(t, err)
		assert.False(t, row.IsNull("dob"))
	})

	t.Run("empty data", func(t *testing.T) {
		before := rec.len()
		_, err := db.With("user").Insert(map[string]any{})
		assert.ErrorIs(t, err, ErrInvalidOperation)
		assert.Equal(t, before, rec.len())
	})
}

func TestQueryBuilder_BatchInsert(t *testing.T) {
	rec := &eventRecorder{}
	db := openTestDB(t, WithQueryHook(rec.hook))

	n, err := db.With("user").BatchInsert([][]any{
		{"jack", "active"},
		{"rose", Raw("'inactive'")},
		{"anna", nil},
	}, "name", "status")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	e := rec.last()
	assert.Equal(t, "INSERT INTO user (name,status) VALUES (:p1,:p2),(:p3,'inactive'),(:p4,:p5)", e.SQL)
	assert.Len(t, e.Params, 5)

	count, err := db.With("user").Where("status", "inactive").Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	t.Run("pre-joined column string", func(t *testing.T) {
		_, err := db.With("user").BatchInsert([][]any{{"mia", "active"}}, "name,status")
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO user (name,status) VALUES (:p1,:p2)", rec.last().SQL)
	})

	t.Run("empty rows reach the backend", func(t *testing.T) {
		_, err := db.With("user").BatchInsert(nil, "name")
		assert.Error(t, err)
	})
}

func TestQueryBuilder_Update(t *testing.T) {
	rec := &eventRecorder{}
	db := openTestDB(t, WithQueryHook(rec.hook))
	seedUsers(t, db)

	n, err := db.With("user").
		Where("id", 1).
		Update(map[string]any{"name": "jacky", "status": Raw("'banned'")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e := rec.last()
	assert.Equal(t, "UPDATE user SET name = :p2,status = 'banned' WHERE id = :p1", e.SQL)
	assert.Equal(t, map[string]any{":p1": 1, ":p2": "jacky"}, e.Params)

	row, err := db.With("user").Where("id", 1).Get()
	require.NoError(t, err)
	assert.Equal(t, "jacky", row.String("name"))
	assert.Equal(t, "banned", row.String("status"))
}

func TestQueryBuilder_UniqueParamNames(t *testing.T) {
	rec := &eventRecorder{}
	db := openTestDB(t, WithQueryHook(rec.hook))
	seedUsers(t, db)

	qb := db.With("user").
		Where("status", "active").
		BeginWhereGroup().
		Where("id", 1).
		WhereOR("id", 3).
		End()

	_, err := qb.Update(map[string]any{"name": "jack", "dob": "2000-01-01", "status": "active"})
	require.NoError(t, err)

	e := rec.last()
	assert.Equal(t,
		"UPDATE user SET dob = :p4,name = :p5,status = :p6 WHERE status = :p1 AND (id = :p2 OR id = :p3)",
		e.SQL)
	assert.Len(t, e.Params, 6)
}

func TestQueryBuilder_GuardedWrites(t *testing.T) {
	rec := &eventRecorder{}
	db := openTestDB(t, WithQueryHook(rec.hook))
	seedUsers(t, db)
	before := rec.len()

	_, err := db.With("user").Update(map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = db.With("user").Delete()
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// A group that ended empty adds no condition.
	_, err = db.With("user").BeginWhereGroup().End().Delete()
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = db.With("user").Where("id", 1).Update(map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	assert.Equal(t, before, rec.len(), "no statement reaches the database")

	count, err := db.With("user").Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestQueryBuilder_Delete(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db)

	n, err := db.With("user").Where("name", "rose").Delete()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.With("user").Where("name", "nobody").Delete()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestQueryBuilder_Reads(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db)

	t.Run("Get", func(t *testing.T) {
		row, err := db.With("user").Where("id", 1).Get("id", "name", "status")
		require.NoError(t, err)
		assert.Equal(t, Row{"id": int64(1), "name": "jack", "status": "active"}, row)
	})

	t.Run("Get forces a single row", func(t *testing.T) {
		row, err := db.With("user").OrderBy("id DESC").Get("name")
		require.NoError(t, err)
		assert.Equal(t, "rose", row.String("name"))
	})

	t.Run("single-row reads ignore a prior offset", func(t *testing.T) {
		row, err := db.With("user").OrderBy("id").Limit(10, 1).Get("name")
		require.NoError(t, err)
		assert.Equal(t, "jack", row.String("name"))

		name, err := db.With("user").OrderBy("id").Limit(5, 2).Value("name")
		require.NoError(t, err)
		assert.Equal(t, "jack", name)

		values, err := db.With("user").OrderBy("id").Limit(3, 1).GetNum("id")
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1)}, values)

		query, _ := db.With("user").Limit(10, 1).SelectSQL("name")
		assert.Equal(t, "SELECT name FROM user LIMIT 1, 10", query)
	})

	t.Run("GetNum", func(t *testing.T) {
		values, err := db.With("user").Where("id", 2).GetNum("id", "name")
		require.NoError(t, err)
		assert.Equal(t, []any{int64(2), "rose"}, values)
	})

	t.Run("All", func(t *testing.T) {
		rows, err := db.With("user").OrderBy("id").All("name")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "jack", rows[0].String("name"))
		assert.Equal(t, "rose", rows[1].String("name"))
	})

	t.Run("All with limit and offset", func(t *testing.T) {
		rows, err := db.With("user").OrderBy("id").Limit(1, 1).All("name")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "rose", rows[0].String("name"))
	})

	t.Run("All with no match is empty", func(t *testing.T) {
		rows, err := db.With("user").Where("id", 99).All()
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("AllNum", func(t *testing.T) {
		rows, err := db.With("user").OrderBy("id").AllNum("id", "name")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1), "jack"}, {int64(2), "rose"}}, rows)
	})

	t.Run("Value", func(t *testing.T) {
		v, err := db.With("user").Where("id", 2).Value("name")
		require.NoError(t, err)
		assert.Equal(t, "rose", v)
	})

	t.Run("NULL value", func(t *testing.T) {
		v, err := db.With("user").Where("id", 2).Value("dob")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("no row", func(t *testing.T) {
		_, err := db.With("user").Where("id", 99).Get()
		assert.ErrorIs(t, err, ErrNoRows)

		_, err = db.With("user").Where("id", 99).GetNum()
		assert.ErrorIs(t, err, ErrNoRows)

		_, err = db.With("user").Where("id", 99).Value("name")
		assert.ErrorIs(t, err, ErrNoRows)
	})

	t.Run("LIKE and raw condition", func(t *testing.T) {
		rows, err := db.With("user").
			Where("name", "LIKE", "ja%").
			WhereRaw("dob", "IS NOT", "NULL").
			All("name")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "jack", rows[0].String("name"))
	})

	t.Run("builder context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := db.With("user").WithContext(ctx).All()
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestQueryBuilder_Structs(t *testing.T) {
	type user struct {
		ID     int64   `db:"id"`
		Name   string  `db:"name"`
		Status *string `db:"status"`
	}

	db := openTestDB(t)
	seedUsers(t, db)

	t.Run("GetStruct", func(t *testing.T) {
		var u user
		require.NoError(t, db.With("user").Where("id", 1).GetStruct(&u, "id", "name", "status"))
		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, "jack", u.Name)
		require.NotNil(t, u.Status)
		assert.Equal(t, "active", *u.Status)
	})

	t.Run("AllStruct", func(t *testing.T) {
		var users []*user
		require.NoError(t, db.With("user").OrderBy("id").AllStruct(&users, "id", "name", "status"))
		require.Len(t, users, 2)
		assert.Equal(t, "rose", users[1].Name)
	})

	t.Run("GetClass", func(t *testing.T) {
		u, err := GetClass[user](db.With("user").Where("id", 2), "id", "name", "status")
		require.NoError(t, err)
		assert.Equal(t, "rose", u.Name)
	})

	t.Run("AllClass", func(t *testing.T) {
		users, err := AllClass[user](db.With("user").OrderBy("id"), "id", "name", "status")
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, int64(1), users[0].ID)
	})

	t.Run("unmapped column", func(t *testing.T) {
		_, err := GetClass[user](db.With("user").Where("id", 1))
		assert.ErrorIs(t, err, ErrUnmappedColumn)
	})

	t.Run("GetClass no row", func(t *testing.T) {
		u, err := GetClass[user](db.With("user").Where("id", 99), "id", "name", "status")
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrNoRows)
	})
}

func TestQueryBuilder_Aggregates(t *testing.T) {
	db := openTestDB(t)

	t.Run("empty table", func(t *testing.T) {
		count, err := db.With("balance").Count()
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		for name, fn := range map[string]func(string) (float64, bool, error){
			"max": wrapAgg(db.With("balance").Max),
			"min": wrapAgg(db.With("balance").Min),
			"avg": wrapAgg(db.With("balance").Avg),
		} {
			_, valid, err := fn("amount")
			require.NoError(t, err, name)
			assert.False(t, valid, "%s over no rows has no value", name)
		}
	})

	seedUsers(t, db)

	t.Run("values", func(t *testing.T) {
		highest, err := db.With("balance").Max("amount")
		require.NoError(t, err)
		assert.True(t, highest.Valid)
		assert.InDelta(t, 15.5, highest.Float64, 0.0001)

		lowest, err := db.With("balance").Min("amount")
		require.NoError(t, err)
		assert.InDelta(t, 7.25, lowest.Float64, 0.0001)

		avg, err := db.With("balance").Avg("amount")
		require.NoError(t, err)
		assert.InDelta(t, 11.375, avg.Float64, 0.0001)
	})

	t.Run("count with condition and column", func(t *testing.T) {
		count, err := db.With("user").Where("status", "active").Count("id")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// COUNT(dob) skips NULLs.
		count, err = db.With("user").Count("dob")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("condition matching nothing", func(t *testing.T) {
		highest, err := db.With("balance").Where("user_id", 99).Max("amount")
		require.NoError(t, err)
		assert.False(t, highest.Valid)

		count, err := db.With("balance").Where("user_id", 99).Count()
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("text columns", func(t *testing.T) {
		latest, err := db.With("user").MaxValue("dob")
		require.NoError(t, err)
		assert.Equal(t, "2015-11-08 00:00:00", latest)

		first, err := db.With("user").MinValue("name")
		require.NoError(t, err)
		assert.Equal(t, "jack", first)

		none, err := db.With("user").Where("id", 99).MaxValue("name")
		require.NoError(t, err)
		assert.Nil(t, none)

		// The float aggregates only accept numeric results.
		_, err = db.With("user").Min("name")
		assert.Error(t, err)
	})
}

func wrapAgg(fn func(string) (sql.NullFloat64, error)) func(string) (float64, bool, error) {
	return func(field string) (float64, bool, error) {
		v, err := fn(field)
		return v.Float64, v.Valid, err
	}
}
