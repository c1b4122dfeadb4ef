package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConditions() *ConditionBuilder {
	return mockDB("sqlite").With("user").Conditions()
}

func TestConditionBuilder_FirstClauseHasNoConnective(t *testing.T) {
	tests := []struct {
		name  string
		build func(cb *ConditionBuilder)
		want  string
	}{
		{
			name:  "single AND",
			build: func(cb *ConditionBuilder) { cb.Where("id", 1) },
			want:  "id = :p1",
		},
		{
			name:  "single OR",
			build: func(cb *ConditionBuilder) { cb.WhereOR("id", 1) },
			want:  "id = :p1",
		},
		{
			name: "AND then OR",
			build: func(cb *ConditionBuilder) {
				cb.Where("id", "<", 2).WhereOR("name", "jack")
			},
			want: "id < :p1 OR name = :p2",
		},
		{
			name: "OR then AND",
			build: func(cb *ConditionBuilder) {
				cb.WhereOR("status", "active").Where("name", "LIKE", "ja%")
			},
			want: "status = :p1 AND name LIKE :p2",
		},
		{
			name: "raw fragments",
			build: func(cb *ConditionBuilder) {
				cb.WhereRaw("dob", "<", "CURRENT_TIMESTAMP").WhereORRaw("dob", "IS", "NULL")
			},
			want: "dob < CURRENT_TIMESTAMP OR dob IS NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := newTestConditions()
			tt.build(cb)

			got := cb.CondStr()
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasPrefix(got, " AND "))
			assert.False(t, strings.HasPrefix(got, " OR "))
		})
	}
}

func TestConditionBuilder_Params(t *testing.T) {
	cb := newTestConditions()
	cb.Where("id", "<", 2).Where("name", "jack").WhereRaw("dob", "<", "CURRENT_TIMESTAMP")

	assert.Equal(t, map[string]any{":p1": 2, ":p2": "jack"}, cb.Params())
	assert.Equal(t, 3, cb.Len())

	// Params returns a copy.
	cb.Params()[":p1"] = 99
	assert.Equal(t, 2, cb.Params()[":p1"])
}

func TestConditionBuilder_Empty(t *testing.T) {
	cb := newTestConditions()

	assert.Equal(t, "", cb.CondStr())
	assert.Equal(t, 0, cb.Len())
	assert.Empty(t, cb.Params())
}

func TestConditionBuilder_Groups(t *testing.T) {
	t.Run("multi clause group is parenthesized", func(t *testing.T) {
		cb := newTestConditions()
		cb.Where("status", "active")

		g := cb.BeginWhereGroup().Where("role", "admin").WhereOR("role", "owner")
		parent, err := g.EndWhereGroup()
		require.NoError(t, err)

		assert.Same(t, cb, parent)
		assert.Equal(t, "status = :p1 AND (role = :p2 OR role = :p3)", cb.CondStr())
		assert.Equal(t, map[string]any{":p1": "active", ":p2": "admin", ":p3": "owner"}, cb.Params())
	})

	t.Run("single clause group is not wrapped", func(t *testing.T) {
		cb := newTestConditions()
		cb.Where("status", "active")

		_, err := cb.BeginWhereGroup().WhereOR("role", "admin").EndWhereGroup()
		require.NoError(t, err)

		assert.Equal(t, "status = :p1 AND role = :p2", cb.CondStr())
	})

	t.Run("empty group leaves parent unchanged", func(t *testing.T) {
		cb := newTestConditions()
		cb.Where("status", "active")

		_, err := cb.BeginWhereGroup().EndWhereGroup()
		require.NoError(t, err)

		assert.Equal(t, "status = :p1", cb.CondStr())
		assert.Equal(t, 1, cb.Len())
	})

	t.Run("group as first clause has no connective", func(t *testing.T) {
		cb := newTestConditions()

		_, err := cb.BeginWhereGroup().Where("a", 1).WhereOR("b", 2).EndWhereGroup()
		require.NoError(t, err)

		assert.Equal(t, "(a = :p1 OR b = :p2)", cb.CondStr())
	})

	t.Run("nested groups", func(t *testing.T) {
		cb := newTestConditions()
		cb.Where("a", 1)

		outer := cb.BeginWhereGroup().Where("b", 2)
		inner := outer.BeginWhereGroup().Where("c", 3).WhereOR("d", 4)
		back, err := inner.EndWhereGroup()
		require.NoError(t, err)
		assert.Same(t, outer, back)

		outer.WhereOR("e", 5)
		_, err = outer.EndWhereGroup()
		require.NoError(t, err)

		assert.Equal(t, "a = :p1 AND (b = :p2 AND (c = :p3 OR d = :p4) OR e = :p5)", cb.CondStr())
		assert.Len(t, cb.Params(), 5)
	})

	t.Run("nested empty groups at every depth", func(t *testing.T) {
		for depth := 1; depth <= 5; depth++ {
			cb := newTestConditions()
			cb.Where("a", 1)

			groups := []*ConditionBuilder{cb}
			for i := 0; i < depth; i++ {
				groups = append(groups, groups[len(groups)-1].BeginWhereGroup())
			}
			for i := len(groups) - 1; i > 0; i-- {
				_, err := groups[i].EndWhereGroup()
				require.NoError(t, err)
			}

			assert.Equal(t, "a = :p1", cb.CondStr(), "depth %d", depth)
		}
	})
}

func TestConditionBuilder_EndWhereGroupErrors(t *testing.T) {
	t.Run("root has no parent", func(t *testing.T) {
		cb := newTestConditions()
		parent, err := cb.EndWhereGroup()
		assert.Nil(t, parent)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("group merges once", func(t *testing.T) {
		cb := newTestConditions()
		g := cb.BeginWhereGroup().Where("a", 1)

		_, err := g.EndWhereGroup()
		require.NoError(t, err)
		_, err = g.EndWhereGroup()
		assert.ErrorIs(t, err, ErrInvalidState)

		assert.Equal(t, "a = :p1", cb.CondStr())
	})
}

func TestConditionBuilder_End(t *testing.T) {
	qb := mockDB("sqlite").With("user")

	got := qb.Where("status", "active").
		BeginWhereGroup().
		Where("role", "admin").
		WhereOR("role", "owner").
		End()

	assert.Same(t, qb, got)

	query, params := got.SelectSQL()
	assert.Equal(t, "SELECT * FROM user WHERE status = :p1 AND (role = :p2 OR role = :p3)", query)
	assert.Len(t, params, 3)
}

func TestConditionBuilder_EndPanics(t *testing.T) {
	t.Run("on root", func(t *testing.T) {
		cb := newTestConditions()
		assert.Panics(t, func() { cb.End() })
	})

	t.Run("on nested group", func(t *testing.T) {
		cb := newTestConditions()
		inner := cb.BeginWhereGroup().BeginWhereGroup().Where("a", 1)
		assert.Panics(t, func() { inner.End() })
	})
}

func TestConditionBuilder_WhereArity(t *testing.T) {
	cb := newTestConditions()

	assert.Panics(t, func() { cb.Where("id") })
	assert.Panics(t, func() { cb.Where("id", "=", 1, 2) })
	assert.Panics(t, func() { cb.WhereOR("id", 1, 2) }, "operator must be a string")
	assert.Equal(t, 0, cb.Len())
}

func TestConditionBuilder_SharedAllocator(t *testing.T) {
	qb := mockDB("sqlite").With("user")

	qb.Where("a", 1)
	g := qb.BeginWhereGroup().Where("b", 2)
	qb.Where("c", 3)
	_, err := g.EndWhereGroup()
	require.NoError(t, err)

	// Names follow allocation order, not merge order.
	assert.Equal(t, "a = :p1 AND c = :p3 AND b = :p2", qb.Conditions().CondStr())
}
