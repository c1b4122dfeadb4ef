package benchmark

import (
	"context"
	"testing"

	"github.com/coregx/norm"
)

type BenchUser struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Age   int    `db:"age"`
}

func seededBenchDB(b *testing.B) *norm.DB {
	db := setupBenchDB(b)
	if _, err := db.With("user").BatchInsert(benchRows(100), "name", "email", "age"); err != nil {
		b.Fatalf("Seed failed: %v", err)
	}
	return db
}

// BenchmarkSelectSQL measures statement assembly without a round trip.
func BenchmarkSelectSQL(b *testing.B) {
	db := setupBenchDB(b)

	b.Run("Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("id", 1).SelectSQL("id", "name")
		}
	})

	b.Run("Groups", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			qb := db.With("user").Where("age", ">", 18)
			outer := qb.BeginWhereGroup().
				Where("name", "LIKE", "User 1%").
				WhereOR("email", "LIKE", "%@example.org")
			_, _ = outer.BeginWhereGroup().
				Where("id", ">", 10).
				Where("id", "<", 90).
				EndWhereGroup()
			outer.End()
			_, _ = qb.OrderBy("id DESC").Limit(10, 20).SelectSQL()
		}
	})
}

func BenchmarkGet(b *testing.B) {
	db := seededBenchDB(b)

	b.Run("Row", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("id", 50).Get("id", "name")
		}
	})

	b.Run("Value", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("id", 50).Value("name")
		}
	})

	b.Run("Class", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = norm.GetClass[BenchUser](db.With("user").Where("id", 50))
		}
	})
}

func BenchmarkAll(b *testing.B) {
	db := seededBenchDB(b)

	b.Run("Maps", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("age", ">", 40).All()
		}
	})

	b.Run("Slices", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("age", ">", 40).AllNum("id", "name")
		}
	})

	b.Run("Class", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = norm.AllClass[BenchUser](db.With("user").Where("age", ">", 40))
		}
	})
}

func BenchmarkQuery_WithContext(b *testing.B) {
	db := seededBenchDB(b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Run("Builder", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").WithContext(ctx).Where("id", 1).Get()
		}
	})

	b.Run("DB", func(b *testing.B) {
		scoped := db.WithContext(ctx)
		for i := 0; i < b.N; i++ {
			_, _ = scoped.With("user").Where("id", 1).Get()
		}
	})

	b.Run("Background", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = db.With("user").Where("id", 1).Get()
		}
	})
}

func BenchmarkCount(b *testing.B) {
	db := seededBenchDB(b)

	for i := 0; i < b.N; i++ {
		_, _ = db.With("user").Where("age", ">", 30).Count()
	}
}
