package sql

import (
	"context"
	"testing"
)

func BenchmarkSelect_Simple(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").Select("id", "name", "email").ToSQL(ctx)
	}
}

func BenchmarkSelect_WithJoins(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users as u").
			Select("u.id", "u.name", "p.title").
			Join("posts as p", "p.user_id", "=", "u.id").
			Where("u.active", "=", true).
			OrderBy("u.created_at", "DESC").
			Limit(10).
			ToSQL(ctx)
	}
}

func BenchmarkSelect_Complex(b *testing.B) {
	ctx := context.Background()
	types := bitColumns{"users": {"active": true}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").
			Bind("User", types).
			Where("status", "=", "active").
			WhereGroup(func(w *Where) {
				w.Where("role", "=", "admin").OrWhereIn("id", 1, 2, 3, 4, 5)
			}).
			Where("active", "=", true).
			GroupBy("role").
			Having("COUNT(*) > ?", 1).
			OrderBy("id", "ASC").
			ForPage(3, 20).
			ToSQL(ctx)
	}
}

func BenchmarkInsert(b *testing.B) {
	ctx := context.Background()
	vs := Values{{"name", "Ariel"}, {"email", "a8m@example.com"}, {"age", 30}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").InsertSQL(ctx, vs)
	}
}

func BenchmarkUpdate(b *testing.B) {
	ctx := context.Background()
	vs := Values{{"name", "Ariel"}, {"age", 31}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").Where("id", "=", 1).UpdateSQL(ctx, vs)
	}
}

func BenchmarkDelete(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").Where("id", "=", 1).OrWhereNull("email").DeleteSQL(ctx)
	}
}

func BenchmarkPredicates(b *testing.B) {
	ctx := context.Background()
	name := StringField[Predicate]("name")
	age := IntField[Predicate]("age")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NewQuery(nil, "users").
			Filter(name.HasPrefix("a"), OrPreds(age.GT(18), age.IsNull())).
			ToSQL(ctx)
	}
}
