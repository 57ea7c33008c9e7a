package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(w *Where) (string, []any) {
	b := &Builder{}
	w.render(&renderer{ctx: context.Background(), b: b, tables: map[string]string{}})
	return b.Query()
}

func TestWhere(t *testing.T) {
	tests := []struct {
		name  string
		where *Where
		sql   string
		args  []any
	}{
		{
			name:  "and_or",
			where: NewWhere().Where("status", "=", "active").OrWhere("role", "=", "admin"),
			sql:   "`status` = ? OR `role` = ?",
			args:  []any{"active", "admin"},
		},
		{
			name:  "not_equal_normalized",
			where: NewWhere().Where("a", "!=", 1).Where("b", "like", "x%").Where("c", "not  like", "y%"),
			sql:   "`a` <> ? AND `b` LIKE ? AND `c` NOT LIKE ?",
			args:  []any{1, "x%", "y%"},
		},
		{
			name:  "in",
			where: NewWhere().WhereIn("id", 1, 2, 3),
			sql:   "`id` IN (?, ?, ?)",
			args:  []any{1, 2, 3},
		},
		{
			name:  "in_operator_slice",
			where: NewWhere().Where("id", "in", []int{4, 5}).OrWhere("id", "NOT IN", []string{"a"}),
			sql:   "`id` IN (?, ?) OR `id` NOT IN (?)",
			args:  []any{4, 5, "a"},
		},
		{
			name:  "empty_in",
			where: NewWhere().WhereIn("id").OrWhereNotIn("id"),
			sql:   "1 = 0 OR 1 = 1",
		},
		{
			name:  "null",
			where: NewWhere().WhereNull("deleted_at").OrWhereNotNull("email").Where("x", "=", nil).Where("y", "<>", nil),
			sql:   "`deleted_at` IS NULL OR `email` IS NOT NULL AND `x` IS NULL AND `y` IS NOT NULL",
		},
		{
			name:  "columns",
			where: NewWhere().WhereColumn("a.updated_at", ">", "a.created_at").OrOn("a.id", "=", "b.a_id"),
			sql:   "`a`.`updated_at` > `a`.`created_at` OR `a`.`id` = `b`.`a_id`",
		},
		{
			name: "raw_splice",
			where: NewWhere().
				Where("a", "=", 1).
				WhereRaw("b > ? AND c < ?", 2, 3).
				Where("d", "=", 4),
			sql:  "`a` = ? AND b > ? AND c < ? AND `d` = ?",
			args: []any{1, 2, 3, 4},
		},
		{
			name: "nested_groups",
			where: NewWhere().
				Where("status", "=", "active").
				WhereGroup(func(w *Where) {
					w.Where("role", "=", "admin").
						OrWhereGroup(func(w *Where) {
							w.Where("role", "=", "owner").Where("verified", "=", 1)
						})
				}).
				OrWhere("id", "=", 9),
			sql:  "`status` = ? AND (`role` = ? OR (`role` = ? AND `verified` = ?)) OR `id` = ?",
			args: []any{"active", "admin", "owner", 1, 9},
		},
		{
			name:  "first_group_drops_connective",
			where: NewWhere().OrWhereGroup(func(w *Where) { w.OrWhere("a", "=", 1) }),
			sql:   "(`a` = ?)",
			args:  []any{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.where.Err())
			sql, args := render(tt.where)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
			assert.Equal(t, countMarkers(sql), len(args))
		})
	}
}

func TestWhereEmptyGroup(t *testing.T) {
	build := func(group bool) *Where {
		w := NewWhere().Where("a", "=", 1)
		if group {
			w.WhereGroup(func(*Where) {}).OrWhereGroup(func(w *Where) {
				w.WhereGroup(func(*Where) {})
			})
		}
		return w.Where("b", "=", 2)
	}
	withSQL, withArgs := render(build(true))
	withoutSQL, withoutArgs := render(build(false))
	assert.Equal(t, withoutSQL, withSQL)
	assert.Equal(t, withoutArgs, withArgs)
	assert.Equal(t, 2, build(true).Len())
	assert.NotContains(t, withSQL, "()")
}

func TestWhereErrors(t *testing.T) {
	t.Run("operator", func(t *testing.T) {
		w := NewWhere().Where("a", "~", 1)
		require.Error(t, w.Err())
		assert.True(t, w.Empty())
	})
	t.Run("in_scalar", func(t *testing.T) {
		w := NewWhere().Where("a", "IN", 1)
		require.Error(t, w.Err())
	})
	t.Run("raw_arity", func(t *testing.T) {
		w := NewWhere().WhereRaw("a = ? AND b = ?", 1)
		require.Error(t, w.Err())
		assert.Contains(t, w.Err().Error(), "2 markers and 1 arguments")
	})
	t.Run("group", func(t *testing.T) {
		w := NewWhere().WhereGroup(func(w *Where) { w.WhereColumn("a", "IN", "b") })
		require.Error(t, w.Err())
		assert.True(t, w.Empty())
	})
}

func TestWhereClone(t *testing.T) {
	w := NewWhere().Where("a", "=", 1)
	c := w.Clone().Where("b", "=", 2)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 2, c.Len())
}

func TestPredicates(t *testing.T) {
	type pred func(*Where)
	var (
		name   = StringField[pred]("name")
		age    = IntField[pred]("age")
		active = BoolField[pred]("active")
		score  = Float64Field[pred]("score")
	)
	type role string
	kind := EnumField[Predicate, role]("role")

	tests := []struct {
		name string
		p    func(*Where)
		sql  string
		args []any
	}{
		{"eq", name.EQ("a"), "`name` = ?", []any{"a"}},
		{"prefix", name.HasPrefix("a_b"), "`name` LIKE ?", []any{`a\_b%`}},
		{"contains", name.Contains("50%"), "`name` LIKE ?", []any{`%50\%%`}},
		{"suffix", name.HasSuffix("x"), "`name` LIKE ?", []any{"%x"}},
		{"in", age.In(1, 2), "`age` IN (?, ?)", []any{1, 2}},
		{"range", AndPreds(Predicate(age.GTE(18)), Predicate(age.LT(65))), "(`age` >= ? AND `age` < ?)", []any{18, 65}},
		{"or", OrPreds(Predicate(score.GT(1.5)), Predicate(active.IsNull())), "((`score` > ?) OR (`active` IS NULL))", []any{1.5}},
		{"not", Not(Predicate(active.EQ(true))), "NOT (`active` = ?)", []any{true}},
		{"enum", kind.In("admin", "owner"), "`role` IN (?, ?)", []any{"admin", "owner"}},
		{"not_in", name.NotIn(), "1 = 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(NewWhere().Filter(tt.p))
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}
