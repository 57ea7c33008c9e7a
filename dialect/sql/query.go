package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/mvcore/dialect"
)

// TypeResolver reports whether a column stores a single bit. It is consulted
// while compiling queries bound to an entity type.
type TypeResolver interface {
	IsBit(ctx context.Context, table, column string) (bool, error)
}

// Predicate applies a condition to a tree.
type Predicate = func(*Where)

// Join kinds.
const (
	InnerJoin = "INNER"
	LeftJoin  = "LEFT"
	RightJoin = "RIGHT"
)

type (
	selection struct {
		expr string
		raw  bool
		args []any
	}
	join struct {
		kind  string
		table string
		on    *Where
	}
	ordering struct {
		expr string
		dir  string
		raw  bool
		args []any
	}
	union struct {
		all   bool
		query *Query
	}
)

// Query is a mutable SELECT/INSERT/UPDATE/DELETE builder for one table.
// Every mutator changes the receiver and returns it. A Query is meant to be
// consumed by a single terminal call.
//
//	rows, err := sql.NewQuery(drv, "users").
//		Where("status", "=", "active").
//		OrWhere("role", "=", "admin").
//		OrderBy("id", "DESC").
//		Limit(10).
//		Get(ctx)
type Query struct {
	drv      dialect.ExecQuerier
	table    string
	distinct bool
	columns  []selection
	joins    []*join
	where    *Where
	groups   []string
	having   *Where
	orders   []ordering
	limit    *int
	offset   *int
	unions   []union
	entity   string
	types    TypeResolver
	logger   *slog.Logger
	errs     []error
}

// NewQuery returns a builder for table executing on drv. The table may carry
// an alias ("users as u").
func NewQuery(drv dialect.ExecQuerier, table string) *Query {
	return &Query{drv: drv, table: table, where: &Where{}, having: &Where{}}
}

// Table returns the table of the query.
func (q *Query) Table() string {
	return q.table
}

// Entity returns the bound entity type name, if any.
func (q *Query) Entity() string {
	return q.entity
}

// Bind binds the query to an entity type. Bound queries consult types to
// choose the marker of every compared or assigned column.
func (q *Query) Bind(entity string, types TypeResolver) *Query {
	q.entity, q.types = entity, types
	return q
}

// WithLogger sets the logger used for statement logging.
func (q *Query) WithLogger(l *slog.Logger) *Query {
	q.logger = l
	return q
}

// WithDriver changes the backend the query executes on.
func (q *Query) WithDriver(drv dialect.ExecQuerier) *Query {
	q.drv = drv
	return q
}

// Select replaces the selected columns.
func (q *Query) Select(columns ...string) *Query {
	q.columns = q.columns[:0]
	return q.AddSelect(columns...)
}

// AddSelect appends columns to the selection.
func (q *Query) AddSelect(columns ...string) *Query {
	for _, c := range columns {
		q.columns = append(q.columns, selection{expr: c})
	}
	return q
}

// SelectRaw appends a verbatim expression and its arguments to the selection.
func (q *Query) SelectRaw(expr string, args ...any) *Query {
	if n := countMarkers(expr); n != len(args) {
		return q.fail(fmt.Errorf("dialect/sql: raw select %q has %d markers and %d arguments", expr, n, len(args)))
	}
	q.columns = append(q.columns, selection{expr: expr, raw: true, args: args})
	return q
}

// Distinct makes the query SELECT DISTINCT.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// Where appends a condition joined with AND. See Where.Where.
func (q *Query) Where(column, op string, value any) *Query {
	q.where.Where(column, op, value)
	return q
}

// OrWhere appends a condition joined with OR.
func (q *Query) OrWhere(column, op string, value any) *Query {
	q.where.OrWhere(column, op, value)
	return q
}

// WhereIn appends "column IN (...)".
func (q *Query) WhereIn(column string, values ...any) *Query {
	q.where.WhereIn(column, values...)
	return q
}

// OrWhereIn appends "column IN (...)" joined with OR.
func (q *Query) OrWhereIn(column string, values ...any) *Query {
	q.where.OrWhereIn(column, values...)
	return q
}

// WhereNotIn appends "column NOT IN (...)".
func (q *Query) WhereNotIn(column string, values ...any) *Query {
	q.where.WhereNotIn(column, values...)
	return q
}

// OrWhereNotIn appends "column NOT IN (...)" joined with OR.
func (q *Query) OrWhereNotIn(column string, values ...any) *Query {
	q.where.OrWhereNotIn(column, values...)
	return q
}

// WhereNull appends "column IS NULL".
func (q *Query) WhereNull(column string) *Query {
	q.where.WhereNull(column)
	return q
}

// OrWhereNull appends "column IS NULL" joined with OR.
func (q *Query) OrWhereNull(column string) *Query {
	q.where.OrWhereNull(column)
	return q
}

// WhereNotNull appends "column IS NOT NULL".
func (q *Query) WhereNotNull(column string) *Query {
	q.where.WhereNotNull(column)
	return q
}

// OrWhereNotNull appends "column IS NOT NULL" joined with OR.
func (q *Query) OrWhereNotNull(column string) *Query {
	q.where.OrWhereNotNull(column)
	return q
}

// WhereRaw appends a verbatim condition.
func (q *Query) WhereRaw(sql string, args ...any) *Query {
	q.where.WhereRaw(sql, args...)
	return q
}

// OrWhereRaw appends a verbatim condition joined with OR.
func (q *Query) OrWhereRaw(sql string, args ...any) *Query {
	q.where.OrWhereRaw(sql, args...)
	return q
}

// WhereColumn appends a column to column comparison.
func (q *Query) WhereColumn(first, op, second string) *Query {
	q.where.WhereColumn(first, op, second)
	return q
}

// OrWhereColumn appends a column to column comparison joined with OR.
func (q *Query) OrWhereColumn(first, op, second string) *Query {
	q.where.OrWhereColumn(first, op, second)
	return q
}

// WhereGroup appends a parenthesized group. Empty groups are dropped.
func (q *Query) WhereGroup(fn func(*Where)) *Query {
	q.where.WhereGroup(fn)
	return q
}

// OrWhereGroup appends a parenthesized group joined with OR.
func (q *Query) OrWhereGroup(fn func(*Where)) *Query {
	q.where.OrWhereGroup(fn)
	return q
}

// Filter applies predicates to the WHERE tree.
func (q *Query) Filter(ps ...Predicate) *Query {
	q.where.Filter(ps...)
	return q
}

// Join adds an INNER JOIN on "first op second".
func (q *Query) Join(table, first, op, second string) *Query {
	return q.joinOn(InnerJoin, table, func(w *Where) { w.On(first, op, second) })
}

// LeftJoin adds a LEFT JOIN on "first op second".
func (q *Query) LeftJoin(table, first, op, second string) *Query {
	return q.joinOn(LeftJoin, table, func(w *Where) { w.On(first, op, second) })
}

// RightJoin adds a RIGHT JOIN on "first op second".
func (q *Query) RightJoin(table, first, op, second string) *Query {
	return q.joinOn(RightJoin, table, func(w *Where) { w.On(first, op, second) })
}

// JoinOn adds an INNER JOIN whose ON clause is built by fn.
//
//	q.JoinOn("posts", func(w *sql.Where) {
//		w.On("posts.user_id", "=", "users.id").Where("posts.draft", "=", false)
//	})
func (q *Query) JoinOn(table string, fn func(*Where)) *Query {
	return q.joinOn(InnerJoin, table, fn)
}

// LeftJoinOn adds a LEFT JOIN whose ON clause is built by fn.
func (q *Query) LeftJoinOn(table string, fn func(*Where)) *Query {
	return q.joinOn(LeftJoin, table, fn)
}

// RightJoinOn adds a RIGHT JOIN whose ON clause is built by fn.
func (q *Query) RightJoinOn(table string, fn func(*Where)) *Query {
	return q.joinOn(RightJoin, table, fn)
}

func (q *Query) joinOn(kind, table string, fn func(*Where)) *Query {
	on := &Where{}
	fn(on)
	q.errs = append(q.errs, on.errs...)
	q.joins = append(q.joins, &join{kind: kind, table: table, on: on})
	return q
}

// GroupBy appends grouping columns.
func (q *Query) GroupBy(columns ...string) *Query {
	q.groups = append(q.groups, columns...)
	return q
}

// Having appends a verbatim HAVING predicate joined with AND.
func (q *Query) Having(sql string, args ...any) *Query {
	q.having.WhereRaw(sql, args...)
	return q
}

// OrHaving appends a verbatim HAVING predicate joined with OR.
func (q *Query) OrHaving(sql string, args ...any) *Query {
	q.having.OrWhereRaw(sql, args...)
	return q
}

// OrderBy appends an ordering. The direction is ASC or DESC, case-insensitive.
func (q *Query) OrderBy(column, direction string) *Query {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir == "" {
		dir = "ASC"
	}
	if dir != "ASC" && dir != "DESC" {
		return q.fail(fmt.Errorf("dialect/sql: invalid order direction %q", direction))
	}
	q.orders = append(q.orders, ordering{expr: column, dir: dir})
	return q
}

// OrderByDesc appends a descending ordering.
func (q *Query) OrderByDesc(column string) *Query {
	return q.OrderBy(column, "DESC")
}

// OrderByRaw appends a verbatim ordering expression.
func (q *Query) OrderByRaw(expr string, args ...any) *Query {
	if n := countMarkers(expr); n != len(args) {
		return q.fail(fmt.Errorf("dialect/sql: raw order %q has %d markers and %d arguments", expr, n, len(args)))
	}
	q.orders = append(q.orders, ordering{expr: expr, raw: true, args: args})
	return q
}

// Latest orders by column descending. The column defaults to created_at.
func (q *Query) Latest(column ...string) *Query {
	return q.OrderBy(firstOr(column, "created_at"), "DESC")
}

// Oldest orders by column ascending. The column defaults to created_at.
func (q *Query) Oldest(column ...string) *Query {
	return q.OrderBy(firstOr(column, "created_at"), "ASC")
}

// Limit sets the LIMIT clause.
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset sets the OFFSET clause. It is only emitted together with a limit.
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// ForPage limits the query to the given 1-based page.
func (q *Query) ForPage(page, perPage int) *Query {
	if page < 1 {
		page = 1
	}
	return q.Limit(perPage).Offset((page - 1) * perPage)
}

// Union appends "UNION (other)".
func (q *Query) Union(other *Query) *Query {
	q.unions = append(q.unions, union{query: other})
	return q
}

// UnionAll appends "UNION ALL (other)".
func (q *Query) UnionAll(other *Query) *Query {
	q.unions = append(q.unions, union{all: true, query: other})
	return q
}

// Clone returns a deep copy of the builder.
func (q *Query) Clone() *Query {
	c := *q
	c.columns = append([]selection(nil), q.columns...)
	c.joins = append([]*join(nil), q.joins...)
	c.where = q.where.Clone()
	c.groups = append([]string(nil), q.groups...)
	c.having = q.having.Clone()
	c.orders = append([]ordering(nil), q.orders...)
	c.unions = append([]union(nil), q.unions...)
	c.errs = append([]error(nil), q.errs...)
	if q.limit != nil {
		n := *q.limit
		c.limit = &n
	}
	if q.offset != nil {
		n := *q.offset
		c.offset = &n
	}
	return &c
}

// Err returns the errors recorded while building the query.
func (q *Query) Err() error {
	errs := append([]error(nil), q.errs...)
	errs = append(errs, q.where.errs...)
	errs = append(errs, q.having.errs...)
	return errors.Join(errs...)
}

func (q *Query) fail(err error) *Query {
	q.errs = append(q.errs, err)
	return q
}

func firstOr(s []string, def string) string {
	if len(s) > 0 && s[0] != "" {
		return s[0]
	}
	return def
}
