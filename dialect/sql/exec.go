package sql

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Get executes the SELECT statement and returns its rows.
func (q *Query) Get(ctx context.Context) ([]Row, error) {
	query, args, err := q.ToSQL(ctx)
	if err != nil {
		return nil, err
	}
	return q.query(ctx, query, args)
}

// First executes the query with LIMIT 1 and returns the first row, or nil
// when there is none. No rows is not an error.
func (q *Query) First(ctx context.Context) (Row, error) {
	rows, err := q.Clone().Limit(1).Get(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Count returns the number of rows matched by the query, ignoring its
// ordering and pagination. Distinct, grouped and unioned queries are
// counted as a derived table.
func (q *Query) Count(ctx context.Context) (int64, error) {
	c := q.Clone()
	c.orders, c.limit, c.offset = nil, nil, nil
	var (
		query string
		args  []any
		err   error
	)
	if c.distinct || len(c.groups) > 0 || len(c.unions) > 0 {
		query, args, err = c.ToSQL(ctx)
		query = "SELECT COUNT(*) AS `aggregate` FROM (" + query + ") AS `t`"
	} else {
		c.columns = []selection{{expr: "COUNT(*) AS `aggregate`", raw: true}}
		query, args, err = c.ToSQL(ctx)
	}
	if err != nil {
		return 0, err
	}
	rows, err := q.query(ctx, query, args)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	n, ok := rows[0].Int64("aggregate")
	if !ok {
		return 0, errors.New("dialect/sql: count: unexpected aggregate value")
	}
	return n, nil
}

// Exists reports whether the query matches at least one row.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	query, args, err := q.ToSQL(ctx)
	if err != nil {
		return false, err
	}
	rows, err := q.query(ctx, "SELECT EXISTS("+query+") AS `exists`", args)
	if err != nil || len(rows) == 0 {
		return false, err
	}
	n, _ := rows[0].Int64("exists")
	return n == 1, nil
}

// Pluck returns the values of a single column.
func (q *Query) Pluck(ctx context.Context, column string) ([]any, error) {
	query, args, err := q.Clone().Select(column).ToSQL(ctx)
	if err != nil {
		return nil, err
	}
	if q.drv == nil {
		return nil, errNoDriver
	}
	var rows Rows
	start := time.Now()
	if err := q.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	q.log(ctx, query, args, start)
	return ScanColumn(rows)
}

// Insert executes an INSERT statement for vs.
func (q *Query) Insert(ctx context.Context, vs Values) (Result, error) {
	query, args, err := q.InsertSQL(ctx, vs)
	if err != nil {
		return nil, err
	}
	return q.exec(ctx, query, args)
}

// Update executes an UPDATE statement. Without conditions it updates every
// row of the table; callers are responsible for adding a WHERE clause.
func (q *Query) Update(ctx context.Context, vs Values) (Result, error) {
	query, args, err := q.UpdateSQL(ctx, vs)
	if err != nil {
		return nil, err
	}
	return q.exec(ctx, query, args)
}

// Delete executes a DELETE statement. Without conditions it deletes every
// row of the table; callers are responsible for adding a WHERE clause.
func (q *Query) Delete(ctx context.Context) (Result, error) {
	query, args, err := q.DeleteSQL(ctx)
	if err != nil {
		return nil, err
	}
	return q.exec(ctx, query, args)
}

var errNoDriver = errors.New("dialect/sql: query has no driver")

func (q *Query) query(ctx context.Context, query string, args []any) ([]Row, error) {
	if q.drv == nil {
		return nil, errNoDriver
	}
	var rows Rows
	start := time.Now()
	if err := q.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	q.log(ctx, query, args, start)
	return ScanRows(rows)
}

func (q *Query) exec(ctx context.Context, query string, args []any) (Result, error) {
	if q.drv == nil {
		return nil, errNoDriver
	}
	var res Result
	start := time.Now()
	if err := q.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	q.log(ctx, query, args, start)
	return res, nil
}

func (q *Query) log(ctx context.Context, query string, args []any, start time.Time) {
	l := q.logger
	if l == nil {
		l = slog.Default()
	}
	l.DebugContext(ctx, "sql statement", "table", q.table, "query", query, "args", args, "duration", time.Since(start))
}
