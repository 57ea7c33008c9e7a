package sql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// renderer carries the state of one compilation: the output builder and the
// table names used to resolve the marker of a column.
type renderer struct {
	ctx   context.Context
	b     *Builder
	types TypeResolver
	table string
	// tables maps table names and aliases in scope to table names.
	tables map[string]string
	err    error
}

func (q *Query) newRenderer(ctx context.Context, b *Builder) *renderer {
	r := &renderer{ctx: ctx, b: b, types: q.types, tables: make(map[string]string)}
	if q.types == nil {
		return r
	}
	r.table = r.scope(q.table)
	for _, j := range q.joins {
		r.scope(j.table)
	}
	return r
}

// scope registers a table reference ("t" or "t as a") and returns the table name.
func (r *renderer) scope(ref string) string {
	name := ref
	if n, alias, ok := splitAlias(ref); ok {
		name = n
		r.tables[alias] = n
	}
	r.tables[name] = name
	return name
}

// arg writes the marker for a value compared with or assigned to column.
func (r *renderer) arg(column string, v any) {
	if r.isBit(column) {
		r.b.BitArg(v)
		return
	}
	r.b.Arg(v)
}

func (r *renderer) isBit(column string) bool {
	if r.types == nil || r.err != nil {
		return false
	}
	table, name := r.table, column
	if i := strings.LastIndexByte(column, '.'); i > 0 {
		t, ok := r.tables[column[:i]]
		if !ok {
			return false
		}
		table, name = t, column[i+1:]
	}
	if table == "" || !isIdent(name) {
		return false
	}
	bit, err := r.types.IsBit(r.ctx, table, name)
	if err != nil {
		r.err = fmt.Errorf("dialect/sql: resolve type of %s.%s: %w", table, name, err)
		return false
	}
	return bit
}

// ToSQL compiles the SELECT statement and returns it with its arguments.
func (q *Query) ToSQL(ctx context.Context) (string, []any, error) {
	if err := q.Err(); err != nil {
		return "", nil, err
	}
	b := &Builder{}
	if err := q.selectInto(ctx, b); err != nil {
		return "", nil, err
	}
	query, args := b.Query()
	return query, args, nil
}

// selectInto writes the SELECT statement of q, and its unions, to b.
func (q *Query) selectInto(ctx context.Context, b *Builder) error {
	r := q.newRenderer(ctx, b)
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(q.columns) == 0 {
		b.WriteByte('*')
	}
	for i, c := range q.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if c.raw {
			b.WriteString(c.expr).AddArgs(c.args...)
		} else {
			b.Ident(c.expr)
		}
	}
	b.WriteString(" FROM ").Ident(q.table)
	q.joinsInto(r)
	q.whereInto(r)
	if len(q.groups) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(q.groups...)
	}
	if !q.having.Empty() {
		b.WriteString(" HAVING ")
		q.having.render(r)
	}
	if len(q.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			if o.raw {
				b.WriteString(o.expr).AddArgs(o.args...)
				continue
			}
			b.Ident(o.expr).Pad().WriteString(o.dir)
		}
	}
	if q.limit != nil {
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*q.limit))
		if q.offset != nil && *q.offset > 0 {
			b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*q.offset))
		}
	}
	if r.err != nil {
		return r.err
	}
	for _, u := range q.unions {
		if err := u.query.Err(); err != nil {
			return err
		}
		b.WriteString(" UNION ")
		if u.all {
			b.WriteString("ALL ")
		}
		b.WriteByte('(')
		if err := u.query.selectInto(ctx, b); err != nil {
			return err
		}
		b.WriteByte(')')
	}
	return nil
}

func (q *Query) joinsInto(r *renderer) {
	for _, j := range q.joins {
		r.b.Pad().WriteString(j.kind).WriteString(" JOIN ").Ident(j.table)
		if !j.on.Empty() {
			r.b.WriteString(" ON ")
			j.on.render(r)
		}
	}
}

func (q *Query) whereInto(r *renderer) {
	if q.where.Empty() {
		return
	}
	r.b.WriteString(" WHERE ")
	q.where.render(r)
}

// InsertSQL compiles an INSERT statement for vs.
func (q *Query) InsertSQL(ctx context.Context, vs Values) (string, []any, error) {
	if err := q.Err(); err != nil {
		return "", nil, err
	}
	b := &Builder{}
	r := q.newRenderer(ctx, b)
	b.WriteString("INSERT INTO ").Ident(tableName(q.table)).WriteString(" (").IdentComma(vs.Columns()...).WriteString(") VALUES (")
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		r.arg(v.Column, v.Value)
	}
	b.WriteByte(')')
	if r.err != nil {
		return "", nil, r.err
	}
	query, args := b.Query()
	return query, args, nil
}

// UpdateSQL compiles an UPDATE statement assigning vs to the rows matched by
// the WHERE tree. A query without conditions updates every row.
func (q *Query) UpdateSQL(ctx context.Context, vs Values) (string, []any, error) {
	if err := q.Err(); err != nil {
		return "", nil, err
	}
	if len(vs) == 0 {
		return "", nil, errors.New("dialect/sql: update: no values to set")
	}
	b := &Builder{}
	r := q.newRenderer(ctx, b)
	b.WriteString("UPDATE ").Ident(q.table).WriteString(" SET ")
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(v.Column).WriteString(" = ")
		r.arg(v.Column, v.Value)
	}
	q.whereInto(r)
	if r.err != nil {
		return "", nil, r.err
	}
	query, args := b.Query()
	return query, args, nil
}

// DeleteSQL compiles a DELETE statement for the rows matched by the WHERE
// tree. A query without conditions deletes every row.
func (q *Query) DeleteSQL(ctx context.Context) (string, []any, error) {
	if err := q.Err(); err != nil {
		return "", nil, err
	}
	b := &Builder{}
	r := q.newRenderer(ctx, b)
	b.WriteString("DELETE FROM ").Ident(tableName(q.table))
	q.whereInto(r)
	if r.err != nil {
		return "", nil, r.err
	}
	query, args := b.Query()
	return query, args, nil
}

// tableName strips an alias from a table reference.
func tableName(ref string) string {
	if name, _, ok := splitAlias(ref); ok {
		return name
	}
	return ref
}
