package sql

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Connective joins a condition to the conditions before it.
type Connective string

// Connectives.
const (
	And Connective = "AND"
	Or  Connective = "OR"
)

type condKind uint8

const (
	condCompare condKind = iota // column op value
	condList                    // column [NOT] IN (...)
	condNull                    // column IS [NOT] NULL
	condColumns                 // column op column
	condRaw                     // verbatim fragment
	condGroup                   // (nested tree)
)

// cond is a single node of a condition tree. Nodes are never modified after
// they are appended.
type cond struct {
	kind   condKind
	conn   Connective
	column string
	op     string
	value  any
	values []any
	second string
	raw    string
	args   []any
	group  *Where
	not    bool
}

// Where is an ordered condition tree. It is used for WHERE clauses, HAVING
// clauses and JOIN ... ON clauses. Every method appends one node (or none,
// for an empty group) and returns the receiver for chaining.
//
//	w := sql.NewWhere().
//		Where("status", "=", "active").
//		WhereGroup(func(w *sql.Where) {
//			w.Where("role", "=", "admin").OrWhere("role", "=", "owner")
//		})
type Where struct {
	conds []*cond
	errs  []error
}

// NewWhere returns an empty condition tree.
func NewWhere() *Where {
	return &Where{}
}

// Where appends "column op value" joined with AND. A nil value with "=" or
// "<>" is rendered as IS NULL or IS NOT NULL. With IN or NOT IN the value
// must be a slice.
func (w *Where) Where(column, op string, value any) *Where {
	return w.compare(And, column, op, value)
}

// OrWhere is like Where but joined with OR.
func (w *Where) OrWhere(column, op string, value any) *Where {
	return w.compare(Or, column, op, value)
}

// WhereIn appends "column IN (...)" joined with AND.
func (w *Where) WhereIn(column string, values ...any) *Where {
	return w.list(And, column, "IN", values)
}

// OrWhereIn appends "column IN (...)" joined with OR.
func (w *Where) OrWhereIn(column string, values ...any) *Where {
	return w.list(Or, column, "IN", values)
}

// WhereNotIn appends "column NOT IN (...)" joined with AND.
func (w *Where) WhereNotIn(column string, values ...any) *Where {
	return w.list(And, column, "NOT IN", values)
}

// OrWhereNotIn appends "column NOT IN (...)" joined with OR.
func (w *Where) OrWhereNotIn(column string, values ...any) *Where {
	return w.list(Or, column, "NOT IN", values)
}

// WhereNull appends "column IS NULL" joined with AND.
func (w *Where) WhereNull(column string) *Where {
	return w.null(And, column, "IS NULL")
}

// OrWhereNull appends "column IS NULL" joined with OR.
func (w *Where) OrWhereNull(column string) *Where {
	return w.null(Or, column, "IS NULL")
}

// WhereNotNull appends "column IS NOT NULL" joined with AND.
func (w *Where) WhereNotNull(column string) *Where {
	return w.null(And, column, "IS NOT NULL")
}

// OrWhereNotNull appends "column IS NOT NULL" joined with OR.
func (w *Where) OrWhereNotNull(column string) *Where {
	return w.null(Or, column, "IS NOT NULL")
}

// WhereRaw appends a verbatim fragment and its arguments joined with AND.
// The fragment must contain one marker per argument.
func (w *Where) WhereRaw(sql string, args ...any) *Where {
	return w.rawCond(And, sql, args)
}

// OrWhereRaw is like WhereRaw but joined with OR.
func (w *Where) OrWhereRaw(sql string, args ...any) *Where {
	return w.rawCond(Or, sql, args)
}

// WhereColumn appends a comparison of two columns joined with AND.
func (w *Where) WhereColumn(first, op, second string) *Where {
	return w.columns(And, first, op, second)
}

// OrWhereColumn appends a comparison of two columns joined with OR.
func (w *Where) OrWhereColumn(first, op, second string) *Where {
	return w.columns(Or, first, op, second)
}

// On is an alias of WhereColumn for join clauses.
func (w *Where) On(first, op, second string) *Where {
	return w.columns(And, first, op, second)
}

// OrOn is an alias of OrWhereColumn for join clauses.
func (w *Where) OrOn(first, op, second string) *Where {
	return w.columns(Or, first, op, second)
}

// WhereGroup appends a parenthesized group built by fn, joined with AND.
// A group left empty by fn is dropped.
func (w *Where) WhereGroup(fn func(*Where)) *Where {
	return w.nested(And, fn)
}

// OrWhereGroup is like WhereGroup but joined with OR.
func (w *Where) OrWhereGroup(fn func(*Where)) *Where {
	return w.nested(Or, fn)
}

// Filter applies the predicates in order.
func (w *Where) Filter(ps ...func(*Where)) *Where {
	for _, p := range ps {
		p(w)
	}
	return w
}

// Len returns the number of top-level conditions.
func (w *Where) Len() int {
	return len(w.conds)
}

// Empty reports whether the tree has no conditions.
func (w *Where) Empty() bool {
	return len(w.conds) == 0
}

// Err returns the errors recorded while building the tree.
func (w *Where) Err() error {
	return errors.Join(w.errs...)
}

// Clone returns a copy of the tree that can be extended independently.
func (w *Where) Clone() *Where {
	if w == nil {
		return nil
	}
	return &Where{
		conds: append([]*cond(nil), w.conds...),
		errs:  append([]error(nil), w.errs...),
	}
}

func (w *Where) compare(conn Connective, column, op string, value any) *Where {
	o, ok := normalizeOp(op)
	if !ok {
		return w.fail(fmt.Errorf("dialect/sql: unsupported operator %q on column %q", op, column))
	}
	switch {
	case o == "IN" || o == "NOT IN":
		values, err := asSlice(value)
		if err != nil {
			return w.fail(fmt.Errorf("dialect/sql: %s on column %q: %w", o, column, err))
		}
		return w.list(conn, column, o, values)
	case o == "IS NULL" || o == "IS NOT NULL":
		return w.null(conn, column, o)
	case value == nil && o == "=":
		return w.null(conn, column, "IS NULL")
	case value == nil && o == "<>":
		return w.null(conn, column, "IS NOT NULL")
	}
	return w.add(&cond{kind: condCompare, conn: conn, column: column, op: o, value: value})
}

func (w *Where) list(conn Connective, column, op string, values []any) *Where {
	return w.add(&cond{kind: condList, conn: conn, column: column, op: op, values: values})
}

func (w *Where) null(conn Connective, column, op string) *Where {
	return w.add(&cond{kind: condNull, conn: conn, column: column, op: op})
}

func (w *Where) columns(conn Connective, first, op, second string) *Where {
	o, ok := normalizeOp(op)
	if !ok || o == "IN" || o == "NOT IN" || o == "IS NULL" || o == "IS NOT NULL" {
		return w.fail(fmt.Errorf("dialect/sql: unsupported column operator %q", op))
	}
	return w.add(&cond{kind: condColumns, conn: conn, column: first, op: o, second: second})
}

func (w *Where) rawCond(conn Connective, sql string, args []any) *Where {
	if n := countMarkers(sql); n != len(args) {
		return w.fail(fmt.Errorf("dialect/sql: raw condition %q has %d markers and %d arguments", sql, n, len(args)))
	}
	return w.add(&cond{kind: condRaw, conn: conn, raw: sql, args: args})
}

func (w *Where) nested(conn Connective, fn func(*Where)) *Where {
	g := &Where{}
	fn(g)
	w.errs = append(w.errs, g.errs...)
	if g.Empty() {
		return w
	}
	return w.add(&cond{kind: condGroup, conn: conn, group: g})
}

func (w *Where) add(c *cond) *Where {
	w.conds = append(w.conds, c)
	return w
}

func (w *Where) fail(err error) *Where {
	w.errs = append(w.errs, err)
	return w
}

// render writes the tree in a single depth-first pass. The first node never
// carries its connective.
func (w *Where) render(r *renderer) {
	for i, c := range w.conds {
		if i > 0 {
			r.b.Pad().WriteString(string(c.conn)).Pad()
		}
		switch c.kind {
		case condCompare:
			r.b.Ident(c.column).Pad().WriteString(c.op).Pad()
			r.arg(c.column, c.value)
		case condList:
			if len(c.values) == 0 {
				// Empty sets match nothing (IN) or everything (NOT IN).
				if c.op == "IN" {
					r.b.WriteString("1 = 0")
				} else {
					r.b.WriteString("1 = 1")
				}
				continue
			}
			r.b.Ident(c.column).Pad().WriteString(c.op).WriteString(" (")
			for j, v := range c.values {
				if j > 0 {
					r.b.WriteString(", ")
				}
				r.arg(c.column, v)
			}
			r.b.WriteByte(')')
		case condNull:
			r.b.Ident(c.column).Pad().WriteString(c.op)
		case condColumns:
			r.b.Ident(c.column).Pad().WriteString(c.op).Pad().Ident(c.second)
		case condRaw:
			r.b.WriteString(c.raw).AddArgs(c.args...)
		case condGroup:
			if c.not {
				r.b.WriteString("NOT ")
			}
			r.b.WriteByte('(')
			c.group.render(r)
			r.b.WriteByte(')')
		}
	}
}

// normalizeOp upper-cases op and maps "!=" to "<>".
func normalizeOp(op string) (string, bool) {
	switch o := strings.Join(strings.Fields(strings.ToUpper(op)), " "); o {
	case "=", "<", ">", "<=", ">=", "<>", "LIKE", "NOT LIKE", "IN", "NOT IN", "IS NULL", "IS NOT NULL":
		return o, true
	case "!=":
		return "<>", true
	default:
		return "", false
	}
}

// asSlice converts a slice or array value to []any.
func asSlice(v any) ([]any, error) {
	switch v := v.(type) {
	case []any:
		return v, nil
	case nil:
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expect a slice value, got %T", v)
	}
	// []byte is a scalar value, not a list.
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, fmt.Errorf("expect a slice value, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// countMarkers counts the parameter markers of a SQL fragment. Markers inside
// quoted strings or quoted identifiers are ignored.
func countMarkers(s string) int {
	n := 0
	scanMarkers(s, func(int) { n++ })
	return n
}

// scanMarkers calls fn with the byte offset of every "?" outside quotes.
func scanMarkers(s string, fn func(int)) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			fn(i)
		}
	}
}
