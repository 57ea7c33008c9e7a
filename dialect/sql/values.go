package sql

import "sort"

// Value is a single column assignment of an INSERT or UPDATE statement.
type Value struct {
	Column string
	Value  any
}

// Values is an ordered list of column assignments. The order of the list is
// the order of the columns and markers in the compiled statement.
type Values []Value

// ValuesOf returns the assignments of m ordered by column name.
func ValuesOf(m map[string]any) Values {
	vs := make(Values, 0, len(m))
	for c, v := range m {
		vs = append(vs, Value{Column: c, Value: v})
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Column < vs[j].Column })
	return vs
}

// Set appends an assignment, or replaces the value of an existing column in place.
func (vs Values) Set(column string, v any) Values {
	for i := range vs {
		if vs[i].Column == column {
			vs[i].Value = v
			return vs
		}
	}
	return append(vs, Value{Column: column, Value: v})
}

// Columns returns the assigned columns in order.
func (vs Values) Columns() []string {
	cols := make([]string, len(vs))
	for i := range vs {
		cols[i] = vs[i].Column
	}
	return cols
}

// Args returns the assigned values in order.
func (vs Values) Args() []any {
	args := make([]any, len(vs))
	for i := range vs {
		args[i] = vs[i].Value
	}
	return args
}

// Map returns the assignments as a map.
func (vs Values) Map() map[string]any {
	m := make(map[string]any, len(vs))
	for _, v := range vs {
		m[v.Column] = v.Value
	}
	return m
}
