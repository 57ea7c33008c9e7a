package sql

import (
	"strings"
	"time"
)

// PredicateFunc is the constraint of typed predicate fields. It admits
// Predicate and any named type based on func(*Where), so an entity package
// can declare its own predicate type.
type PredicateFunc interface {
	~func(*Where)
}

// FieldEQ returns a predicate for "name = v".
func FieldEQ(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, "=", v) }
}

// FieldNEQ returns a predicate for "name <> v".
func FieldNEQ(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, "<>", v) }
}

// FieldGT returns a predicate for "name > v".
func FieldGT(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, ">", v) }
}

// FieldGTE returns a predicate for "name >= v".
func FieldGTE(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, ">=", v) }
}

// FieldLT returns a predicate for "name < v".
func FieldLT(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, "<", v) }
}

// FieldLTE returns a predicate for "name <= v".
func FieldLTE(name string, v any) Predicate {
	return func(w *Where) { w.Where(name, "<=", v) }
}

// FieldIn returns a predicate for "name IN (vs...)".
func FieldIn[T any](name string, vs ...T) Predicate {
	return func(w *Where) { w.WhereIn(name, anySlice(vs)...) }
}

// FieldNotIn returns a predicate for "name NOT IN (vs...)".
func FieldNotIn[T any](name string, vs ...T) Predicate {
	return func(w *Where) { w.WhereNotIn(name, anySlice(vs)...) }
}

// FieldIsNull returns a predicate for "name IS NULL".
func FieldIsNull(name string) Predicate {
	return func(w *Where) { w.WhereNull(name) }
}

// FieldNotNull returns a predicate for "name IS NOT NULL".
func FieldNotNull(name string) Predicate {
	return func(w *Where) { w.WhereNotNull(name) }
}

// FieldContains returns a predicate for "name LIKE '%v%'".
func FieldContains(name, v string) Predicate {
	return func(w *Where) { w.Where(name, "LIKE", "%"+escapeLike(v)+"%") }
}

// FieldHasPrefix returns a predicate for "name LIKE 'v%'".
func FieldHasPrefix(name, v string) Predicate {
	return func(w *Where) { w.Where(name, "LIKE", escapeLike(v)+"%") }
}

// FieldHasSuffix returns a predicate for "name LIKE '%v'".
func FieldHasSuffix(name, v string) Predicate {
	return func(w *Where) { w.Where(name, "LIKE", "%"+escapeLike(v)) }
}

// Not returns a predicate that negates p. An empty p is a no-op.
func Not(p Predicate) Predicate {
	return func(w *Where) {
		g := &Where{}
		p(g)
		w.errs = append(w.errs, g.errs...)
		if g.Empty() {
			return
		}
		w.add(&cond{kind: condGroup, conn: And, group: g, not: true})
	}
}

// AndPreds groups predicates joined with AND.
func AndPreds(ps ...Predicate) Predicate {
	return func(w *Where) {
		w.WhereGroup(func(g *Where) {
			for _, p := range ps {
				p(g)
			}
		})
	}
}

// OrPreds groups predicates joined with OR.
func OrPreds(ps ...Predicate) Predicate {
	return func(w *Where) {
		w.WhereGroup(func(g *Where) {
			for _, p := range ps {
				o := &Where{}
				p(o)
				g.errs = append(g.errs, o.errs...)
				if o.Empty() {
					continue
				}
				g.add(&cond{kind: condGroup, conn: Or, group: o})
			}
		})
	}
}

// Field is a typed column reference providing comparison predicates.
//
//	var Age = sql.Field[sql.Predicate, int]("age")
//	q.Filter(Age.GTE(18), Age.LT(65))
type Field[P PredicateFunc, T any] string

// Name returns the column name.
func (f Field[P, T]) Name() string { return string(f) }

// EQ returns a predicate for "f = v".
func (f Field[P, T]) EQ(v T) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate for "f <> v".
func (f Field[P, T]) NEQ(v T) P { return P(FieldNEQ(string(f), v)) }

// GT returns a predicate for "f > v".
func (f Field[P, T]) GT(v T) P { return P(FieldGT(string(f), v)) }

// GTE returns a predicate for "f >= v".
func (f Field[P, T]) GTE(v T) P { return P(FieldGTE(string(f), v)) }

// LT returns a predicate for "f < v".
func (f Field[P, T]) LT(v T) P { return P(FieldLT(string(f), v)) }

// LTE returns a predicate for "f <= v".
func (f Field[P, T]) LTE(v T) P { return P(FieldLTE(string(f), v)) }

// In returns a predicate for "f IN (vs...)".
func (f Field[P, T]) In(vs ...T) P { return P(FieldIn(string(f), vs...)) }

// NotIn returns a predicate for "f NOT IN (vs...)".
func (f Field[P, T]) NotIn(vs ...T) P { return P(FieldNotIn(string(f), vs...)) }

// IsNull returns a predicate for "f IS NULL".
func (f Field[P, T]) IsNull() P { return P(FieldIsNull(string(f))) }

// NotNull returns a predicate for "f IS NOT NULL".
func (f Field[P, T]) NotNull() P { return P(FieldNotNull(string(f))) }

// Typed fields for common column types.
type (
	IntField[P PredicateFunc]     = Field[P, int]
	Int64Field[P PredicateFunc]   = Field[P, int64]
	Float64Field[P PredicateFunc] = Field[P, float64]
	TimeField[P PredicateFunc]    = Field[P, time.Time]
)

// StringField is a typed string column with pattern predicates.
type StringField[P PredicateFunc] string

// Name returns the column name.
func (f StringField[P]) Name() string { return string(f) }

// EQ returns a predicate for "f = v".
func (f StringField[P]) EQ(v string) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate for "f <> v".
func (f StringField[P]) NEQ(v string) P { return P(FieldNEQ(string(f), v)) }

// In returns a predicate for "f IN (vs...)".
func (f StringField[P]) In(vs ...string) P { return P(FieldIn(string(f), vs...)) }

// NotIn returns a predicate for "f NOT IN (vs...)".
func (f StringField[P]) NotIn(vs ...string) P { return P(FieldNotIn(string(f), vs...)) }

// Like returns a predicate for "f LIKE pattern". The pattern is used as is.
func (f StringField[P]) Like(pattern string) P {
	return P(func(w *Where) { w.Where(string(f), "LIKE", pattern) })
}

// Contains returns a predicate matching values containing v.
func (f StringField[P]) Contains(v string) P { return P(FieldContains(string(f), v)) }

// HasPrefix returns a predicate matching values starting with v.
func (f StringField[P]) HasPrefix(v string) P { return P(FieldHasPrefix(string(f), v)) }

// HasSuffix returns a predicate matching values ending with v.
func (f StringField[P]) HasSuffix(v string) P { return P(FieldHasSuffix(string(f), v)) }

// IsNull returns a predicate for "f IS NULL".
func (f StringField[P]) IsNull() P { return P(FieldIsNull(string(f))) }

// NotNull returns a predicate for "f IS NOT NULL".
func (f StringField[P]) NotNull() P { return P(FieldNotNull(string(f))) }

// BoolField is a typed boolean column. Bound queries compile comparisons on
// bit(1) columns with the bit marker.
type BoolField[P PredicateFunc] string

// Name returns the column name.
func (f BoolField[P]) Name() string { return string(f) }

// EQ returns a predicate for "f = v".
func (f BoolField[P]) EQ(v bool) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate for "f <> v".
func (f BoolField[P]) NEQ(v bool) P { return P(FieldNEQ(string(f), v)) }

// IsNull returns a predicate for "f IS NULL".
func (f BoolField[P]) IsNull() P { return P(FieldIsNull(string(f))) }

// NotNull returns a predicate for "f IS NOT NULL".
func (f BoolField[P]) NotNull() P { return P(FieldNotNull(string(f))) }

// EnumField is a typed column holding one of a set of string values.
type EnumField[P PredicateFunc, T ~string] string

// Name returns the column name.
func (f EnumField[P, T]) Name() string { return string(f) }

// EQ returns a predicate for "f = v".
func (f EnumField[P, T]) EQ(v T) P { return P(FieldEQ(string(f), string(v))) }

// NEQ returns a predicate for "f <> v".
func (f EnumField[P, T]) NEQ(v T) P { return P(FieldNEQ(string(f), string(v))) }

// In returns a predicate for "f IN (vs...)".
func (f EnumField[P, T]) In(vs ...T) P { return P(FieldIn(string(f), enumStrings(vs)...)) }

// NotIn returns a predicate for "f NOT IN (vs...)".
func (f EnumField[P, T]) NotIn(vs ...T) P { return P(FieldNotIn(string(f), enumStrings(vs)...)) }

func enumStrings[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i := range vs {
		out[i] = string(vs[i])
	}
	return out
}

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = vs[i]
	}
	return out
}

// escapeLike escapes the LIKE wildcards of v.
func escapeLike(v string) string {
	if !strings.ContainsAny(v, `%_\`) {
		return v
	}
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}
