// Package sql provides the storage driver, the condition tree and the query
// compiler used by mvcore.
//
// # Query Builder
//
// A Query is a mutable builder for one table. Mutators return the receiver
// and a terminal call compiles and executes the statement:
//
//	rows, err := sql.NewQuery(drv, "users").
//	    Where("status", "=", "active").
//	    OrWhere("role", "=", "admin").
//	    OrderBy("id", "DESC").
//	    Limit(10).
//	    Get(ctx)
//	// SELECT * FROM `users` WHERE `status` = ? OR `role` = ? ORDER BY `id` DESC LIMIT 10
//
// # Condition Trees
//
// WHERE, HAVING and JOIN ... ON clauses are Where trees. Groups nest with a
// callback; a group left empty is dropped:
//
//	q.Where("status", "=", "active").
//	    WhereGroup(func(w *sql.Where) {
//	        w.Where("role", "=", "admin").OrWhere("role", "=", "owner")
//	    })
//	// ... WHERE `status` = ? AND (`role` = ? OR `role` = ?)
//
// # Bindings
//
// SQL text and arguments are produced by one depth-first pass over the
// statement, so arguments are always in marker order. That includes raw
// fragments, join conditions, HAVING predicates and unions.
//
// # Bit Columns
//
// A query bound to an entity type (see Query.Bind) asks its TypeResolver
// whether each compared or assigned column is a bit(1) column. Such columns
// get the "b?" marker and their value is bound as a binary digit string.
//
// # Predicates
//
// Typed fields build reusable predicates:
//
//	var (
//	    Name   = sql.StringField[sql.Predicate]("name")
//	    Active = sql.BoolField[sql.Predicate]("active")
//	)
//	q.Filter(Name.HasPrefix("a"), Active.EQ(true))
//
// # Debug Rendering
//
// ToRawSQLData substitutes literal values into the markers. The result is
// meant for logs and is never executed.
package sql
