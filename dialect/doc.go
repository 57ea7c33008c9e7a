// Package dialect defines the storage backend contract used by mvcore.
//
// The SQL emitted by the query compiler follows one relational backend's
// conventions: backtick identifier quoting, `?` positional markers, `b?` markers
// for single-bit columns and `LIMIT n [OFFSET m]` pagination. The dialect name
// only selects the database/sql driver and the column catalog source.
//
// # Dialect Constants
//
//	dialect.MySQL  = "mysql"
//	dialect.SQLite = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface adds commit and rollback to the ExecQuerier operations:
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # Usage
//
//	drv, err := sql.Open(dialect.MySQL, "root:@tcp(localhost:3306)/mvcore")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	client := mvcore.NewClient(drv)
//
// # Sub-packages
//
//   - dialect/sql: storage driver, condition tree and query compiler
//   - dialect/sql/schema: column type catalog and declaration validation
//   - dialect/sql/sqlgraph: classification of constraint violations
package dialect
