package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/mvcore/dialect"
	"github.com/syssam/mvcore/dialect/sql"
)

// NewSource returns the introspection source matching the dialect of drv.
func NewSource(drv dialect.Driver) (Source, error) {
	switch drv.Dialect() {
	case dialect.MySQL:
		return &MySQLSource{Driver: drv}, nil
	case dialect.SQLite:
		return &SQLiteSource{Driver: drv}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", drv.Dialect())
	}
}

// mysqlColumnsQuery lists the columns of a table of the current database.
const mysqlColumnsQuery = "SELECT `COLUMN_NAME`, `COLUMN_TYPE`, `DATA_TYPE`, `IS_NULLABLE` " +
	"FROM `INFORMATION_SCHEMA`.`COLUMNS` " +
	"WHERE `TABLE_SCHEMA` = DATABASE() AND `TABLE_NAME` = ? " +
	"ORDER BY `ORDINAL_POSITION`"

// MySQLSource reads column types from INFORMATION_SCHEMA.COLUMNS.
type MySQLSource struct {
	Driver dialect.ExecQuerier
}

// Columns implements Source.
func (s *MySQLSource) Columns(ctx context.Context, table string) ([]*Column, error) {
	rows := &sql.Rows{}
	if err := s.Driver.Query(ctx, mysqlColumnsQuery, []any{table}, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []*Column
	for rows.Next() {
		var (
			c        Column
			nullable string
		)
		if err := rows.Scan(&c.Name, &c.Type, &c.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, &c)
	}
	return columns, rows.Err()
}

const sqliteColumnsQuery = "SELECT `name`, `type`, `notnull`, `pk` FROM pragma_table_info(?) ORDER BY `cid`"

// SQLiteSource reads column types from pragma_table_info. The base data type
// is the declared type without its length, e.g. "varchar" for "VARCHAR(255)".
// Primary key columns are never nullable.
type SQLiteSource struct {
	Driver dialect.ExecQuerier
}

// Columns implements Source.
func (s *SQLiteSource) Columns(ctx context.Context, table string) ([]*Column, error) {
	rows := &sql.Rows{}
	if err := s.Driver.Query(ctx, sqliteColumnsQuery, []any{table}, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []*Column
	for rows.Next() {
		var (
			c           Column
			notnull, pk int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notnull, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		c.DataType = baseType(c.Type)
		c.Nullable = notnull == 0 && pk == 0
		columns = append(columns, &c)
	}
	return columns, rows.Err()
}

// baseType strips the length or precision from a declared type.
func baseType(declared string) string {
	if i := strings.IndexByte(declared, '('); i >= 0 {
		declared = declared[:i]
	}
	return strings.ToLower(strings.TrimSpace(declared))
}

// StaticSource serves fixed column lists keyed by table name.
type StaticSource map[string][]*Column

// Columns implements Source. Unknown tables have no columns.
func (s StaticSource) Columns(_ context.Context, table string) ([]*Column, error) {
	columns := make([]*Column, len(s[table]))
	for i, c := range s[table] {
		cc := *c
		columns[i] = &cc
	}
	return columns, nil
}

// Bit returns a bit(1) column fixture.
func Bit(name string) *Column {
	return &Column{Name: name, Type: "bit(1)", DataType: "bit"}
}

// Typed returns a column fixture of the given declared type.
func Typed(name, declared string) *Column {
	return &Column{Name: name, Type: declared, DataType: baseType(declared), Nullable: true}
}
