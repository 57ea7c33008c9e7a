package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a result row keyed by column name. Text and blob values read as
// []byte are converted to string. BIT columns read as int64.
type Row map[string]any

// String returns the value of column as a string, or "" if it is NULL or missing.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the value of column as an int64 and whether the conversion succeeded.
func (r Row) Int64(column string) (int64, bool) {
	return toInt64(r[column])
}

// ScanRows reads every row of rows and closes it.
func ScanRows(rows ColumnScanner) ([]Row, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	bits := bitColumns(rows, len(columns))
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			row[c] = columnValue(values[i], bits[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return out, nil
}

// ScanColumn reads the first column of every row of rows and closes it.
func ScanColumn(rows ColumnScanner) ([]any, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	bits := bitColumns(rows, len(columns))
	var out []any
	for rows.Next() {
		dest := make([]any, len(columns))
		var v any
		dest[0] = &v
		for i := 1; i < len(dest); i++ {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		out = append(out, columnValue(v, bits[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return out, nil
}

// bitColumns reports which columns have the BIT database type. Drivers that
// do not report column types have none.
func bitColumns(rows ColumnScanner, n int) []bool {
	bits := make([]bool, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return bits
	}
	for i, ct := range types {
		if i < n && ct != nil {
			bits[i] = strings.EqualFold(ct.DatabaseTypeName(), "BIT")
		}
	}
	return bits
}

// columnValue normalizes a scanned value. BIT values arrive as big-endian
// raw bytes, e.g. []byte{1} for a set bit(1).
func columnValue(v any, bit bool) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if bit && len(b) <= 8 {
		var n uint64
		for _, c := range b {
			n = n<<8 | uint64(c)
		}
		return int64(n)
	}
	return string(b)
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
