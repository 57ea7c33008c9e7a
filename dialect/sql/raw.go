package sql

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToRawSQL returns the compiled SELECT text with its markers.
func (q *Query) ToRawSQL(ctx context.Context) (string, error) {
	query, _, err := q.ToSQL(ctx)
	return query, err
}

// ToRawSQLData returns the compiled SELECT with every marker replaced by the
// literal form of its argument. The output is meant for logging and must
// never be executed.
func (q *Query) ToRawSQLData(ctx context.Context) (string, error) {
	query, args, err := q.ToSQL(ctx)
	if err != nil {
		return "", err
	}
	return Interpolate(query, args), nil
}

// Interpolate substitutes args into the markers of query, in order. Markers
// without a matching argument are kept.
func Interpolate(query string, args []any) string {
	var (
		b    strings.Builder
		last int
		n    int
	)
	scanMarkers(query, func(i int) {
		if n >= len(args) {
			return
		}
		b.WriteString(query[last:i])
		b.WriteString(literal(args[n]))
		last = i + 1
		n++
	})
	b.WriteString(query[last:])
	return b.String()
}

// literal formats v as a SQL literal.
func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + escapeStringValue(v) + "'"
	case []byte:
		return "'" + escapeStringValue(string(v)) + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.999999") + "'"
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return "'" + escapeStringValue(v.String()) + "'"
	default:
		return fmt.Sprint(v)
	}
}

// escapeStringValue escapes a string value for use in a quoted SQL literal.
// Backslashes are escaped for MySQL and single quotes are doubled.
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}
