package sql

import (
	"strconv"
	"strings"
	"unicode"
)

// Parameter markers emitted by the compiler.
const (
	// Marker is the standard positional parameter marker.
	Marker = "?"
	// BitMarker is the marker used for single-bit columns. With client-side
	// interpolation the bound binary string becomes a bit literal, e.g. b'1'.
	BitMarker = "b?"
)

// Builder accumulates SQL text and its arguments in emission order. Every
// compiler in this package writes through a Builder, so an argument is
// appended at the moment its marker is written.
type Builder struct {
	sb   strings.Builder
	args []any
}

// WriteString appends s to the SQL text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends c to the SQL text.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a single space.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Ident appends the quoted form of an identifier. See Quote.
func (b *Builder) Ident(s string) *Builder {
	return b.WriteString(Quote(s))
}

// IdentComma appends the quoted identifiers separated by ", ".
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Arg writes a standard marker and records its argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	return b.WriteString(Marker)
}

// BitArg writes a bit marker and records the argument encoded as a binary
// digit string.
func (b *Builder) BitArg(v any) *Builder {
	b.args = append(b.args, bitValue(v))
	return b.WriteString(BitMarker)
}

// AddArgs records arguments of a verbatim fragment already written by the caller.
func (b *Builder) AddArgs(args ...any) *Builder {
	b.args = append(b.args, args...)
	return b
}

// Len returns the length of the SQL text written so far.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// String returns the SQL text.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query returns the SQL text and its arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// Quote quotes an identifier with backticks. Dotted references are quoted
// per segment (users.id becomes `users`.`id`), "x as y" becomes `x` AS `y`
// and a "*" segment is kept as is. Anything that is not a plain identifier,
// such as an expression or an already quoted name, is returned verbatim.
func Quote(s string) string {
	if name, alias, ok := splitAlias(s); ok {
		qn, qa := Quote(name), Quote(alias)
		if qn == name || qa == alias {
			return s
		}
		return qn + " AS " + qa
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		switch {
		case p == "*" && i == len(parts)-1:
		case isIdent(p):
			parts[i] = "`" + p + "`"
		default:
			return s
		}
	}
	return strings.Join(parts, ".")
}

// splitAlias splits "name as alias" (case-insensitive AS).
func splitAlias(s string) (string, string, bool) {
	i := strings.Index(strings.ToLower(s), " as ")
	if i <= 0 {
		return "", "", false
	}
	name, alias := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:])
	if name == "" || alias == "" {
		return "", "", false
	}
	return name, alias, true
}

// isIdent reports whether s is an unquoted identifier.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case unicode.IsLetter(c):
		case unicode.IsDigit(c):
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// bitValue encodes v as a string of binary digits for a bit marker.
func bitValue(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(v), 2)
	case int8:
		return strconv.FormatInt(int64(v), 2)
	case int16:
		return strconv.FormatInt(int64(v), 2)
	case int32:
		return strconv.FormatInt(int64(v), 2)
	case int64:
		return strconv.FormatInt(v, 2)
	case uint:
		return strconv.FormatUint(uint64(v), 2)
	case uint8:
		return strconv.FormatUint(uint64(v), 2)
	case uint16:
		return strconv.FormatUint(uint64(v), 2)
	case uint32:
		return strconv.FormatUint(uint64(v), 2)
	case uint64:
		return strconv.FormatUint(v, 2)
	case []byte:
		// MySQL returns BIT(1) values as a single raw byte.
		if len(v) == 1 && v[0] <= 1 {
			return strconv.Itoa(int(v[0]))
		}
		return string(v)
	case string:
		if len(v) == 1 && v[0] <= 1 {
			return strconv.Itoa(int(v[0]))
		}
		return v
	default:
		return v
	}
}
