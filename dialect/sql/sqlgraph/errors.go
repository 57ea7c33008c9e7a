// Package sqlgraph classifies errors returned by the storage backends.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Constraint is the kind of integrity constraint an error violated.
type Constraint uint8

// Constraint kinds.
const (
	NoConstraint Constraint = iota
	Unique
	ForeignKey
	Check
	NotNull
)

// String implements fmt.Stringer.
func (c Constraint) String() string {
	switch c {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	case NotNull:
		return "not null"
	default:
		return "none"
	}
}

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048 // Column cannot be null
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// ConstraintOf returns the constraint violated by err, or NoConstraint.
func ConstraintOf(err error) Constraint {
	if err == nil {
		return NoConstraint
	}
	if e := (*mysql.MySQLError)(nil); errors.As(err, &e) {
		switch e.Number {
		case mysqlDuplicateEntry:
			return Unique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKey
		case mysqlCheckConstraintViolate:
			return Check
		case mysqlBadNull:
			return NotNull
		}
		return NoConstraint
	}
	if e := (*sqlite.Error)(nil); errors.As(err, &e) {
		switch e.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return Unique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKey
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return Check
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return NotNull
		}
	}
	// Wrapped or proxied drivers only keep the message.
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "UNIQUE constraint failed"):
		return Unique
	case containsAny(msg, "Error 1451", "Error 1452", "FOREIGN KEY constraint failed"):
		return ForeignKey
	case containsAny(msg, "Error 3819", "CHECK constraint failed"):
		return Check
	case containsAny(msg, "Error 1048", "NOT NULL constraint failed"):
		return NotNull
	}
	return NoConstraint
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return ConstraintOf(err) != NoConstraint
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return ConstraintOf(err) == Unique
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return ConstraintOf(err) == ForeignKey
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return ConstraintOf(err) == Check
}

// IsNotNullConstraintError reports if the error resulted from writing NULL to a NOT NULL column.
func IsNotNullConstraintError(err error) bool {
	return ConstraintOf(err) == NotNull
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
