package schema

import (
	"context"
	"fmt"
	"strings"
)

// ValidationError represents a mismatch between a declaration and the catalog.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates that statements built from the declaration will fail.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if any reported issue is breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, list []*ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, e := range list {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	ignoreUndeclared bool
}

// IgnoreUndeclared suppresses warnings for table columns missing from the declaration.
func IgnoreUndeclared() ValidateOption {
	return func(c *validateConfig) {
		c.ignoreUndeclared = true
	}
}

// Validate checks declared columns against the catalog entry of table.
// Declared columns missing from the table, duplicate declarations and an
// unknown table are errors. Table columns that are not declared are warnings.
//
// Example:
//
//	result, err := schema.Validate(ctx, catalog, "users", []string{"id", "name", "email"})
//	if err != nil {
//	    return err
//	}
//	if result.HasErrors() {
//	    log.Fatal("declaration mismatch:\n", result)
//	}
func Validate(ctx context.Context, c *Catalog, table string, columns []string, opts ...ValidateOption) (*ValidationResult, error) {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	t, err := c.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	result := &ValidationResult{}
	if !t.Exists() {
		result.Errors = append(result.Errors, &ValidationError{
			Table:    table,
			Message:  "table does not exist",
			Breaking: true,
		})
		return result, nil
	}
	declared := make(map[string]bool, len(columns))
	for _, name := range columns {
		if declared[name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   table,
				Column:  name,
				Message: "duplicate column declaration",
			})
			continue
		}
		declared[name] = true
		if _, ok := t.Column(name); !ok {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    table,
				Column:   name,
				Message:  "declared column does not exist",
				Breaking: true,
			})
		}
	}
	if cfg.ignoreUndeclared {
		return result, nil
	}
	for _, col := range t.Columns {
		if !declared[col.Name] {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   table,
				Column:  col.Name,
				Message: fmt.Sprintf("column (%s) is not declared and will be read as a joined attribute", col.Type),
			})
		}
	}
	return result, nil
}
