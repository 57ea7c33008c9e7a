// Package record implements active-record entities on top of the query
// builder.
//
// An entity type is described once by a Type:
//
//	var User = &record.Type{
//		Name:     "User",
//		Fillable: []string{"name", "email", "active"},
//	}
//
//	func init() {
//		User.Relations = map[string]*record.Relation{
//			"posts": record.HasMany(func() *record.Type { return Post }, "", ""),
//		}
//	}
//
// Entities are bound to the client that created or loaded them:
//
//	u := User.New(client, map[string]any{"name": "A", "email": "a@x"})
//	if err := u.Save(ctx); err != nil {
//		return err
//	}
//	posts, err := u.Many(ctx, "posts")
package record

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/collection"
	"github.com/syssam/mvcore/dialect/sql"
	"github.com/syssam/mvcore/dialect/sql/schema"
)

// DefaultPrimaryKey is the primary key column of types that do not set one.
const DefaultPrimaryKey = "id"

// Type describes an entity type and its backing table. A Type must not be
// modified once entities of it are in use.
type Type struct {
	// Name is the type name, e.g. "User".
	Name string
	// Table defaults to the pluralized lower-cased Name, e.g. "users".
	Table string
	// PrimaryKey defaults to DefaultPrimaryKey.
	PrimaryKey string
	// Fillable lists the columns an entity saves, in insert order.
	Fillable []string
	// Relations maps relation names to their descriptors.
	Relations map[string]*Relation
}

// TableName returns the backing table.
func (t *Type) TableName() string {
	if t.Table != "" {
		return t.Table
	}
	return inflect.Pluralize(lower(t.Name))
}

// Key returns the primary key column.
func (t *Type) Key() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return DefaultPrimaryKey
}

// IsFillable reports whether column is a declared fillable column.
func (t *Type) IsFillable(column string) bool {
	return slices.Contains(t.Fillable, column)
}

// foreignKey returns the default name of a column referencing t.
func (t *Type) foreignKey() string {
	return lower(t.Name) + "_id"
}

// New returns a fresh entity. Fillable columns of attrs become attributes,
// the others joined attributes.
func (t *Type) New(c *mvcore.Client, attrs map[string]any) *Entity {
	e := t.newEntity(c)
	for k, v := range attrs {
		if t.IsFillable(k) {
			e.attrs[k] = v
		} else {
			e.joined[k] = v
		}
	}
	return e
}

// Hydrate returns an entity loaded from row. The entity is persisted only
// when row carries a non-nil primary key.
func (t *Type) Hydrate(c *mvcore.Client, row sql.Row) *Entity {
	e := t.newEntity(c)
	key := t.Key()
	for k, v := range row {
		switch {
		case k == key:
			e.id = v
		case t.IsFillable(k):
			e.attrs[k] = v
		default:
			e.joined[k] = v
		}
	}
	e.exists = e.id != nil
	return e
}

func (t *Type) newEntity(c *mvcore.Client) *Entity {
	e := &Entity{
		typ:       t,
		client:    c,
		attrs:     make(map[string]any, len(t.Fillable)),
		joined:    make(map[string]any),
		relations: make(map[string]any),
	}
	for _, f := range t.Fillable {
		e.attrs[f] = nil
	}
	return e
}

// Query returns a builder on the table bound to the type, so bit(1) columns
// compile with the bit marker.
func (t *Type) Query(c *mvcore.Client) *sql.Query {
	return c.Table(t.TableName()).Bind(t.Name, c.Catalog())
}

// Get executes q and hydrates its rows.
func (t *Type) Get(ctx context.Context, c *mvcore.Client, q *sql.Query) (*collection.Collection[*Entity], error) {
	rows, err := q.Get(ctx)
	if err != nil {
		return nil, mvcore.NewQueryError(t.Name, "select", err)
	}
	out := collection.New(make([]*Entity, 0, len(rows))...)
	for _, row := range rows {
		out.Add(t.Hydrate(c, row))
	}
	return out, nil
}

// First executes q with LIMIT 1 and hydrates the row. It returns nil when
// there is none.
func (t *Type) First(ctx context.Context, c *mvcore.Client, q *sql.Query) (*Entity, error) {
	row, err := q.First(ctx)
	if err != nil {
		return nil, mvcore.NewQueryError(t.Name, "first", err)
	}
	if row == nil {
		return nil, nil
	}
	return t.Hydrate(c, row), nil
}

// All returns every entity of the table.
func (t *Type) All(ctx context.Context, c *mvcore.Client) (*collection.Collection[*Entity], error) {
	return t.Get(ctx, c, t.Query(c))
}

// Find returns the entity with the given primary key, or nil.
func (t *Type) Find(ctx context.Context, c *mvcore.Client, id any) (*Entity, error) {
	return t.FindBy(ctx, c, t.Key(), id)
}

// FindBy returns the first entity whose column equals v, or nil.
func (t *Type) FindBy(ctx context.Context, c *mvcore.Client, column string, v any) (*Entity, error) {
	return t.First(ctx, c, t.Query(c).Where(column, "=", v))
}

// FindOrFail is like Find but returns a NotFoundError when there is no entity.
func (t *Type) FindOrFail(ctx context.Context, c *mvcore.Client, id any) (*Entity, error) {
	e, err := t.Find(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, mvcore.NewNotFoundErrorWithID(t.Name, id)
	}
	return e, nil
}

// Validate checks the primary key and fillable columns against the table.
// Mismatches that break statements are returned as a ValidationError along
// with the full result.
func (t *Type) Validate(ctx context.Context, c *mvcore.Client) (*schema.ValidationResult, error) {
	columns := append([]string{t.Key()}, t.Fillable...)
	result, err := schema.Validate(ctx, c.Catalog(), t.TableName(), columns)
	if err != nil {
		return nil, err
	}
	if result.HasErrors() {
		errs := make([]error, len(result.Errors))
		for i, e := range result.Errors {
			errs[i] = e
		}
		return result, mvcore.NewValidationError(t.Name, errors.Join(errs...))
	}
	return result, nil
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.TableName())
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
