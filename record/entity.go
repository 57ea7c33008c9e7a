package record

import (
	"context"
	"maps"
	"sort"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/dialect/sql"
)

// Entity is one row of a Type. Attributes hold the fillable columns, joined
// attributes every other column read with the row. Relations are resolved
// once per entity and never re-queried. An Entity is not safe for
// concurrent use.
type Entity struct {
	typ    *Type
	client *mvcore.Client

	attrs     map[string]any
	joined    map[string]any
	relations map[string]any
	id        any
	exists    bool
}

// Type returns the entity type.
func (e *Entity) Type() *Type { return e.typ }

// Client returns the client the entity is bound to.
func (e *Entity) Client() *mvcore.Client { return e.client }

// ID returns the primary key value, or nil before the first save.
func (e *Entity) ID() any { return e.id }

// Exists reports whether the entity is persisted.
func (e *Entity) Exists() bool { return e.exists }

// Get reads name as a relation, then as a joined attribute, then as an
// attribute and finally as the primary key. Relations run their query on
// first access only.
func (e *Entity) Get(ctx context.Context, name string) (any, error) {
	if _, ok := e.typ.Relations[name]; ok {
		return e.Relation(ctx, name)
	}
	if _, ok := e.relations[name]; ok {
		return e.relations[name], nil
	}
	return e.Attr(name), nil
}

// Attr reads a joined attribute, an attribute or the primary key, without
// resolving relations. Unknown names read as nil.
func (e *Entity) Attr(name string) any {
	if v, ok := e.joined[name]; ok {
		return v
	}
	if v, ok := e.attrs[name]; ok {
		return v
	}
	if name == e.typ.Key() {
		return e.id
	}
	return nil
}

// Set writes a fillable column to the attributes, a relation name to the
// relation cache, the primary key to the identity and anything else to the
// joined attributes.
func (e *Entity) Set(name string, v any) *Entity {
	switch _, rel := e.typ.Relations[name]; {
	case e.typ.IsFillable(name):
		e.attrs[name] = v
	case rel:
		e.relations[name] = v
	case name == e.typ.Key():
		e.id = v
	default:
		e.joined[name] = v
	}
	return e
}

// Fill sets the fillable columns of values. Other keys are ignored.
func (e *Entity) Fill(values map[string]any) *Entity {
	for k, v := range values {
		if e.typ.IsFillable(k) {
			e.attrs[k] = v
		}
	}
	return e
}

// Attributes returns a copy of the attributes.
func (e *Entity) Attributes() map[string]any {
	return maps.Clone(e.attrs)
}

// Joined returns a copy of the joined attributes.
func (e *Entity) Joined() map[string]any {
	return maps.Clone(e.joined)
}

// Save inserts the entity with its non-nil attributes. The primary key is
// inserted too when it was set explicitly, otherwise the generated key is
// captured. Saving a persisted entity inserts a new row and keeps the
// current identity.
func (e *Entity) Save(ctx context.Context) error {
	var vs sql.Values
	if e.id != nil && !e.exists {
		vs = append(vs, sql.Value{Column: e.typ.Key(), Value: e.id})
	}
	for _, f := range e.typ.Fillable {
		if v := e.attrs[f]; v != nil {
			vs = append(vs, sql.Value{Column: f, Value: v})
		}
	}
	res, err := e.typ.Query(e.client).Insert(ctx, vs)
	if err != nil {
		return mvcore.NewMutationError(e.typ.Name, "save", mvcore.WrapConstraintError(err))
	}
	if e.exists {
		return nil
	}
	if e.id == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return mvcore.NewMutationError(e.typ.Name, "save", err)
		}
		e.id = id
	}
	e.exists = true
	return nil
}

// Update writes the fillable values that differ from the current attributes
// and applies them afterwards. Values are compared with numeric
// normalization, so int64(5) equals 5 but "5" does not. Nothing is executed
// when no value changed.
func (e *Entity) Update(ctx context.Context, values map[string]any) error {
	if !e.exists || e.id == nil {
		return mvcore.NewMutationError(e.typ.Name, "update", mvcore.ErrNotPersisted)
	}
	diff := make(map[string]any)
	for k, v := range values {
		if e.typ.IsFillable(k) && !sameValue(e.attrs[k], v) {
			diff[k] = v
		}
	}
	if len(diff) == 0 {
		return nil
	}
	_, err := e.typ.Query(e.client).
		Where(e.typ.Key(), "=", e.id).
		Update(ctx, sql.ValuesOf(diff))
	if err != nil {
		return mvcore.NewMutationError(e.typ.Name, "update", mvcore.WrapConstraintError(err))
	}
	maps.Copy(e.attrs, diff)
	return nil
}

// Delete deletes the row of the entity. The entity keeps its attributes and
// identity but is no longer persisted.
func (e *Entity) Delete(ctx context.Context) error {
	if !e.exists || e.id == nil {
		return mvcore.NewMutationError(e.typ.Name, "delete", mvcore.ErrNotPersisted)
	}
	_, err := e.typ.Query(e.client).
		Where(e.typ.Key(), "=", e.id).
		Delete(ctx)
	if err != nil {
		return mvcore.NewMutationError(e.typ.Name, "delete", mvcore.WrapConstraintError(err))
	}
	e.exists = false
	return nil
}

// Changed returns the names of values that differ from the attributes,
// sorted.
func (e *Entity) Changed(values map[string]any) []string {
	var names []string
	for k, v := range values {
		if e.typ.IsFillable(k) && !sameValue(e.attrs[k], v) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
