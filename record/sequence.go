package record

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/collection"
)

// Pluck returns the attribute name of every entity.
func Pluck(c *collection.Collection[*Entity], name string) []any {
	return collection.Map(c, func(e *Entity) any { return e.Attr(name) }).All()
}

// Where returns the entities whose fillable attribute name strictly equals v.
// Entities that do not declare name never match.
func Where(c *collection.Collection[*Entity], name string, v any) *collection.Collection[*Entity] {
	return c.Filter(func(e *Entity) bool {
		if !e.typ.IsFillable(name) {
			return false
		}
		return reflect.DeepEqual(e.attrs[name], v)
	})
}

// SortBy returns the entities ordered by attribute name.
func SortBy(c *collection.Collection[*Entity], name string, ascending bool) *collection.Collection[*Entity] {
	return c.SortBy(func(a, b *Entity) int {
		n := compareValues(a.Attr(name), b.Attr(name))
		if !ascending {
			return -n
		}
		return n
	})
}

// KeyBy indexes the entities by the text of attribute name.
func KeyBy(c *collection.Collection[*Entity], name string) map[string]*Entity {
	return collection.KeyBy(c, func(e *Entity) string { return fmt.Sprint(e.Attr(name)) })
}

// GroupBy groups the entities by the text of attribute name.
func GroupBy(c *collection.Collection[*Entity], name string) []collection.Group[string, *Entity] {
	return collection.GroupBy(c, func(e *Entity) string { return fmt.Sprint(e.Attr(name)) })
}

// SaveAll saves every entity and returns the collected failures.
func SaveAll(ctx context.Context, c *collection.Collection[*Entity]) error {
	var errs []error
	for _, e := range c.All() {
		errs = append(errs, e.Save(ctx))
	}
	return mvcore.NewAggregateError(errs...)
}

// DeleteAll deletes every entity and returns the collected failures.
func DeleteAll(ctx context.Context, c *collection.Collection[*Entity]) error {
	var errs []error
	for _, e := range c.All() {
		errs = append(errs, e.Delete(ctx))
	}
	return mvcore.NewAggregateError(errs...)
}
