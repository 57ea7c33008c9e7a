package record

import (
	"context"
	"fmt"
	"strconv"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/collection"
)

// Load resolves the named relations of every entity with one query per
// relation instead of one per entity. Entities that already resolved a
// relation keep their result. Through relations are resolved per entity.
//
//	users, err := User.All(ctx, client)
//	if err != nil {
//		return err
//	}
//	if err := record.Load(ctx, users, "posts", "country"); err != nil {
//		return err
//	}
func Load(ctx context.Context, c *collection.Collection[*Entity], names ...string) error {
	if c.Empty() {
		return nil
	}
	for _, name := range names {
		if err := load(ctx, c.All(), name); err != nil {
			return err
		}
	}
	return nil
}

func load(ctx context.Context, entities []*Entity, name string) error {
	owner := entities[0].typ
	r, ok := owner.Relations[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", mvcore.ErrUnknownRelation, owner.Name, name)
	}
	pending := make([]*Entity, 0, len(entities))
	for _, e := range entities {
		if e.typ != owner {
			return fmt.Errorf("record: load %s: entities of %s and %s", name, owner.Name, e.typ.Name)
		}
		if _, ok := e.relations[name]; !ok {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	related := r.Related()
	var ownerCol, relatedCol string
	switch r.Kind {
	case KindHasMany:
		ownerCol, relatedCol = or(r.LocalKey, DefaultPrimaryKey), or(r.ForeignKey, owner.foreignKey())
	case KindBelongsTo:
		ownerCol, relatedCol = or(r.ForeignKey, related.foreignKey()), or(r.OwnerKey, DefaultPrimaryKey)
	default:
		for _, e := range pending {
			if _, err := e.Relation(ctx, name); err != nil {
				return err
			}
		}
		return nil
	}

	keys := distinctKeys(pending, ownerCol)
	rows := collection.New[*Entity]()
	if len(keys) > 0 {
		c := pending[0].client
		var err error
		rows, err = related.Get(ctx, c, related.Query(c).WhereIn(relatedCol, keys...))
		if err != nil {
			return err
		}
	}
	groups := groupByKey(rows.All(), func(e *Entity) string { return keyOf(e.Attr(relatedCol)) })
	for _, e := range pending {
		var matched []*Entity
		if v := e.Attr(ownerCol); v != nil {
			matched = groups[keyOf(v)]
		}
		switch {
		case r.Kind.Plural():
			e.relations[name] = collection.New(matched...)
		case len(matched) > 0:
			e.relations[name] = matched[0]
		default:
			e.relations[name] = nil
		}
	}
	return nil
}

// distinctKeys returns the non-nil values of column, in first-seen order.
func distinctKeys(entities []*Entity, column string) []any {
	seen := make(map[string]bool, len(entities))
	keys := make([]any, 0, len(entities))
	for _, e := range entities {
		v := e.Attr(column)
		if v == nil {
			continue
		}
		k := keyOf(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// keyOf returns the text a key value matches by. Integers match their
// decimal text, so int64(1) and "1" address the same row.
func keyOf(v any) string {
	if n, ok := toNumber(v); ok && !n.float {
		if n.neg {
			return strconv.FormatInt(n.i, 10)
		}
		return strconv.FormatUint(n.u, 10)
	}
	if s, ok := textOf(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// groupByKey groups values by key. Values keep their relative order.
func groupByKey[K comparable, V any](values []V, keyFn func(V) K) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}
