package record

import (
	"context"
	"fmt"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/collection"
)

// Kind is the kind of a relation.
type Kind uint8

// Relation kinds.
const (
	KindHasMany Kind = iota + 1
	KindBelongsTo
	KindHasManyThrough
	KindBelongsToThrough
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindHasMany:
		return "has many"
	case KindBelongsTo:
		return "belongs to"
	case KindHasManyThrough:
		return "has many through"
	case KindBelongsToThrough:
		return "belongs to through"
	default:
		return "unknown"
	}
}

// Plural reports whether the relation resolves to a collection.
func (k Kind) Plural() bool {
	return k == KindHasMany || k == KindHasManyThrough
}

// Relation describes how entities of a type reach related entities. Related
// and through types are resolved lazily so types may refer to each other.
// Empty keys take their defaults when the relation is resolved.
type Relation struct {
	Kind    Kind
	Related func() *Type
	Through func() *Type

	// HasMany: column of the related table holding LocalKey.
	// BelongsTo: column of the owner holding the related OwnerKey.
	// Through variants: the first hop, see HasManyThrough and BelongsToThrough.
	ForeignKey string
	// HasMany: owner column, default "id".
	// HasManyThrough: owner column matched by ForeignKey, default "id".
	LocalKey string
	// BelongsTo: related column, default "id".
	// BelongsToThrough: related column matched by SecondKey, default "id".
	OwnerKey string
	// Through variants: the second hop.
	SecondKey      string
	SecondLocalKey string
}

// HasMany declares that related rows hold the owner's localKey in foreignKey.
// foreignKey defaults to the lower-cased owner name + "_id", localKey to "id".
func HasMany(related func() *Type, foreignKey, localKey string) *Relation {
	return &Relation{Kind: KindHasMany, Related: related, ForeignKey: foreignKey, LocalKey: localKey}
}

// BelongsTo declares that the owner holds the related ownerKey in foreignKey.
// foreignKey defaults to the lower-cased related name + "_id", ownerKey to "id".
func BelongsTo(related func() *Type, foreignKey, ownerKey string) *Relation {
	return &Relation{Kind: KindBelongsTo, Related: related, ForeignKey: foreignKey, OwnerKey: ownerKey}
}

// HasManyThrough declares related rows reached through an intermediate table:
// through.firstKey = owner.localKey and related.secondKey = through.secondLocalKey.
//
//	// countries -> users.country_id -> posts.user_id
//	HasManyThrough(post, user, "country_id", "user_id", "", "")
//
// firstKey defaults to the lower-cased owner name + "_id", secondKey to the
// lower-cased through name + "_id", and the local keys to "id".
func HasManyThrough(related, through func() *Type, firstKey, secondKey, localKey, secondLocalKey string) *Relation {
	return &Relation{
		Kind:           KindHasManyThrough,
		Related:        related,
		Through:        through,
		ForeignKey:     firstKey,
		SecondKey:      secondKey,
		LocalKey:       localKey,
		SecondLocalKey: secondLocalKey,
	}
}

// BelongsToThrough declares the related row reached through an intermediate
// table: through.throughKey = owner.firstKey and related.ownerKey = through.secondKey.
//
//	// posts.user_id -> users.country_id -> countries
//	BelongsToThrough(country, user, "user_id", "country_id", "", "")
//
// firstKey defaults to the lower-cased through name + "_id", secondKey to the
// lower-cased related name + "_id", and the other keys to "id".
func BelongsToThrough(related, through func() *Type, firstKey, secondKey, throughKey, ownerKey string) *Relation {
	return &Relation{
		Kind:           KindBelongsToThrough,
		Related:        related,
		Through:        through,
		ForeignKey:     firstKey,
		SecondKey:      secondKey,
		SecondLocalKey: throughKey,
		OwnerKey:       ownerKey,
	}
}

func or(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// resolve runs the relation for owner. A missing key resolves to nil or an
// empty collection without a query.
func (r *Relation) resolve(ctx context.Context, owner *Entity) (any, error) {
	related := r.Related()
	if related == nil {
		return nil, fmt.Errorf("record: relation of %s has no related type", owner.typ.Name)
	}
	c := owner.client
	switch r.Kind {
	case KindHasMany:
		local := owner.Attr(or(r.LocalKey, DefaultPrimaryKey))
		if local == nil {
			return collection.New[*Entity](), nil
		}
		q := related.Query(c).Where(or(r.ForeignKey, owner.typ.foreignKey()), "=", local)
		return related.Get(ctx, c, q)
	case KindBelongsTo:
		v := owner.Attr(or(r.ForeignKey, related.foreignKey()))
		if v == nil {
			return nil, nil
		}
		return first(related.First(ctx, c, related.Query(c).Where(or(r.OwnerKey, DefaultPrimaryKey), "=", v)))
	case KindHasManyThrough:
		through := r.Through()
		local := owner.Attr(or(r.LocalKey, DefaultPrimaryKey))
		if local == nil {
			return collection.New[*Entity](), nil
		}
		rt, tt := related.TableName(), through.TableName()
		q := related.Query(c).
			Select(rt+".*").
			Join(tt, tt+"."+or(r.SecondLocalKey, DefaultPrimaryKey), "=", rt+"."+or(r.SecondKey, through.foreignKey())).
			Where(tt+"."+or(r.ForeignKey, owner.typ.foreignKey()), "=", local)
		return related.Get(ctx, c, q)
	case KindBelongsToThrough:
		through := r.Through()
		v := owner.Attr(or(r.ForeignKey, through.foreignKey()))
		if v == nil {
			return nil, nil
		}
		rt, tt := related.TableName(), through.TableName()
		q := related.Query(c).
			Select(rt+".*").
			Join(tt, tt+"."+or(r.SecondKey, related.foreignKey()), "=", rt+"."+or(r.OwnerKey, DefaultPrimaryKey)).
			Where(tt+"."+or(r.SecondLocalKey, DefaultPrimaryKey), "=", v)
		return first(related.First(ctx, c, q))
	default:
		return nil, fmt.Errorf("record: unknown relation kind %d", r.Kind)
	}
}

// first drops the typed nil of a missing entity.
func first(e *Entity, err error) (any, error) {
	if e == nil || err != nil {
		return nil, err
	}
	return e, nil
}

// Relation resolves the named relation, running its query only on first
// access. The result is *Entity, *collection.Collection[*Entity] or nil.
func (e *Entity) Relation(ctx context.Context, name string) (any, error) {
	if v, ok := e.relations[name]; ok {
		return v, nil
	}
	r, ok := e.typ.Relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", mvcore.ErrUnknownRelation, e.typ.Name, name)
	}
	v, err := r.resolve(ctx, e)
	if err != nil {
		return nil, mvcore.NewQueryError(e.typ.Name, "relation "+name, err)
	}
	e.relations[name] = v
	return v, nil
}

// One resolves a singular relation.
func (e *Entity) One(ctx context.Context, name string) (*Entity, error) {
	if r, ok := e.typ.Relations[name]; ok && r.Kind.Plural() {
		return nil, fmt.Errorf("record: relation %s.%s is plural", e.typ.Name, name)
	}
	v, err := e.Relation(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	related, ok := v.(*Entity)
	if !ok {
		return nil, fmt.Errorf("record: relation %s.%s holds %T", e.typ.Name, name, v)
	}
	return related, nil
}

// Many resolves a plural relation.
func (e *Entity) Many(ctx context.Context, name string) (*collection.Collection[*Entity], error) {
	if r, ok := e.typ.Relations[name]; ok && !r.Kind.Plural() {
		return nil, fmt.Errorf("record: relation %s.%s is singular", e.typ.Name, name)
	}
	v, err := e.Relation(ctx, name)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return collection.New[*Entity](), nil
	case *collection.Collection[*Entity]:
		return v, nil
	case []*Entity:
		return collection.New(v...), nil
	default:
		return nil, fmt.Errorf("record: relation %s.%s holds %T", e.typ.Name, name, v)
	}
}
