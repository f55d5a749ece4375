package lazyload

import (
	"context"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

type (
	Resolve[M any]            func(ctx context.Context, db squirrel.BaseRunner, parents []M, fields []string) error
	Join[M any]               func(ctx context.Context, db squirrel.BaseRunner, parents []M, scope Scope, fields []string) error
	Defer[M any]              func(db squirrel.BaseRunner, fields []string) Loader[M]
	FieldCheck                func(fields string) error
	Binder[M, N any]          func(parents []*M, children []N)
	ModelQueryModifier[M any] func(model ModelQuery[M]) ModelQuery[M]
)

// Scope is the parent selection a joined relation is restricted to: the FROM
// and WHERE of the parent query, without columns.
type Scope struct {
	Query Q
	Table string
}

type Relation[M any] struct {
	// Resolve loads children for a batch of parents with a WHERE on their keys.
	Resolve Resolve[M]
	// Join loads children with one query joined against the parent selection.
	// Nil unless the relation was configured with On.
	Join Join[M]
	// Defer builds a loader for a single parent.
	Defer         Defer[M]
	Check         FieldCheck
	ModelQueryMod ModelQueryModifier[M]

	keys      []string
	childKeys []string
	joinOn    func(parentKey, childKey string) Join[M]
	lazy      func(*M) *Lazy[M]
}

// On enables loading the relation with a join when it is included.
func (rel Relation[M]) On(parentKey, childKey string) Relation[M] {
	if rel.joinOn != nil {
		rel.Join = rel.joinOn(parentKey, childKey)
	}

	return rel
}

// Lazily registers the handle on the parent that loads the relation on first access.
func (rel Relation[M]) Lazily(handle func(*M) *Lazy[M]) Relation[M] {
	rel.lazy = handle

	return rel
}

func HasMany[M, N any](
	child *ModelSchema[N],
	belongTogether func(M, N) bool,
	assign func(*M, []N),
	wherer func(parents []M) QueryMod,
	depends []string,
) Relation[M] {
	return CreateRelation(
		child,
		BindBy(belongTogether, assign),
		wherer,
		selectDepends[M](depends),
	).withKeys(depends)
}

func HasOne[M, N any](
	child *ModelSchema[N],
	belongTogether func(M, N) bool,
	assign func(*M, N),
	wherer func(parents []M) QueryMod,
	depends []string,
) Relation[M] {
	return CreateRelation(
		child,
		BindByOne(belongTogether, assign),
		wherer,
		selectDepends[M](depends),
	).withKeys(depends)
}

func CreateRelation[M, N any](
	child *ModelSchema[N],
	binder Binder[M, N],
	wherer func(parents []M) QueryMod,
	depends ModelQueryModifier[M],
) Relation[M] {
	return Relation[M]{
		Check: func(field string) error {
			return child.Check(field)
		},
		Resolve: func(ctx context.Context, db squirrel.BaseRunner, parents []M, fields []string) error {
			if len(parents) == 0 {
				return nil
			}

			children, err := child.Query(fields...).
				ModifyQuery(wherer(parents)).
				Collect(ctx, db)
			if err != nil {
				return err
			}

			binder(pointers(parents), children)

			return nil
		},
		Defer: func(db squirrel.BaseRunner, fields []string) Loader[M] {
			return func(ctx context.Context, parent *M) error {
				children, err := child.Query(fields...).
					ModifyQuery(wherer([]M{*parent})).
					Collect(ctx, db)
				if err != nil {
					return err
				}

				binder([]*M{parent}, children)

				return nil
			}
		},
		ModelQueryMod: depends,
		joinOn: func(parentKey, childKey string) Join[M] {
			return func(ctx context.Context, db squirrel.BaseRunner, parents []M, scope Scope, fields []string) error {
				if len(parents) == 0 {
					return nil
				}

				children, err := child.Query(fields...).
					ModifyQuery(JoinScope(scope, parentKey, childKey)).
					Collect(ctx, db)
				if err != nil {
					return err
				}

				binder(pointers(parents), children)

				return nil
			}
		},
	}
}

func BindBy[M, N any](
	belongTogether func(M, N) bool,
	assign func(*M, []N),
) Binder[M, N] {
	return func(parents []*M, children []N) {
		for _, parent := range parents {
			var collection []N

			for _, child := range children {
				if !belongTogether(*parent, child) {
					continue
				}

				collection = append(collection, child)
			}

			assign(parent, collection)
		}
	}
}

func BindByOne[M, N any](
	belongTogether func(M, N) bool,
	assign func(*M, N),
) Binder[M, N] {
	return func(parents []*M, children []N) {
		for _, parent := range parents {
			for _, child := range children {
				if !belongTogether(*parent, child) {
					continue
				}

				assign(parent, child)
				break
			}
		}
	}
}

// WhereIDs matches col against the parents' keys; a single parent compares with
// equality, several with IN.
func WhereIDs[M any, K any](col string, getID func(m M) K) func(parents []M) QueryMod {
	return func(parents []M) QueryMod {
		return func(q Q, table string) Q {
			if len(parents) == 1 {
				return q.Where(squirrel.Eq{TableCol(table, col): getID(parents[0])})
			}

			return q.Where(
				squirrel.Eq{
					TableCol(table, col): lo.Map(
						parents,
						func(parent M, _ int) K { return getID(parent) },
					),
				},
			)
		}
	}
}

func DependsOn(fields ...string) []string {
	return fields
}

// withKeys splits depends into the parent keys and the child fields the
// binder compares, "books.author_id" contributing "author_id".
func (rel Relation[M]) withKeys(depends []string) Relation[M] {
	rel.keys = nil
	rel.childKeys = nil
	for _, field := range depends {
		if _, child, nested := strings.Cut(field, "."); nested {
			rel.childKeys = append(rel.childKeys, child)
			continue
		}
		rel.keys = append(rel.keys, field)
	}

	return rel
}

// narrow adds the child keys to an explicit field list; an empty list already
// selects every field.
func (rel Relation[M]) narrow(fields []string) []string {
	if len(fields) == 0 {
		return fields
	}

	return lo.Uniq(append(slices.Clone(fields), rel.childKeys...))
}

func selectDepends[M any](depends []string) ModelQueryModifier[M] {
	return func(model ModelQuery[M]) ModelQuery[M] {
		if len(depends) == 0 {
			return model
		}
		return model.Select(depends...)
	}
}

func pointers[M any](parents []M) []*M {
	return lo.Map(parents, func(_ M, ix int) *M { return &parents[ix] })
}
