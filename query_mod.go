package lazyload

import "github.com/Masterminds/squirrel"

type (
	Q        = squirrel.SelectBuilder
	QueryMod func(q Q, table string) Q
)

// joinAlias names the parent selection inside a joined relation query.
const joinAlias = "t"

func Col(names ...string) QueryMod {
	return func(q Q, table string) Q {
		for _, name := range names {
			q = q.Column(TableCol(table, name))
		}
		return q
	}
}

func TableCol(table, name string) string {
	if table == "" {
		return name
	}
	return table + "." + name
}

// Eq restricts the query to rows where the column equals value.
func Eq(col string, value any) QueryMod {
	return func(q Q, table string) Q {
		return q.Where(squirrel.Eq{TableCol(table, col): value})
	}
}

func OrderBy(cols ...string) QueryMod {
	return func(q Q, table string) Q {
		for _, col := range cols {
			q = q.OrderBy(TableCol(table, col))
		}
		return q
	}
}

func Limit(n uint64) QueryMod {
	return func(q Q, _ string) Q { return q.Limit(n) }
}

// JoinScope restricts a child query to the rows belonging to the parent
// selection by joining against it:
//
//	INNER JOIN (SELECT parents.key FROM parents WHERE ...) AS t ON child.fk = t.key
func JoinScope(scope Scope, parentKey, childKey string) QueryMod {
	return func(q Q, table string) Q {
		keys := scope.Query.Columns(TableCol(scope.Table, parentKey))
		return q.
			JoinClause(squirrel.ConcatExpr(
				"INNER JOIN (", keys, ") AS "+joinAlias+" ON ",
				TableCol(table, childKey), " = ", TableCol(joinAlias, parentKey),
			)).
			OrderBy(TableCol(joinAlias, parentKey))
	}
}

func applyMods(q Q, table string, mods []QueryMod) Q {
	for _, mod := range mods {
		q = mod(q, table)
	}

	return q
}
