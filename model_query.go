package lazyload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

var (
	// ErrNoSuchField is returned when there is no field or no relation with that name.
	ErrNoSuchField = errors.New("field does not exist")
	// ErrNoSuchRelation is returned when selecting a nested field on, including, or loading a relation that does not exist.
	ErrNoSuchRelation = errors.New("relation does not exist")
	// ErrTooManyResults is returned when CollectOne is called but returned many models
	ErrTooManyResults = errors.New("too many result for CollectOne")
)

type ModelQuery[T any] struct {
	schema ModelSchema[T]

	selectedFields         map[string]FieldType[T]
	selectedRelations      map[string]Relation[T]
	selectedRelationFields map[string][]string
	includedRelations      map[string]bool
	lazy                   bool
	tableAlias             string
	queryMods              []QueryMod

	errors []error
}

func newModelQuery[T any](schema ModelSchema[T], fields ...string) ModelQuery[T] {
	query := ModelQuery[T]{
		schema:                 schema,
		selectedFields:         map[string]FieldType[T]{},
		selectedRelations:      map[string]Relation[T]{},
		selectedRelationFields: map[string][]string{},
		includedRelations:      map[string]bool{},
		tableAlias:             schema.Table,
		queryMods:              []QueryMod{},
		errors:                 []error{},
	}

	return query.Select(fields...)
}

func (model ModelQuery[T]) ModifyQuery(mod QueryMod) ModelQuery[T] {
	model = model.clone()
	model.queryMods = append(model.queryMods, mod)

	return model
}

func (model ModelQuery[T]) Select(fieldNames ...string) ModelQuery[T] {
	model = model.clone()
	if len(fieldNames) == 0 {
		model.selectAllFields()
		return model
	}

	for _, name := range fieldNames {
		model.resolveSelect(name)
	}

	return model
}

// Include selects relations and fetches them eagerly: relations configured
// with On are loaded by a single query joined against the parent selection,
// the rest with a batched WHERE on the parent keys.
func (model ModelQuery[T]) Include(relations ...string) ModelQuery[T] {
	model = model.clone()
	for _, name := range relations {
		relation, _ := isNested(name)
		if !model.schema.hasRelation(relation) {
			model.addError(fmt.Errorf("%w: %s", ErrNoSuchRelation, relation))
			continue
		}

		model.resolveSelect(name)
		model.includedRelations[relation] = true
	}

	return model
}

// Lazy attaches loaders to every relation registered with Relation.Lazily that
// the query does not load itself. Parent keys those relations need are
// selected automatically.
func (model ModelQuery[T]) Lazy() ModelQuery[T] {
	model.lazy = true

	return model
}

func (model *ModelQuery[T]) resolveSelect(name string) {
	field, rest := isNested(name)

	if field == "*" {
		if rest != "" {
			model.addError(fmt.Errorf("%w: %s", ErrNoSuchRelation, field))
			return
		}

		model.selectAllFields()
		return
	}

	if model.schema.hasRelation(field) {
		if rest != "" && rest != "*" {
			// Validate the chosen nested field.
			if err := model.schema.Relations[field].Check(rest); err != nil {
				model.addError(err)
				return
			}
		}
		model.selectRelation(field, rest)
		return
	}

	if model.schema.hasField(field) {
		// Fields cannot have nesting
		if rest != "" {
			model.addError(fmt.Errorf("%w: %s", ErrNoSuchRelation, field))
			return
		}
		model.selectField(field)
		return
	}

	// Error
	model.addError(fmt.Errorf("%w: %s", ErrNoSuchField, field))
}

func (model *ModelQuery[T]) selectAllFields() {
	for name := range model.schema.Fields {
		model.selectedFields[name] = model.schema.Fields[name]
	}
}

func (model *ModelQuery[T]) selectField(name string) {
	model.selectedFields[name] = model.schema.Fields[name]
}

func (model *ModelQuery[T]) selectRelation(relName, relField string) {
	if relField == "" {
		relField = "*"
	}

	model.selectedRelations[relName] = model.schema.Relations[relName]

	if model.selectedRelationFields[relName] == nil {
		model.selectedRelationFields[relName] = []string{}
	}

	model.selectedRelationFields[relName] = append(model.selectedRelationFields[relName], relField)
}

// =================
// Finishers
// =================

func (model ModelQuery[T]) Err() error {
	return errors.Join(model.errors...)
}

func (model ModelQuery[T]) Collect(ctx context.Context, db squirrel.BaseRunner) ([]T, error) {
	if err := model.Err(); err != nil {
		return nil, err
	}

	parents, scope, err := model.collectBaseModels(ctx, db)
	if err != nil {
		return nil, err
	}

	if err := model.resolveRelations(ctx, db, parents, scope); err != nil {
		return nil, err
	}

	model.attachLazy(db, parents)

	return parents, nil
}

func (model ModelQuery[T]) CollectOne(ctx context.Context, db squirrel.BaseRunner) (*T, error) {
	if err := model.Err(); err != nil {
		return nil, err
	}

	parents, scope, err := model.collectBaseModels(ctx, db)
	if err != nil {
		return nil, err
	}

	if len(parents) == 0 {
		return nil, sql.ErrNoRows
	} else if len(parents) > 1 {
		return nil, ErrTooManyResults
	}

	if err := model.resolveRelations(ctx, db, parents, scope); err != nil {
		return nil, err
	}

	model.attachLazy(db, parents)

	return &parents[0], nil
}

func (model ModelQuery[T]) collectBaseModels(
	ctx context.Context,
	db squirrel.BaseRunner,
) ([]T, Scope, error) {
	q := squirrel.StatementBuilder.RunWith(db).Select().From(model.schema.Table)
	scope := Scope{Query: squirrel.Select().From(model.schema.Table), Table: model.tableAlias}

	// Apply schema mods
	q = applyMods(q, model.tableAlias, model.schema.QueryMods)
	scope.Query = applyMods(scope.Query, model.tableAlias, model.schema.QueryMods)
	// Apply runtime mods
	q = applyMods(q, model.tableAlias, model.queryMods)
	scope.Query = applyMods(scope.Query, model.tableAlias, model.queryMods)

	// Add relation field dependencies
	for _, name := range sortedKeys(model.selectedRelations) {
		model = model.selectedRelations[name].ModelQueryMod(model)
	}

	// Lazy relations still need the keys they bind on
	if model.lazy {
		for _, name := range sortedKeys(model.schema.Relations) {
			rel := model.schema.Relations[name]
			if rel.lazy == nil || len(rel.keys) == 0 {
				continue
			}
			model = model.Select(rel.keys...)
		}
	}

	// Collapse fields
	var scans []RowScan[T]
	for _, name := range sortedKeys(model.selectedFields) {
		field := model.selectedFields[name]
		q = field.Mod(q, model.tableAlias)
		scans = append(scans, field.RowScan)
	}

	// Execute query
	parents, err := Collect(ctx, q, flattenRowScan(scans))
	if err != nil {
		return nil, scope, err
	}

	return parents, scope, nil
}

func (model ModelQuery[T]) resolveRelations(
	ctx context.Context,
	db squirrel.BaseRunner,
	parents []T,
	scope Scope,
) error {
	for _, name := range sortedKeys(model.selectedRelations) {
		relation := model.selectedRelations[name]
		fields := model.selectedRelationFields[name]

		var err error
		if model.includedRelations[name] && relation.Join != nil {
			err = relation.Join(ctx, db, parents, scope, fields)
		} else {
			err = relation.Resolve(ctx, db, parents, fields)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (model ModelQuery[T]) attachLazy(db squirrel.BaseRunner, parents []T) {
	for name, relation := range model.schema.Relations {
		if relation.lazy == nil {
			continue
		}

		_, resolved := model.selectedRelations[name]
		if !resolved && !model.lazy {
			continue
		}

		for ix := range parents {
			handle := relation.lazy(&parents[ix])
			if resolved {
				handle.markLoaded()
				continue
			}
			handle.attach(relation.Defer(db, nil))
		}
	}
}

// =================
// Utilities
// =================

// clone copies the selection so builders never write into a query they were
// derived from.
func (model ModelQuery[T]) clone() ModelQuery[T] {
	model.selectedFields = maps.Clone(model.selectedFields)
	model.selectedRelations = maps.Clone(model.selectedRelations)
	model.includedRelations = maps.Clone(model.includedRelations)
	model.queryMods = slices.Clone(model.queryMods)
	model.errors = slices.Clone(model.errors)

	relationFields := make(map[string][]string, len(model.selectedRelationFields))
	for name, fields := range model.selectedRelationFields {
		relationFields[name] = slices.Clone(fields)
	}
	model.selectedRelationFields = relationFields

	return model
}

func (model *ModelQuery[T]) addError(err error) {
	model.errors = append(model.errors, err)
}

func isNested(name string) (string, string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 1 {
		return name, ""
	}
	return parts[0], parts[1]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
