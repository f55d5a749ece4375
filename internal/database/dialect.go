package database

import (
	"github.com/Masterminds/squirrel"
)

// Dialect is what differs between the supported database families.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat
	// Returning is set when generated ids come back through INSERT ... RETURNING
	// instead of sql.Result.LastInsertId.
	Returning bool
	// Setup runs once on a fresh connection pool.
	Setup []string

	createTables []string
	dropTables   []string
	tableExists  func(table string) squirrel.SelectBuilder
}

// CreateTables returns the DDL that creates the authors and books tables, in order.
func (d Dialect) CreateTables() []string { return d.createTables }

// DropTables returns the DDL that drops the tables, children first.
func (d Dialect) DropTables() []string { return d.dropTables }

// TableExists builds a query returning the number of tables with that name
// in the current database.
func (d Dialect) TableExists(table string) squirrel.SelectBuilder {
	return d.tableExists(table)
}

var dropTables = []string{
	"DROP TABLE IF EXISTS books",
	"DROP TABLE IF EXISTS authors",
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: squirrel.Question,
	Setup:       []string{"PRAGMA foreign_keys = ON"},
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT NOT NULL,
			release_date TIMESTAMP NOT NULL,
			author_id INTEGER NOT NULL REFERENCES authors (id)
		)`,
		"CREATE INDEX IF NOT EXISTS books_author_id ON books (author_id)",
	},
	dropTables: dropTables,
	tableExists: func(table string) squirrel.SelectBuilder {
		return squirrel.Select("count(*)").
			From("sqlite_master").
			Where(squirrel.Eq{"type": "table", "name": table})
	},
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: squirrel.Dollar,
	Returning:   true,
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			description TEXT NOT NULL,
			release_date TIMESTAMPTZ NOT NULL,
			author_id BIGINT NOT NULL REFERENCES authors (id)
		)`,
		"CREATE INDEX IF NOT EXISTS books_author_id ON books (author_id)",
	},
	dropTables: dropTables,
	tableExists: func(table string) squirrel.SelectBuilder {
		return squirrel.Select("count(*)").
			From("information_schema.tables").
			Where("table_schema = current_schema()").
			Where(squirrel.Eq{"table_name": table})
	},
}

var MySQL = Dialect{
	Name:        "mysql",
	Placeholder: squirrel.Question,
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			description TEXT NOT NULL,
			release_date DATETIME(6) NOT NULL,
			author_id BIGINT NOT NULL,
			INDEX books_author_id (author_id),
			CONSTRAINT books_author_fk FOREIGN KEY (author_id) REFERENCES authors (id)
		)`,
	},
	dropTables: dropTables,
	tableExists: func(table string) squirrel.SelectBuilder {
		return squirrel.Select("count(*)").
			From("information_schema.tables").
			Where("table_schema = DATABASE()").
			Where(squirrel.Eq{"table_name": table})
	},
}
