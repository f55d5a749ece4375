package lazyload_test

import (
	"database/sql"
	"testing"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"pollex.nl/lazyload"
)

type Author struct {
	ID    uint64
	Name  string
	Tags  []string
	Books []Book

	books lazyload.Lazy[Author]
}

type Book struct {
	ID       uint64
	Name     string
	AuthorID uint64
	Comments []Comment
	Author   *Author
}

type Comment struct {
	ID     uint64
	Name   string
	BookID uint64
	Book   *Book
}

func setupDB(t testing.TB) (*sql.DB, squirrel.StatementBuilderType) {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	// every connection to :memory: is a new database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrate)
	require.NoError(t, err)

	sq := squirrel.StatementBuilder.RunWith(db)

	return db, sq
}

//nolint:errcheck
func seedDB(sq squirrel.StatementBuilderType) {
	sq.Insert("authors").
		Values(1, "Jeff", "cool,awesome").
		Values(2, "Madonna", "vocal").Exec()
	sq.Insert("books").
		Values(1, "Life of Jeff", 1).
		Values(2, "Cooking like Jeff", 1).
		Values(3, "Sing baby sing", 2).
		Values(4, "the singeth hath endeth", 2).Exec()
	sq.Insert("book_comments").
		Values(1, "Great book!", 1).
		Values(2, "Very insightful", 2).
		Values(3, "A masterpiece", 3).
		Values(4, "Could be better", 4).Exec()
}

func recordingSession(db *sql.DB) (*lazyload.Session, *lazyload.Recorder) {
	rec := &lazyload.Recorder{}
	return lazyload.NewSession(db, lazyload.WithHook(rec.Hook)), rec
}

func statementSQL(stmts []lazyload.Statement) []string {
	out := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, stmt.SQL)
	}
	return out
}

const migrate = `
	create table authors (
		id integer not null,
		name text not null,
		tags text not null
	);
	create table books (
		id integer not null,
		name text not null,
		author_id integer
	);
	create table book_comments (
		id integer not null,
		name text not null,
		book_id integer
	);
	`
