package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"pollex.nl/lazyload"
	"pollex.nl/lazyload/internal/database"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db      *lazyload.Session
	dialect database.Dialect
}

func NewStore(db *lazyload.Session, dialect database.Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
	}
}

// EnsureCreated creates the tables when the authors table is absent and
// reports whether it did. Existing tables are left as they are.
func (s *Store) EnsureCreated(ctx context.Context) (bool, error) {
	exists, err := s.tableExists(ctx, AuthorSchema.Table)
	if err != nil {
		return false, fmt.Errorf("checking schema: %w", err)
	}
	if exists {
		return false, nil
	}

	err = s.db.Tx(ctx, func(tx *lazyload.Session) error {
		return execAll(ctx, tx, s.dialect.CreateTables())
	})
	if err != nil {
		return false, fmt.Errorf("creating schema: %w", err)
	}

	slog.Default().InfoContext(ctx, "schema created", "dialect", s.dialect.Name)

	return true, nil
}

// EnsureDeleted drops the tables when the authors table exists and reports whether it did.
func (s *Store) EnsureDeleted(ctx context.Context) (bool, error) {
	exists, err := s.tableExists(ctx, AuthorSchema.Table)
	if err != nil {
		return false, fmt.Errorf("checking schema: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := execAll(ctx, s.db, s.dialect.DropTables()); err != nil {
		return false, fmt.Errorf("dropping schema: %w", err)
	}

	slog.Default().InfoContext(ctx, "schema dropped", "dialect", s.dialect.Name)

	return true, nil
}

// Save inserts the author and its books in one transaction and fills in the
// generated ids and foreign keys.
func (s *Store) Save(ctx context.Context, author *Author) error {
	err := s.db.Tx(ctx, func(tx *lazyload.Session) error {
		id, err := s.insert(ctx, tx,
			squirrel.Insert(AuthorSchema.Table).
				Columns("name").
				Values(author.Name),
		)
		if err != nil {
			return fmt.Errorf("inserting author: %w", err)
		}
		author.ID = id

		for ix := range author.Books {
			b := &author.Books[ix]
			b.AuthorID = author.ID

			id, err := s.insert(ctx, tx,
				squirrel.Insert(BookSchema.Table).
					Columns("description", "release_date", "author_id").
					Values(b.Description, b.ReleaseDate.UTC(), b.AuthorID),
			)
			if err != nil {
				return fmt.Errorf("inserting book %q: %w", b.Description, err)
			}
			b.ID = id
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("saving author: %w", err)
	}

	return nil
}

// Seed saves SeedAuthor and returns it with its ids.
func (s *Store) Seed(ctx context.Context) (*Author, error) {
	author := SeedAuthor()
	if err := s.Save(ctx, &author); err != nil {
		return nil, err
	}

	slog.Default().InfoContext(ctx, "database seeded", "author", author.Name, "books", len(author.Books))

	return &author, nil
}

// ExplicitAuthor reads one author and then loads its books with a second,
// explicitly triggered query.
func (s *Store) ExplicitAuthor(ctx context.Context, id int64) (*Author, error) {
	author, err := AuthorSchema.Query().
		ModifyQuery(lazyload.Eq("id", id)).
		ModifyQuery(lazyload.Limit(1)).
		CollectOne(ctx, s.db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("author %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting author: %w", err)
	}

	if err := AuthorSchema.Load(ctx, s.db, author, "books"); err != nil {
		return nil, err
	}

	return author, nil
}

// EagerAuthors reads every author with its books fetched up front.
func (s *Store) EagerAuthors(ctx context.Context) ([]Author, error) {
	authors, err := AuthorSchema.Query().
		Include("books").
		Collect(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("selecting authors: %w", err)
	}

	return authors, nil
}

// LazyAuthors reads every author; books are queried on the first LoadBooks.
func (s *Store) LazyAuthors(ctx context.Context) ([]Author, error) {
	authors, err := AuthorSchema.Query().
		Lazy().
		Collect(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("selecting authors: %w", err)
	}

	return authors, nil
}

// Books reads every book with its author through the back-reference.
func (s *Store) Books(ctx context.Context) ([]Book, error) {
	books, err := BookSchema.Query().
		Include("author").
		Collect(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("selecting books: %w", err)
	}

	return books, nil
}

func (s *Store) insert(ctx context.Context, tx *lazyload.Session, q squirrel.InsertBuilder) (int64, error) {
	if s.dialect.Returning {
		var id int64
		err := q.Suffix("RETURNING id").RunWith(tx).QueryRowContext(ctx).Scan(&id)
		return id, err
	}

	result, err := q.RunWith(tx).ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.dialect.TableExists(table).RunWith(s.db).QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func execAll(ctx context.Context, db *lazyload.Session, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
