// Package library holds the authors and books the walkthrough reads back.
package library

import (
	"context"
	"fmt"
	"time"

	"pollex.nl/lazyload"
)

type Author struct {
	ID    int64
	Name  string
	Books []Book

	books lazyload.Lazy[Author]
}

// LoadBooks returns the author's books. When the author was read lazily the
// first call queries them; otherwise it returns what is already there.
func (a *Author) LoadBooks(ctx context.Context) ([]Book, error) {
	if err := a.books.Load(ctx, a); err != nil {
		return nil, fmt.Errorf("loading books of author %d: %w", a.ID, err)
	}
	return a.Books, nil
}

// BooksLoaded reports whether Books has been filled by any strategy.
func (a *Author) BooksLoaded() bool {
	return a.books.Loaded()
}

type Book struct {
	ID          int64
	Description string
	ReleaseDate time.Time

	AuthorID int64
	Author   *Author
}

// SeedAuthor is the single author the database is seeded with.
func SeedAuthor() Author {
	return Author{
		Name: "Bill Gates",
		Books: []Book{
			{Description: "Microsoft Windows", ReleaseDate: day(1985, time.November, 20)},
			{Description: "Windows XP", ReleaseDate: day(2001, time.October, 25)},
		},
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
