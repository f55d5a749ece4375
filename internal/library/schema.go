package library

import (
	"fmt"
	"time"

	"pollex.nl/lazyload"
)

var BookSchema = lazyload.New[Book]("books").
	AddSimpleField("id", func(b *Book) any { return &b.ID }).
	AddSimpleField("description", func(b *Book) any { return &b.Description }).
	AddField(
		"release_date",
		lazyload.Col("release_date"),
		lazyload.Via(func(b *Book, ts timestamp) { b.ReleaseDate = ts.Time }),
	).
	AddSimpleField("author_id", func(b *Book) any { return &b.AuthorID })

var AuthorSchema = lazyload.New[Author]("authors").
	AddSimpleField("id", func(a *Author) any { return &a.ID }).
	AddSimpleField("name", func(a *Author) any { return &a.Name }).
	AddRelation(
		"books",
		lazyload.HasMany(BookSchema,
			func(a Author, b Book) bool { return b.AuthorID == a.ID },
			func(a *Author, books []Book) { a.Books = books },
			lazyload.WhereIDs("author_id", func(a Author) int64 { return a.ID }),
			lazyload.DependsOn("id", "books.author_id"),
		).
			On("id", "author_id").
			Lazily(func(a *Author) *lazyload.Lazy[Author] { return &a.books }),
	)

func init() {
	BookSchema.AddRelation(
		"author",
		lazyload.HasOne(AuthorSchema,
			func(b Book, a Author) bool { return b.AuthorID == a.ID },
			func(b *Book, a Author) { b.Author = &a },
			lazyload.WhereIDs("id", func(b Book) int64 { return b.AuthorID }),
			lazyload.DependsOn("author_id"),
		),
	)
}

// timestamp reads release dates whichever way the driver hands them over.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02",
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time = time.Time{}
	case time.Time:
		ts.Time = v.UTC()
	case int64:
		ts.Time = time.Unix(v, 0).UTC()
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", src)
	}
	return nil
}

func (ts *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp: %s", s)
}
