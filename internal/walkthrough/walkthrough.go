// Package walkthrough reads the seeded library back with each loading
// strategy and prints the SQL every one of them issued.
package walkthrough

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/samber/lo"
	"pollex.nl/lazyload"
	"pollex.nl/lazyload/internal/library"
)

type Strategy string

const (
	Explicit Strategy = "explicit"
	Eager    Strategy = "eager"
	Lazy     Strategy = "lazy"
)

// Strategies is every strategy in the order the walkthrough runs them.
var Strategies = []Strategy{Explicit, Eager, Lazy}

var ErrUnknownStrategy = errors.New("unknown loading strategy")

// ParseStrategies validates names and removes duplicates, keeping the first
// occurrence. No names means all strategies.
func ParseStrategies(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return Strategies, nil
	}

	var out []Strategy
	for _, name := range names {
		strategy := Strategy(strings.ToLower(strings.TrimSpace(name)))
		if !lo.Contains(Strategies, strategy) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
		out = append(out, strategy)
	}

	return lo.Uniq(out), nil
}

type Options struct {
	Store    *library.Store
	Recorder *lazyload.Recorder
	Out      io.Writer

	Strategies []Strategy
	// Recreate drops the tables before ensuring them.
	Recreate bool
	// AuthorID is the author the explicit strategy reads.
	AuthorID int64
}

type Result struct {
	Strategy   Strategy
	Authors    []library.Author
	Statements []lazyload.Statement
}

type Report struct {
	Created bool
	Seeded  *library.Author
	Results []Result
}

func Run(ctx context.Context, opts Options) (*Report, error) {
	if len(opts.Strategies) == 0 {
		opts.Strategies = Strategies
	}

	report := &Report{}

	if opts.Recreate {
		if _, err := opts.Store.EnsureDeleted(ctx); err != nil {
			return nil, err
		}
	}

	created, err := opts.Store.EnsureCreated(ctx)
	if err != nil {
		return nil, err
	}
	report.Created = created

	if created {
		report.Seeded, err = opts.Store.Seed(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, strategy := range opts.Strategies {
		opts.Recorder.Reset()

		authors, err := read(ctx, opts.Store, strategy, opts.AuthorID)
		if err != nil {
			return nil, fmt.Errorf("%s loading: %w", strategy, err)
		}

		result := Result{
			Strategy:   strategy,
			Authors:    authors,
			Statements: opts.Recorder.Statements(),
		}
		report.Results = append(report.Results, result)

		slog.Default().DebugContext(ctx, "strategy finished",
			"strategy", strategy,
			"authors", len(authors),
			"statements", len(result.Statements),
		)
	}

	if opts.Out != nil {
		Print(opts.Out, report)
	}

	return report, nil
}

func read(ctx context.Context, store *library.Store, strategy Strategy, authorID int64) ([]library.Author, error) {
	switch strategy {
	case Explicit:
		author, err := store.ExplicitAuthor(ctx, authorID)
		if err != nil {
			return nil, err
		}
		return []library.Author{*author}, nil

	case Eager:
		return store.EagerAuthors(ctx)

	case Lazy:
		authors, err := store.LazyAuthors(ctx)
		if err != nil {
			return nil, err
		}
		// touching the books is what triggers the query
		for ix := range authors {
			if _, err := authors[ix].LoadBooks(ctx); err != nil {
				return nil, err
			}
		}
		return authors, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// Print writes a human readable account of the report.
func Print(w io.Writer, report *Report) {
	if report.Created {
		fmt.Fprintln(w, "Schema created.")
	}
	if report.Seeded != nil {
		fmt.Fprintf(w, "Seeded %s with %s.\n",
			report.Seeded.Name,
			english.Plural(len(report.Seeded.Books), "book", ""),
		)
	}

	for _, result := range report.Results {
		fmt.Fprintf(w, "\n== %s loading: %s ==\n",
			result.Strategy,
			english.Plural(len(result.Statements), "statement", ""),
		)

		for _, stmt := range result.Statements {
			fmt.Fprintf(w, "  %s\n", stmt.SQL)
			if len(stmt.Args) > 0 {
				fmt.Fprintf(w, "    args: %v\n", stmt.Args)
			}
		}

		for _, author := range result.Authors {
			fmt.Fprintf(w, "%s (%s)\n", author.Name, english.Plural(len(author.Books), "book", ""))
			for _, book := range author.Books {
				fmt.Fprintf(w, "  - %s, released %s\n", book.Description, releaseDay(book))
			}
		}
	}
}

func releaseDay(book library.Book) string {
	d := book.ReleaseDate
	return fmt.Sprintf("%s %s %d", humanize.Ordinal(d.Day()), d.Month(), d.Year())
}
