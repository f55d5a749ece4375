package walkthrough_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pollex.nl/lazyload"
	"pollex.nl/lazyload/internal/database"
	"pollex.nl/lazyload/internal/library"
	"pollex.nl/lazyload/internal/walkthrough"
)

func setup(t *testing.T, dsn string) walkthrough.Options {
	t.Helper()

	db, dialect, err := database.Open(context.Background(), database.Config{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rec := &lazyload.Recorder{}
	session := lazyload.NewSession(db, lazyload.WithPlaceholder(dialect.Placeholder), lazyload.WithHook(rec.Hook))

	return walkthrough.Options{
		Store:    library.NewStore(session, dialect),
		Recorder: rec,
		AuthorID: 1,
	}
}

func TestParseStrategies(t *testing.T) {
	all, err := walkthrough.ParseStrategies(nil)
	require.NoError(t, err)
	assert.Equal(t, walkthrough.Strategies, all)

	some, err := walkthrough.ParseStrategies([]string{"Lazy", " eager", "lazy"})
	require.NoError(t, err)
	assert.Equal(t, []walkthrough.Strategy{walkthrough.Lazy, walkthrough.Eager}, some)

	_, err = walkthrough.ParseStrategies([]string{"psychic"})
	assert.ErrorIs(t, err, walkthrough.ErrUnknownStrategy)
}

func TestRun(t *testing.T) {
	// Arrange
	opts := setup(t, "file::memory:")
	var out bytes.Buffer
	opts.Out = &out

	// Act
	report, err := walkthrough.Run(context.Background(), opts)
	require.NoError(t, err)

	// Assert
	assert.True(t, report.Created)
	require.NotNil(t, report.Seeded)
	require.Len(t, report.Results, 3)

	counts := map[walkthrough.Strategy]int{}
	for _, result := range report.Results {
		counts[result.Strategy] = len(result.Statements)
	}
	assert.Equal(t, map[walkthrough.Strategy]int{
		walkthrough.Explicit: 2,
		walkthrough.Eager:    2,
		walkthrough.Lazy:     2,
	}, counts)

	first := report.Results[0].Authors
	sortBooks := cmpopts.SortSlices(func(a, b library.Book) bool { return a.ID < b.ID })
	for _, result := range report.Results[1:] {
		diff := cmp.Diff(first, result.Authors, cmpopts.IgnoreUnexported(library.Author{}), sortBooks)
		assert.Empty(t, diff, "%s differs from explicit", result.Strategy)
	}

	printed := out.String()
	assert.Contains(t, printed, "Schema created.")
	assert.Contains(t, printed, "Seeded Bill Gates with 2 books.")
	assert.Contains(t, printed, "== explicit loading: 2 statements ==")
	assert.Contains(t, printed, "INNER JOIN (SELECT authors.id FROM authors) AS t")
	assert.Contains(t, printed, "  - Windows XP, released 25th October 2001")
	assert.Contains(t, printed, "Bill Gates (2 books)")
}

func TestRunDoesNotSeedTwice(t *testing.T) {
	opts := setup(t, "file::memory:")
	opts.Strategies = []walkthrough.Strategy{walkthrough.Eager}

	_, err := walkthrough.Run(context.Background(), opts)
	require.NoError(t, err)

	report, err := walkthrough.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.False(t, report.Created)
	assert.Nil(t, report.Seeded)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Results[0].Authors, 1)
	assert.Len(t, report.Results[0].Authors[0].Books, 2)
}

func TestRunRecreate(t *testing.T) {
	opts := setup(t, "file::memory:")
	opts.Strategies = []walkthrough.Strategy{walkthrough.Explicit}

	_, err := walkthrough.Run(context.Background(), opts)
	require.NoError(t, err)

	opts.Recreate = true
	report, err := walkthrough.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, report.Created)
	require.Len(t, report.Results[0].Authors, 1)
	assert.Equal(t, int64(1), report.Results[0].Authors[0].ID)
}

func TestRunMissingAuthor(t *testing.T) {
	opts := setup(t, "file::memory:")
	opts.Strategies = []walkthrough.Strategy{walkthrough.Explicit}
	opts.AuthorID = 99

	_, err := walkthrough.Run(context.Background(), opts)
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestRunZeroAuthorIsNotFound(t *testing.T) {
	opts := setup(t, "file::memory:")
	opts.Strategies = []walkthrough.Strategy{walkthrough.Explicit}
	opts.AuthorID = 0

	_, err := walkthrough.Run(context.Background(), opts)
	assert.ErrorIs(t, err, library.ErrNotFound)
}
