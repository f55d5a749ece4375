package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	err := app.Run([]string{"lazyload", "--driver", "sqlite3", "--dsn", "file::memory:", "-s", "eager", "-s", "lazy"})
	require.NoError(t, err)

	printed := out.String()
	assert.Contains(t, printed, "== eager loading: 2 statements ==")
	assert.Contains(t, printed, "== lazy loading: 2 statements ==")
	assert.NotContains(t, printed, "explicit loading")
}

func TestAppRejectsUnknownStrategy(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"lazyload", "--dsn", "file::memory:", "-s", "psychic"})
	assert.ErrorContains(t, err, "unknown loading strategy")
}

func TestAppRejectsUnknownDriver(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"lazyload", "--driver", "oracle"})
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestAppAuthorID(t *testing.T) {
	t.Run("defaults to the seeded author", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		app.ErrWriter = io.Discard

		err := app.Run([]string{"lazyload", "--dsn", "file::memory:", "-s", "explicit"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Bill Gates (2 books)")
	})

	t.Run("zero is looked up as given", func(t *testing.T) {
		app := newApp()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard

		err := app.Run([]string{"lazyload", "--dsn", "file::memory:", "-s", "explicit", "--author-id", "0"})
		assert.ErrorContains(t, err, "author 0: not found")
	})
}
