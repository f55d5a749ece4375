package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"pollex.nl/lazyload"
	"pollex.nl/lazyload/internal/config"
	"pollex.nl/lazyload/internal/database"
	"pollex.nl/lazyload/internal/library"
	"pollex.nl/lazyload/internal/walkthrough"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "lazyload",
		Usage:     "Show the SQL behind explicit, eager and lazy loading",
		UsageText: "lazyload [-c FILE] [--driver NAME --dsn DSN] [--strategy NAME]...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Database driver, one of " + strings.Join(database.Drivers(), ", "),
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Database connection string",
			},
			&cli.StringSliceFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Loading strategy to run (explicit, eager, lazy); repeat for several, default all",
			},
			&cli.Int64Flag{
				Name:  "author-id",
				Value: 1,
				Usage: "Author read by the explicit strategy",
			},
			&cli.BoolFlag{
				Name:  "recreate",
				Usage: "Drop the tables before running",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait for Enter before exiting",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(c.App.ErrWriter)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	strategies, err := walkthrough.ParseStrategies(c.StringSlice("strategy"))
	if err != nil {
		return err
	}

	db, dialect, err := database.Open(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err.Error())
		}
	}()

	rec := &lazyload.Recorder{}
	session := lazyload.NewSession(db,
		lazyload.WithPlaceholder(dialect.Placeholder),
		lazyload.WithHook(rec.Hook),
		lazyload.WithHook(lazyload.LogStatements(logger)),
	)

	_, err = walkthrough.Run(c.Context, walkthrough.Options{
		Store:      library.NewStore(session, dialect),
		Recorder:   rec,
		Out:        c.App.Writer,
		Strategies: strategies,
		Recreate:   c.Bool("recreate"),
		AuthorID:   c.Int64("author-id"),
	})
	if err != nil {
		return err
	}

	if c.Bool("wait") {
		fmt.Fprintln(c.App.Writer, "\nPress Enter to exit.")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	return nil
}

// overrides maps the flags that were given onto configuration keys.
func overrides(c *cli.Context) map[string]any {
	flagKeys := map[string]string{
		"driver":     "database.driver",
		"dsn":        "database.dsn",
		"log-level":  "log.level",
		"log-format": "log.format",
	}

	out := map[string]any{}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}
