package lazyload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
)

// ErrNotTransactional is returned by Session.Tx when the wrapped handle cannot begin transactions.
var ErrNotTransactional = errors.New("session cannot begin a transaction")

// Statement is one round trip reported to a Hook.
type Statement struct {
	SQL      string
	Args     []any
	Duration time.Duration
	Err      error
}

type Hook func(ctx context.Context, stmt Statement)

type SessionOption func(*Session)

// WithPlaceholder rebinds the ? placeholders produced by the builders to the given format.
func WithPlaceholder(format squirrel.PlaceholderFormat) SessionOption {
	return func(s *Session) { s.placeholder = format }
}

func WithHook(hook Hook) SessionOption {
	return func(s *Session) { s.hooks = append(s.hooks, hook) }
}

// Session wraps a *sql.DB or *sql.Tx. Every statement is rebound to the
// dialect placeholder format and reported to the hooks. It satisfies
// squirrel.StdSqlCtx so it can be handed to RunWith and Collect.
type Session struct {
	db          squirrel.StdSqlCtx
	placeholder squirrel.PlaceholderFormat
	hooks       []Hook
}

func NewSession(db squirrel.StdSqlCtx, opts ...SessionOption) *Session {
	session := &Session{
		db:          db,
		placeholder: squirrel.Question,
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

func (s *Session) Exec(query string, args ...any) (sql.Result, error) {
	return s.ExecContext(context.Background(), query, args...)
}

func (s *Session) Query(query string, args ...any) (*sql.Rows, error) {
	return s.QueryContext(context.Background(), query, args...)
}

func (s *Session) QueryRow(query string, args ...any) *sql.Row {
	return s.QueryRowContext(context.Background(), query, args...)
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = s.rebind(query)

	start := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	s.report(ctx, Statement{SQL: query, Args: args, Duration: time.Since(start), Err: err})

	return result, err
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = s.rebind(query)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.report(ctx, Statement{SQL: query, Args: args, Duration: time.Since(start), Err: err})

	return rows, err
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	query = s.rebind(query)

	start := time.Now()
	row := s.db.QueryRowContext(ctx, query, args...)
	s.report(ctx, Statement{SQL: query, Args: args, Duration: time.Since(start), Err: row.Err()})

	return row
}

type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Tx runs fn inside a transaction. fn's error rolls the transaction back and is
// returned as is; otherwise the transaction is committed.
func (s *Session) Tx(ctx context.Context, fn func(tx *Session) error) error {
	db, ok := s.db.(beginner)
	if !ok {
		return ErrNotTransactional
	}

	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	s.report(ctx, Statement{SQL: "BEGIN", Duration: time.Since(start), Err: err})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	txSession := &Session{db: tx, placeholder: s.placeholder, hooks: s.hooks}
	if err := fn(txSession); err != nil {
		start = time.Now()
		rbErr := tx.Rollback()
		s.report(ctx, Statement{SQL: "ROLLBACK", Duration: time.Since(start), Err: rbErr})
		if rbErr != nil {
			slog.Default().ErrorContext(ctx, "Tx: failed to roll back", "error", rbErr.Error())
		}
		return err
	}

	start = time.Now()
	err = tx.Commit()
	s.report(ctx, Statement{SQL: "COMMIT", Duration: time.Since(start), Err: err})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Session) rebind(query string) string {
	rebound, err := s.placeholder.ReplacePlaceholders(query)
	if err != nil {
		slog.Default().Error("Session: failed to rebind placeholders", "error", err.Error())
		return query
	}
	return rebound
}

func (s *Session) report(ctx context.Context, stmt Statement) {
	for _, hook := range s.hooks {
		hook(ctx, stmt)
	}
}

// Recorder keeps every statement it is hooked into.
type Recorder struct {
	mu         sync.Mutex
	statements []Statement
}

func (r *Recorder) Hook(_ context.Context, stmt Statement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statements = append(r.statements, stmt)
}

func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.statements)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statements = nil
}

// LogStatements logs every statement at debug level, failures at warn.
func LogStatements(logger *slog.Logger) Hook {
	return func(ctx context.Context, stmt Statement) {
		attrs := []any{"sql", stmt.SQL, "args", stmt.Args, "duration", stmt.Duration}
		if stmt.Err != nil {
			logger.WarnContext(ctx, "statement failed", append(attrs, "error", stmt.Err.Error())...)
			return
		}
		logger.DebugContext(ctx, "statement", attrs...)
	}
}
