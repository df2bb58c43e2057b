package pushqueue

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPoolSize is the connection count of a SQLiteRegistry. Writes are
// serialized by SQLite, so a run needs very few connections.
const DefaultPoolSize = 2

const schema = `
CREATE TABLE IF NOT EXISTS pending_push (
	run_id TEXT NOT NULL,
	branch TEXT NOT NULL,
	PRIMARY KEY (run_id, branch)
);
CREATE TABLE IF NOT EXISTS run_meta (
	run_id TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (run_id, key)
);
`

// SQLiteConfig holds the parameters for opening a SQLiteRegistry
type SQLiteConfig struct {
	// Path is the database file. Its directory must exist.
	Path string
	// PoolSize defaults to DefaultPoolSize
	PoolSize int
	// Logger receives open and close messages. If nil, nothing is logged.
	Logger *slog.Logger
}

// SQLiteRegistry is a Registry stored in a SQLite database file, so that
// steps running in separate processes share one pending set. Every write
// runs in an IMMEDIATE transaction and waits on busy_timeout when another
// process holds the write lock.
type SQLiteRegistry struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var _ Registry = (*SQLiteRegistry)(nil)

// OpenSQLite opens (creating if needed) the registry database at cfg.Path
func OpenSQLite(cfg SQLiteConfig) (*SQLiteRegistry, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("pushqueue: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("pushqueue: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("pending push registry opened", "path", cfg.Path, "pool_size", poolSize)
	return &SQLiteRegistry{pool: pool, logger: logger, path: cfg.Path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	// busy_timeout goes first so the remaining statements wait out other
	// processes instead of failing with SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA busy_timeout=10000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("pushqueue: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("pushqueue: creating schema: %w", err)
	}
	return nil
}

// Path returns the database file path
func (r *SQLiteRegistry) Path() string {
	return r.path
}

func (r *SQLiteRegistry) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("pushqueue: take: %w", err)
	}
	defer r.pool.Put(conn)
	return fn(conn)
}

func (r *SQLiteRegistry) Add(ctx context.Context, runID, branch string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	return r.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("pushqueue: begin: %w", err)
		}
		defer endFn(&err)

		err = sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO pending_push (run_id, branch) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{runID, branch}})
		if err != nil {
			return fmt.Errorf("pushqueue: adding %s: %w", branch, err)
		}
		return nil
	})
}

func (r *SQLiteRegistry) List(ctx context.Context, runID string) ([]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	branches := []string{}
	err := r.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT branch FROM pending_push WHERE run_id = ? ORDER BY branch",
			&sqlitex.ExecOptions{
				Args: []any{runID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					branches = append(branches, stmt.ColumnText(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("pushqueue: listing pending branches: %w", err)
	}
	return branches, nil
}

// Drain selects and deletes the pending rows of runID in a single
// IMMEDIATE transaction, so concurrent drains never return the same branch.
func (r *SQLiteRegistry) Drain(ctx context.Context, runID string) ([]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	branches := []string{}
	err := r.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("pushqueue: begin: %w", err)
		}
		defer endFn(&err)

		err = sqlitex.Execute(conn,
			"SELECT branch FROM pending_push WHERE run_id = ? ORDER BY branch",
			&sqlitex.ExecOptions{
				Args: []any{runID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					branches = append(branches, stmt.ColumnText(0))
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("pushqueue: reading pending branches: %w", err)
		}

		err = sqlitex.Execute(conn,
			"DELETE FROM pending_push WHERE run_id = ?",
			&sqlitex.ExecOptions{Args: []any{runID}})
		if err != nil {
			return fmt.Errorf("pushqueue: clearing pending branches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return branches, nil
}

func (r *SQLiteRegistry) SetMeta(ctx context.Context, runID, key, value string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	return r.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("pushqueue: begin: %w", err)
		}
		defer endFn(&err)

		err = sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{runID, key, value}})
		if err != nil {
			return fmt.Errorf("pushqueue: setting %s: %w", key, err)
		}
		return nil
	})
}

func (r *SQLiteRegistry) Meta(ctx context.Context, runID string) (map[string]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	meta := map[string]string{}
	err := r.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT key, value FROM run_meta WHERE run_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{runID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					meta[stmt.ColumnText(0)] = stmt.ColumnText(1)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("pushqueue: reading metadata: %w", err)
	}
	return meta, nil
}

// Close closes the database. Blocks until every connection is returned.
func (r *SQLiteRegistry) Close() error {
	if err := r.pool.Close(); err != nil {
		return fmt.Errorf("pushqueue: closing %s: %w", r.path, err)
	}
	r.logger.Debug("pending push registry closed", "path", r.path)
	return nil
}
