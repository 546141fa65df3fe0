package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed limiter. Hook invocations run as freshly
// spawned processes, so in-memory counters would reset on every event and
// never throttle; this store keeps the window state on disk where concurrent
// invocations share it. WAL mode plus a busy timeout handles writers from
// parallel sessions.
type Store struct {
	db     *sql.DB
	max    int
	window time.Duration
	now    func() time.Time
}

// OpenStore opens (creating if needed) the counter database at path.
func OpenStore(path string, max int, window time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open rate-limit store: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS hook_counters (
			hook_name    TEXT PRIMARY KEY,
			count        INTEGER NOT NULL,
			window_start INTEGER NOT NULL,
			last_seen    INTEGER NOT NULL
		)
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create hook_counters table: %w", err)
	}

	return &Store{db: db, max: max, window: window, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Allow records one call for hookName inside a single transaction so
// concurrent hook processes cannot double-count or miss the window reset.
func (s *Store) Allow(hookName string) (bool, error) {
	ctx := context.Background()
	nowMillis := s.now().UnixMilli()
	windowMillis := s.window.Milliseconds()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	const selectQuery = `SELECT count, window_start FROM hook_counters WHERE hook_name = ?`
	var count int
	var windowStart int64
	err = tx.QueryRowContext(ctx, selectQuery, hookName).Scan(&count, &windowStart)

	switch {
	case err == sql.ErrNoRows || (err == nil && nowMillis-windowStart >= windowMillis):
		count = 1
		const upsertQuery = `
			INSERT INTO hook_counters (hook_name, count, window_start, last_seen)
			VALUES (?, 1, ?, ?)
			ON CONFLICT(hook_name) DO UPDATE SET count = 1, window_start = ?, last_seen = ?
		`
		if _, err := tx.ExecContext(ctx, upsertQuery, hookName, nowMillis, nowMillis, nowMillis, nowMillis); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		count++
		const updateQuery = `UPDATE hook_counters SET count = ?, last_seen = ? WHERE hook_name = ?`
		if _, err := tx.ExecContext(ctx, updateQuery, count, nowMillis, hookName); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return count <= s.max, nil
}
