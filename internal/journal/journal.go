// Package journal provides the durable pass journal: a SQLite flight
// recorder for committed reconciliation passes.
//
// The journal is pure observability. Pass execution never depends on it and
// a write failure never fails a pass; the scheduler logs and moves on. The
// CLI trace command reads journals back to reconstruct what a run applied,
// in commit order.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MauricioAndrades/react/internal/sched"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a SQLite-backed pass recorder.
// Uses WAL mode for concurrent read access while a run is writing.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at the given path.
// Applies required pragmas and the schema automatically; safe to call on an
// existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under write contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// applyPragmas configures the connection: WAL journaling, a balanced
// synchronous mode, and a busy timeout for lock contention.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordPass implements sched.PassRecorder.
func (j *Journal) RecordPass(rec sched.PassRecord) error {
	return j.WritePass(context.Background(), rec)
}

// WritePass inserts one committed pass.
// Uses ON CONFLICT DO NOTHING for idempotency: a (run_token, seq) pair is
// written at most once, so replaying a recorder stream is safe.
func (j *Journal) WritePass(ctx context.Context, rec sched.PassRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO passes (run_token, seq, container, priority, update_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		rec.RunToken,
		rec.Seq,
		rec.Container,
		rec.Priority,
		rec.UpdateCount,
	)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	return nil
}

// Passes returns every pass recorded for a run token, in commit (seq)
// order.
func (j *Journal) Passes(ctx context.Context, runToken string) ([]sched.PassRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_token, seq, container, priority, update_count
		FROM passes
		WHERE run_token = ?
		ORDER BY seq
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("read passes: %w", err)
	}
	defer rows.Close()

	var out []sched.PassRecord
	for rows.Next() {
		var rec sched.PassRecord
		if err := rows.Scan(&rec.RunToken, &rec.Seq, &rec.Container, &rec.Priority, &rec.UpdateCount); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		// Reject rows written with a priority name this build doesn't know.
		if _, err := sched.ParsePriority(rec.Priority); err != nil {
			return nil, fmt.Errorf("pass %d: %w", rec.Seq, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read passes: %w", err)
	}

	return out, nil
}

// RunTokens returns the distinct run tokens present in the journal, most
// recently inserted first.
func (j *Journal) RunTokens(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_token FROM passes GROUP BY run_token ORDER BY MAX(rowid) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("read run tokens: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		out = append(out, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run tokens: %w", err)
	}

	return out, nil
}

// PassCount returns the total number of recorded passes across all runs.
func (j *Journal) PassCount(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passes: %w", err)
	}
	return n, nil
}
