package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/0x5457/fs-index/internal/models"
)

const (
	metaVersion = "index_version"
	metaModel   = "embedding_model"
)

// MetaSchema creates the tables shared by the SQL persisters.
const MetaSchema = `CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS failures (
	path TEXT PRIMARY KEY,
	reason TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	failed_at INTEGER NOT NULL
);`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LoadMeta reads the index version, the embedding model and failure markers.
func LoadMeta(ctx context.Context, q queryer) (State, error) {
	var st State
	version, err := metaValue(ctx, q, metaVersion)
	if err != nil {
		return st, err
	}
	if version != "" {
		if st.Version, err = strconv.ParseUint(version, 10, 64); err != nil {
			return st, err
		}
	}
	if st.Model, err = metaValue(ctx, q, metaModel); err != nil {
		return st, err
	}

	rows, err := q.QueryContext(ctx, `SELECT path,reason,attempts,failed_at FROM failures ORDER BY path`)
	if err != nil {
		return st, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f models.Failure
		var at int64
		if err := rows.Scan(&f.Path, &f.Reason, &f.Attempts, &at); err != nil {
			return st, err
		}
		f.FailedAt = time.Unix(0, at)
		st.Failures = append(st.Failures, f)
	}
	return st, rows.Err()
}

func metaValue(ctx context.Context, q queryer, key string) (string, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// ApplyMeta writes the non-record part of a batch inside tx.
func ApplyMeta(ctx context.Context, tx execer, c Changes) error {
	const setMeta = `INSERT INTO meta(key,value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	if _, err := tx.ExecContext(ctx, setMeta, metaVersion, strconv.FormatUint(c.Version, 10)); err != nil {
		return err
	}
	if c.SetModel {
		if _, err := tx.ExecContext(ctx, setMeta, metaModel, c.Model); err != nil {
			return err
		}
	}
	for _, path := range c.ClearFailures {
		if _, err := tx.ExecContext(ctx, `DELETE FROM failures WHERE path = ?`, path); err != nil {
			return err
		}
	}
	for _, f := range c.Failures {
		if _, err := tx.ExecContext(ctx, `INSERT INTO failures(path,reason,attempts,failed_at)
			VALUES(?,?,?,?)
			ON CONFLICT(path) DO UPDATE SET
			reason=excluded.reason,
			attempts=excluded.attempts,
			failed_at=excluded.failed_at`,
			f.Path, f.Reason, f.Attempts, f.FailedAt.UnixNano(),
		); err != nil {
			return err
		}
	}
	return nil
}

// InTx runs fn in a transaction and commits when it succeeds.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
