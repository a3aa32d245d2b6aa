package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/0x5457/fs-index/internal/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Persister keeps records, vectors included, in a single sqlite file.
type Persister struct {
	db  *sql.DB
	log *zap.Logger
}

func New(path string, log *zap.Logger) (*Persister, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return &Persister{db: db, log: log}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		path TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		kind TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		dim INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		checksum INTEGER NOT NULL
	);`); err != nil {
		return err
	}
	_, err := db.Exec(storage.MetaSchema)
	return err
}

func (p *Persister) Load(ctx context.Context) (storage.State, error) {
	st, err := storage.LoadMeta(ctx, p.db)
	if err != nil {
		return st, err
	}

	rows, err := p.db.QueryContext(ctx, `SELECT path,fingerprint,kind,language,size_bytes,modified_at,
		indexed_at,summary,dim,embedding,checksum FROM records ORDER BY path`)
	if err != nil {
		return st, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var r storage.Row
		if err := rows.Scan(&r.Path, &r.Fingerprint, &r.Kind, &r.Language, &r.SizeBytes, &r.ModifiedAt,
			&r.IndexedAt, &r.Summary, &r.Dim, &r.Embedding, &r.Checksum); err != nil {
			return st, err
		}
		rec, err := r.Decode()
		if err != nil {
			var ce *storage.CorruptRecordError
			if !errors.As(err, &ce) {
				return st, err
			}
			st.Corrupt = append(st.Corrupt, ce)
			continue
		}
		st.Records = append(st.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	_ = rows.Close()

	if len(st.Corrupt) > 0 {
		if err := p.dropCorrupt(ctx, st.Corrupt); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (p *Persister) dropCorrupt(ctx context.Context, corrupt []*storage.CorruptRecordError) error {
	return storage.InTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, c := range corrupt {
			p.log.Warn("dropping corrupt record", zap.String("path", c.Path), zap.String("reason", c.Reason))
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, c.Path); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Persister) Apply(ctx context.Context, c storage.Changes) error {
	return storage.InTx(ctx, p.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records(
			path,fingerprint,kind,language,size_bytes,modified_at,indexed_at,summary,dim,embedding,checksum
		) VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint=excluded.fingerprint,
			kind=excluded.kind,
			language=excluded.language,
			size_bytes=excluded.size_bytes,
			modified_at=excluded.modified_at,
			indexed_at=excluded.indexed_at,
			summary=excluded.summary,
			dim=excluded.dim,
			embedding=excluded.embedding,
			checksum=excluded.checksum`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, rec := range c.Upserts {
			r := storage.EncodeRecord(rec)
			if _, err := stmt.ExecContext(ctx, r.Path, r.Fingerprint, r.Kind, r.Language, r.SizeBytes,
				r.ModifiedAt, r.IndexedAt, r.Summary, r.Dim, r.Embedding, r.Checksum); err != nil {
				return err
			}
		}
		for _, path := range c.Removes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, path); err != nil {
				return err
			}
		}
		return storage.ApplyMeta(ctx, tx, c)
	})
}

func (p *Persister) Close() error { return p.db.Close() }

var _ storage.Persister = (*Persister)(nil)
