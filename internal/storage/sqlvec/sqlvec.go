package sqlvec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/0x5457/fs-index/internal/storage"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Persister keeps record metadata in a plain table and vectors in a vec0
// virtual table keyed by the record rowid.
type Persister struct {
	db        *sql.DB
	dimension int
	log       *zap.Logger
}

func New(path string, log *zap.Logger) (*Persister, error) {
	if log == nil {
		log = zap.NewNop()
	}
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	p := &Persister{db: db, log: log}
	if err := p.migrate(); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return p, nil
}

func (p *Persister) migrate() error {
	if _, err := p.db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	if _, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		rid INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		fingerprint TEXT NOT NULL,
		kind TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		dim INTEGER NOT NULL,
		checksum INTEGER NOT NULL
	);`); err != nil {
		return err
	}
	if _, err := p.db.Exec(storage.MetaSchema); err != nil {
		return err
	}
	dim, err := vecDimension(context.Background(), p.db)
	if err != nil {
		return err
	}
	p.dimension = dim
	return nil
}

// vecDimension reads the vector width from the vec_embeddings declaration,
// or 0 when the table does not exist yet.
func vecDimension(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (int, error) {
	var ddl string
	err := q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type='table' AND name='vec_embeddings'`).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	const marker = "float32["
	start := strings.Index(ddl, marker)
	if start < 0 {
		return 0, fmt.Errorf("cannot read dimension from %q", ddl)
	}
	rest := ddl[start+len(marker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, fmt.Errorf("cannot read dimension from %q", ddl)
	}
	return strconv.Atoi(rest[:end])
}

func (p *Persister) Load(ctx context.Context) (storage.State, error) {
	st, err := storage.LoadMeta(ctx, p.db)
	if err != nil {
		return st, err
	}

	query := `SELECT r.path,r.fingerprint,r.kind,r.language,r.size_bytes,r.modified_at,
		r.indexed_at,r.summary,r.dim,NULL,r.checksum FROM records r ORDER BY r.path`
	if p.dimension > 0 {
		query = `SELECT r.path,r.fingerprint,r.kind,r.language,r.size_bytes,r.modified_at,
			r.indexed_at,r.summary,r.dim,v.embedding,r.checksum
			FROM records r LEFT JOIN vec_embeddings v ON v.rowid = r.rid ORDER BY r.path`
	}
	rows, err := p.db.QueryContext(ctx, query)
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
		err := storage.InTx(ctx, p.db, func(tx *sql.Tx) error {
			for _, c := range st.Corrupt {
				p.log.Warn("dropping corrupt record", zap.String("path", c.Path), zap.String("reason", c.Reason))
				if err := p.deleteRecord(ctx, tx, c.Path); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

func (p *Persister) Apply(ctx context.Context, c storage.Changes) error {
	dim := p.dimension
	err := storage.InTx(ctx, p.db, func(tx *sql.Tx) error {
		if len(c.Upserts) > 0 {
			var err error
			if dim, err = p.ensureVecTable(ctx, tx, len(c.Upserts[0].Embedding), c.SetModel); err != nil {
				return err
			}
		}

		upsert, err := tx.PrepareContext(ctx, `INSERT INTO records(
			path,fingerprint,kind,language,size_bytes,modified_at,indexed_at,summary,dim,checksum
		) VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint=excluded.fingerprint,
			kind=excluded.kind,
			language=excluded.language,
			size_bytes=excluded.size_bytes,
			modified_at=excluded.modified_at,
			indexed_at=excluded.indexed_at,
			summary=excluded.summary,
			dim=excluded.dim,
			checksum=excluded.checksum
		RETURNING rid`)
		if err != nil {
			return err
		}
		defer func() { _ = upsert.Close() }()

		for _, rec := range c.Upserts {
			if len(rec.Embedding) != dim {
				return fmt.Errorf("record %s has %d dimensions, table has %d", rec.Path, len(rec.Embedding), dim)
			}
			r := storage.EncodeRecord(rec)
			var rid int64
			if err := upsert.QueryRowContext(ctx, r.Path, r.Fingerprint, r.Kind, r.Language, r.SizeBytes,
				r.ModifiedAt, r.IndexedAt, r.Summary, r.Dim, r.Checksum).Scan(&rid); err != nil {
				return err
			}
			v, err := sqlite_vec.SerializeFloat32(rec.Embedding)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rid); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES(?, ?)`, rid, v); err != nil {
				return err
			}
		}
		for _, path := range c.Removes {
			if err := p.deleteRecord(ctx, tx, path); err != nil {
				return err
			}
		}
		return storage.ApplyMeta(ctx, tx, c)
	})
	if err != nil {
		return err
	}
	p.dimension = dim
	return nil
}

func (p *Persister) deleteRecord(ctx context.Context, tx *sql.Tx, path string) error {
	var rid int64
	err := tx.QueryRowContext(ctx, `SELECT rid FROM records WHERE path = ?`, path).Scan(&rid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.dimension > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rid); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM records WHERE rid = ?`, rid)
	return err
}

// ensureVecTable creates the vector table on first write. A model change may
// bring a new width, in which case the table is rebuilt; records that are not
// rewritten in the same batch lose their vector and are dropped on next load.
func (p *Persister) ensureVecTable(ctx context.Context, tx *sql.Tx, dim int, modelChanged bool) (int, error) {
	if dim <= 0 {
		return 0, fmt.Errorf("cannot store an empty embedding")
	}
	if p.dimension == dim {
		return dim, nil
	}
	if p.dimension > 0 {
		if !modelChanged {
			return 0, fmt.Errorf("embedding has %d dimensions, table has %d", dim, p.dimension)
		}
		if _, err := tx.ExecContext(ctx, `DROP TABLE vec_embeddings`); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
		embedding float32[%d]
	);`, dim)); err != nil {
		return 0, err
	}
	return dim, nil
}

func (p *Persister) Close() error { return p.db.Close() }

var _ storage.Persister = (*Persister)(nil)
