// Package sqlite provides a SQLite-backed store adapter built on the
// ncruces/go-sqlite3 wasm driver. The database runs in embedded mode with
// WAL enabled so reads stay concurrent while a reconciliation run writes
// inside its transaction boundary.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/utc"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ebbworks/ebbsync/pkg/constants"
	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/store"
)

// Store is a SQLite-backed store.Adapter. A Store returned by Open runs
// statements against the database directly; Transaction hands fn a clone
// bound to a single *sql.Tx.
type Store struct {
	db   *sql.DB
	tx   *sql.Tx
	path string

	// txMu serializes statements issued concurrently against one
	// connection; the apply engine fans out per item.
	txMu *sync.Mutex
}

var (
	_ store.Adapter       = (*Store)(nil)
	_ store.PendingWriter = (*Store)(nil)
)

// Open creates a store at the given path, creating the parent directory
// and the schema if needed. The caller must Close the store when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, errors.WrapStore("open", "", "", false, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapStore("open", "", "", false, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", constants.DefaultSQLiteBusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.WrapStore("open", "", "", false, err)
		}
	}

	s := &Store{db: db, path: path, txMu: &sync.Mutex{}}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil || s.tx != nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// initSchema creates the tables if they don't exist. Idempotent.
func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS models (
	schema_name TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	body        BLOB,
	PRIMARY KEY (schema_name, model_id)
);

CREATE TABLE IF NOT EXISTS sync_metadata (
	schema_name     TEXT NOT NULL,
	model_id        TEXT NOT NULL,
	version         INTEGER NOT NULL,
	last_changed_at TEXT NOT NULL,
	deleted         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (schema_name, model_id)
);

CREATE TABLE IF NOT EXISTS pending_mutations (
	schema_name TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	queued_at   TEXT NOT NULL,
	PRIMARY KEY (schema_name, model_id)
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.WrapStore("init", "", "", false, err)
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the querier statements should run against.
func (s *Store) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// keyPlaceholders builds a "(?,?),(?,?)..." row-value list plus its args.
func keyPlaceholders(keys []model.Key) (string, []any) {
	placeholders := make([]string, len(keys))
	args := make([]any, 0, len(keys)*2)
	for i, key := range keys {
		placeholders[i] = "(?,?)"
		args = append(args, key.Schema, key.ID)
	}
	return strings.Join(placeholders, ","), args
}

// Metadata implements store.Adapter.
func (s *Store) Metadata(ctx context.Context, keys []model.Key) (map[model.Key]model.Metadata, error) {
	out := make(map[model.Key]model.Metadata, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders, args := keyPlaceholders(keys)
	query := `SELECT schema_name, model_id, version, last_changed_at, deleted
		FROM sync_metadata WHERE (schema_name, model_id) IN (` + placeholders + `)`

	s.txMu.Lock()
	defer s.txMu.Unlock()

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapStore("query", "", "", false, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key model.Key
		var md model.Metadata
		var changedAt string
		var deleted int
		if err := rows.Scan(&key.Schema, &key.ID, &md.Version, &changedAt, &deleted); err != nil {
			return nil, errors.WrapStore("query", key.Schema, key.ID, false, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, changedAt)
		if err != nil {
			return nil, errors.WrapStore("query", key.Schema, key.ID, false, err)
		}
		md.LastChangedAt = utc.New(ts)
		md.Deleted = deleted != 0
		out[key] = md
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore("query", "", "", false, err)
	}
	return out, nil
}

// Pending implements store.Adapter.
func (s *Store) Pending(ctx context.Context, keys []model.Key) (map[model.Key]model.PendingMutation, error) {
	out := make(map[model.Key]model.PendingMutation, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders, args := keyPlaceholders(keys)
	query := `SELECT schema_name, model_id, kind, queued_at
		FROM pending_mutations WHERE (schema_name, model_id) IN (` + placeholders + `)`

	s.txMu.Lock()
	defer s.txMu.Unlock()

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapStore("query", "", "", false, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.PendingMutation
		var kind, queuedAt string
		if err := rows.Scan(&p.Key.Schema, &p.Key.ID, &kind, &queuedAt); err != nil {
			return nil, errors.WrapStore("query", p.Key.Schema, p.Key.ID, false, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, queuedAt)
		if err != nil {
			return nil, errors.WrapStore("query", p.Key.Schema, p.Key.ID, false, err)
		}
		p.Kind = model.MutationKind(kind)
		p.QueuedAt = utc.New(ts)
		out[p.Key] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore("query", "", "", false, err)
	}
	return out, nil
}

// SaveModel implements store.Adapter.
func (s *Store) SaveModel(ctx context.Context, env model.Envelope) (model.Envelope, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	_, err := s.q().ExecContext(ctx, `
		INSERT INTO models (schema_name, model_id, body) VALUES (?, ?, ?)
		ON CONFLICT (schema_name, model_id) DO UPDATE SET body = excluded.body`,
		env.Schema, env.ID, []byte(env.Body))
	if err != nil {
		return model.Envelope{}, errors.WrapStore("save", env.Schema, env.ID, false, err)
	}
	return env, nil
}

// DeleteModel implements store.Adapter. Deleting an absent body returns a
// not-found error, which Ignorable classifies as safe to drop.
func (s *Store) DeleteModel(ctx context.Context, key model.Key, expect *model.Metadata) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if expect != nil {
		var version int64
		err := s.q().QueryRowContext(ctx,
			`SELECT version FROM sync_metadata WHERE schema_name = ? AND model_id = ?`,
			key.Schema, key.ID).Scan(&version)
		if err == sql.ErrNoRows || (err == nil && version != expect.Version) {
			return errors.ErrPreconditionFailed
		}
		if err != nil {
			return errors.WrapStore("delete", key.Schema, key.ID, false, err)
		}
	}

	res, err := s.q().ExecContext(ctx,
		`DELETE FROM models WHERE schema_name = ? AND model_id = ?`, key.Schema, key.ID)
	if err != nil {
		return errors.WrapStore("delete", key.Schema, key.ID, false, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore("delete", key.Schema, key.ID, false, err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("model", key.String())
	}
	return nil
}

// SaveMetadata implements store.Adapter.
func (s *Store) SaveMetadata(ctx context.Context, rec model.Record, expect *model.Metadata) (model.Record, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if expect != nil {
		var version int64
		err := s.q().QueryRowContext(ctx,
			`SELECT version FROM sync_metadata WHERE schema_name = ? AND model_id = ?`,
			rec.Key.Schema, rec.Key.ID).Scan(&version)
		if err == sql.ErrNoRows || (err == nil && version != expect.Version) {
			return model.Record{}, errors.ErrPreconditionFailed
		}
		if err != nil {
			return model.Record{}, errors.WrapStore("metadata", rec.Key.Schema, rec.Key.ID, false, err)
		}
	}

	deleted := 0
	if rec.Metadata.Deleted {
		deleted = 1
	}
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO sync_metadata (schema_name, model_id, version, last_changed_at, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (schema_name, model_id) DO UPDATE SET
			version = excluded.version,
			last_changed_at = excluded.last_changed_at,
			deleted = excluded.deleted`,
		rec.Key.Schema, rec.Key.ID, rec.Metadata.Version,
		rec.Metadata.LastChangedAt.Format(time.RFC3339Nano), deleted)
	if err != nil {
		return model.Record{}, errors.WrapStore("metadata", rec.Key.Schema, rec.Key.ID, false, err)
	}
	return rec, nil
}

// Transaction implements store.Adapter. The transaction-bound adapter
// shares the parent's statement mutex, so the apply engine's concurrent
// per-item calls serialize onto the single transaction connection.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	if s.tx != nil {
		return fn(s)
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore("begin", "", "", false, err)
	}

	bound := &Store{db: s.db, tx: dbtx, path: s.path, txMu: s.txMu}
	if err := fn(bound); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return errors.WrapStore("commit", "", "", false, err)
	}
	return nil
}

// Ignorable implements store.Adapter. Missing records are the only
// ignorable condition for the SQLite store.
func (s *Store) Ignorable(err error) bool {
	return errors.IsNotFound(err)
}

// SavePending implements store.PendingWriter.
func (s *Store) SavePending(ctx context.Context, p model.PendingMutation) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	_, err := s.q().ExecContext(ctx, `
		INSERT INTO pending_mutations (schema_name, model_id, kind, queued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (schema_name, model_id) DO UPDATE SET
			kind = excluded.kind,
			queued_at = excluded.queued_at`,
		p.Key.Schema, p.Key.ID, string(p.Kind), p.QueuedAt.Format(time.RFC3339Nano))
	return errors.WrapStore("pending", p.Key.Schema, p.Key.ID, false, err)
}

// DeletePending implements store.PendingWriter.
func (s *Store) DeletePending(ctx context.Context, key model.Key) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	_, err := s.q().ExecContext(ctx,
		`DELETE FROM pending_mutations WHERE schema_name = ? AND model_id = ?`,
		key.Schema, key.ID)
	return errors.WrapStore("pending", key.Schema, key.ID, false, err)
}

// PendingAll returns every pending mutation in the store, for the CLI's
// pending listing.
func (s *Store) PendingAll(ctx context.Context) ([]model.PendingMutation, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	rows, err := s.q().QueryContext(ctx, `
		SELECT schema_name, model_id, kind, queued_at
		FROM pending_mutations ORDER BY schema_name, model_id`)
	if err != nil {
		return nil, errors.WrapStore("query", "", "", false, err)
	}
	defer rows.Close()

	var out []model.PendingMutation
	for rows.Next() {
		var p model.PendingMutation
		var kind, queuedAt string
		if err := rows.Scan(&p.Key.Schema, &p.Key.ID, &kind, &queuedAt); err != nil {
			return nil, errors.WrapStore("query", p.Key.Schema, p.Key.ID, false, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, queuedAt)
		if err != nil {
			return nil, errors.WrapStore("query", p.Key.Schema, p.Key.ID, false, err)
		}
		p.Kind = model.MutationKind(kind)
		p.QueuedAt = utc.New(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
