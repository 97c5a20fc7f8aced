// Package localstore is the durable cache under the sync subsystem: a
// versioned key-value layer with named collections, one JSON document per
// record, and optional secondary indexes. Schema versions are goose
// migrations; upgrades only ever add collections and indexes.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tripdesk/internal/client/migrations"
	"github.com/dmitrijs2005/tripdesk/internal/dbx"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Record is one entry in a collection. Doc is the full JSON document and must
// contain the fields any secondary index of the collection extracts.
type Record struct {
	ID  string
	Doc json.RawMessage
}

// Store provides get/put/delete access to the local collections. The
// underlying database is opened lazily on first use; concurrent first callers
// share a single in-flight open. The Store itself never retries — retry
// policy belongs to the mutation queue.
type Store struct {
	dsn string
	log logging.Logger

	once    sync.Once
	db      *sql.DB
	openErr error
}

func New(dsn string, log logging.Logger) *Store {
	return &Store{dsn: dsn, log: log.With("component", "localstore")}
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dsn)
		if err != nil {
			s.openErr = fmt.Errorf("failed to open local store: %w", err)
			return
		}
		// A single connection serializes writers and keeps a concurrent
		// queue drain and cache pull from tripping over SQLITE_BUSY.
		db.SetMaxOpenConns(1)

		goose.SetBaseFS(migrations.Migrations)
		goose.SetLogger(goose.NopLogger())
		if err := goose.SetDialect("sqlite3"); err != nil {
			s.openErr = fmt.Errorf("failed to set goose dialect: %w", err)
			return
		}
		if err := goose.UpContext(ctx, db, "."); err != nil {
			_ = db.Close()
			s.openErr = fmt.Errorf("failed to migrate local store: %w", err)
			return
		}

		s.db = db
		s.log.Debug(ctx, "local store opened", "dsn", s.dsn)
	})
	return s.db, s.openErr
}

// Close closes the underlying database if it was ever opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the record document, or nil without error when the key is
// absent.
func (s *Store) Get(ctx context.Context, c Collection, key string) (json.RawMessage, error) {
	def, err := resolve(c)
	if err != nil {
		return nil, err
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	var doc []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, def.table)
	err = db.QueryRowContext(ctx, query, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from %s: %w", def.table, err)
	}
	return doc, nil
}

// GetAll returns every document in the collection. Ordering is unspecified.
func (s *Store) GetAll(ctx context.Context, c Collection) ([]json.RawMessage, error) {
	def, err := resolve(c)
	if err != nil {
		return nil, err
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT data FROM %s`, def.table)
	return scanDocs(ctx, db, def.table, query)
}

// GetAllByIndex returns every document whose indexed field equals value.
// A value with zero matches yields an empty slice.
func (s *Store) GetAllByIndex(ctx context.Context, c Collection, index string, value any) ([]json.RawMessage, error) {
	def, err := resolve(c)
	if err != nil {
		return nil, err
	}
	col, err := def.column(index)
	if err != nil {
		return nil, err
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = ?`, def.table, col)
	return scanDocs(ctx, db, def.table, query, value)
}

func scanDocs(ctx context.Context, db dbx.DBTX, table, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, err)
	}
	defer rows.Close()

	result := make([]json.RawMessage, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Put upserts a single record by primary key.
func (s *Store) Put(ctx context.Context, c Collection, rec Record) error {
	def, err := resolve(c)
	if err != nil {
		return err
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	return putOne(ctx, db, def.table, rec)
}

// PutMany upserts all records in a single transaction; either every record
// commits or none do.
func (s *Store) PutMany(ctx context.Context, c Collection, recs []Record) error {
	def, err := resolve(c)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range recs {
			if err := putOne(ctx, tx, def.table, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func putOne(ctx context.Context, db dbx.DBTX, table string, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record for %s has no primary key", table)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		table)
	if _, err := db.ExecContext(ctx, query, rec.ID, []byte(rec.Doc)); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing key is a no-op success.
func (s *Store) Delete(ctx context.Context, c Collection, key string) error {
	def, err := resolve(c)
	if err != nil {
		return err
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, def.table)
	if _, err := db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", def.table, err)
	}
	return nil
}

// Clear removes every record in the collection.
func (s *Store) Clear(ctx context.Context, c Collection) error {
	def, err := resolve(c)
	if err != nil {
		return err
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s`, def.table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clear %s: %w", def.table, err)
	}
	return nil
}
