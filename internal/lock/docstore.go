// Package lock provides a short-lived exclusive lease keyed by an
// arbitrary string id. Leases are acquired inside a single transaction
// against a document store, so two concurrent acquirers can never both
// observe "free" and both write.
package lock

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is the view of one atomic transaction over the document store.
type Tx interface {
	// Get returns the document at path, and whether it exists.
	Get(path string) ([]byte, bool, error)
	Set(path string, value []byte) error
	Delete(path string) error
}

// DocStore runs functions transactionally: every Get/Set/Delete inside fn
// is atomic with respect to other transactions on the same store.
type DocStore interface {
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// SQLiteDocStore backs DocStore with the lease_documents table.
type SQLiteDocStore struct {
	db *sql.DB
}

func NewSQLiteDocStore(db *sql.DB) *SQLiteDocStore {
	return &SQLiteDocStore{db: db}
}

func (s *SQLiteDocStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) Get(path string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT value FROM lease_documents WHERE path = ?", path,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %s: %w", path, err)
	}
	return value, true, nil
}

func (t *sqliteTx) Set(path string, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO lease_documents (path, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		path, value,
	)
	if err != nil {
		return fmt.Errorf("set document %s: %w", path, err)
	}
	return nil
}

func (t *sqliteTx) Delete(path string) error {
	_, err := t.tx.ExecContext(t.ctx, "DELETE FROM lease_documents WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", path, err)
	}
	return nil
}
