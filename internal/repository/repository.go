package repository

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned when a lookup or a scoped update matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientInventory is returned when a conditional stock decrement matches no row.
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecTx runs fn inside a transaction on db, committing when fn returns nil
// and rolling back otherwise.
func ExecTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
