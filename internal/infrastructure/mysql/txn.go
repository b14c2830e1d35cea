package mysql

import (
	"context"
	"database/sql"
)

// runInTx executes fn inside a *sql.Tx.
// If fn returns an error the tx rolls back, else it commits.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
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
