//nolint:revive // exported
package txutil

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

// TxnRollback is meant to be used with defer so rollback errors are still
// logged after the function ends. sql.ErrTxDone is expected on the happy
// path once Commit has run.
func TxnRollback(tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("tx rollback failed", "error", err)
	}
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer TxnRollback(tx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
