package database

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// Conn returns the transaction carried by ctx, or db when there is none.
// Repositories query through it so they join an enclosing WithTx.
func Conn(ctx context.Context, db DB) Querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// WithTx runs fn with a transaction on its context. A transaction already on
// ctx is reused and left for the outer caller to finish. fn's error or a
// panic rolls back.
func WithTx(ctx context.Context, db DB, logger ectologger.Logger, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txContextKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while beginning transaction")
		return fmt.Errorf("error while beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.WithContext(ctx).WithError(rbErr).Error("error while rolling back transaction")
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}
	return nil
}
