package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// SQLSTATE codes raised when two writers race on the same workspace.
var conflictCodes = map[string]bool{
	"23505": true, // unique_violation
	"23503": true, // foreign_key_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// TxManager runs repository work inside one pgx transaction. The tx handed
// to fn is a pgx.Tx; use getExecutor to turn it into something queryable.
type TxManager struct {
	pool     *pgxpool.Pool
	defaults pgx.TxOptions
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool, defaults: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTx commits when fn returns nil and rolls back otherwise. Zero txOpt
// means read committed.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if txOpt == (pgx.TxOptions{}) {
		txOpt = m.defaults
	}
	err := m.pool.BeginTxFunc(ctx, txOpt, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
	return translatePgError(err)
}

// translatePgError marks write races with domain.ErrConflict and keeps the
// driver error in the chain.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictCodes[pgErr.Code] {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// getExecutor resolves tx to a pgx handle; nil falls back to the pool.
func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v, nil
	case *pgxpool.Conn:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	case nil:
		if pool != nil {
			return pool, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidExecContext
	}
}
