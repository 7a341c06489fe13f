package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite/gen"
)

type txStore struct {
	tx  *sql.Tx
	q   *gen.Queries
	now func() time.Time
}

func newTx(tx *sql.Tx, now func() time.Time) *txStore {
	return &txStore{
		tx:  tx,
		q:   gen.New(tx),
		now: now,
	}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// Ping is a no-op, the connection is held for the life of the transaction.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users   { return &usersRepo{q: t.q, now: t.now} }
func (t *txStore) Tokens() store.Tokens { return &tokensRepo{q: t.q, now: t.now} }

func (t *txStore) ApplyMigrations() error { return nil } // applied before any tx is opened
